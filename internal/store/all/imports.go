// Package all wires all built-in store backends into the store factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the store package.
//
// Importing this package makes the following drivers available at runtime:
//
//   - "sqlite"   (gmdb/internal/store/sqlite)
//   - "postgres" (gmdb/internal/store/postgres)
//   - "mysql"    (gmdb/internal/store/mysql)
//   - "mssql"    (gmdb/internal/store/mssql)
//
// Typical usage (in cmd/gmdb or a similar wiring layer):
//
//	import (
//	    _ "gmdb/internal/store/all" // enable all built-in backends
//
//	    "gmdb/internal/store"
//	)
//
//	st, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: "file:gm.db"})
//
// A binary that needs only a subset of backends can import the individual
// backend packages instead of this one.
package all

import (
	_ "gmdb/internal/store/mssql"
	_ "gmdb/internal/store/mysql"
	_ "gmdb/internal/store/postgres"
	_ "gmdb/internal/store/sqlite"
)
