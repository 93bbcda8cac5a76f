package sqlite

import (
	"strings"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

// sqlType maps a schema kind onto a SQLite column type. SQLite typing is
// affinity based, so the mapping leans on the canonical affinities.
func sqlType(col schema.ColumnSpec) string {
	switch col.Kind {
	case schema.KindFloat:
		return "REAL"
	case schema.KindInt, schema.KindUint, schema.KindBool:
		return "INTEGER"
	case schema.KindVector:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(table string, reg *schema.Registry) string {
	cols := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		cols = append(cols, quoteIdent(col.Name)+" "+sqlType(col))
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) +
		" (\n  " + strings.Join(cols, ",\n  ") + "\n);"
}

func insertSQL(table string, reg *schema.Registry) string {
	names := make([]string, 0, reg.Len())
	marks := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		names = append(names, quoteIdent(col.Name))
		marks = append(marks, "?")
	}
	return "INSERT INTO " + quoteIdent(table) +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func selectSQL(table string, reg *schema.Registry) string {
	names := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		names = append(names, quoteIdent(col.Name))
	}
	return "SELECT " + strings.Join(names, ", ") + " FROM " + quoteIdent(table)
}

func createRunsSQL() string {
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(store.RunsTable) + ` (
  "run_id" TEXT,
  "table_name" TEXT,
  "source" TEXT,
  "mode" TEXT,
  "total" INTEGER,
  "written" INTEGER,
  "errors" INTEGER,
  "duplicates" INTEGER,
  "started_at" TEXT,
  "finished_at" TEXT
);`
}
