// Package store contains the storage-agnostic contracts for ground-motion
// tables: the Store and Table interfaces, the open-mode semantics, the
// backend factory registry and the row codec shared by all SQL backends.
//
// Every backend persists records with one database column per schema column,
// in registry order. Float NaN maps to SQL NULL in both directions; the
// spectral-acceleration vector is packed as a little-endian float64 blob.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gmdb/internal/schema"
)

// Mode controls how a table is opened.
type Mode string

const (
	// ModeRead opens an existing table and fails when it is missing.
	ModeRead Mode = "read"
	// ModeAppend creates the table when missing and keeps existing rows.
	ModeAppend Mode = "append"
	// ModeOverwrite drops any same-named table before creating it fresh.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode validates a mode name from configuration or a CLI flag.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRead, ModeAppend, ModeOverwrite:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown table mode %q (want read, append or overwrite)", s)
}

// ErrMissingTable is returned by Store.Open in ModeRead when the named
// table does not exist.
var ErrMissingTable = errors.New("table does not exist")

// Store is one database holding any number of ground-motion tables plus the
// ingestion audit trail.
type Store interface {
	// Open prepares the named table according to mode.
	Open(ctx context.Context, table string, mode Mode) (Table, error)
	// Tables lists the ground-motion tables present in the database.
	Tables(ctx context.Context) ([]string, error)
	// LogRun appends one entry to the ingestion audit trail.
	LogRun(ctx context.Context, run RunInfo) error
	Close() error
}

// Table is one open ground-motion table. Append buffers rows; Flush makes
// the buffered rows durable. Implementations are not safe for concurrent
// use.
type Table interface {
	Name() string
	Append(ctx context.Context, rec schema.Record) error
	Flush(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
	// RecordIDs returns the record_id of every stored row.
	RecordIDs(ctx context.Context) ([]string, error)
	// Scan streams every stored row, decoded to schema types, in storage
	// order. Returning an error from fn stops the scan.
	Scan(ctx context.Context, fn func(rec schema.Record) error) error
	// Close flushes buffered rows and releases the table.
	Close() error
}

// RunInfo is one row of the ingestion audit trail.
type RunInfo struct {
	ID         string
	Table      string
	Source     string
	Mode       Mode
	Total      int64
	Written    int64
	Errors     int64
	Duplicates int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunsTable is the audit-trail table name. It is reserved; Open rejects it
// and Tables filters it out.
const RunsTable = "gmdb_runs"
