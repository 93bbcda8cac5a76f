// Package sqlite implements a SQLite-backed ground-motion store using
// database/sql. Rows are appended inside a transaction per flush; SQLite
// has no dedicated bulk-load API, but transactions keep performance
// acceptable for flatfile-sized volumes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return NewStore(ctx, cfg.DSN)
	})
}

// Store is a SQLite-backed store.Store.
type Store struct {
	db  *sql.DB
	reg *schema.Registry
}

// NewStore opens a SQLite database. The DSN is passed to database/sql
// directly, for example "gm.db" or "file:gm.db?cache=shared".
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: dsn must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return &Store{db: db, reg: schema.GroundMotion()}, nil
}

// Open prepares the named table per mode.
func (s *Store) Open(ctx context.Context, table string, mode store.Mode) (store.Table, error) {
	if table == store.RunsTable {
		return nil, fmt.Errorf("sqlite: table name %q is reserved", table)
	}
	switch mode {
	case store.ModeRead:
		ok, err := s.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("sqlite: %w: %s", store.ErrMissingTable, table)
		}
	case store.ModeAppend:
		if err := s.exec(ctx, createTableSQL(table, s.reg)); err != nil {
			return nil, err
		}
	case store.ModeOverwrite:
		if err := s.exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
			return nil, err
		}
		if err := s.exec(ctx, createTableSQL(table, s.reg)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("sqlite: unsupported mode %q", mode)
	}
	return &Table{db: s.db, name: table, reg: s.reg, insert: insertSQL(table, s.reg)}, nil
}

// Tables lists user tables, hiding SQLite internals and the audit trail.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: list tables: %w", err)
		}
		if name == store.RunsTable || strings.HasPrefix(name, "sqlite_") {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LogRun appends one audit-trail entry, creating the trail table on first
// use.
func (s *Store) LogRun(ctx context.Context, run store.RunInfo) error {
	if err := s.exec(ctx, createRunsSQL()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+quoteIdent(store.RunsTable)+
			" (run_id, table_name, source, mode, total, written, errors, duplicates, started_at, finished_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Table, run.Source, string(run.Mode), run.Total, run.Written,
		run.Errors, run.Duplicates,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlite: log run: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: table lookup: %w", err)
	}
	return true, nil
}

func (s *Store) exec(ctx context.Context, stmt string) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Table is one open SQLite ground-motion table.
type Table struct {
	db      *sql.DB
	name    string
	reg     *schema.Registry
	insert  string
	pending [][]any
}

func (t *Table) Name() string { return t.name }

// Append encodes and buffers one record.
func (t *Table) Append(_ context.Context, rec schema.Record) error {
	vals, err := store.EncodeRecord(t.reg, rec)
	if err != nil {
		return fmt.Errorf("sqlite: append %s: %w", t.name, err)
	}
	t.pending = append(t.pending, vals)
	return nil
}

// Flush writes all buffered rows in one transaction.
func (t *Table) Flush(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, t.insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, row := range t.pending {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert into %s: %w", t.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	t.pending = t.pending[:0]
	return nil
}

func (t *Table) Len(ctx context.Context) (int64, error) {
	var n int64
	err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t.name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) RecordIDs(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		"SELECT record_id FROM "+quoteIdent(t.name))
	if err != nil {
		return nil, fmt.Errorf("sqlite: record ids of %s: %w", t.name, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: record ids of %s: %w", t.name, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Scan streams every row through fn, decoded to schema types.
func (t *Table) Scan(ctx context.Context, fn func(rec schema.Record) error) error {
	rows, err := t.db.QueryContext(ctx, selectSQL(t.name, t.reg))
	if err != nil {
		return fmt.Errorf("sqlite: scan %s: %w", t.name, err)
	}
	defer rows.Close()
	n := t.reg.Len()
	for rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("sqlite: scan %s: %w", t.name, err)
		}
		rec, err := store.DecodeRow(t.reg, vals)
		if err != nil {
			return fmt.Errorf("sqlite: scan %s: %w", t.name, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close flushes anything still buffered.
func (t *Table) Close() error {
	return t.Flush(context.Background())
}
