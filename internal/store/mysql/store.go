// Package mysql implements a MySQL-backed ground-motion store using
// database/sql and the go-sql-driver. Flushes run a transaction with one
// prepared INSERT per row.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func init() {
	store.Register("mysql", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return NewStore(ctx, cfg.DSN)
	})
}

// Store is a MySQL-backed store.Store.
type Store struct {
	db  *sql.DB
	reg *schema.Registry
}

// NewStore opens a MySQL connection, for example
// "user:pass@tcp(127.0.0.1:3306)/gmdb".
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: dsn must not be empty")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Store{db: db, reg: schema.GroundMotion()}, nil
}

func (s *Store) Open(ctx context.Context, table string, mode store.Mode) (store.Table, error) {
	if table == store.RunsTable {
		return nil, fmt.Errorf("mysql: table name %q is reserved", table)
	}
	switch mode {
	case store.ModeRead:
		ok, err := s.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("mysql: %w: %s", store.ErrMissingTable, table)
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
		return nil, fmt.Errorf("mysql: unsupported mode %q", mode)
	}
	return &Table{db: s.db, name: table, reg: s.reg, insert: insertSQL(table, s.reg)}, nil
}

func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = DATABASE() ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("mysql: list tables: %w", err)
		}
		if name == store.RunsTable {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

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
		return fmt.Errorf("mysql: log run: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM information_schema.tables
		 WHERE table_schema = DATABASE() AND table_name = ?`, table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mysql: table lookup: %w", err)
	}
	return true, nil
}

func (s *Store) exec(ctx context.Context, stmt string) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// Table is one open MySQL ground-motion table.
type Table struct {
	db      *sql.DB
	name    string
	reg     *schema.Registry
	insert  string
	pending [][]any
}

func (t *Table) Name() string { return t.name }

func (t *Table) Append(_ context.Context, rec schema.Record) error {
	vals, err := store.EncodeRecord(t.reg, rec)
	if err != nil {
		return fmt.Errorf("mysql: append %s: %w", t.name, err)
	}
	t.pending = append(t.pending, vals)
	return nil
}

func (t *Table) Flush(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, t.insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("mysql: prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, row := range t.pending {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mysql: insert into %s: %w", t.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mysql: commit: %w", err)
	}
	t.pending = t.pending[:0]
	return nil
}

func (t *Table) Len(ctx context.Context) (int64, error) {
	var n int64
	err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t.name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("mysql: count %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) RecordIDs(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT record_id FROM "+quoteIdent(t.name))
	if err != nil {
		return nil, fmt.Errorf("mysql: record ids of %s: %w", t.name, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("mysql: record ids of %s: %w", t.name, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *Table) Scan(ctx context.Context, fn func(rec schema.Record) error) error {
	rows, err := t.db.QueryContext(ctx, selectSQL(t.name, t.reg))
	if err != nil {
		return fmt.Errorf("mysql: scan %s: %w", t.name, err)
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
			return fmt.Errorf("mysql: scan %s: %w", t.name, err)
		}
		rec, err := store.DecodeRow(t.reg, vals)
		if err != nil {
			return fmt.Errorf("mysql: scan %s: %w", t.name, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (t *Table) Close() error {
	return t.Flush(context.Background())
}
