// Package postgres implements a Postgres-backed ground-motion store using
// pgx v5. Flushes go through the COPY protocol, which keeps per-flush
// overhead low even at one row per flush.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return NewStore(ctx, cfg.DSN)
	})
}

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	reg  *schema.Registry
}

// NewStore connects a pgx pool to the given DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: dsn must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool, reg: schema.GroundMotion()}, nil
}

func (s *Store) Open(ctx context.Context, table string, mode store.Mode) (store.Table, error) {
	if table == store.RunsTable {
		return nil, fmt.Errorf("postgres: table name %q is reserved", table)
	}
	switch mode {
	case store.ModeRead:
		ok, err := s.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("postgres: %w: %s", store.ErrMissingTable, table)
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
		return nil, fmt.Errorf("postgres: unsupported mode %q", mode)
	}
	return &Table{pool: s.pool, name: table, reg: s.reg}, nil
}

func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres: list tables: %w", err)
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
	_, err := s.pool.Exec(ctx,
		"INSERT INTO "+quoteIdent(store.RunsTable)+
			" (run_id, table_name, source, mode, total, written, errors, duplicates, started_at, finished_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		run.ID, run.Table, run.Source, string(run.Mode), run.Total, run.Written,
		run.Errors, run.Duplicates,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("postgres: log run: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1)`, table).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: table lookup: %w", err)
	}
	return ok, nil
}

func (s *Store) exec(ctx context.Context, stmt string) error {
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// Table is one open Postgres ground-motion table.
type Table struct {
	pool    *pgxpool.Pool
	name    string
	reg     *schema.Registry
	pending [][]any
}

func (t *Table) Name() string { return t.name }

func (t *Table) Append(_ context.Context, rec schema.Record) error {
	vals, err := store.EncodeRecord(t.reg, rec)
	if err != nil {
		return fmt.Errorf("postgres: append %s: %w", t.name, err)
	}
	t.pending = append(t.pending, vals)
	return nil
}

// Flush copies the buffered rows via the COPY protocol.
func (t *Table) Flush(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	n, err := t.pool.CopyFrom(ctx,
		pgx.Identifier{t.name}, t.reg.Names(), pgx.CopyFromRows(t.pending))
	if err != nil {
		return fmt.Errorf("postgres: copy into %s: %w", t.name, err)
	}
	if n != int64(len(t.pending)) {
		return fmt.Errorf("postgres: copy into %s: %d of %d rows reported", t.name, n, len(t.pending))
	}
	t.pending = t.pending[:0]
	return nil
}

func (t *Table) Len(ctx context.Context) (int64, error) {
	var n int64
	err := t.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t.name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) RecordIDs(ctx context.Context) ([]string, error) {
	rows, err := t.pool.Query(ctx, "SELECT record_id FROM "+quoteIdent(t.name))
	if err != nil {
		return nil, fmt.Errorf("postgres: record ids of %s: %w", t.name, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: record ids of %s: %w", t.name, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *Table) Scan(ctx context.Context, fn func(rec schema.Record) error) error {
	rows, err := t.pool.Query(ctx, selectSQL(t.name, t.reg))
	if err != nil {
		return fmt.Errorf("postgres: scan %s: %w", t.name, err)
	}
	defer rows.Close()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("postgres: scan %s: %w", t.name, err)
		}
		rec, err := store.DecodeRow(t.reg, vals)
		if err != nil {
			return fmt.Errorf("postgres: scan %s: %w", t.name, err)
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
