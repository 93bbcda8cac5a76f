package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "gm.db")
	st, err := NewStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRecord(id string) schema.Record {
	rec := schema.GroundMotion().NewRecord()
	rec[schema.RecordIDColumn] = id
	rec["event_name"] = "L'Aquila"
	rec["event_time"] = "2009-04-06T01:32:39"
	rec["magnitude"] = 6.3
	rec["pga"] = 644.3
	rec["npass"] = int64(4)
	rec["vs30_measured"] = false
	sa := rec["sa"].([]float64)
	sa[0] = 0.31
	rec["sa"] = sa
	return rec
}

// ---- open modes ----

// TestOpen_ReadMissingTable verifies that read mode reports a missing table
// through store.ErrMissingTable instead of a generic SQL error.
func TestOpen_ReadMissingTable(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	_, err := st.Open(context.Background(), "nowhere", store.ModeRead)
	if !errors.Is(err, store.ErrMissingTable) {
		t.Fatalf("Open read = %v, want ErrMissingTable", err)
	}
}

// TestOpen_ReservedName verifies that the audit-trail table name cannot be
// used as a ground-motion table in any mode.
func TestOpen_ReservedName(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	for _, mode := range []store.Mode{store.ModeRead, store.ModeAppend, store.ModeOverwrite} {
		if _, err := st.Open(context.Background(), store.RunsTable, mode); err == nil {
			t.Fatalf("Open(%s, %s) did not fail", store.RunsTable, mode)
		}
	}
}

// TestOpen_AppendThenRead verifies that append mode creates the table and a
// later read-mode open finds it.
func TestOpen_AppendThenRead(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	tbl, err := st.Open(ctx, "europe", store.ModeAppend)
	if err != nil {
		t.Fatalf("Open append: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := st.Open(ctx, "europe", store.ModeRead); err != nil {
		t.Fatalf("Open read after append: %v", err)
	}
}

// TestOpen_OverwriteClears verifies that overwrite mode drops previously
// written rows.
func TestOpen_OverwriteClears(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	tbl, err := st.Open(ctx, "japan", store.ModeAppend)
	if err != nil {
		t.Fatalf("Open append: %v", err)
	}
	if err := tbl.Append(ctx, sampleRecord("a")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tbl.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	tbl, err = st.Open(ctx, "japan", store.ModeOverwrite)
	if err != nil {
		t.Fatalf("Open overwrite: %v", err)
	}
	n, err := tbl.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Fatalf("Len after overwrite = %d, want 0", n)
	}
}

// ---- row round trip ----

// TestTable_AppendFlushScan verifies the full write and read path: typed
// values survive storage, NaN floats come back as NaN and the spectrum
// vector keeps its length and values.
func TestTable_AppendFlushScan(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	tbl, err := st.Open(ctx, "italy", store.ModeAppend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := tbl.Append(ctx, sampleRecord("rec-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tbl.Append(ctx, sampleRecord("rec-2")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tbl.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	n, err := tbl.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}

	ids, err := tbl.RecordIDs(ctx)
	if err != nil {
		t.Fatalf("RecordIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "rec-1" || ids[1] != "rec-2" {
		t.Fatalf("RecordIDs = %v", ids)
	}

	var recs []schema.Record
	err = tbl.Scan(ctx, func(rec schema.Record) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Scan returned %d rows, want 2", len(recs))
	}
	got := recs[0]
	if got["event_name"] != "L'Aquila" {
		t.Errorf("event_name = %#v", got["event_name"])
	}
	if got["event_time"] != "2009-04-06T01:32:39" {
		t.Errorf("event_time = %#v", got["event_time"])
	}
	if got["pga"] != 644.3 || got["magnitude"] != 6.3 {
		t.Errorf("pga, magnitude = %#v, %#v", got["pga"], got["magnitude"])
	}
	if got["npass"] != int64(4) || got["vs30_measured"] != false {
		t.Errorf("npass, vs30_measured = %#v, %#v", got["npass"], got["vs30_measured"])
	}
	if f, ok := got["rjb"].(float64); !ok || !math.IsNaN(f) {
		t.Errorf("unset rjb = %#v, want NaN", got["rjb"])
	}
	sa, ok := got["sa"].([]float64)
	if !ok || len(sa) != schema.SALen {
		t.Fatalf("sa = %T of len %d, want []float64 of len %d", got["sa"], len(sa), schema.SALen)
	}
	if sa[0] != 0.31 || !math.IsNaN(sa[1]) {
		t.Errorf("sa[0], sa[1] = %v, %v, want 0.31, NaN", sa[0], sa[1])
	}
}

// TestTable_AppendAllowsDuplicates verifies that identical records can be
// stored twice; the table carries no uniqueness constraints.
func TestTable_AppendAllowsDuplicates(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	tbl, err := st.Open(ctx, "dups", store.ModeAppend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := tbl.Append(ctx, sampleRecord("same")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := tbl.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	n, err := tbl.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}
}

// ---- store bookkeeping ----

// TestTables_HidesRunsTable verifies that the audit trail never shows up in
// the table listing.
func TestTables_HidesRunsTable(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	if _, err := st.Open(ctx, "visible", store.ModeAppend); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.LogRun(ctx, store.RunInfo{ID: "r1", Table: "visible", Mode: store.ModeAppend}); err != nil {
		t.Fatalf("LogRun: %v", err)
	}
	names, err := st.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(names) != 1 || names[0] != "visible" {
		t.Fatalf("Tables = %v, want [visible]", names)
	}
}

// TestLogRun verifies that run entries accumulate across calls.
func TestLogRun(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"run-a", "run-b"} {
		err := st.LogRun(ctx, store.RunInfo{
			ID:         id,
			Table:      "europe",
			Source:     "esm.csv",
			Mode:       store.ModeAppend,
			Total:      int64(10 + i),
			Written:    int64(9 + i),
			Errors:     1,
			Duplicates: int64(i),
			StartedAt:  now,
			FinishedAt: now.Add(time.Second),
		})
		if err != nil {
			t.Fatalf("LogRun(%s): %v", id, err)
		}
	}
	var n int
	err := st.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(store.RunsTable)).Scan(&n)
	if err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if n != 2 {
		t.Fatalf("runs table has %d rows, want 2", n)
	}
	var errs, dups int64
	err = st.db.QueryRowContext(ctx,
		"SELECT errors, duplicates FROM "+quoteIdent(store.RunsTable)+" WHERE run_id = ?",
		"run-b").Scan(&errs, &dups)
	if err != nil {
		t.Fatalf("read run-b: %v", err)
	}
	if errs != 1 || dups != 1 {
		t.Fatalf("run-b errors/duplicates = %d/%d, want 1/1", errs, dups)
	}
}
