package ingest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"gmdb/internal/query"
	"gmdb/internal/schema"
	"gmdb/internal/store"
	"gmdb/internal/store/sqlite"
	"gmdb/internal/units"
)

// memStore is an in-memory store.Store capturing opened tables and run
// records, so runs can be exercised without a database.
type memStore struct {
	tables map[string]*memTable
	runs   []store.RunInfo
}

func (s *memStore) Open(_ context.Context, table string, mode store.Mode) (store.Table, error) {
	if table == store.RunsTable {
		return nil, fmt.Errorf("table name %q is reserved", table)
	}
	if s.tables == nil {
		s.tables = make(map[string]*memTable)
	}
	tbl, ok := s.tables[table]
	switch mode {
	case store.ModeRead:
		if !ok {
			return nil, fmt.Errorf("table %q: %w", table, store.ErrMissingTable)
		}
	case store.ModeOverwrite:
		tbl = &memTable{name: table}
		s.tables[table] = tbl
	default:
		if !ok {
			tbl = &memTable{name: table}
			s.tables[table] = tbl
		}
	}
	return tbl, nil
}

func (s *memStore) Tables(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) LogRun(_ context.Context, info store.RunInfo) error {
	s.runs = append(s.runs, info)
	return nil
}

func (s *memStore) Close() error { return nil }

var _ store.Store = (*memStore)(nil)

func writeFlatfile(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write flatfile: %v", err)
	}
	return path
}

// TestTableName verifies the source path to table name derivation.
func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/data/flatfiles/esm_2019.csv", "esm_2019"},
		{"records.csv", "records"},
		{"nested/dir/knet.tsv", "knet"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := TableName(tt.path); got != tt.want {
			t.Errorf("TableName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestParse_EndToEnd runs a three-row flatfile through a full ingestion:
// one clean row, one row with blank spectral cells, one row whose PGA and
// spectrum disagree by two orders of magnitude. The mismatched row is
// rejected as a whole; the blank spectrum only costs its own column.
func TestParse_EndToEnd(t *testing.T) {
	t.Parallel()

	src := writeFlatfile(t, "esm19.csv",
		"event_time,event_latitude,event_longitude,hypocenter_depth,station_latitude,station_longitude,pga(g),sa(0.01),sa(0.2),sa(1.0)",
		"2009-04-06T01:32:39,42.342,13.380,8.3,42.027,13.250,0.30,0.31,0.25,0.10",
		"2009-04-07T17:47:37,42.275,13.464,15.1,42.362,13.339,0.12,,,",
		"2009-04-09T00:52:59,42.484,13.343,15.4,42.500,13.300,30,0.3,0.25,0.1",
	)
	ms := &memStore{}

	res, err := Parse(context.Background(), src, nil, ms, store.ModeAppend)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if res.Table != "esm19" {
		t.Errorf("Table = %q, want esm19", res.Table)
	}
	if res.RunID == "" {
		t.Errorf("RunID is empty")
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	if res.Written != 2 {
		t.Errorf("Written = %d, want 2", res.Written)
	}
	if want := []int{2}; !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %v, want %v", res.Errors, want)
	}
	if got := res.Missing["sa"]; got != 1 {
		t.Errorf("Missing[sa] = %d, want 1 (blank spectrum row only)", got)
	}
	if got := res.Missing["magnitude"]; got != 2 {
		t.Errorf("Missing[magnitude] = %d, want 2 (absent from every written row)", got)
	}
	if got := res.Missing[schema.RecordIDColumn]; got != 2 {
		t.Errorf("Missing[%s] = %d, want 2 (identity columns never come from the source)", schema.RecordIDColumn, got)
	}
	if got := res.Missing["event_time"]; got != 0 {
		t.Errorf("Missing[event_time] = %d, want 0", got)
	}
	if got := res.Missing["pga"]; got != 0 {
		t.Errorf("Missing[pga] = %d, want 0", got)
	}
	if len(res.OutOfBound) != 0 {
		t.Errorf("OutOfBound = %v, want empty", res.OutOfBound)
	}
	if res.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", res.Duplicates)
	}

	// ---- stored rows ----

	tbl := ms.tables["esm19"]
	if tbl == nil || len(tbl.rows) != 2 {
		t.Fatalf("stored rows = %v, want 2", tbl)
	}
	row0 := tbl.rows[0]
	wantPGA := 0.30 * 100 * units.Gravity
	if got, _ := row0["pga"].(float64); math.Abs(got-wantPGA) > 1e-9 {
		t.Errorf("stored pga = %v, want %v cm/s/s", got, wantPGA)
	}
	sa, ok := row0["sa"].([]float64)
	if !ok || len(sa) != schema.SALen {
		t.Fatalf("stored sa = %#v, want %d-element vector", row0["sa"], schema.SALen)
	}
	if math.Abs(sa[0]-0.31) > 1e-12 {
		t.Errorf("sa[0] = %v, want 0.31 (observed shortest period)", sa[0])
	}
	if id, _ := row0[schema.RecordIDColumn].(string); !hexID.MatchString(id) {
		t.Errorf("stored record_id = %q, want 40 hex chars", id)
	}
	row1 := tbl.rows[1]
	if vec, ok := row1["sa"].([]float64); !ok || !math.IsNaN(vec[0]) {
		t.Errorf("blank spectrum row stored sa = %#v, want NaN sentinel vector", row1["sa"])
	}

	// ---- audit trail ----

	if len(ms.runs) != 1 {
		t.Fatalf("logged runs = %d, want 1", len(ms.runs))
	}
	run := ms.runs[0]
	if run.ID != res.RunID {
		t.Errorf("run ID = %q, want %q", run.ID, res.RunID)
	}
	if run.Table != "esm19" || run.Source != src || run.Mode != store.ModeAppend {
		t.Errorf("run = %+v, want table esm19 source %q mode append", run, src)
	}
	if run.Total != 3 || run.Written != 2 {
		t.Errorf("run totals = %d/%d, want 3/2", run.Total, run.Written)
	}
	if run.Errors != 1 || run.Duplicates != 0 {
		t.Errorf("run errors/duplicates = %d/%d, want 1/0", run.Errors, run.Duplicates)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Errorf("run finished %v before it started %v", run.FinishedAt, run.StartedAt)
	}
}

// TestParse_SQLiteRoundTrip ingests into a real SQLite file and reads the
// rows back through the query surface. The mismatched row never lands; the
// row with a blank PGA cell stores the NaN sentinel, survives the NULL
// round trip and is the only match for `pga == nan`.
func TestParse_SQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	src := writeFlatfile(t, "aquila.csv",
		"event_time,event_latitude,event_longitude,hypocenter_depth,station_latitude,station_longitude,pga(g),sa(0.01)",
		"2009-04-06T01:32:39,42.342,13.380,8.3,42.027,13.250,0.30,0.31",
		"2009-04-07T17:47:37,42.275,13.464,15.1,42.362,13.339,,0.12",
		"2009-04-09T00:52:59,42.484,13.343,15.4,42.500,13.300,30,0.3",
	)
	ctx := context.Background()
	st, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "gm.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	res, err := Parse(ctx, src, nil, st, store.ModeAppend)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Written != 2 {
		t.Errorf("Written = %d, want 2", res.Written)
	}
	if want := []int{2}; !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %v, want %v", res.Errors, want)
	}
	if got := res.Missing["pga"]; got != 1 {
		t.Errorf("Missing[pga] = %d, want 1 (blank cell row)", got)
	}

	tbl, err := st.Open(ctx, "aquila", store.ModeRead)
	if err != nil {
		t.Fatalf("Open for read: %v", err)
	}
	defer tbl.Close()

	absent, err := query.SelectAll(ctx, tbl, "pga == nan")
	if err != nil {
		t.Fatalf("SelectAll(pga == nan): %v", err)
	}
	if len(absent) != 1 {
		t.Fatalf("pga == nan matched %d rows, want 1", len(absent))
	}
	if got := absent[0]["event_time"]; got != "2009-04-07T17:47:37" {
		t.Errorf("matched event_time = %v, want the blank-PGA row", got)
	}
	if f, ok := absent[0]["pga"].(float64); !ok || !math.IsNaN(f) {
		t.Errorf("stored pga = %#v, want NaN back from NULL", absent[0]["pga"])
	}

	present, err := query.SelectAll(ctx, tbl, "pga != nan")
	if err != nil {
		t.Fatalf("SelectAll(pga != nan): %v", err)
	}
	if len(present) != 1 {
		t.Fatalf("pga != nan matched %d rows, want 1", len(present))
	}
	wantPGA := 0.30 * 100 * units.Gravity
	if f, _ := present[0]["pga"].(float64); math.Abs(f-wantPGA) > 1e-9 {
		t.Errorf("matched pga = %v, want %v", f, wantPGA)
	}
}

// TestParse_DuplicateRows verifies that a repeated record is written anyway
// and counted as a duplicate.
func TestParse_DuplicateRows(t *testing.T) {
	t.Parallel()

	row := "2009-04-06T01:32:39,42.342,13.380,8.3,42.027,13.250,0.30,0.31"
	src := writeFlatfile(t, "dup.csv",
		"event_time,event_latitude,event_longitude,hypocenter_depth,station_latitude,station_longitude,pga(g),sa(0.01)",
		row,
		row,
	)
	ms := &memStore{}

	res, err := Parse(context.Background(), src, nil, ms, store.ModeAppend)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Written != 2 {
		t.Errorf("Written = %d, want 2 (duplicates are kept)", res.Written)
	}
	if res.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", res.Duplicates)
	}
	tbl := ms.tables["dup"]
	if len(tbl.rows) != 2 {
		t.Fatalf("stored rows = %d, want 2", len(tbl.rows))
	}
	id0, _ := tbl.rows[0][schema.RecordIDColumn].(string)
	id1, _ := tbl.rows[1][schema.RecordIDColumn].(string)
	if id0 != id1 {
		t.Errorf("duplicate rows got different record ids: %q vs %q", id0, id1)
	}
}

// TestParse_AppendAccumulates verifies that repeated append runs extend the
// table while overwrite runs replace it, and that every run is logged.
func TestParse_AppendAccumulates(t *testing.T) {
	t.Parallel()

	src := writeFlatfile(t, "quakes.csv",
		"event_time,event_latitude,event_longitude,station_latitude,station_longitude,pga(g),sa(0.01)",
		"2009-04-06T01:32:39,42.342,13.380,42.027,13.250,0.30,0.31",
	)
	ms := &memStore{}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := Parse(ctx, src, nil, ms, store.ModeAppend)
		if err != nil {
			t.Fatalf("append run %d: %v", i, err)
		}
		if res.Duplicates != i {
			t.Errorf("append run %d: Duplicates = %d, want %d (stored ids count)", i, res.Duplicates, i)
		}
	}
	if got := len(ms.tables["quakes"].rows); got != 2 {
		t.Errorf("rows after two appends = %d, want 2", got)
	}

	if _, err := Parse(ctx, src, nil, ms, store.ModeOverwrite); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	if got := len(ms.tables["quakes"].rows); got != 1 {
		t.Errorf("rows after overwrite = %d, want 1", got)
	}
	if len(ms.runs) != 3 {
		t.Errorf("logged runs = %d, want 3", len(ms.runs))
	}
}

// TestParse_RejectsReadMode verifies that an ingestion cannot run against a
// read-only handle.
func TestParse_RejectsReadMode(t *testing.T) {
	t.Parallel()

	src := writeFlatfile(t, "ro.csv",
		"event_time,pga(g),sa(0.01)",
		"2009-04-06T01:32:39,0.30,0.31",
	)
	ms := &memStore{}

	res, err := Parse(context.Background(), src, nil, ms, store.ModeRead)
	if err == nil {
		t.Fatalf("Parse accepted read mode, result %+v", res)
	}
	if !strings.Contains(err.Error(), "not usable for ingestion") {
		t.Errorf("error = %v, want mode rejection", err)
	}
	if len(ms.tables) != 0 {
		t.Errorf("store touched despite mode rejection: %v", ms.tables)
	}
}

// TestParse_StructuralFailures verifies that layout problems abort the run
// before any table is created or truncated.
func TestParse_StructuralFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		wantErr string
	}{
		{
			name:    "no event time columns",
			header:  "station_latitude,pga(g),sa(0.01)",
			wantErr: "no event time columns found",
		},
		{
			name:    "unknown pga unit",
			header:  "event_time,pga(parsecs),sa(0.01)",
			wantErr: "unknown acceleration unit",
		},
		{
			name:    "no pga column",
			header:  "event_time,station_latitude,sa(0.01)",
			wantErr: "no pga column found",
		},
		{
			name:    "bare pga without unit source",
			header:  "event_time,pga,sa(0.01)",
			wantErr: "pga column has no unit",
		},
		{
			name:    "unparsable spectral period",
			header:  "event_time,pga(g),sa(banana)",
			wantErr: "unparsable period",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := writeFlatfile(t, "bad.csv", tt.header, "1,2,3")
			ms := &memStore{}

			_, err := Parse(context.Background(), src, nil, ms, store.ModeOverwrite)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse error = %v, want substring %q", err, tt.wantErr)
			}
			if len(ms.tables) != 0 {
				t.Errorf("layout failure still touched the store: %v", ms.tables)
			}
		})
	}
}

// TestParse_MissingFile verifies the open failure path.
func TestParse_MissingFile(t *testing.T) {
	t.Parallel()

	ms := &memStore{}
	_, err := Parse(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), nil, ms, store.ModeAppend)
	if err == nil {
		t.Fatalf("Parse succeeded on a missing file")
	}
}
