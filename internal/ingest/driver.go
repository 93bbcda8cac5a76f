package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"gmdb/internal/flatfile"
	"gmdb/internal/metrics"
	"gmdb/internal/store"
)

// Result is the outcome of one ingestion run. Counters cover written rows
// only; an error row contributes to Errors and nothing else.
type Result struct {
	RunID   string `json:"run_id"`
	Table   string `json:"table"`
	Total   int    `json:"total"`
	Written int    `json:"written"`
	// Errors holds the zero-based indices of the rows rejected as a whole,
	// in file order.
	Errors []int `json:"error"`
	// Missing counts, per column, the rows whose stored value fell back to
	// the sentinel because the source value was absent or uncastable.
	Missing map[string]int `json:"missing_values"`
	// OutOfBound counts, per column, the rows whose stored value fell back
	// to the sentinel because of a bound violation.
	OutOfBound map[string]int `json:"outofbound_values"`
	// Duplicates counts written rows whose record digest was already seen
	// earlier in the same run. They are written anyway; skipping them is
	// the caller's call.
	Duplicates int `json:"duplicates"`
}

// TableName derives the logical table name from a source path: the file
// base name without its extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse ingests one flatfile into st under the table name derived from
// src. The flatfile layout is resolved before any row is read or any table
// touched; a layout failure aborts the whole run. Per-row faults never
// abort the run. The destination table is released on every return path.
func Parse(ctx context.Context, src string, format *flatfile.Format, st store.Store, mode store.Mode) (*Result, error) {
	start := time.Now()
	name := TableName(src)
	res, err := parse(ctx, src, name, format, st, mode)
	metrics.ObserveRun(name, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.CountRows(name, metrics.RowWritten, int64(res.Written))
	metrics.CountRows(name, metrics.RowError, int64(len(res.Errors)))
	metrics.CountRows(name, metrics.RowDuplicate, int64(res.Duplicates))
	for col, n := range res.Missing {
		metrics.CountColumnFaults(name, col, metrics.FaultMissing, int64(n))
	}
	for col, n := range res.OutOfBound {
		metrics.CountColumnFaults(name, col, metrics.FaultOutOfBound, int64(n))
	}
	log.Printf("ingest: %s into %q: total=%d written=%d errors=%d duplicates=%d in %s",
		src, name, res.Total, res.Written, len(res.Errors), res.Duplicates,
		time.Since(start).Round(time.Millisecond))
	return res, nil
}

func parse(ctx context.Context, src, name string, format *flatfile.Format, st store.Store, mode store.Mode) (*Result, error) {
	started := time.Now()
	if mode != store.ModeAppend && mode != store.ModeOverwrite {
		return nil, fmt.Errorf("ingest: mode %q not usable for ingestion (want append or overwrite)", mode)
	}

	f, err := flatfile.Open(src, format)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	norm, err := flatfile.NewNormalizer(f.Headers(), format)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", src, err)
	}

	tbl, err := st.Open(ctx, name, mode)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer tbl.Close()

	res := &Result{
		RunID:      uuid.NewString(),
		Table:      name,
		Missing:    make(map[string]int),
		OutOfBound: make(map[string]int),
	}
	w := NewWriter(tbl)
	seen := make(map[uint64]struct{})
	if mode == store.ModeAppend {
		ids, err := tbl.RecordIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		for _, id := range ids {
			seen[xxh3.HashString(id)] = struct{}{}
		}
	}
	i := -1
	for {
		raw, err := f.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		i++
		if err != nil {
			res.Errors = append(res.Errors, i)
			continue
		}
		rr := norm.NormalizeRow(raw)
		if rr.Dropped {
			res.Errors = append(res.Errors, i)
			continue
		}
		outcome, err := w.WriteRow(ctx, rr.Row)
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d: %w", i, err)
		}
		for _, col := range outcome.Missing {
			res.Missing[col]++
		}
		for _, col := range outcome.OutOfBound {
			res.OutOfBound[col]++
		}
		h := xxh3.HashString(outcome.IDs.RecordID)
		if _, dup := seen[h]; dup {
			res.Duplicates++
		} else {
			seen[h] = struct{}{}
		}
	}
	res.Total = i + 1
	res.Written = res.Total - len(res.Errors)

	if err := st.LogRun(ctx, store.RunInfo{
		ID:         res.RunID,
		Table:      name,
		Source:     src,
		Mode:       mode,
		Total:      int64(res.Total),
		Written:    int64(res.Written),
		Errors:     int64(len(res.Errors)),
		Duplicates: int64(res.Duplicates),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}); err != nil {
		log.Printf("ingest: audit trail write failed for run %s: %v", res.RunID, err)
	}
	return res, nil
}
