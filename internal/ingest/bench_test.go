package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gmdb/internal/store"
)

// BenchmarkParse exercises the hot path of one ingestion run: CSV decode,
// row normalization (spectral interpolation onto the reference grid, event
// time resolution, PGA unit conversion), bounds checks and identity hashing.
//
// The in-memory store isolates the measurement from database drivers and
// disk I/O; the flatfile is written once before the timer starts.
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkParse$ -benchtime 10000x -memprofile mem.out
func BenchmarkParse(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("event_time,event_latitude,event_longitude,hypocenter_depth,magnitude,station_latitude,station_longitude,pga(g),sa(0.05),sa(0.2),sa(1.0),sa(4.0)\n")
	for i := 0; i < b.N; i++ {
		// Vary the coordinates so every row hashes to a distinct record id
		// and the duplicate seen-set grows as it would on real data.
		fmt.Fprintf(&sb, "2009-04-06T01:32:39,%.4f,13.3800,8.3,6.1,42.0270,13.2500,0.30,0.35,0.25,0.10,0.02\n",
			36.0+float64(i%9000)*0.001)
	}
	src := filepath.Join(b.TempDir(), "bench.csv")
	if err := os.WriteFile(src, []byte(sb.String()), 0o644); err != nil {
		b.Fatalf("write flatfile: %v", err)
	}
	ms := &memStore{}

	b.ResetTimer()
	res, err := Parse(context.Background(), src, nil, ms, store.ModeOverwrite)
	b.StopTimer()

	if err != nil {
		b.Fatalf("Parse: %v", err)
	}
	if res.Written != b.N {
		b.Fatalf("Written = %d, want %d", res.Written, b.N)
	}
}
