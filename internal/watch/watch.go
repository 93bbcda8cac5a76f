// Package watch ingests flatfiles as they appear in a directory. It combines
// change notifications with an optional cron-driven rescan so files landed
// while the process was down, or whose events were dropped, are still picked
// up. Ingestion is serialized on one worker; a failing file is logged and
// skipped, never stopping the watcher.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"gmdb/internal/flatfile"
	"gmdb/internal/ingest"
	"gmdb/internal/metrics"
	"gmdb/internal/store"
)

// Options configures a Watcher.
type Options struct {
	// Store receives the ingested tables.
	Store store.Store

	// Dir is the directory to watch. Subdirectories are not descended into.
	Dir string

	// Pattern is the glob a file base name must match. Empty means "*.csv".
	Pattern string

	// Format is the flatfile format to parse with. Nil means the generic
	// format.
	Format *flatfile.Format

	// Mode is the table open mode used per ingested file. Empty means
	// append. Read mode is rejected.
	Mode store.Mode

	// Debounce is the quiet period after the last write event before a file
	// is ingested, so half-copied files are not parsed. Zero means 500ms.
	Debounce time.Duration

	// Schedule is an optional cron expression for periodic full rescans of
	// Dir.
	Schedule string

	// InitialScan ingests the files already present in Dir when Run starts.
	InitialScan bool
}

// stamp is the size and modification time a file had when it was last
// ingested. Files that still match their stamp are skipped on rescans.
type stamp struct {
	size    int64
	modTime time.Time
}

// Watcher ingests matching flatfiles from a directory as they change.
type Watcher struct {
	st       store.Store
	dir      string
	pattern  string
	format   *flatfile.Format
	mode     store.Mode
	debounce time.Duration
	schedule string
	initial  bool

	// seen is touched only by the ingest worker goroutine.
	seen map[string]stamp

	// ingestFn is swapped out in tests.
	ingestFn func(ctx context.Context, path string) error
}

// New validates the options and returns a Watcher ready to Run.
func New(opts Options) (*Watcher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("watch: store is required")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch: dir is required")
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", opts.Dir)
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.csv"
	}
	if _, err := filepath.Match(pattern, "probe"); err != nil {
		return nil, fmt.Errorf("watch: invalid glob %q: %w", pattern, err)
	}

	mode := opts.Mode
	if mode == "" {
		mode = store.ModeAppend
	}
	if _, err := store.ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if mode == store.ModeRead {
		return nil, fmt.Errorf("watch: read mode is not usable for ingestion")
	}

	if opts.Schedule != "" {
		if _, err := cron.ParseStandard(opts.Schedule); err != nil {
			return nil, fmt.Errorf("watch: invalid cron expression %q: %w", opts.Schedule, err)
		}
	}

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}

	format := opts.Format
	if format == nil {
		format = flatfile.Generic
	}

	w := &Watcher{
		st:       opts.Store,
		dir:      opts.Dir,
		pattern:  pattern,
		format:   format,
		mode:     mode,
		debounce: debounce,
		schedule: opts.Schedule,
		initial:  opts.InitialScan,
		seen:     make(map[string]stamp),
	}
	w.ingestFn = w.parse
	return w, nil
}

// parse runs one real ingestion. Parse logs its own run summary.
func (w *Watcher) parse(ctx context.Context, path string) error {
	_, err := ingest.Parse(ctx, path, w.format, w.st, w.mode)
	return err
}

// eligible reports whether a path names a file this watcher ingests.
func (w *Watcher) eligible(path string) bool {
	ok, err := filepath.Match(w.pattern, filepath.Base(path))
	return err == nil && ok
}

// Run watches until ctx is cancelled. Per-file ingestion failures are logged
// and do not end the run; only watcher-level faults (the notify channel
// closing, an unreadable directory on rescan) return an error.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	paths := make(chan string, 64)

	// Event loop: debounce write bursts per file, then hand the path to the
	// ingest worker.
	g.Go(func() error {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-fsw.Events:
				if !ok {
					return fmt.Errorf("watch %s: event channel closed", w.dir)
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !w.eligible(ev.Name) {
					continue
				}
				name := ev.Name
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(w.debounce, func() {
					select {
					case paths <- name:
					case <-ctx.Done():
					}
				})
			case err, ok := <-fsw.Errors:
				if !ok {
					return fmt.Errorf("watch %s: error channel closed", w.dir)
				}
				log.Printf("watch %s: %v", w.dir, err)
			}
		}
	})

	// Ingest worker: the only goroutine that touches w.seen, so ingestion is
	// serialized and no two runs write the same table at once.
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case p := <-paths:
				w.ingestPath(ctx, p)
			}
		}
	})

	if w.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.schedule, func() {
			if err := w.enqueueDir(ctx, paths); err != nil {
				log.Printf("watch %s: rescan: %v", w.dir, err)
			}
		}); err != nil {
			return fmt.Errorf("watch: schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	if w.initial {
		if err := w.enqueueDir(ctx, paths); err != nil {
			return err
		}
	}

	log.Printf("watch %s: pattern=%q mode=%s format=%s", w.dir, w.pattern, w.mode, w.format.Name)
	return g.Wait()
}

// enqueueDir queues every eligible file currently in the directory. The
// worker's stamp check keeps unchanged files from being re-ingested.
func (w *Watcher) enqueueDir(ctx context.Context, paths chan<- string) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !w.eligible(e.Name()) {
			continue
		}
		select {
		case paths <- filepath.Join(w.dir, e.Name()):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// ingestPath ingests one file unless its stamp says it is unchanged since
// the last successful run. The stamp is taken before parsing so a file that
// keeps changing mid-ingest is picked up again by its next event.
func (w *Watcher) ingestPath(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Deleted between event and ingest.
		log.Printf("watch %s: %v", w.dir, err)
		return
	}
	if info.IsDir() {
		return
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	if prev, ok := w.seen[path]; ok && prev == st {
		return
	}
	err = w.ingestFn(ctx, path)
	// Push per file, not per process: a watcher can run for weeks and its
	// counters should be visible before it exits. Failed runs count too.
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("watch %s: metrics flush: %v", w.dir, ferr)
	}
	if err != nil {
		log.Printf("watch %s: ingest %s: %v", w.dir, path, err)
		return
	}
	w.seen[path] = st
}
