package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gmdb/internal/config"
	"gmdb/internal/store"
	"gmdb/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Driver      string
	DSN         string
	Pattern     string
	Schedule    string
	Mode        string
	FormatName  string
	FormatFile  string
	DebounceMS  int
	InitialScan bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest flatfiles as they appear in a directory",
		Long: `Watch a directory and ingest every matching flatfile that is created or
changed in it. An optional cron schedule rescans the whole directory to pick
up files whose change notifications were missed. Runs until interrupted.

Example:
  gmdb watch --dsn gm.db incoming
  gmdb watch -c gmdb.json --schedule "@hourly" --initial-scan`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "store driver (sqlite, postgres, mysql, mssql)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "store connection string")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "glob a file base name must match (default *.csv)")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron expression for periodic full rescans")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "table open mode per file (append|overwrite)")
	cmd.Flags().StringVar(&opts.FormatName, "flatfile-format", "", "built-in flatfile format name")
	cmd.Flags().StringVar(&opts.FormatFile, "flatfile-format-file", "", "YAML flatfile format definition")
	cmd.Flags().IntVar(&opts.DebounceMS, "debounce-ms", 0, "quiet period after the last write before ingesting (default 500)")
	cmd.Flags().BoolVar(&opts.InitialScan, "initial-scan", false, "ingest the files already present on startup")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	mergeStoreFlags(cfg, opts.Driver, opts.DSN)
	if dir != "" {
		cfg.Watch.Dir = dir
	}
	if opts.Pattern != "" {
		cfg.Watch.Pattern = opts.Pattern
	}
	if opts.Schedule != "" {
		cfg.Watch.Schedule = opts.Schedule
	}
	if opts.Mode != "" {
		cfg.Ingest.Mode = opts.Mode
	}
	if opts.FormatName != "" || opts.FormatFile != "" {
		cfg.Ingest.Format = opts.FormatName
		cfg.Ingest.FormatFile = opts.FormatFile
	}
	if cmd.Flags().Changed("debounce-ms") {
		cfg.Watch.DebounceMS = opts.DebounceMS
	}
	if cmd.Flags().Changed("initial-scan") {
		cfg.Watch.InitialScan = opts.InitialScan
	}

	if cfg.Watch.Dir == "" {
		return NewExitError(ExitCommandError, "watch directory required; pass it as an argument or set watch.dir")
	}
	if err := reportIssues(cmd.ErrOrStderr(), config.ValidateConfig(*cfg)); err != nil {
		return err
	}

	format, err := cfg.Ingest.BuildFormat()
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve format", err)
	}

	flush := setupMetrics(cfg.Job, cfg.Metrics)
	defer flush()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := watch.New(watch.Options{
		Store:       st,
		Dir:         cfg.Watch.Dir,
		Pattern:     cfg.Watch.Pattern,
		Format:      format,
		Mode:        store.Mode(cfg.Ingest.Mode),
		Debounce:    time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		Schedule:    cfg.Watch.Schedule,
		InitialScan: cfg.Watch.InitialScan,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "watch", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s. Press Ctrl-C to stop.\n", cfg.Watch.Dir)
	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "watch", err)
	}
	return nil
}
