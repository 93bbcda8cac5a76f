package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gmdb/internal/config"
	"gmdb/internal/ingest"
	"gmdb/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Driver     string
	DSN        string
	Mode       string
	FormatName string
	FormatFile string
	Validate   bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <flatfile>...",
		Short: "Parse flatfiles into ground-motion tables",
		Long: `Parse one or more CSV flatfiles and write their rows into the store,
one table per file, named after the file base name. Every row is stamped
with deterministic record, event and station digests. A file that fails to
parse is reported and the remaining files are still ingested.

Example:
  gmdb ingest --driver sqlite --dsn gm.db esm19.csv
  gmdb ingest -c gmdb.json --mode overwrite incoming/*.csv`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "store driver (sqlite, postgres, mysql, mssql)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "store connection string")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "table open mode (append|overwrite)")
	cmd.Flags().StringVar(&opts.FormatName, "flatfile-format", "", "built-in flatfile format name")
	cmd.Flags().StringVar(&opts.FormatFile, "flatfile-format-file", "", "YAML flatfile format definition")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "validate the configuration and exit")

	return cmd
}

// ingestReport pairs a source path with its run result for output.
type ingestReport struct {
	Source string `json:"source"`
	*ingest.Result
}

func runIngest(opts *IngestOptions, sources []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	mergeStoreFlags(cfg, opts.Driver, opts.DSN)
	if opts.Mode != "" {
		cfg.Ingest.Mode = opts.Mode
	}
	// The format flags jointly replace the config pair, so a flag-selected
	// format is never vetoed by a format_file left in the file.
	if opts.FormatName != "" || opts.FormatFile != "" {
		cfg.Ingest.Format = opts.FormatName
		cfg.Ingest.FormatFile = opts.FormatFile
	}

	if err := reportIssues(cmd.ErrOrStderr(), config.ValidateConfig(*cfg)); err != nil {
		return err
	}
	if opts.Validate {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
		return nil
	}

	format, err := cfg.Ingest.BuildFormat()
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve format", err)
	}
	mode, err := store.ParseMode(cfg.Ingest.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse mode", err)
	}

	flush := setupMetrics(cfg.Job, cfg.Metrics)
	defer flush()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var reports []ingestReport
	failed := 0
	for _, src := range sources {
		res, err := ingest.Parse(ctx, src, format, st, mode)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "ingest %s: %v\n", src, err)
			continue
		}
		reports = append(reports, ingestReport{Source: src, Result: res})
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: table=%s run=%s total=%d written=%d errors=%d duplicates=%d\n",
				rep.Source, rep.Table, rep.RunID, rep.Total, rep.Written, len(rep.Errors), rep.Duplicates)
			if opts.Verbose {
				if s := formatCounts(rep.Missing); s != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  missing: %s\n", s)
				}
				if s := formatCounts(rep.OutOfBound); s != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  out of bounds: %s\n", s)
				}
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d file(s) failed", failed, len(sources)))
	}
	return nil
}

// formatCounts renders a per-column counter map as "col=n" pairs in column
// name order.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}
