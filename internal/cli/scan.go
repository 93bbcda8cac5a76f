package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gmdb/internal/config"
	"gmdb/internal/query"
	"gmdb/internal/schema"
	"gmdb/internal/store"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Driver  string
	DSN     string
	Where   string
	Columns []string
	Limit   int
	Count   bool
}

// defaultScanColumns is the projection used when --columns is not given.
var defaultScanColumns = []string{"record_id", "event_time", "magnitude", "station_name", "pga"}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <table>",
		Short: "Query a ground-motion table",
		Long: `Stream the rows of a table, optionally filtered by a boolean condition.
Conditions compare schema columns to literals with == != < <= > >= and
combine clauses with & | ~; "nan" matches missing numeric values.

Example:
  gmdb scan --dsn gm.db esm19 --where "(magnitude >= 6) & (pga != nan)"
  gmdb scan --dsn gm.db esm19 --count --where "event_country == 'Italy'"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "store driver (sqlite, postgres, mysql, mssql)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "store connection string")
	cmd.Flags().StringVar(&opts.Where, "where", "", "boolean condition on schema columns")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", defaultScanColumns, "columns to print")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many rows (0 means all)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matching rows instead of the rows")

	return cmd
}

func runScan(opts *ScanOptions, table string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	mergeStoreFlags(cfg, opts.Driver, opts.DSN)
	if err := reportIssues(cmd.ErrOrStderr(), config.ValidateConfig(*cfg)); err != nil {
		return err
	}

	reg := schema.GroundMotion()
	for _, col := range opts.Columns {
		if reg.Lookup(col) == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown column %q", col))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tbl, err := st.Open(ctx, table, store.ModeRead)
	if err != nil {
		if errors.Is(err, store.ErrMissingTable) {
			return NewExitError(ExitCommandError, fmt.Sprintf("table %q does not exist", table))
		}
		return WrapExitError(ExitCommandError, "open table", err)
	}
	defer tbl.Close()

	if opts.Count {
		n, err := query.Count(ctx, tbl, opts.Where)
		if err != nil {
			return WrapExitError(ExitFailure, "count", err)
		}
		if opts.Format == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"table": table, "count": n})
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	var rows []schema.Record
	err = query.Select(ctx, tbl, opts.Where, func(rec schema.Record) error {
		rows = append(rows, rec)
		if opts.Limit > 0 && len(rows) >= opts.Limit {
			return query.ErrStop
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, "scan", err)
	}

	if opts.Format == "json" {
		out := make([]map[string]any, 0, len(rows))
		for _, rec := range rows {
			obj := make(map[string]any, len(opts.Columns))
			for _, col := range opts.Columns {
				obj[col] = jsonValue(rec[col])
			}
			out = append(out, obj)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(opts.Columns, "\t"))
	for _, rec := range rows {
		parts := make([]string, 0, len(opts.Columns))
		for _, col := range opts.Columns {
			parts = append(parts, textValue(rec[col]))
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, "\t"))
	}
	return nil
}

// textValue renders one stored value for tabular output.
func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if math.IsNaN(t) {
			return "nan"
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case []float64:
		parts := make([]string, len(t))
		for i, f := range t {
			parts[i] = textValue(f)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// jsonValue maps stored values onto JSON-encodable ones. NaN has no JSON
// representation, so missing numerics become null.
func jsonValue(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = jsonValue(f)
		}
		return out
	default:
		return v
	}
}
