package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gmdb/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the ground-motion column schema",
		Long: `Print every column of the ground-motion record schema with its kind,
width and write-time bounds. Values stored outside a column's bounds are
replaced with the column's missing sentinel during ingestion.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
	return cmd
}

// columnInfo is the JSON shape of one schema column.
type columnInfo struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Size   int      `json:"size"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Values []string `json:"values,omitempty"`
	System bool     `json:"system,omitempty"`
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	cols := schema.GroundMotion().Columns()

	if opts.Format == "json" {
		out := make([]columnInfo, 0, len(cols))
		for _, c := range cols {
			out = append(out, columnInfo{
				Name:   c.Name,
				Kind:   c.Kind.String(),
				Size:   c.Size,
				Min:    c.Min,
				Max:    c.Max,
				Values: c.Values,
				System: schema.IsSystemID(c.Name),
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-9s %5s  %10s  %10s\n", "NAME", "KIND", "SIZE", "MIN", "MAX")
	for _, c := range cols {
		name := c.Name
		if schema.IsSystemID(c.Name) {
			name += "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-9s %5d  %10s  %10s\n",
			name, c.Kind.String(), c.Size, boundText(c.Min), boundText(c.Max))
		if len(c.Values) > 0 && opts.Verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s   values: %s\n", "", strings.Join(c.Values, ", "))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d columns; * marks identity columns computed during ingestion\n", len(cols))
	return nil
}

// boundText renders an optional bound.
func boundText(b *float64) string {
	if b == nil {
		return ""
	}
	return strconv.FormatFloat(*b, 'g', -1, 64)
}
