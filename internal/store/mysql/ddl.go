package mysql

import (
	"fmt"
	"strings"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func sqlType(col schema.ColumnSpec) string {
	switch col.Kind {
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindInt, schema.KindUint:
		return "BIGINT"
	case schema.KindBool:
		return "TINYINT(1)"
	case schema.KindVector:
		return "BLOB"
	default:
		return fmt.Sprintf("VARCHAR(%d)", stringWidth(col))
	}
}

// stringWidth sizes VARCHAR columns from the declared byte width, with a
// floor for unconstrained strings.
func stringWidth(col schema.ColumnSpec) int {
	if col.Size > 0 {
		return col.Size
	}
	return 255
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func createTableSQL(table string, reg *schema.Registry) string {
	cols := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		cols = append(cols, quoteIdent(col.Name)+" "+sqlType(col))
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) +
		" (\n  " + strings.Join(cols, ",\n  ") + "\n);"
}

func insertSQL(table string, reg *schema.Registry) string {
	names := make([]string, 0, reg.Len())
	marks := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		names = append(names, quoteIdent(col.Name))
		marks = append(marks, "?")
	}
	return "INSERT INTO " + quoteIdent(table) +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func selectSQL(table string, reg *schema.Registry) string {
	names := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		names = append(names, quoteIdent(col.Name))
	}
	return "SELECT " + strings.Join(names, ", ") + " FROM " + quoteIdent(table)
}

func createRunsSQL() string {
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(store.RunsTable) + ` (
  run_id VARCHAR(36),
  table_name VARCHAR(255),
  source VARCHAR(1024),
  mode VARCHAR(16),
  total BIGINT,
  written BIGINT,
  errors BIGINT,
  duplicates BIGINT,
  started_at VARCHAR(35),
  finished_at VARCHAR(35)
);`
}
