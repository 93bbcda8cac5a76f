package postgres

import (
	"strings"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func sqlType(col schema.ColumnSpec) string {
	switch col.Kind {
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindInt, schema.KindUint:
		return "BIGINT"
	case schema.KindBool:
		return "BOOLEAN"
	case schema.KindVector:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(table string, reg *schema.Registry) string {
	cols := make([]string, 0, reg.Len())
	for _, col := range reg.Columns() {
		cols = append(cols, quoteIdent(col.Name)+" "+sqlType(col))
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) +
		" (\n  " + strings.Join(cols, ",\n  ") + "\n);"
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
  "run_id" TEXT,
  "table_name" TEXT,
  "source" TEXT,
  "mode" TEXT,
  "total" BIGINT,
  "written" BIGINT,
  "errors" BIGINT,
  "duplicates" BIGINT,
  "started_at" TEXT,
  "finished_at" TEXT
);`
}
