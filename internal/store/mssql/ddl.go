package mssql

import (
	"fmt"
	"strings"

	"gmdb/internal/schema"
	"gmdb/internal/store"
)

func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// sqlType maps a column spec onto a SQL Server column type. Vectors are
// stored as fixed-length little-endian float64 blobs.
func sqlType(spec schema.ColumnSpec) string {
	switch spec.Kind {
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindInt, schema.KindUint:
		return "BIGINT"
	case schema.KindBool:
		return "BIT"
	case schema.KindVector:
		return fmt.Sprintf("VARBINARY(%d)", 8*spec.Size)
	default:
		return fmt.Sprintf("VARCHAR(%d)", stringWidth(spec))
	}
}

func stringWidth(spec schema.ColumnSpec) int {
	if spec.Size > 0 {
		return spec.Size
	}
	return 255
}

// createTableSQL builds the table bootstrap statement. SQL Server has no
// CREATE TABLE IF NOT EXISTS, so the statement guards on OBJECT_ID.
func createTableSQL(name string, reg *schema.Registry) string {
	cols := make([]string, 0, reg.Len())
	for _, spec := range reg.Columns() {
		cols = append(cols, quoteIdent(spec.Name)+" "+sqlType(spec))
	}
	return "IF OBJECT_ID(N'" + escapeLiteral(name) + "', N'U') IS NULL CREATE TABLE " +
		quoteIdent(name) + " (\n\t" + strings.Join(cols, ",\n\t") + "\n)"
}

func dropTableSQL(name string) string {
	return "IF OBJECT_ID(N'" + escapeLiteral(name) + "', N'U') IS NOT NULL DROP TABLE " +
		quoteIdent(name)
}

func insertSQL(name string, reg *schema.Registry) string {
	names := reg.Names()
	quoted := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
		marks[i] = fmt.Sprintf("@p%d", i+1)
	}
	return "INSERT INTO " + quoteIdent(name) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func selectSQL(name string, reg *schema.Registry) string {
	names := reg.Names()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return "SELECT " + strings.Join(quoted, ", ") + " FROM " + quoteIdent(name)
}

func createRunsSQL() string {
	return "IF OBJECT_ID(N'" + escapeLiteral(store.RunsTable) + "', N'U') IS NULL CREATE TABLE " +
		quoteIdent(store.RunsTable) + ` (
	run_id VARCHAR(36),
	table_name VARCHAR(255),
	source VARCHAR(1024),
	mode VARCHAR(16),
	total BIGINT,
	written BIGINT,
	errors BIGINT,
	duplicates BIGINT,
	started_at VARCHAR(32),
	finished_at VARCHAR(32)
)`
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
