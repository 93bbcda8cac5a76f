package postgres

// Pure DDL helper tests. Backend behavior against a live server is covered
// by the shared contract exercised through the sqlite backend; these tests
// pin the generated SQL instead.

import (
	"strings"
	"testing"

	"gmdb/internal/schema"
)

// TestSQLType verifies the kind-to-Postgres-type mapping for each column
// kind the schema uses.
func TestSQLType(t *testing.T) {
	t.Parallel()

	reg := schema.GroundMotion()
	cases := map[string]string{
		"pga":           "DOUBLE PRECISION",
		"npass":         "BIGINT",
		"vs30_measured": "BOOLEAN",
		"sa":            "BYTEA",
		"event_name":    "TEXT",
		"event_time":    "TEXT",
	}
	for name, want := range cases {
		if got := sqlType(*reg.Lookup(name)); got != want {
			t.Errorf("sqlType(%s) = %q, want %q", name, got, want)
		}
	}
}

// TestQuoteIdent verifies per-identifier quoting with embedded-quote
// doubling, which keeps generated DDL safe for any table name.
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got, want := quoteIdent("europe"), `"europe"`; got != want {
		t.Fatalf("quoteIdent = %q, want %q", got, want)
	}
	if got, want := quoteIdent(`odd"name`), `"odd""name"`; got != want {
		t.Fatalf("quoteIdent = %q, want %q", got, want)
	}
}

// TestCreateTableSQL verifies that the bootstrap statement covers every
// schema column and is idempotent.
func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	reg := schema.GroundMotion()
	sql := createTableSQL("europe", reg)
	if !strings.HasPrefix(sql, `CREATE TABLE IF NOT EXISTS "europe"`) {
		t.Fatalf("createTableSQL prefix = %q", sql[:40])
	}
	if !strings.Contains(sql, `"record_id" TEXT`) || !strings.Contains(sql, `"sa" BYTEA`) {
		t.Fatalf("createTableSQL misses expected columns:\n%s", sql)
	}
	if got, want := strings.Count(sql, ","), reg.Len()-1; got != want {
		t.Fatalf("createTableSQL has %d separators, want %d", got, want)
	}
}

// TestSelectSQL verifies that scans select every column explicitly in
// registry order rather than relying on SELECT *.
func TestSelectSQL(t *testing.T) {
	t.Parallel()

	reg := schema.GroundMotion()
	sql := selectSQL("europe", reg)
	if !strings.HasPrefix(sql, `SELECT "record_id", "event_id"`) {
		t.Fatalf("selectSQL prefix = %q", sql[:40])
	}
	if !strings.HasSuffix(sql, `FROM "europe"`) {
		t.Fatalf("selectSQL suffix = %q", sql)
	}
}
