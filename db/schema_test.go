package db

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnsureSchemaIdempotent(t *testing.T) {
	testDB := setupTestDB(t) // first EnsureSchema runs here
	ctx := context.Background()

	// A second run must produce no errors and no duplicate tables.
	if err := testDB.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema call failed: %v", err)
	}

	table, err := testDB.Query(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
	)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	var got []string
	for _, row := range table.Rows {
		got = append(got, formatValue(row[0]))
	}
	want := []string{"accounts", "activities", "contacts", "opportunities", "quote_items", "quotes"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table names mismatch (-want +got):\n%s", diff)
	}
}

func TestTableNames(t *testing.T) {
	want := []string{"accounts", "contacts", "opportunities", "quotes", "quote_items", "activities"}
	if diff := cmp.Diff(want, TableNames()); diff != "" {
		t.Errorf("table names mismatch (-want +got):\n%s", diff)
	}
	for _, name := range TableNames() {
		if !validTableName(name) {
			t.Errorf("%q should be a valid table name", name)
		}
	}
	if validTableName("users; DROP TABLE accounts") {
		t.Error("arbitrary strings must not be valid table names")
	}
}

func TestCreateTableSQLDialects(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		contains []string
		excludes []string
	}{
		{
			dialect:  DialectSQLite,
			contains: []string{"INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"},
			excludes: []string{"BIGSERIAL", "DOUBLE PRECISION"},
		},
		{
			dialect:  DialectPostgres,
			contains: []string{"BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "DATE"},
			excludes: []string{"AUTOINCREMENT", "REAL"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			var rendered []string
			for _, table := range crmSchema {
				rendered = append(rendered, createTableSQL(tt.dialect, table))
			}
			ddl := strings.Join(rendered, "\n")
			for _, want := range tt.contains {
				if !strings.Contains(ddl, want) {
					t.Errorf("%s DDL should contain %q", tt.dialect, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(ddl, unwanted) {
					t.Errorf("%s DDL should not contain %q", tt.dialect, unwanted)
				}
			}
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS") {
				t.Errorf("%s DDL should be idempotent", tt.dialect)
			}
			if got, want := strings.Count(ddl, "CREATE TABLE"), 6; got != want {
				t.Errorf("%s DDL table count: got %d want %d", tt.dialect, got, want)
			}
		})
	}
}

func TestForeignKeysDeclared(t *testing.T) {
	ddl := createTableSQL(DialectSQLite, crmSchema[1]) // contacts
	if !strings.Contains(ddl, `FOREIGN KEY ("account_id") REFERENCES accounts(id)`) {
		t.Errorf("contacts DDL missing foreign key declaration:\n%s", ddl)
	}
}
