package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

var testDBCounter int64

func ptrStr(s string) *string { return &s }

func ptrInt64(i int64) *int64 { return &i }

// setupTestDB sets up an in-memory test database connection with the schema
// loaded. Each call uses a distinct shared-cache name so tests do not see
// each other's data.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)

	testDB, err := NewConnection(dsn, "")
	if err != nil {
		t.Fatalf("in-memory test database opening error: %v", err)
	}
	if err := testDB.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("test schema error: %v", err)
	}

	t.Cleanup(func() {
		if err := testDB.Close(); err != nil {
			t.Fatalf("unexpected db close error: %v", err)
		}
	})
	return testDB
}

func TestNewConnectionInMemoryNeedsSharedCache(t *testing.T) {
	if _, err := NewConnection("file::memory:", ""); err == nil {
		t.Error("expected an error for an uncached in-memory connection")
	}
}

func TestDialect(t *testing.T) {
	testDB := setupTestDB(t)
	if got, want := testDB.Dialect(), DialectSQLite; got != want {
		t.Errorf("dialect: got %q want %q", got, want)
	}
}

func TestQueryZeroRows(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	table, err := testDB.Query(ctx, "SELECT * FROM accounts")
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("expected zero rows, got %d", len(table.Rows))
	}
	if len(table.Columns) != 7 {
		t.Errorf("expected 7 account columns, got %d (%v)", len(table.Columns), table.Columns)
	}
}

func TestExecRollsBackOnError(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	if err := testDB.Exec(ctx, "INSERT INTO nonsense (x) VALUES (?)", 1); err == nil {
		t.Fatal("expected an error for an insert into a missing table")
	}

	// The connection must remain usable after a rolled back write.
	if err := testDB.Exec(ctx,
		`INSERT INTO accounts (name, "type", region, credit_limit, payment_terms, risk_rating)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"Acme Groundworks", "Subcontractor", "North", 10000.0, "30 days", "Low",
	); err != nil {
		t.Fatalf("unexpected exec error after rollback: %v", err)
	}

	table, err := testDB.Query(ctx, "SELECT name FROM accounts")
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(table.Rows))
	}
}
