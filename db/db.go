// Package db provides the storage component of the crm project.
//
// The package holds the persistence gateway (a thin wrapper over sqlx), the
// schema manager, the per-entity insert/list operations, the pipeline
// aggregation queries and the table export routines.
//
// Two backends are supported: a local sqlite file for single-user desktop
// use, and PostgreSQL for shared deployments. The backend is chosen from a
// single connection URL; everything above this package is backend-agnostic.
// Queries are written with "?" placeholders and passed through sqlx's Rebind
// so the same SQL serves both backends.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver via database/sql
	"github.com/jmoiron/sqlx"          // helper library
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Dialect identifies the configured storage backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB provides a wrapper around the sql.DB connection for application-specific
// db operations.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Dialect returns the backend dialect of this connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// NewConnection opens a connection to the storage backend selected by
// databaseURL. A postgres:// or postgresql:// URL selects PostgreSQL; an
// empty URL falls back to an sqlite database at fallbackPath, relocated to
// the system temporary directory if the preferred location cannot be made
// writable.
func NewConnection(databaseURL, fallbackPath string) (*DB, error) {

	if isPostgresURL(databaseURL) {
		dbDB, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("could not open postgres connection: %w", err)
		}
		if err := dbDB.Ping(); err != nil {
			return nil, fmt.Errorf("postgres ping error: %w", err)
		}
		return &DB{
			DB:      sqlx.NewDb(dbDB, "pgx"),
			dialect: DialectPostgres,
		}, nil
	}

	// A non-URL value is treated as an sqlite file path.
	dbPath := databaseURL
	if dbPath == "" {
		dbPath = fallbackPath
	}

	// For in-memory test databases, check the necessary cached setting is
	// used; otherwise resolve the file location and set the default pragmas.
	var dataSource string
	if strings.Contains(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory") {
		if !strings.Contains(dbPath, "cache=shared") {
			return nil, fmt.Errorf("in-memory connection %q should contain 'cache=shared'", dbPath)
		}
		dataSource = dbPath
	} else {
		dbPath = resolveStoragePath(dbPath)
		dataSource = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	}

	dbDB, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite connection: %w", err)
	}
	if err := dbDB.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite ping error: %w", err)
	}

	return &DB{
		DB:      sqlx.NewDb(dbDB, "sqlite"),
		dialect: DialectSQLite,
	}, nil
}

// isPostgresURL reports whether the provided connection string selects the
// networked backend.
func isPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// resolveStoragePath ensures the directory for an sqlite file path exists,
// falling back to the system temporary directory when the preferred
// directory cannot be created.
func resolveStoragePath(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return path
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return filepath.Join(os.TempDir(), filepath.Base(path))
	}
	return path
}

// nullIfEmpty converts an empty string to NULL. Used for optional date
// fields, which the postgres backend stores as DATE and so cannot hold "".
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Table is a uniform tabular result: named columns and ordered rows. Zero
// rows is not an error.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Query executes a parameterized read statement, returning the results as a
// Table. The query must use "?" placeholders; user-supplied values are only
// ever passed as bound parameters.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*Table, error) {
	rows, err := db.QueryxContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("column read error: %w", err)
	}
	t := &Table{Columns: cols}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("row scan error: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return t, nil
}

// Exec executes a parameterized write statement inside an implicit
// transaction, committing on success and rolling back on error.
func (db *DB) Exec(ctx context.Context, query string, args ...any) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after a successful Commit

	if _, err := tx.ExecContext(ctx, db.Rebind(query), args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}
	return tx.Commit()
}

// insertReturningID runs an insert statement and returns the new row's
// auto-increment identifier, using RETURNING on postgres and LastInsertId on
// sqlite. Each insert is its own atomic unit.
func (db *DB) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	switch db.dialect {
	case DialectPostgres:
		err = tx.QueryRowContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert error: %w", err)
		}
	default:
		res, err := tx.ExecContext(ctx, db.Rebind(query), args...)
		if err != nil {
			return 0, fmt.Errorf("insert error: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("could not read inserted id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}
