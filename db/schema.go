package db

// schema.go holds a single logical description of the six application
// tables. Backend-specific DDL is derived from it through a small
// per-dialect type map, so there is exactly one source of truth for the
// schema rather than one DDL string per backend.

import (
	"context"
	"fmt"
	"strings"
)

// colType is the logical type of a schema column.
type colType int

const (
	colID   colType = iota // auto-increment primary key
	colRef                 // foreign key to another table's id
	colText                // free text
	colReal                // monetary or fractional value
	colInt                 // integer or boolean flag
	colDate                // calendar date
)

// column describes one logical schema column.
type column struct {
	name     string
	typ      colType
	notNull  bool
	refTable string // set for colRef columns
}

// tableDef describes one logical schema table.
type tableDef struct {
	name    string
	columns []column
}

// crmSchema is the logical schema for the whole application. Foreign keys
// are declared but soft: the application never enforces referential
// integrity beyond what the backend itself guarantees.
var crmSchema = []tableDef{
	{
		name: "accounts",
		columns: []column{
			{name: "id", typ: colID},
			{name: "name", typ: colText, notNull: true},
			{name: "type", typ: colText},
			{name: "region", typ: colText},
			{name: "credit_limit", typ: colReal},
			{name: "payment_terms", typ: colText},
			{name: "risk_rating", typ: colText},
		},
	},
	{
		name: "contacts",
		columns: []column{
			{name: "id", typ: colID},
			{name: "account_id", typ: colRef, refTable: "accounts"},
			{name: "name", typ: colText},
			{name: "role", typ: colText},
			{name: "email", typ: colText},
			{name: "phone", typ: colText},
		},
	},
	{
		name: "opportunities",
		columns: []column{
			{name: "id", typ: colID},
			{name: "account_id", typ: colRef, refTable: "accounts"},
			{name: "name", typ: colText},
			{name: "stage", typ: colText},
			{name: "expected_close_date", typ: colDate},
			{name: "value", typ: colReal},
			{name: "product_type", typ: colText},
			{name: "region", typ: colText},
			{name: "probability", typ: colReal},
			{name: "source", typ: colText},
		},
	},
	{
		name: "quotes",
		columns: []column{
			{name: "id", typ: colID},
			{name: "opportunity_id", typ: colRef, refTable: "opportunities"},
			{name: "quote_number", typ: colText},
			{name: "date", typ: colDate},
			{name: "status", typ: colText},
			{name: "total_value", typ: colReal},
			{name: "currency", typ: colText},
			{name: "price_index_clause", typ: colInt},
		},
	},
	{
		name: "quote_items",
		columns: []column{
			{name: "id", typ: colID},
			{name: "quote_id", typ: colRef, refTable: "quotes"},
			{name: "description", typ: colText},
			{name: "unit", typ: colText},
			{name: "quantity", typ: colReal},
			{name: "unit_price", typ: colReal},
			{name: "lead_time_days", typ: colInt},
		},
	},
	{
		name: "activities",
		columns: []column{
			{name: "id", typ: colID},
			{name: "account_id", typ: colRef, refTable: "accounts"},
			{name: "opportunity_id", typ: colRef, refTable: "opportunities"},
			{name: "type", typ: colText},
			{name: "subject", typ: colText},
			{name: "due_date", typ: colDate},
			{name: "owner", typ: colText},
			{name: "notes", typ: colText},
			{name: "completed", typ: colInt},
		},
	},
}

// typeSQL maps a logical column type to backend-specific column DDL.
func typeSQL(d Dialect, t colType) string {
	if d == DialectPostgres {
		switch t {
		case colID:
			return "BIGSERIAL PRIMARY KEY"
		case colRef:
			return "BIGINT"
		case colReal:
			return "DOUBLE PRECISION"
		case colInt:
			return "INTEGER"
		case colDate:
			return "DATE"
		default:
			return "TEXT"
		}
	}
	switch t {
	case colID:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case colRef:
		return "INTEGER"
	case colReal:
		return "REAL"
	case colInt:
		return "INTEGER"
	default:
		// sqlite stores dates as ISO text.
		return "TEXT"
	}
}

// createTableSQL renders the CREATE TABLE IF NOT EXISTS statement for one
// logical table in the given dialect.
func createTableSQL(d Dialect, t tableDef) string {
	var defs []string
	var constraints []string
	for _, c := range t.columns {
		def := fmt.Sprintf("%s %s", quoteIdent(c.name), typeSQL(d, c.typ))
		if c.notNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		if c.typ == colRef {
			constraints = append(constraints, fmt.Sprintf(
				"FOREIGN KEY (%s) REFERENCES %s(id)", quoteIdent(c.name), c.refTable,
			))
		}
	}
	defs = append(defs, constraints...)
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		t.name,
		strings.Join(defs, ",\n    "),
	)
}

// quoteIdent quotes a column identifier. Some logical column names (type,
// value, date) are keywords or near-keywords in one backend or the other.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// EnsureSchema idempotently creates all application tables. Each table is
// created with its own statement, so there is no splitting of a combined DDL
// string. Safe to invoke on every process start and from the manual initdb
// action; a failure is reported to the caller as a diagnostic and must not
// stop the rest of the application from serving.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, t := range crmSchema {
		if _, err := db.ExecContext(ctx, createTableSQL(db.dialect, t)); err != nil {
			return fmt.Errorf("could not create table %q: %w", t.name, err)
		}
	}
	return nil
}

// TableNames returns the fixed set of application table names in schema
// order. Export uses this list; table names interpolated into SQL only ever
// come from here.
func TableNames() []string {
	names := make([]string, len(crmSchema))
	for i, t := range crmSchema {
		names[i] = t.name
	}
	return names
}

// validTableName reports whether name is one of the application tables.
func validTableName(name string) bool {
	for _, t := range crmSchema {
		if t.name == name {
			return true
		}
	}
	return false
}
