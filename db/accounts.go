package db

// accounts.go deals with customer account database calls.

import (
	"context"
	"fmt"
	"strings"
)

// RiskRatings is the fixed set of account risk ratings.
var RiskRatings = []string{"Low", "Medium", "High"}

// AccountTypes is the fixed set of account types offered by the account
// form.
var AccountTypes = []string{"Main Contractor", "Subcontractor", "Developer", "Architect", "Other"}

// Account is a customer or business entity. Only Name is required; all
// other fields persist as their zero values when absent from the form.
type Account struct {
	ID           int64   `db:"id"`
	Name         string  `db:"name"`
	Type         string  `db:"type"`
	Region       string  `db:"region"`
	CreditLimit  float64 `db:"credit_limit"`
	PaymentTerms string  `db:"payment_terms"`
	RiskRating   string  `db:"risk_rating"`
}

// Validate checks the account insert command before it reaches the gateway.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if a.CreditLimit < 0 {
		return fmt.Errorf("account credit limit must not be negative, got %v", a.CreditLimit)
	}
	return nil
}

// InsertAccount creates an account row, returning the new row's identifier.
func (db *DB) InsertAccount(ctx context.Context, a Account) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	query := `INSERT INTO accounts (name, "type", region, credit_limit, payment_terms, risk_rating)
	          VALUES (?, ?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query,
		a.Name, a.Type, a.Region, a.CreditLimit, a.PaymentTerms, a.RiskRating,
	)
	if err != nil {
		return 0, fmt.Errorf("account insert error: %w", err)
	}
	return id, nil
}

// Accounts lists all accounts, most recent first.
func (db *DB) Accounts(ctx context.Context) ([]Account, error) {
	query := `SELECT id, name, "type", region, credit_limit, payment_terms, risk_rating
	          FROM accounts ORDER BY id DESC`
	var accounts []Account
	if err := db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("accounts select error: %w", err)
	}
	return accounts, nil
}

// AccountNameIndex returns a name to id lookup map built from a full account
// listing. Rows are read in ascending id order, so two accounts sharing a
// name resolve to the most recently created row's identifier. The web layer
// selects accounts by id instead of going through this map.
func (db *DB) AccountNameIndex(ctx context.Context) (map[string]int64, error) {
	type row struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	var rows []row
	if err := db.SelectContext(ctx, &rows, `SELECT id, name FROM accounts ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("account name index select error: %w", err)
	}
	index := make(map[string]int64, len(rows))
	for _, r := range rows {
		index[r.Name] = r.ID
	}
	return index, nil
}
