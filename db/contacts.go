package db

// contacts.go deals with contact database calls. A contact belongs to one
// account.

import (
	"context"
	"fmt"
	"strings"
)

// Contact is a person at a customer account.
type Contact struct {
	ID        int64  `db:"id"`
	AccountID int64  `db:"account_id"`
	Name      string `db:"name"`
	Role      string `db:"role"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
}

// Validate checks the contact insert command.
func (c Contact) Validate() error {
	if c.AccountID == 0 {
		return fmt.Errorf("contact requires an account")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("contact name must not be empty")
	}
	return nil
}

// ContactRow is a contact listing row with the account display name joined
// in. Account is a pointer as the left join may find no parent row.
type ContactRow struct {
	ID      int64   `db:"id"`
	Account *string `db:"account"`
	Name    string  `db:"name"`
	Role    string  `db:"role"`
	Email   string  `db:"email"`
	Phone   string  `db:"phone"`
}

// InsertContact creates a contact row, returning the new row's identifier.
func (db *DB) InsertContact(ctx context.Context, c Contact) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	query := `INSERT INTO contacts (account_id, name, "role", email, phone)
	          VALUES (?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query, c.AccountID, c.Name, c.Role, c.Email, c.Phone)
	if err != nil {
		return 0, fmt.Errorf("contact insert error: %w", err)
	}
	return id, nil
}

// Contacts lists all contacts with their account names, most recent first.
func (db *DB) Contacts(ctx context.Context) ([]ContactRow, error) {
	query := `SELECT c.id, a.name AS account, c.name, c."role", c.email, c.phone
	          FROM contacts c LEFT JOIN accounts a ON a.id = c.account_id
	          ORDER BY c.id DESC`
	var contacts []ContactRow
	if err := db.SelectContext(ctx, &contacts, query); err != nil {
		return nil, fmt.Errorf("contacts select error: %w", err)
	}
	return contacts, nil
}
