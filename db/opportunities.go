package db

// opportunities.go deals with sales opportunity database calls. An
// opportunity belongs to one account and moves through a fixed pipeline of
// stages; stage reporting lives in pipeline.go.

import (
	"context"
	"fmt"
	"strings"
)

// Opportunity is a potential sale tracked through the pipeline.
type Opportunity struct {
	ID                int64   `db:"id"`
	AccountID         int64   `db:"account_id"`
	Name              string  `db:"name"`
	Stage             string  `db:"stage"`
	ExpectedCloseDate string  `db:"expected_close_date"` // ISO 8601 date
	Value             float64 `db:"value"`
	ProductType       string  `db:"product_type"`
	Region            string  `db:"region"`
	Probability       float64 `db:"probability"`
	Source            string  `db:"source"`
}

// Validate checks the opportunity insert command.
func (o Opportunity) Validate() error {
	if o.AccountID == 0 {
		return fmt.Errorf("opportunity requires an account")
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("opportunity name must not be empty")
	}
	if !ValidStage(o.Stage) {
		return fmt.Errorf("invalid opportunity stage %q", o.Stage)
	}
	if o.Value < 0 {
		return fmt.Errorf("opportunity value must not be negative, got %v", o.Value)
	}
	if o.Probability < 0 || o.Probability > 1 {
		return fmt.Errorf("opportunity probability must be between 0 and 1, got %v", o.Probability)
	}
	return nil
}

// OpportunityRow is an opportunity listing row with the account display name
// joined in.
type OpportunityRow struct {
	ID                int64   `db:"id"`
	Account           *string `db:"account"`
	Name              string  `db:"name"`
	Stage             string  `db:"stage"`
	ExpectedCloseDate string  `db:"expected_close_date"`
	Value             float64 `db:"value"`
	ProductType       string  `db:"product_type"`
	Region            string  `db:"region"`
	Probability       float64 `db:"probability"`
	Source            string  `db:"source"`
}

// InsertOpportunity creates an opportunity row, returning the new row's
// identifier.
func (db *DB) InsertOpportunity(ctx context.Context, o Opportunity) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	query := `INSERT INTO opportunities
	          (account_id, name, stage, expected_close_date, "value", product_type, region, probability, source)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query,
		o.AccountID, o.Name, o.Stage, nullIfEmpty(o.ExpectedCloseDate), o.Value,
		o.ProductType, o.Region, o.Probability, o.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("opportunity insert error: %w", err)
	}
	return id, nil
}

// Opportunities lists all opportunities with their account names, most
// recent first.
func (db *DB) Opportunities(ctx context.Context) ([]OpportunityRow, error) {
	query := `SELECT o.id, a.name AS account, o.name, o.stage,
	                 COALESCE(CAST(o.expected_close_date AS TEXT), '') AS expected_close_date,
	                 COALESCE(o."value", 0) AS "value", o.product_type, o.region,
	                 COALESCE(o.probability, 0) AS probability, o.source
	          FROM opportunities o LEFT JOIN accounts a ON a.id = o.account_id
	          ORDER BY o.id DESC`
	var opportunities []OpportunityRow
	if err := db.SelectContext(ctx, &opportunities, query); err != nil {
		return nil, fmt.Errorf("opportunities select error: %w", err)
	}
	return opportunities, nil
}

// OpportunityNameIndex returns a name to id lookup map for opportunities.
// As with AccountNameIndex, a duplicated name resolves to the most recently
// created row's identifier.
func (db *DB) OpportunityNameIndex(ctx context.Context) (map[string]int64, error) {
	type row struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	var rows []row
	if err := db.SelectContext(ctx, &rows, `SELECT id, name FROM opportunities ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("opportunity name index select error: %w", err)
	}
	index := make(map[string]int64, len(rows))
	for _, r := range rows {
		index[r.Name] = r.ID
	}
	return index, nil
}
