package db

// quotes.go deals with quote and quote line item database calls. A quote
// belongs to one opportunity; a quote item belongs to one quote.

import (
	"context"
	"fmt"
	"strings"
)

// QuoteStatuses is the fixed set of quote statuses.
var QuoteStatuses = []string{"Draft", "Submitted", "Accepted", "Rejected", "Revised"}

// Currencies is the fixed set of quote currencies.
var Currencies = []string{"GBP", "EUR"}

// Quote is a priced proposal tied to one opportunity.
type Quote struct {
	ID               int64   `db:"id"`
	OpportunityID    int64   `db:"opportunity_id"`
	QuoteNumber      string  `db:"quote_number"`
	Date             string  `db:"date"` // ISO 8601 date
	Status           string  `db:"status"`
	TotalValue       float64 `db:"total_value"`
	Currency         string  `db:"currency"`
	PriceIndexClause bool    `db:"price_index_clause"`
}

// Validate checks the quote insert command.
func (q Quote) Validate() error {
	if q.OpportunityID == 0 {
		return fmt.Errorf("quote requires an opportunity")
	}
	if strings.TrimSpace(q.QuoteNumber) == "" {
		return fmt.Errorf("quote number must not be empty")
	}
	if q.TotalValue < 0 {
		return fmt.Errorf("quote total value must not be negative, got %v", q.TotalValue)
	}
	return nil
}

// QuoteRow is a quote listing row with the opportunity display name joined
// in.
type QuoteRow struct {
	ID               int64   `db:"id"`
	Opportunity      *string `db:"opportunity"`
	QuoteNumber      string  `db:"quote_number"`
	Date             string  `db:"date"`
	Status           string  `db:"status"`
	TotalValue       float64 `db:"total_value"`
	Currency         string  `db:"currency"`
	PriceIndexClause bool    `db:"price_index_clause"`
}

// QuoteItem is a single priced line on a quote. The schema carries quote
// items and they can be written through this operation, although the core
// page flow only ever exports them.
type QuoteItem struct {
	ID           int64   `db:"id"`
	QuoteID      int64   `db:"quote_id"`
	Description  string  `db:"description"`
	Unit         string  `db:"unit"`
	Quantity     float64 `db:"quantity"`
	UnitPrice    float64 `db:"unit_price"`
	LeadTimeDays int64   `db:"lead_time_days"`
}

// InsertQuote creates a quote row, returning the new row's identifier. The
// price index clause flag is stored as 0/1.
func (db *DB) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	pic := 0
	if q.PriceIndexClause {
		pic = 1
	}
	query := `INSERT INTO quotes
	          (opportunity_id, quote_number, "date", status, total_value, currency, price_index_clause)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query,
		q.OpportunityID, q.QuoteNumber, nullIfEmpty(q.Date), q.Status, q.TotalValue, q.Currency, pic,
	)
	if err != nil {
		return 0, fmt.Errorf("quote insert error: %w", err)
	}
	return id, nil
}

// Quotes lists all quotes with their opportunity names, most recent first.
func (db *DB) Quotes(ctx context.Context) ([]QuoteRow, error) {
	query := `SELECT q.id, o.name AS opportunity, q.quote_number,
	                 COALESCE(CAST(q."date" AS TEXT), '') AS "date", q.status, q.total_value,
	                 q.currency, q.price_index_clause
	          FROM quotes q LEFT JOIN opportunities o ON o.id = q.opportunity_id
	          ORDER BY q.id DESC`
	var quotes []QuoteRow
	if err := db.SelectContext(ctx, &quotes, query); err != nil {
		return nil, fmt.Errorf("quotes select error: %w", err)
	}
	return quotes, nil
}

// InsertQuoteItem creates a quote item row, returning the new row's
// identifier.
func (db *DB) InsertQuoteItem(ctx context.Context, qi QuoteItem) (int64, error) {
	if qi.QuoteID == 0 {
		return 0, fmt.Errorf("quote item requires a quote")
	}
	query := `INSERT INTO quote_items
	          (quote_id, description, unit, quantity, unit_price, lead_time_days)
	          VALUES (?, ?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query,
		qi.QuoteID, qi.Description, qi.Unit, qi.Quantity, qi.UnitPrice, qi.LeadTimeDays,
	)
	if err != nil {
		return 0, fmt.Errorf("quote item insert error: %w", err)
	}
	return id, nil
}

// QuoteItems lists the line items for one quote in insertion order.
func (db *DB) QuoteItems(ctx context.Context, quoteID int64) ([]QuoteItem, error) {
	query := `SELECT id, quote_id, description, unit, quantity, unit_price, lead_time_days
	          FROM quote_items WHERE quote_id = ? ORDER BY id ASC`
	var items []QuoteItem
	if err := db.SelectContext(ctx, &items, db.Rebind(query), quoteID); err != nil {
		return nil, fmt.Errorf("quote items select error: %w", err)
	}
	return items, nil
}
