package db

// activities.go deals with follow-up activity database calls. An activity
// optionally belongs to an account and/or an opportunity.

import (
	"context"
	"fmt"
)

// ActivityTypes is the fixed set of activity types offered by the activity
// form.
var ActivityTypes = []string{"Call", "Site Visit", "Bid Due", "Follow-up", "Delivery Coordination", "Other"}

// Activity is a task or scheduled interaction. AccountID and OpportunityID
// are pointers as both references are optional.
type Activity struct {
	ID            int64  `db:"id"`
	AccountID     *int64 `db:"account_id"`
	OpportunityID *int64 `db:"opportunity_id"`
	Type          string `db:"type"`
	Subject       string `db:"subject"`
	DueDate       string `db:"due_date"` // ISO 8601 date
	Owner         string `db:"owner"`
	Notes         string `db:"notes"`
	Completed     bool   `db:"completed"`
}

// InsertActivity creates an activity row, returning the new row's
// identifier. The completed flag is stored as 0/1. No field is required.
func (db *DB) InsertActivity(ctx context.Context, a Activity) (int64, error) {
	completed := 0
	if a.Completed {
		completed = 1
	}
	query := `INSERT INTO activities
	          (account_id, opportunity_id, "type", subject, due_date, "owner", notes, completed)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := db.insertReturningID(ctx, query,
		a.AccountID, a.OpportunityID, a.Type, a.Subject, nullIfEmpty(a.DueDate), a.Owner, a.Notes, completed,
	)
	if err != nil {
		return 0, fmt.Errorf("activity insert error: %w", err)
	}
	return id, nil
}

// OpenActivities lists incomplete activities ordered by ascending due date,
// so the most urgent item comes first.
func (db *DB) OpenActivities(ctx context.Context) ([]Activity, error) {
	query := `SELECT id, account_id, opportunity_id, "type", subject,
	                 COALESCE(CAST(due_date AS TEXT), '') AS due_date, "owner", notes, completed
	          FROM activities WHERE completed = 0 ORDER BY due_date ASC`
	var activities []Activity
	if err := db.SelectContext(ctx, &activities, query); err != nil {
		return nil, fmt.Errorf("activities select error: %w", err)
	}
	return activities, nil
}
