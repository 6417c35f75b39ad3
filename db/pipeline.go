package db

// pipeline.go holds the pipeline aggregation reads: stage value totals for
// the dashboard and stage report, overdue detection for the risk report, and
// the stage board partition.

import (
	"context"
	"fmt"
	"time"
)

// Stages is the ordered pipeline of opportunity stages.
var Stages = []string{
	"Lead",
	"Qualified",
	"Estimating",
	"Bid Submitted",
	"Negotiation",
	"Awarded",
	"In Production",
	"Delivered",
	"Closed Won",
	"Closed Lost",
}

// terminalStages are the stages in which an opportunity can no longer
// become overdue.
var terminalStages = map[string]bool{
	"Closed Won":  true,
	"Closed Lost": true,
}

// ValidStage reports whether s is one of the fixed pipeline stages.
func ValidStage(s string) bool {
	for _, stage := range Stages {
		if stage == s {
			return true
		}
	}
	return false
}

// IsTerminalStage reports whether s is a closed pipeline stage.
func IsTerminalStage(s string) bool {
	return terminalStages[s]
}

// StageTotal is one row of the stage totals aggregate.
type StageTotal struct {
	Stage string  `db:"stage"`
	Total float64 `db:"total"`
}

// StageTotals groups all opportunities by stage and sums their monetary
// value, null values counting as zero, sorted by descending total. An empty
// opportunities table produces an empty result, not an error.
func (db *DB) StageTotals(ctx context.Context) ([]StageTotal, error) {
	query := `SELECT stage, COALESCE(SUM("value"), 0) AS total
	          FROM opportunities GROUP BY stage ORDER BY total DESC`
	var totals []StageTotal
	if err := db.SelectContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("stage totals select error: %w", err)
	}
	return totals, nil
}

// OverdueOpportunities returns the open opportunities whose expected close
// date has passed. A row is overdue iff its stage is not terminal, its
// expected close date parses as a calendar date, and that date is strictly
// earlier than today. Today is the server's local date; rows with
// unparseable dates are excluded, not treated as overdue.
func (db *DB) OverdueOpportunities(ctx context.Context, today time.Time) ([]OpportunityRow, error) {
	all, err := db.Opportunities(ctx)
	if err != nil {
		return nil, err
	}
	todayDate := truncateToDate(today)

	var overdue []OpportunityRow
	for _, o := range all {
		if IsTerminalStage(o.Stage) {
			continue
		}
		closeDate, err := time.ParseInLocation("2006-01-02", o.ExpectedCloseDate, today.Location())
		if err != nil {
			continue
		}
		if closeDate.Before(todayDate) {
			overdue = append(overdue, o)
		}
	}
	return overdue, nil
}

// truncateToDate drops the time-of-day component, keeping the location.
func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BoardColumn is one stage section of the opportunity board.
type BoardColumn struct {
	Stage         string
	Opportunities []OpportunityRow
}

// Board partitions the opportunity listing by stage. Only stages that occur
// in the data appear, in first-seen order of the most-recent-first listing;
// stages with no opportunities do not produce empty sections.
func (db *DB) Board(ctx context.Context) ([]BoardColumn, error) {
	all, err := db.Opportunities(ctx)
	if err != nil {
		return nil, err
	}
	var board []BoardColumn
	position := map[string]int{}
	for _, o := range all {
		i, seen := position[o.Stage]
		if !seen {
			i = len(board)
			position[o.Stage] = i
			board = append(board, BoardColumn{Stage: o.Stage})
		}
		board[i].Opportunities = append(board[i].Opportunities, o)
	}
	return board, nil
}
