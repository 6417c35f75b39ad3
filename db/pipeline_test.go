package db

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStageTotals(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	accountID := seedAccount(t, testDB, "Pipeline Construction")
	seed := []Opportunity{
		{AccountID: accountID, Name: "A", Stage: "Estimating", Value: 10000},
		{AccountID: accountID, Name: "B", Stage: "Estimating", Value: 25000},
		{AccountID: accountID, Name: "C", Stage: "Negotiation", Value: 50000},
		{AccountID: accountID, Name: "D", Stage: "Lead", Value: 0},
	}
	for _, o := range seed {
		seedOpportunity(t, testDB, o)
	}

	totals, err := testDB.StageTotals(ctx)
	if err != nil {
		t.Fatalf("unexpected stage totals error: %v", err)
	}

	want := []StageTotal{
		{Stage: "Negotiation", Total: 50000},
		{Stage: "Estimating", Total: 35000},
		{Stage: "Lead", Total: 0},
	}
	if diff := cmp.Diff(want, totals); diff != "" {
		t.Errorf("stage totals mismatch (-want +got):\n%s", diff)
	}

	// Sorted by descending total.
	if !sort.SliceIsSorted(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total }) {
		t.Error("stage totals should be sorted by descending total")
	}
}

func TestStageTotalsEmpty(t *testing.T) {
	testDB := setupTestDB(t)

	totals, err := testDB.StageTotals(context.Background())
	if err != nil {
		t.Fatalf("unexpected stage totals error: %v", err)
	}
	if len(totals) != 0 {
		t.Errorf("expected no totals for an empty table, got %v", totals)
	}
}

func TestOverdueOpportunities(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 29, 15, 30, 0, 0, time.Local)
	accountID := seedAccount(t, testDB, "Overdue Construction")

	seed := []struct {
		opp         Opportunity
		wantOverdue bool
	}{
		{
			opp:         Opportunity{AccountID: accountID, Name: "past open", Stage: "Negotiation", ExpectedCloseDate: "2026-08-01"},
			wantOverdue: true,
		},
		{
			// Strictly earlier than today: today itself is not overdue.
			opp: Opportunity{AccountID: accountID, Name: "due today", Stage: "Negotiation", ExpectedCloseDate: "2026-08-29"},
		},
		{
			opp: Opportunity{AccountID: accountID, Name: "future open", Stage: "Lead", ExpectedCloseDate: "2026-12-01"},
		},
		{
			opp: Opportunity{AccountID: accountID, Name: "past won", Stage: "Closed Won", ExpectedCloseDate: "2026-01-01"},
		},
		{
			opp: Opportunity{AccountID: accountID, Name: "past lost", Stage: "Closed Lost", ExpectedCloseDate: "2026-01-01"},
		},
		{
			// Unparseable dates are excluded, not treated as overdue.
			opp: Opportunity{AccountID: accountID, Name: "bad date", Stage: "Lead", ExpectedCloseDate: "TBC"},
		},
		{
			opp: Opportunity{AccountID: accountID, Name: "no date", Stage: "Lead"},
		},
	}
	for _, s := range seed {
		seedOpportunity(t, testDB, s.opp)
	}

	overdue, err := testDB.OverdueOpportunities(ctx, today)
	if err != nil {
		t.Fatalf("unexpected overdue error: %v", err)
	}

	var got []string
	for _, o := range overdue {
		got = append(got, o.Name)
	}
	want := []string{"past open"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overdue set mismatch (-want +got):\n%s", diff)
	}
}

// Changing only the stage to a terminal value removes a row from the
// overdue set without deleting it.
func TestOverdueExcludesRowMovedToTerminalStage(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 29, 0, 0, 0, 0, time.Local)
	accountID := seedAccount(t, testDB, "Terminal Construction")
	oppID := seedOpportunity(t, testDB, Opportunity{
		AccountID: accountID, Name: "slipping job", Stage: "Negotiation", ExpectedCloseDate: "2026-07-01",
	})

	overdue, err := testDB.OverdueOpportunities(ctx, today)
	if err != nil {
		t.Fatalf("unexpected overdue error: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected one overdue row, got %d", len(overdue))
	}

	if err := testDB.Exec(ctx, "UPDATE opportunities SET stage = ? WHERE id = ?", "Closed Lost", oppID); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	overdue, err = testDB.OverdueOpportunities(ctx, today)
	if err != nil {
		t.Fatalf("unexpected overdue error: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("expected no overdue rows after closing, got %d", len(overdue))
	}

	all, err := testDB.Opportunities(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("the row should still exist, got %d rows", len(all))
	}
}

func TestBoardPartition(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()

	accountID := seedAccount(t, testDB, "Board Construction")
	seed := []Opportunity{
		{AccountID: accountID, Name: "one", Stage: "Lead"},
		{AccountID: accountID, Name: "two", Stage: "Estimating"},
		{AccountID: accountID, Name: "three", Stage: "Lead"},
	}
	for _, o := range seed {
		seedOpportunity(t, testDB, o)
	}

	board, err := testDB.Board(ctx)
	if err != nil {
		t.Fatalf("unexpected board error: %v", err)
	}

	// Only the stages present in the data appear, in first-seen order of
	// the most-recent-first listing.
	if len(board) != 2 {
		t.Fatalf("expected 2 board columns, got %d", len(board))
	}
	if got, want := board[0].Stage, "Lead"; got != want {
		t.Errorf("first column stage: got %q want %q", got, want)
	}
	if got, want := len(board[0].Opportunities), 2; got != want {
		t.Errorf("Lead column size: got %d want %d", got, want)
	}
	if got, want := board[1].Stage, "Estimating"; got != want {
		t.Errorf("second column stage: got %q want %q", got, want)
	}
}

func TestStageHelpers(t *testing.T) {
	if len(Stages) != 10 {
		t.Errorf("expected 10 pipeline stages, got %d", len(Stages))
	}
	for _, s := range Stages {
		if !ValidStage(s) {
			t.Errorf("%q should be a valid stage", s)
		}
	}
	if ValidStage("Daydreaming") {
		t.Error("unknown stages should be invalid")
	}
	if !IsTerminalStage("Closed Won") || !IsTerminalStage("Closed Lost") {
		t.Error("closed stages should be terminal")
	}
	if IsTerminalStage("Delivered") {
		t.Error("Delivered is not terminal")
	}
}
