package web

/* view types for the web server */

import (
	"fmt"

	"crm/db"
)

// dash is shown in listings where a left join found no parent row.
const dash = "—"

// viewContact is a view version of the db.ContactRow type, with non-pointer
// fields.
type viewContact struct {
	ID      int64
	Account string
	Name    string
	Role    string
	Email   string
	Phone   string
}

// newViewContacts maps db.ContactRow records to a slice of viewContact.
func newViewContacts(contacts []db.ContactRow) []viewContact {
	cv := make([]viewContact, len(contacts))
	for i, c := range contacts {
		cv[i] = viewContact{
			ID:      c.ID,
			Account: dash,
			Name:    c.Name,
			Role:    c.Role,
			Email:   c.Email,
			Phone:   c.Phone,
		}
		if c.Account != nil {
			cv[i].Account = *c.Account
		}
	}
	return cv
}

// viewOpportunity is a view version of the db.OpportunityRow type.
type viewOpportunity struct {
	ID                int64
	Account           string
	Name              string
	Stage             string
	ExpectedCloseDate string
	Value             string
	ProductType       string
	Region            string
	Probability       string
	Source            string
}

// newViewOpportunities maps db.OpportunityRow records to a slice of
// viewOpportunity.
func newViewOpportunities(opportunities []db.OpportunityRow) []viewOpportunity {
	ov := make([]viewOpportunity, len(opportunities))
	for i, o := range opportunities {
		ov[i] = viewOpportunity{
			ID:                o.ID,
			Account:           dash,
			Name:              o.Name,
			Stage:             o.Stage,
			ExpectedCloseDate: o.ExpectedCloseDate,
			Value:             money(o.Value),
			ProductType:       o.ProductType,
			Region:            o.Region,
			Probability:       fmt.Sprintf("%.0f%%", o.Probability*100),
			Source:            o.Source,
		}
		if o.Account != nil {
			ov[i].Account = *o.Account
		}
	}
	return ov
}

// viewQuote is a view version of the db.QuoteRow type.
type viewQuote struct {
	ID               int64
	Opportunity      string
	QuoteNumber      string
	Date             string
	Status           string
	TotalValue       string
	Currency         string
	PriceIndexClause bool
}

// newViewQuotes maps db.QuoteRow records to a slice of viewQuote.
func newViewQuotes(quotes []db.QuoteRow) []viewQuote {
	qv := make([]viewQuote, len(quotes))
	for i, q := range quotes {
		qv[i] = viewQuote{
			ID:               q.ID,
			Opportunity:      dash,
			QuoteNumber:      q.QuoteNumber,
			Date:             q.Date,
			Status:           q.Status,
			TotalValue:       money(q.TotalValue),
			Currency:         q.Currency,
			PriceIndexClause: q.PriceIndexClause,
		}
		if q.Opportunity != nil {
			qv[i].Opportunity = *q.Opportunity
		}
	}
	return qv
}

// viewBoardColumn is a stage section of the opportunity board.
type viewBoardColumn struct {
	Stage         string
	Opportunities []viewOpportunity
}

// newViewBoard maps db.BoardColumn records to view columns.
func newViewBoard(board []db.BoardColumn) []viewBoardColumn {
	bv := make([]viewBoardColumn, len(board))
	for i, col := range board {
		bv[i] = viewBoardColumn{
			Stage:         col.Stage,
			Opportunities: newViewOpportunities(col.Opportunities),
		}
	}
	return bv
}

// chartBar is one bar of the dashboard pipeline chart. Width is a
// percentage of the largest stage total.
type chartBar struct {
	Stage string
	Total string
	Width int
}

// newChartBars converts stage totals (already sorted by descending total)
// into proportional chart bars.
func newChartBars(totals []db.StageTotal) []chartBar {
	if len(totals) == 0 {
		return nil
	}
	max := totals[0].Total
	for _, t := range totals {
		if t.Total > max {
			max = t.Total
		}
	}
	bars := make([]chartBar, len(totals))
	for i, t := range totals {
		width := 0
		if max > 0 {
			width = int(t.Total / max * 100)
		}
		if width < 2 {
			width = 2 // keep zero-value stages visible
		}
		bars[i] = chartBar{
			Stage: t.Stage,
			Total: money(t.Total),
			Width: width,
		}
	}
	return bars
}

// money formats a monetary value for display.
func money(v float64) string {
	return fmt.Sprintf("£%.2f", v)
}

// selectOption is an id-valued parent choice for a form select.
type selectOption struct {
	ID   int64
	Name string
}

// accountOptions builds the account select options from an account listing.
func accountOptions(accounts []db.Account) []selectOption {
	opts := make([]selectOption, len(accounts))
	for i, a := range accounts {
		opts[i] = selectOption{ID: a.ID, Name: a.Name}
	}
	return opts
}

// opportunityOptions builds the opportunity select options from an
// opportunity listing.
func opportunityOptions(opportunities []db.OpportunityRow) []selectOption {
	opts := make([]selectOption, len(opportunities))
	for i, o := range opportunities {
		opts[i] = selectOption{ID: o.ID, Name: o.Name}
	}
	return opts
}
