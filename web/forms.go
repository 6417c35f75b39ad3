package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/schema"

	"crm/db"
)

// ------------------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------------------

// Validator holds a map of validation errors, keyed by the form field name.
type Validator struct {
	Errors map[string]string
}

// NewValidator creates a new, initialized Validator.
func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map is empty.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error message to the map for a given field if one
// doesn't already exist for that field.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check is a helper for conditional validation. If `ok` is false, it
// calls AddError with the provided key and message.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// FieldError is a helper to check if the specified field has triggered
// an error.
func (v *Validator) FieldError(field string) bool {
	_, ok := v.Errors[field]
	return ok
}

// oneOf reports whether s is in the allowed set.
func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

// validDate reports whether s parses as an ISO calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// ------------------------------------------------------------------------------
// Forms
// ------------------------------------------------------------------------------

// AccountForm carries the account page form fields.
type AccountForm struct {
	Name         string  `schema:"name" url:"name"`
	Type         string  `schema:"type" url:"type"`
	Region       string  `schema:"region" url:"region"`
	CreditLimit  float64 `schema:"credit-limit" url:"credit-limit"`
	PaymentTerms string  `schema:"payment-terms" url:"payment-terms"`
	RiskRating   string  `schema:"risk-rating" url:"risk-rating"`
}

// Validate checks AccountForm fields and populates the Validator with any
// errors.
func (f *AccountForm) Validate(v *Validator) {
	v.Check(strings.TrimSpace(f.Name) != "", "name", "Account name is required.")
	v.Check(f.CreditLimit >= 0, "credit-limit", "Credit limit cannot be negative.")
	if f.RiskRating != "" {
		v.Check(oneOf(f.RiskRating, db.RiskRatings), "risk-rating", "Invalid risk rating.")
	}
}

// Record converts the form into a database insert command.
func (f *AccountForm) Record() db.Account {
	return db.Account{
		Name:         strings.TrimSpace(f.Name),
		Type:         f.Type,
		Region:       f.Region,
		CreditLimit:  f.CreditLimit,
		PaymentTerms: f.PaymentTerms,
		RiskRating:   f.RiskRating,
	}
}

// ContactForm carries the contact page form fields. The parent account is
// selected by identifier, not name, so two accounts sharing a name cannot
// collide.
type ContactForm struct {
	AccountID int64  `schema:"account-id" url:"account-id"`
	Name      string `schema:"name" url:"name"`
	Role      string `schema:"role" url:"role"`
	Email     string `schema:"email" url:"email"`
	Phone     string `schema:"phone" url:"phone"`
}

// Validate checks ContactForm fields.
func (f *ContactForm) Validate(v *Validator) {
	v.Check(f.AccountID > 0, "account-id", "An account must be selected.")
	v.Check(strings.TrimSpace(f.Name) != "", "name", "Contact name is required.")
}

// Record converts the form into a database insert command.
func (f *ContactForm) Record() db.Contact {
	return db.Contact{
		AccountID: f.AccountID,
		Name:      strings.TrimSpace(f.Name),
		Role:      f.Role,
		Email:     f.Email,
		Phone:     f.Phone,
	}
}

// OpportunityForm carries the opportunity page form fields.
type OpportunityForm struct {
	AccountID         int64   `schema:"account-id" url:"account-id"`
	Name              string  `schema:"name" url:"name"`
	Stage             string  `schema:"stage" url:"stage"`
	ExpectedCloseDate string  `schema:"expected-close-date" url:"expected-close-date"`
	Value             float64 `schema:"value" url:"value"`
	ProductType       string  `schema:"product-type" url:"product-type"`
	Region            string  `schema:"region" url:"region"`
	Probability       float64 `schema:"probability" url:"probability"`
	Source            string  `schema:"source" url:"source"`
}

// NewOpportunityForm creates an OpportunityForm with the original page
// defaults.
func NewOpportunityForm() *OpportunityForm {
	return &OpportunityForm{
		Stage:       "Estimating",
		ProductType: "Precast panels",
		Probability: 0.3,
		Source:      "Direct",
	}
}

// Validate checks OpportunityForm fields.
func (f *OpportunityForm) Validate(v *Validator) {
	v.Check(f.AccountID > 0, "account-id", "An account must be selected.")
	v.Check(strings.TrimSpace(f.Name) != "", "name", "Opportunity name is required.")
	v.Check(db.ValidStage(f.Stage), "stage", "Invalid stage.")
	v.Check(f.Value >= 0, "value", "Value cannot be negative.")
	v.Check(f.Probability >= 0 && f.Probability <= 1, "probability", "Probability must be between 0 and 1.")
	if f.ExpectedCloseDate != "" {
		v.Check(validDate(f.ExpectedCloseDate), "expected-close-date", "Expected close date must be a valid date (YYYY-MM-DD).")
	}
}

// Record converts the form into a database insert command.
func (f *OpportunityForm) Record() db.Opportunity {
	return db.Opportunity{
		AccountID:         f.AccountID,
		Name:              strings.TrimSpace(f.Name),
		Stage:             f.Stage,
		ExpectedCloseDate: f.ExpectedCloseDate,
		Value:             f.Value,
		ProductType:       f.ProductType,
		Region:            f.Region,
		Probability:       f.Probability,
		Source:            f.Source,
	}
}

// QuoteForm carries the quote page form fields.
type QuoteForm struct {
	OpportunityID    int64   `schema:"opportunity-id" url:"opportunity-id"`
	QuoteNumber      string  `schema:"quote-number" url:"quote-number"`
	Date             string  `schema:"date" url:"date"`
	Status           string  `schema:"status" url:"status"`
	TotalValue       float64 `schema:"total-value" url:"total-value"`
	Currency         string  `schema:"currency" url:"currency"`
	PriceIndexClause bool    `schema:"price-index" url:"price-index"`
}

// NewQuoteForm creates a QuoteForm with the original page defaults.
func NewQuoteForm() *QuoteForm {
	return &QuoteForm{
		QuoteNumber: "Q-0001",
		Status:      "Draft",
		Currency:    "GBP",
	}
}

// Validate checks QuoteForm fields.
func (f *QuoteForm) Validate(v *Validator) {
	v.Check(f.OpportunityID > 0, "opportunity-id", "An opportunity must be selected.")
	v.Check(strings.TrimSpace(f.QuoteNumber) != "", "quote-number", "Quote number is required.")
	v.Check(f.TotalValue >= 0, "total-value", "Total value cannot be negative.")
	v.Check(oneOf(f.Status, db.QuoteStatuses), "status", "Invalid status.")
	v.Check(oneOf(f.Currency, db.Currencies), "currency", "Invalid currency.")
	if f.Date != "" {
		v.Check(validDate(f.Date), "date", "Quote date must be a valid date (YYYY-MM-DD).")
	}
}

// Record converts the form into a database insert command.
func (f *QuoteForm) Record() db.Quote {
	return db.Quote{
		OpportunityID:    f.OpportunityID,
		QuoteNumber:      strings.TrimSpace(f.QuoteNumber),
		Date:             f.Date,
		Status:           f.Status,
		TotalValue:       f.TotalValue,
		Currency:         f.Currency,
		PriceIndexClause: f.PriceIndexClause,
	}
}

// ActivityForm carries the activity page form fields. Both parent
// references are optional; zero means none.
type ActivityForm struct {
	AccountID     int64  `schema:"account-id" url:"account-id"`
	OpportunityID int64  `schema:"opportunity-id" url:"opportunity-id"`
	Type          string `schema:"type" url:"type"`
	Subject       string `schema:"subject" url:"subject"`
	DueDate       string `schema:"due-date" url:"due-date"`
	Owner         string `schema:"owner" url:"owner"`
	Notes         string `schema:"notes" url:"notes"`
	Completed     bool   `schema:"completed" url:"completed"`
}

// NewActivityForm creates an ActivityForm with the original page defaults.
func NewActivityForm() *ActivityForm {
	return &ActivityForm{
		Type:  "Bid Due",
		Owner: "Sales",
	}
}

// Validate checks ActivityForm fields. No field is required; only the date
// format is checked when given.
func (f *ActivityForm) Validate(v *Validator) {
	if f.DueDate != "" {
		v.Check(validDate(f.DueDate), "due-date", "Due date must be a valid date (YYYY-MM-DD).")
	}
}

// Record converts the form into a database insert command.
func (f *ActivityForm) Record() db.Activity {
	a := db.Activity{
		Type:      f.Type,
		Subject:   f.Subject,
		DueDate:   f.DueDate,
		Owner:     f.Owner,
		Notes:     f.Notes,
		Completed: f.Completed,
	}
	if f.AccountID > 0 {
		accountID := f.AccountID
		a.AccountID = &accountID
	}
	if f.OpportunityID > 0 {
		opportunityID := f.OpportunityID
		a.OpportunityID = &opportunityID
	}
	return a
}

// LoginForm carries the shared password gate form.
type LoginForm struct {
	Password string `schema:"password" url:"password"`
}

// ------------------------------------------------------------------------------
// General decoding funcs
// ------------------------------------------------------------------------------

// newSchemaDecoder creates a new schema.Decoder. Unknown keys are ignored
// so browser-added fields do not fail decoding.
func newSchemaDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}

// DecodePostForm is a helper that parses and decodes a POST form body from a
// request into a destination struct (dst).
func DecodePostForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("form parse error: %v", err)
	}
	decoder := newSchemaDecoder()
	if err := decoder.Decode(dst, r.PostForm); err != nil {
		return fmt.Errorf("form decoding error: %v", err)
	}
	return nil
}
