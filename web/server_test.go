package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"crm/config"
	"crm/db"
	"crm/internal"
)

var webTestCounter int64

// newTestWebApp builds a WebApp over a fresh in-memory database with the
// embedded templates and static files.
func newTestWebApp(t *testing.T, password string) (*WebApp, http.Handler) {
	t.Helper()

	n := atomic.AddInt64(&webTestCounter, 1)
	database, err := db.NewConnection("", fmt.Sprintf("file:webtest%d?mode=memory&cache=shared", n))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	cfg := &config.Config{
		CompanyName:    "Rockland Concrete",
		AccessPassword: password,
		Web: config.WebConfig{
			ListenAddress: "127.0.0.1:0",
		},
	}

	staticFS, err := internal.NewFileMount("static", StaticEmbeddedFS, "")
	if err != nil {
		t.Fatal(err)
	}
	templatesFS, err := internal.NewFileMount("templates", TemplatesEmbeddedFS, "")
	if err != nil {
		t.Fatal(err)
	}

	webApp, err := New(log.New(io.Discard), cfg, database, staticFS, templatesFS)
	if err != nil {
		t.Fatal(err)
	}
	return webApp, webApp.routes()
}

// do runs a request against the handler, marking POSTs as same-origin so
// they pass the CSRF middleware.
func do(handler http.Handler, r *http.Request) *httptest.ResponseRecorder {
	if r.Method == http.MethodPost {
		r.Header.Set("Sec-Fetch-Site", "same-origin")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func getRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	r, err := http.NewRequest("GET", target, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRootRedirectsToDashboard(t *testing.T) {
	_, handler := newTestWebApp(t, "")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/"))
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("got location %q, want /dashboard", loc)
	}
}

func TestDashboardNoData(t *testing.T) {
	_, handler := newTestWebApp(t, "")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/dashboard"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "No opportunities yet") {
		t.Error("expected the empty pipeline notice")
	}
}

func TestGateRedirectsWhenEnabled(t *testing.T) {
	_, handler := newTestWebApp(t, "concrete")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/dashboard"))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("got location %q, want /login", loc)
	}
}

// TestLoginFlow signs in through the gate and reuses the session cookie.
func TestLoginFlow(t *testing.T) {

	_, handler := newTestWebApp(t, "concrete")

	// A wrong password re-renders the form.
	w := do(handler, postRequest(t, "http://127.0.0.1:8080/login", &LoginForm{Password: "cement"}))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "not right") {
		t.Error("expected a failed login notice")
	}

	// The right password redirects to the dashboard with a session.
	w = do(handler, postRequest(t, "http://127.0.0.1:8080/login", &LoginForm{Password: "concrete"}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("got location %q, want /dashboard", loc)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	// The session passes the gate.
	r := getRequest(t, "http://127.0.0.1:8080/dashboard")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w = do(handler, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
}

// TestAccountCreate posts a new account and checks the redirect and the
// subsequent listing.
func TestAccountCreate(t *testing.T) {

	_, handler := newTestWebApp(t, "")

	form := &AccountForm{
		Name:       "Acme Precast",
		Type:       "Subcontractor",
		RiskRating: "Low",
	}
	w := do(handler, postRequest(t, "http://127.0.0.1:8080/accounts", form))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/accounts?saved=1" {
		t.Errorf("got location %q, want /accounts?saved=1", loc)
	}

	w = do(handler, getRequest(t, "http://127.0.0.1:8080/accounts?saved=1"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Acme Precast") {
		t.Error("expected the new account in the listing")
	}
	if !strings.Contains(body, "Saved.") {
		t.Error("expected the saved flash")
	}
}

// TestAccountCreateInvalid posts an invalid account and checks the form
// re-renders with the field error and nothing is saved.
func TestAccountCreateInvalid(t *testing.T) {

	webApp, handler := newTestWebApp(t, "")

	w := do(handler, postRequest(t, "http://127.0.0.1:8080/accounts", &AccountForm{Name: "  "}))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "Account name is required.") {
		t.Error("expected the name field error")
	}

	accounts, err := webApp.db.Accounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accounts))
	}
}

// TestExportCSVDownload checks headers and content of a table download.
func TestExportCSVDownload(t *testing.T) {

	webApp, handler := newTestWebApp(t, "")
	_, err := webApp.db.InsertAccount(context.Background(), db.Account{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	w := do(handler, getRequest(t, "http://127.0.0.1:8080/export/accounts.csv"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("got content type %q, want text/csv", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "accounts.csv") {
		t.Errorf("got content disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d csv lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,name") {
		t.Errorf("unexpected csv header %q", lines[0])
	}
	if !strings.Contains(lines[1], "Acme") {
		t.Errorf("unexpected csv row %q", lines[1])
	}
}

func TestExportUnknownTableWarns(t *testing.T) {
	_, handler := newTestWebApp(t, "")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/export/sqlite_master.csv"))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/settings?warning=") {
		t.Errorf("got location %q, want a settings warning", loc)
	}
}

func TestExportWorkbookDownload(t *testing.T) {
	_, handler := newTestWebApp(t, "")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/export/crm.xlsx"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheet") {
		t.Errorf("got content type %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}

func TestStaticFileServed(t *testing.T) {
	_, handler := newTestWebApp(t, "")
	w := do(handler, getRequest(t, "http://127.0.0.1:8080/static/style.css"))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
}
