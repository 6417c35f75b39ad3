package web

// This file describes the web server for this project.
//
// Each endpoint handler is set out as a HandlerFunc closure so the handler
// can parse only the templates it needs, as discussed in Mat Ryer's post at
//
//	https://grafana.com/blog/how-i-write-http-services-in-go-after-13-years/
//
// Database read errors on a page are deliberately not fatal: they are shown
// inline on the page that triggered them and every other page keeps
// working. ServerError is reserved for programming errors such as template
// or form decoding failures.

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"crm/config"
	"crm/db"
)

//go:embed static
var StaticEmbeddedFS embed.FS

//go:embed templates
var TemplatesEmbeddedFS embed.FS

// WebApp is the configuration object for the web server.
type WebApp struct {
	log        *log.Logger
	cfg        *config.Config
	db         *db.DB
	staticFS   fs.FS // the fs holding the static web resources.
	templateFS fs.FS // the fs holding the web templates.
	sessions   *scs.SessionManager
	server     *http.Server
	handler    atomic.Value // current http.Handler, swapped on template reload
}

// New initialises a WebApp.
func New(
	logger *log.Logger,
	cfg *config.Config,
	database *db.DB,
	staticFS fs.FS,
	templateFS fs.FS,
) (*WebApp, error) {

	if logger == nil {
		return nil, errors.New("no logger provided")
	}
	if database == nil {
		return nil, errors.New("no database provided")
	}

	sessions := scs.New()
	sessions.Lifetime = 12 * time.Hour
	sessions.Cookie.HttpOnly = true

	server := &http.Server{
		Addr:              cfg.Web.ListenAddress,
		ReadHeaderTimeout: time.Duration(30 * time.Second),
		WriteTimeout:      time.Duration(30 * time.Second),
		MaxHeaderBytes:    1 << 19, // 100k ish
	}

	webApp := &WebApp{
		log:        logger,
		cfg:        cfg,
		db:         database,
		staticFS:   staticFS,
		templateFS: templateFS,
		sessions:   sessions,
		server:     server,
	}
	return webApp, nil
}

// StartServer starts a WebApp, blocking until the context is cancelled or
// the server fails. In development mode the template directory is watched
// and the routes (and so the parsed templates) are rebuilt on change.
func (web *WebApp) StartServer(ctx context.Context) error {

	web.handler.Store(web.routes())
	web.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.handler.Load().(http.Handler).ServeHTTP(w, r)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		web.log.Info("starting server", "address", web.cfg.Web.ListenAddress)
		err := web.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return web.server.Shutdown(shutdownCtx)
	})

	if web.cfg.Web.DevelopmentMode && web.cfg.Web.TemplatesPath != "" {
		g.Go(func() error {
			return web.watchTemplates(ctx)
		})
	}

	return g.Wait()
}

// routes connects all of the endpoints and provides middleware.
func (web *WebApp) routes() http.Handler {

	r := mux.NewRouter()

	fileServer := http.FileServerFS(web.staticFS)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer))

	r.Handle("/login", web.handleLogin())
	r.Handle("/logout", web.handleLogout())

	r.Handle("/", web.handleRoot())
	r.Handle("/dashboard", web.requireLogin(web.handleDashboard()))
	r.Handle("/accounts", web.requireLogin(web.handleAccounts()))
	r.Handle("/contacts", web.requireLogin(web.handleContacts()))
	r.Handle("/opportunities", web.requireLogin(web.handleOpportunities()))
	r.Handle("/quotes", web.requireLogin(web.handleQuotes()))
	r.Handle("/activities", web.requireLogin(web.handleActivities()))
	r.Handle("/reports", web.requireLogin(web.handleReports()))
	r.Handle("/settings", web.requireLogin(web.handleSettings()))

	r.Handle("/export/{table:[a-z_]+}.csv", web.requireLogin(web.handleExportCSV()))
	r.Handle("/export/crm.xlsx", web.requireLogin(web.handleExportWorkbook()))

	handler := web.sessions.LoadAndSave(enforceCSRF(r))
	return handlers.LoggingHandler(os.Stdout, handler)
}

// pageData is the common data passed to every page template.
type pageData struct {
	PageTitle   string
	CompanyName string
	CurrentPage string
	Saved       bool   // set after a successful insert redirect
	DBError     string // inline database error for this page only
}

// newPageData builds the common page data for a request.
func (web *WebApp) newPageData(r *http.Request, title, current string) pageData {
	return pageData{
		PageTitle:   title,
		CompanyName: web.cfg.CompanyName,
		CurrentPage: current,
		Saved:       r.URL.Query().Get("saved") == "1",
	}
}

// handleRoot deals with http calls to "/" by redirecting to the dashboard.
func (web *WebApp) handleRoot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
}

// handleDashboard serves the pipeline-at-a-glance page.
func (web *WebApp) handleDashboard() http.Handler {

	name := "dashboard.html"
	tpls := []string{"base.html", "dashboard.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		data := struct {
			pageData
			Bars   []chartBar
			NoData bool
		}{
			pageData: web.newPageData(r, "Dashboard", "dashboard"),
		}

		totals, err := web.db.StageTotals(ctx)
		if err != nil {
			data.DBError = err.Error()
			web.render(w, r, templates, name, data)
			return
		}
		data.Bars = newChartBars(totals)
		data.NoData = len(totals) == 0

		web.render(w, r, templates, name, data)
	})
}

// handleAccounts serves the account form and listing, and creates accounts
// on POST.
func (web *WebApp) handleAccounts() http.Handler {

	name := "accounts.html"
	tpls := []string{"base.html", "accounts.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := &AccountForm{PaymentTerms: "30 days"}
		validator := NewValidator()

		data := struct {
			pageData
			Form        *AccountForm
			Validator   *Validator
			RiskRatings []string
			Types       []string
			Accounts    []db.Account
		}{
			pageData:    web.newPageData(r, "Accounts", "accounts"),
			Form:        form,
			Validator:   validator,
			RiskRatings: db.RiskRatings,
			Types:       db.AccountTypes,
		}

		if r.Method == http.MethodPost {
			if err := DecodePostForm(r, form); err != nil {
				web.ServerError(w, r, err)
				return
			}
			form.Validate(validator)
			if validator.Valid() {
				if _, err := web.db.InsertAccount(ctx, form.Record()); err != nil {
					data.DBError = err.Error()
				} else {
					http.Redirect(w, r, "/accounts?saved=1", http.StatusSeeOther)
					return
				}
			}
		}

		accounts, err := web.db.Accounts(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Accounts = accounts

		web.render(w, r, templates, name, data)
	})
}

// handleContacts serves the contact form and listing.
func (web *WebApp) handleContacts() http.Handler {

	name := "contacts.html"
	tpls := []string{"base.html", "contacts.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := &ContactForm{}
		validator := NewValidator()

		data := struct {
			pageData
			Form           *ContactForm
			Validator      *Validator
			AccountOptions []selectOption
			Contacts       []viewContact
		}{
			pageData:  web.newPageData(r, "Contacts", "contacts"),
			Form:      form,
			Validator: validator,
		}

		if r.Method == http.MethodPost {
			if err := DecodePostForm(r, form); err != nil {
				web.ServerError(w, r, err)
				return
			}
			form.Validate(validator)
			if validator.Valid() {
				if _, err := web.db.InsertContact(ctx, form.Record()); err != nil {
					data.DBError = err.Error()
				} else {
					http.Redirect(w, r, "/contacts?saved=1", http.StatusSeeOther)
					return
				}
			}
		}

		accounts, err := web.db.Accounts(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.AccountOptions = accountOptions(accounts)

		contacts, err := web.db.Contacts(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Contacts = newViewContacts(contacts)

		web.render(w, r, templates, name, data)
	})
}

// handleOpportunities serves the opportunity form and the stage board.
func (web *WebApp) handleOpportunities() http.Handler {

	name := "opportunities.html"
	tpls := []string{"base.html", "opportunities.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := NewOpportunityForm()
		validator := NewValidator()

		data := struct {
			pageData
			Form           *OpportunityForm
			Validator      *Validator
			Stages         []string
			AccountOptions []selectOption
			Board          []viewBoardColumn
			NoData         bool
		}{
			pageData:  web.newPageData(r, "Opportunities", "opportunities"),
			Form:      form,
			Validator: validator,
			Stages:    db.Stages,
		}

		if r.Method == http.MethodPost {
			if err := DecodePostForm(r, form); err != nil {
				web.ServerError(w, r, err)
				return
			}
			form.Validate(validator)
			if validator.Valid() {
				if _, err := web.db.InsertOpportunity(ctx, form.Record()); err != nil {
					data.DBError = err.Error()
				} else {
					http.Redirect(w, r, "/opportunities?saved=1", http.StatusSeeOther)
					return
				}
			}
		}

		accounts, err := web.db.Accounts(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.AccountOptions = accountOptions(accounts)

		board, err := web.db.Board(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Board = newViewBoard(board)
		data.NoData = len(board) == 0

		web.render(w, r, templates, name, data)
	})
}

// handleQuotes serves the quote form and listing.
func (web *WebApp) handleQuotes() http.Handler {

	name := "quotes.html"
	tpls := []string{"base.html", "quotes.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := NewQuoteForm()
		validator := NewValidator()

		data := struct {
			pageData
			Form               *QuoteForm
			Validator          *Validator
			Statuses           []string
			Currencies         []string
			OpportunityOptions []selectOption
			Quotes             []viewQuote
		}{
			pageData:   web.newPageData(r, "Quotes", "quotes"),
			Form:       form,
			Validator:  validator,
			Statuses:   db.QuoteStatuses,
			Currencies: db.Currencies,
		}

		if r.Method == http.MethodPost {
			if err := DecodePostForm(r, form); err != nil {
				web.ServerError(w, r, err)
				return
			}
			form.Validate(validator)
			if validator.Valid() {
				if _, err := web.db.InsertQuote(ctx, form.Record()); err != nil {
					data.DBError = err.Error()
				} else {
					http.Redirect(w, r, "/quotes?saved=1", http.StatusSeeOther)
					return
				}
			}
		}

		opportunities, err := web.db.Opportunities(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.OpportunityOptions = opportunityOptions(opportunities)

		quotes, err := web.db.Quotes(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Quotes = newViewQuotes(quotes)

		web.render(w, r, templates, name, data)
	})
}

// handleActivities serves the activity form and the open activity listing.
func (web *WebApp) handleActivities() http.Handler {

	name := "activities.html"
	tpls := []string{"base.html", "activities.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := NewActivityForm()
		validator := NewValidator()

		data := struct {
			pageData
			Form               *ActivityForm
			Validator          *Validator
			Types              []string
			AccountOptions     []selectOption
			OpportunityOptions []selectOption
			Activities         []db.Activity
		}{
			pageData:  web.newPageData(r, "Activities", "activities"),
			Form:      form,
			Validator: validator,
			Types:     db.ActivityTypes,
		}

		if r.Method == http.MethodPost {
			if err := DecodePostForm(r, form); err != nil {
				web.ServerError(w, r, err)
				return
			}
			form.Validate(validator)
			if validator.Valid() {
				if _, err := web.db.InsertActivity(ctx, form.Record()); err != nil {
					data.DBError = err.Error()
				} else {
					http.Redirect(w, r, "/activities?saved=1", http.StatusSeeOther)
					return
				}
			}
		}

		accounts, err := web.db.Accounts(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.AccountOptions = accountOptions(accounts)

		opportunities, err := web.db.Opportunities(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.OpportunityOptions = opportunityOptions(opportunities)

		activities, err := web.db.OpenActivities(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Activities = activities

		web.render(w, r, templates, name, data)
	})
}

// handleReports serves the stage report and the overdue risk report.
func (web *WebApp) handleReports() http.Handler {

	name := "reports.html"
	tpls := []string{"base.html", "reports.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		data := struct {
			pageData
			Bars    []chartBar
			Overdue []viewOpportunity
			NoData  bool
		}{
			pageData: web.newPageData(r, "Reports", "reports"),
		}

		totals, err := web.db.StageTotals(ctx)
		if err != nil {
			data.DBError = err.Error()
		}
		data.Bars = newChartBars(totals)
		data.NoData = len(totals) == 0

		// Overdue is evaluated against the server's local date at
		// report-generation time.
		overdue, err := web.db.OverdueOpportunities(ctx, time.Now())
		if err != nil {
			data.DBError = err.Error()
		}
		data.Overdue = newViewOpportunities(overdue)

		web.render(w, r, templates, name, data)
	})
}

// handleSettings serves the settings and export page.
func (web *WebApp) handleSettings() http.Handler {

	name := "settings.html"
	tpls := []string{"base.html", "settings.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		data := struct {
			pageData
			Tables      []string
			Dialect     string
			GateEnabled bool
			Warning     string
		}{
			pageData:    web.newPageData(r, "Settings", "settings"),
			Tables:      db.TableNames(),
			Dialect:     string(web.db.Dialect()),
			GateEnabled: web.cfg.GateEnabled(),
			Warning:     r.URL.Query().Get("warning"),
		}

		web.render(w, r, templates, name, data)
	})
}

// handleExportCSV serves a full-table CSV download. A failing table is a
// warning redirect back to settings; other exports keep working.
func (web *WebApp) handleExportCSV() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()
		table := mux.Vars(r)["table"]

		// Buffer first so a failed query does not produce a broken
		// download.
		var buf bytes.Buffer
		if err := web.db.ExportCSV(ctx, table, &buf); err != nil {
			web.log.Warn("table export failed", "table", table, "error", err)
			http.Redirect(w, r,
				"/settings?warning="+template.URLQueryEscaper(fmt.Sprintf("Could not export %s: %v", table, err)),
				http.StatusSeeOther)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".csv"))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})
}

// handleExportWorkbook serves all six tables as one xlsx workbook.
func (web *WebApp) handleExportWorkbook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		f, warnings, err := web.db.ExportWorkbook(ctx)
		if err != nil {
			web.ServerError(w, r, err)
			return
		}
		defer f.Close()
		for _, warning := range warnings {
			web.log.Warn("workbook export", "warning", warning)
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="crm.xlsx"`)
		w.WriteHeader(http.StatusOK)
		if err := f.Write(w); err != nil {
			web.log.Error("workbook write failed", "error", err)
		}
	})
}

/* -------------------------------------------------------------------------- */
// Helpers
/* -------------------------------------------------------------------------- */

// render renders the specified template.
func (web *WebApp) render(w http.ResponseWriter, r *http.Request, template *template.Template, filename string, data any) {
	buf := new(bytes.Buffer)
	err := template.ExecuteTemplate(buf, filename, data)
	if err != nil {
		web.log.Error("template rendering error", "template", filename, "error", err)
		web.ServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// ServerError logs and returns an internal server error. The error should
// contain the information needed for logging.
func (web *WebApp) ServerError(w http.ResponseWriter, r *http.Request, errs ...error) {
	err := errors.Join(errs...)
	web.log.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// clientError returns a client error.
func (web *WebApp) clientError(w http.ResponseWriter, message string, status int) {
	if message == "" {
		message = http.StatusText(status)
	}
	http.Error(w, message, status)
}
