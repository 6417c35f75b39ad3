package web

// auth.go implements the shared-password gate. This is deliberately not a
// real authentication system: one password for everyone, no per-user
// identity. When no password is configured the gate is disabled entirely.

import (
	"crypto/subtle"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// sessionAuthKey marks a session as having passed the gate.
const sessionAuthKey = "authenticated"

// passwordMatches compares a submitted password against the configured
// secret. A secret that looks like a bcrypt hash is compared with bcrypt;
// anything else is compared as plaintext in constant time.
func passwordMatches(secret, submitted string) bool {
	if strings.HasPrefix(secret, "$2a$") || strings.HasPrefix(secret, "$2b$") || strings.HasPrefix(secret, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(submitted)) == 1
}

// requireLogin redirects to /login until the session has passed the gate.
// With no password configured the middleware is a pass-through.
func (web *WebApp) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !web.cfg.GateEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		if !web.sessions.GetBool(r.Context(), sessionAuthKey) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleLogin serves the password gate form and checks submissions.
func (web *WebApp) handleLogin() http.Handler {

	name := "login.html"
	tpls := []string{"base.html", "login.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if !web.cfg.GateEnabled() {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}

		data := struct {
			pageData
			Failed bool
		}{
			pageData: web.newPageData(r, "Sign in", "login"),
		}

		if r.Method != http.MethodPost {
			web.render(w, r, templates, name, data)
			return
		}

		var form LoginForm
		if err := DecodePostForm(r, &form); err != nil {
			web.ServerError(w, r, err)
			return
		}
		if !passwordMatches(web.cfg.AccessPassword, form.Password) {
			web.log.Warn("failed login attempt", "remote", r.RemoteAddr)
			data.Failed = true
			web.render(w, r, templates, name, data)
			return
		}

		// Renew the token on privilege change.
		if err := web.sessions.RenewToken(r.Context()); err != nil {
			web.ServerError(w, r, err)
			return
		}
		web.sessions.Put(r.Context(), sessionAuthKey, true)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
}

// handleLogout clears the session gate.
func (web *WebApp) handleLogout() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := web.sessions.Destroy(r.Context()); err != nil {
			web.ServerError(w, r, err)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}
