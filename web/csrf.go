package web

import (
	"log"
	"net/http"
	"slices"
)

// safeMethods are the request methods that cannot change data.
var safeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}

// enforceCSRF applies Go 1.25's cross-origin protection to data-changing
// requests, additionally rejecting agents that send neither a
// Sec-Fetch-Site nor an Origin header since those cannot be checked.
func enforceCSRF(next http.Handler) http.Handler {

	cop := http.NewCrossOriginProtection()
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CSRF check failed", http.StatusForbidden)
	}))
	protected := cop.Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if slices.Contains(safeMethods, r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Sec-Fetch-Site") == "" && r.Header.Get("Origin") == "" {
			log.Printf("Rejected request from %s: missing Sec-Fetch-Site and/or Origin headers", r.RemoteAddr)
			http.Error(w, "Agent or browser not supported.", http.StatusForbidden)
			return
		}

		protected.ServeHTTP(w, r)
	})
}
