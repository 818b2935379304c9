package mw

import (
	"net/http"
	"strings"

	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-Request-ID, X-Api-Key"
	corsExposed = "X-Request-ID"
	corsMaxAge  = "600"
)

// CORS answers browser preflights and attaches response headers for
// allowlisted origins. An empty allowlist disables CORS entirely, which
// also blocks preflights: non-browser clients never send them.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	allowlist := cfg.CORSAllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		allowed := origin != "" && originAllowed(allowlist, origin)

		if isPreflight(r) {
			if !allowed {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", corsExposed)
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != ""
}

func originAllowed(allowlist map[string]struct{}, origin string) bool {
	if len(allowlist) == 0 {
		return false
	}
	_, ok := allowlist[origin]
	return ok
}
