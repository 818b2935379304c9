// Package mw holds the HTTP middleware chain shared by every route:
// request ids, access logging, panic recovery, CORS, and API-key auth.
package mw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/guilhermexp/notesbraingem/pkg/core"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/auth"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
)

type requestIDKey struct{}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID echoes a caller-supplied X-Request-ID or mints one, and
// carries it in both the response header and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func newRequestID() string {
	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand should not fail in practice; fall back to time-based entropy.
		return "req_" + hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))
	}
	return "req_" + hex.EncodeToString(b[:])
}

// Auth resolves an API key per the configured mode. In required mode a
// missing or unknown key is a 401; in optional mode only a wrong key is.
func Auth(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.AuthMode == config.AuthModeDisabled {
			next.ServeHTTP(w, r)
			return
		}

		principal, authErr := authenticate(cfg, r)
		if authErr != nil {
			denyJSON(w, http.StatusUnauthorized, authErr)
			return
		}
		if principal != nil {
			r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

func authenticate(cfg config.Config, r *http.Request) (*auth.Principal, *core.Error) {
	key, present := auth.ParseAPIKey(r)
	if !present {
		if cfg.AuthMode == config.AuthModeRequired {
			return nil, core.NewInvalidRequestError("missing api key")
		}
		return nil, nil
	}
	if _, known := cfg.APIKeys[key]; !known {
		return nil, core.NewInvalidRequestError("invalid api key")
	}
	return &auth.Principal{APIKey: key}, nil
}

// Recover converts handler panics into a 500 instead of tearing down
// the whole listener goroutine.
func Recover(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if logger != nil {
					logger.Error("handler panic", "panic", v, "path", r.URL.Path)
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		reqID, _ := RequestIDFrom(r.Context())
		logger.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

func denyJSON(w http.ResponseWriter, status int, cause *core.Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error *core.Error `json:"error"`
	}{Error: cause})
}
