package auth

import (
	"context"
	"net/http"
	"strings"
)

type Principal struct {
	APIKey string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseAPIKey extracts the client credential. Browser WebSocket clients
// cannot set Authorization, so the api_key query parameter is accepted
// as a fallback.
func ParseAPIKey(r *http.Request) (string, bool) {
	if token, ok := parseBearer(r); ok {
		return token, true
	}
	if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
		return key, true
	}
	if key := strings.TrimSpace(r.URL.Query().Get("api_key")); key != "" {
		return key, true
	}
	return "", false
}

func parseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	rest, isBearer := strings.CutPrefix(authz, "Bearer ")
	if !isBearer {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}
