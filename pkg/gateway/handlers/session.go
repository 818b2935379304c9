package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guilhermexp/notesbraingem/pkg/gateway/auth"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
	livesession "github.com/guilhermexp/notesbraingem/pkg/gateway/live/session"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/live/sessions"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/ratelimit"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

// SessionHandler upgrades /v1/session to a WebSocket and runs one live
// session per connection.
type SessionHandler struct {
	Config  config.Config
	Logger  *slog.Logger
	Tracker *sessions.Tracker
	Limiter *ratelimit.Limiter

	NewOrchestrator func(onVoiceEvent func(transport.VoiceEvent)) livesession.Orchestrator
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.Limiter != nil {
		key := ""
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			key = ratelimit.KeyFromAPIKey(p.APIKey)
		}
		decision := h.Limiter.AcquireSession(key, time.Now())
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
			http.Error(w, "session limit reached", http.StatusTooManyRequests)
			return
		}
		defer decision.Permit.Release()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	var unregister func()
	if h.Tracker != nil {
		unregister = h.Tracker.Register(cancel)
		defer unregister()
	}

	ls := livesession.New(livesession.Deps{
		Config: livesession.Config{
			MaxJSONMessageBytes: h.Config.WSMaxJSONMessageBytes,
			MaxAudioFrameBytes:  h.Config.WSMaxAudioFrameBytes,
			MaxUploadBytes:      h.Config.MaxUploadBytes,
			PingInterval:        h.Config.WSPingInterval,
			WriteTimeout:        h.Config.WSWriteTimeout,
			ReadTimeout:         h.Config.WSReadTimeout,
		},
		Logger:          h.Logger,
		NewOrchestrator: h.NewOrchestrator,
	})
	if err := ls.Run(ctx, conn); err != nil && h.Logger != nil {
		h.Logger.Warn("live session ended", "error", err)
	}
}

// checkOrigin admits non-browser clients (no Origin header) and any
// origin on the CORS allowlist. An empty allowlist admits everything,
// matching the CORS middleware's posture for non-browser deployments.
func (h SessionHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
