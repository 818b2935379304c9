// Package server assembles the HTTP surface: health endpoints and the
// /v1/session WebSocket, wrapped in the shared middleware chain.
package server

import (
	"log/slog"
	"net/http"

	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/handlers"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/lifecycle"
	livesession "github.com/guilhermexp/notesbraingem/pkg/gateway/live/session"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/live/sessions"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/mw"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/ratelimit"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

type Deps struct {
	Config config.Config
	Logger *slog.Logger

	// NewOrchestrator builds one orchestrator per WebSocket connection.
	NewOrchestrator func(onVoiceEvent func(transport.VoiceEvent)) livesession.Orchestrator

	// StoreReady probes the persistence backend for /readyz.
	StoreReady func() error
}

type Server struct {
	deps    Deps
	mux     *http.ServeMux
	tracker *sessions.Tracker
	limiter *ratelimit.Limiter
	life    *lifecycle.Lifecycle
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps:    deps,
		mux:     http.NewServeMux(),
		tracker: sessions.NewTracker(),
		limiter: ratelimit.New(ratelimit.Config{
			ConnectRPS:            deps.Config.SessionConnectRPS,
			ConnectBurst:          deps.Config.SessionConnectBurst,
			MaxConcurrentSessions: deps.Config.MaxSessionsPerKey,
		}),
		life: &lifecycle.Lifecycle{},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.deps.Config, Lifecycle: s.life, StoreReady: s.deps.StoreReady})
	s.mux.Handle("/v1/session", handlers.SessionHandler{
		Config:          s.deps.Config,
		Logger:          s.deps.Logger,
		Tracker:         s.tracker,
		Limiter:         s.limiter,
		NewOrchestrator: s.deps.NewOrchestrator,
	})
}

// Tracker exposes the live-connection tracker for graceful shutdown.
func (s *Server) Tracker() *sessions.Tracker {
	return s.tracker
}

// Lifecycle flips /readyz to draining during graceful shutdown.
func (s *Server) Lifecycle() *lifecycle.Lifecycle {
	return s.life
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.deps.Config, h)
	h = mw.CORS(s.deps.Config, h)
	h = mw.Recover(s.deps.Logger, h)
	h = mw.AccessLog(s.deps.Logger, h)
	h = mw.RequestID(h)
	return h
}
