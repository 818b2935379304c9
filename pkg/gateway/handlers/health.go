package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle

	// StoreReady probes the persistence backend; nil means no probe.
	StoreReady func() error
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		AuthMode     string   `json:"auth_mode"`
		StoreBackend string   `json:"store_backend"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Lifecycle.Draining() {
		issues = append(issues, "draining")
	}

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key not configured")
	}
	if h.Config.WSMaxJSONMessageBytes <= 0 || h.Config.WSMaxAudioFrameBytes <= 0 {
		issues = append(issues, "websocket budgets must be > 0")
	}
	if h.StoreReady != nil {
		if err := h.StoreReady(); err != nil {
			issues = append(issues, "store not reachable: "+err.Error())
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
		if h.Lifecycle.Draining() {
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:           ok,
		AuthMode:     string(h.Config.AuthMode),
		StoreBackend: h.Config.StoreBackend,
		Issues:       issues,
	})
}
