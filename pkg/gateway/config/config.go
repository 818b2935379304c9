package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Gemini credentials and model selection.
	GeminiAPIKey string
	LiveModel    string
	ChatModel    string
	ImageModel   string
	EditModel    string

	// Persistence backend: memory, postgres, or redis. Addr is the DSN
	// for postgres and host:port for redis; memory ignores it.
	StoreBackend string
	StoreAddr    string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Session WebSocket (/v1/session).
	WSMaxJSONMessageBytes int64
	WSMaxAudioFrameBytes  int
	WSPingInterval        time.Duration
	WSWriteTimeout        time.Duration
	WSReadTimeout         time.Duration

	// Document uploads carried inside analyze requests (decoded bytes).
	MaxUploadBytes int64

	// Per-key session limits. Zero disables the corresponding limit.
	MaxSessionsPerKey   int
	SessionConnectRPS   float64
	SessionConnectBurst int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("BRAINGEM_ADDR", ":8090"),
		AuthMode:              AuthMode(envOr("BRAINGEM_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:               make(map[string]struct{}),
		GeminiAPIKey:          envOr("GEMINI_API_KEY", ""),
		LiveModel:             envOr("BRAINGEM_LIVE_MODEL", ""),
		ChatModel:             envOr("BRAINGEM_CHAT_MODEL", ""),
		ImageModel:            envOr("BRAINGEM_IMAGE_MODEL", ""),
		EditModel:             envOr("BRAINGEM_EDIT_MODEL", ""),
		StoreBackend:          envOr("BRAINGEM_STORE_BACKEND", "memory"),
		StoreAddr:             envOr("BRAINGEM_STORE_ADDR", ""),
		CORSAllowedOrigins:    make(map[string]struct{}),
		WSMaxJSONMessageBytes: envInt64Or("BRAINGEM_WS_MAX_JSON_MESSAGE_BYTES", 64<<10),
		WSMaxAudioFrameBytes:  envIntOr("BRAINGEM_WS_MAX_AUDIO_FRAME_BYTES", 8192),
		WSPingInterval:        envDurationOr("BRAINGEM_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:        envDurationOr("BRAINGEM_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:         envDurationOr("BRAINGEM_WS_READ_TIMEOUT", 0),
		MaxUploadBytes:        envInt64Or("BRAINGEM_MAX_UPLOAD_BYTES", 16<<20), // 16 MiB decoded
		MaxSessionsPerKey:     envIntOr("BRAINGEM_MAX_SESSIONS_PER_KEY", 4),
		SessionConnectRPS:     envFloatOr("BRAINGEM_SESSION_CONNECT_RPS", 1),
		SessionConnectBurst:   envIntOr("BRAINGEM_SESSION_CONNECT_BURST", 5),
		ReadHeaderTimeout:     envDurationOr("BRAINGEM_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:   envDurationOr("BRAINGEM_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("BRAINGEM_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("BRAINGEM_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("BRAINGEM_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set")
	}

	switch cfg.StoreBackend {
	case "memory":
	case "postgres", "redis":
		if cfg.StoreAddr == "" {
			return Config{}, fmt.Errorf("BRAINGEM_STORE_ADDR must be set when BRAINGEM_STORE_BACKEND=%s", cfg.StoreBackend)
		}
	default:
		return Config{}, fmt.Errorf("BRAINGEM_STORE_BACKEND must be one of memory|postgres|redis")
	}

	if cfg.WSMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_WS_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_WS_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("BRAINGEM_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.MaxSessionsPerKey < 0 {
		return Config{}, fmt.Errorf("BRAINGEM_MAX_SESSIONS_PER_KEY must be >= 0")
	}
	if cfg.SessionConnectRPS < 0 {
		return Config{}, fmt.Errorf("BRAINGEM_SESSION_CONNECT_RPS must be >= 0")
	}
	if cfg.SessionConnectBurst < 0 {
		return Config{}, fmt.Errorf("BRAINGEM_SESSION_CONNECT_BURST must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("BRAINGEM_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("BRAINGEM_API_KEYS must be set when BRAINGEM_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloatOr(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
