// Command braingemd runs the knowledge-session daemon: it exposes the
// /v1/session WebSocket and drives one session orchestrator per
// connected client against the Gemini API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/guilhermexp/notesbraingem/internal/dotenv"
	"github.com/guilhermexp/notesbraingem/pkg/gateway/config"
	livesession "github.com/guilhermexp/notesbraingem/pkg/gateway/live/session"
	gatewayserver "github.com/guilhermexp/notesbraingem/pkg/gateway/server"
	"github.com/guilhermexp/notesbraingem/pkg/providers/gemini"
	"github.com/guilhermexp/notesbraingem/pkg/session"
	"github.com/guilhermexp/notesbraingem/pkg/store"
	"github.com/guilhermexp/notesbraingem/pkg/transport"
)

type daemonDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, backend, addr string) (store.Store, error)
	newGemini    func(ctx context.Context, cfg gemini.Config) (*gemini.Client, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultDaemonDeps() daemonDeps {
	return daemonDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  store.Open,
		newGemini:  gemini.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runDaemon(ctx context.Context, logger *slog.Logger, deps daemonDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newGemini == nil {
		return errors.New("missing daemon dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := deps.newGemini(ctx, gemini.Config{
		APIKey:     cfg.GeminiAPIKey,
		LiveModel:  cfg.LiveModel,
		ChatModel:  cfg.ChatModel,
		ImageModel: cfg.ImageModel,
		EditModel:  cfg.EditModel,
	})
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}

	st, err := deps.openStore(ctx, cfg.StoreBackend, cfg.StoreAddr)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	gw := gatewayserver.New(gatewayserver.Deps{
		Config: cfg,
		Logger: logger,
		NewOrchestrator: func(onVoiceEvent func(transport.VoiceEvent)) livesession.Orchestrator {
			return session.New(session.Config{
				Engine:       client.Engine(),
				Voice:        client.Voice(),
				Text:         client.Text(),
				Images:       client.Images(),
				Store:        st,
				OnVoiceEvent: onVoiceEvent,
			})
		},
		StoreReady: func() error {
			_, _, err := st.Load(context.Background(), "readyz-probe")
			return err
		},
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting daemon",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"store_backend", cfg.StoreBackend,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().Drain()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.Tracker().Wait(waitCtx) {
		gw.Tracker().CancelAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("daemon stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps daemonDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "braingemd: %v\n", err)
		return 1
	}

	if err := runDaemon(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "braingemd: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultDaemonDeps()))
}
