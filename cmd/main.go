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
	"time"

	"github.com/okian/sensorboard/internal/adapters/http/api"
	app "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/auth"
	"github.com/okian/sensorboard/internal/config"
	"github.com/okian/sensorboard/pkg/logger"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sensorboard:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error(ctx, "service close failed", logger.Error(err))
		}
	}()

	srv, closeLog, err := newHTTPServer(cfg, svc, log)
	if err != nil {
		return err
	}
	defer closeLog()

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newHTTPServer builds the authenticator, guards and API handler from cfg.
// The returned func closes the access log file, if one was opened.
func newHTTPServer(cfg *config.Config, svc *app.Service, log logger.Logger) (*http.Server, func(), error) {
	authn, err := newAuthenticator(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	allow, err := auth.NewAllowList(cfg.AllowedIPList())
	if err != nil {
		return nil, nil, err
	}
	accessLog, closeLog, err := openAccessLog(cfg.AccessLog)
	if err != nil {
		return nil, nil, err
	}

	handler, err := api.NewServer(svc,
		api.WithAuthenticator(authn),
		api.WithAllowList(allow),
		api.WithRateLimiter(auth.NewRateLimiter(cfg.RateLimitWindow(), cfg.MaxRequests)),
		api.WithLogger(log.Named("api")),
		api.WithAccessLog(accessLog),
		api.WithTrustProxy(cfg.TrustProxy),
	)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Slog(log).Handler(), slog.LevelError),
	}, closeLog, nil
}

func newAuthenticator(cfg *config.Config, log logger.Logger) (*auth.Static, error) {
	a, err := auth.NewStatic(
		auth.Principal{Name: cfg.AdminUsername, Secret: cfg.AdminPassword, Role: auth.RoleAdmin},
		auth.Principal{Name: cfg.ViewerUsername, Secret: cfg.ViewerPassword, Role: auth.RoleViewer},
	)
	if err != nil {
		return nil, err
	}
	if cfg.AdminPassword == "" {
		log.Warn(context.Background(), "admin_password is empty; ingestion is disabled")
	}
	return a, nil
}

// openAccessLog resolves the access_log setting: "" disables it, "-" is
// stdout, anything else is a file opened for append.
func openAccessLog(dest string) (io.Writer, func(), error) {
	switch dest {
	case "":
		return nil, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, nil, fmt.Errorf("open access log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
