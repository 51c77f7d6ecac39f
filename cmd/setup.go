package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gmailward/gmailward/internal/config"
	"github.com/gmailward/gmailward/internal/gmail"
	"github.com/gmailward/gmailward/internal/google"
	"github.com/gmailward/gmailward/internal/governor"
	"github.com/gmailward/gmailward/internal/instrumentation"
	"github.com/gmailward/gmailward/internal/logging"
)

// session bundles everything a command needs after setup.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	metrics  *instrumentation.MetricsServer
	svc      *gmail.Service
}

func (s *session) close(ctx context.Context) {
	if s.svc != nil {
		_ = s.svc.Close()
	}
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
	if s.provider != nil {
		_ = s.provider.Shutdown(ctx)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	}))
}

// newSession loads the config, authenticates, and connects a governed
// service. The connect itself consumes one call of the session budget.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		Enabled:        cfg.MetricsEnabled,
		ServiceName:    "gmailward",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	var metricsServer *instrumentation.MetricsServer
	if provider.Enabled() && cfg.MetricsAddr != "" {
		metricsServer, err = instrumentation.NewMetricsServer(instrumentation.MetricsServerConfig{
			Addr:     cfg.MetricsAddr,
			Provider: provider,
		})
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	fail := func(err error) (*session, error) {
		if metricsServer != nil {
			_ = metricsServer.Shutdown(ctx)
		}
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	auth := google.NewFileAuthProvider(cfg.CredentialsFile, cfg.TokenFile, cfg.ScopeList())
	if !auth.HasToken() {
		return fail(fmt.Errorf("no stored token; run 'gmailward auth' first"))
	}

	gov := governor.New(governor.Config{
		MaxCalls:    cfg.MaxAPICalls,
		AwaitPeriod: time.Duration(cfg.APIAwaitPeriod) * time.Second,
		Logger:      logger,
		Metrics:     provider.Metrics(),
	})

	svc, err := gmail.NewService(gmail.ServiceConfig{
		Auth:            auth,
		Governor:        gov,
		ProtectedLabels: cfg.ProtectedLabelList(),
		Logger:          logger,
		Metrics:         provider.Metrics(),
		Warnings:        cfg.Warnings(),
	})
	if err != nil {
		return fail(err)
	}
	if err := svc.Connect(ctx); err != nil {
		return fail(fmt.Errorf("failed to connect: %w", err))
	}

	return &session{cfg: cfg, logger: logger, provider: provider, metrics: metricsServer, svc: svc}, nil
}
