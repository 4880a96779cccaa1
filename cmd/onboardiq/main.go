package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.uber.org/zap"

	"github.com/onboardiq/onboardiq/internal/adapter/billing"
	"github.com/onboardiq/onboardiq/internal/adapter/fsm"
	"github.com/onboardiq/onboardiq/internal/adapter/sqlite"
	"github.com/onboardiq/onboardiq/internal/app"
	"github.com/onboardiq/onboardiq/internal/config"
	"github.com/onboardiq/onboardiq/internal/domain"
	"github.com/onboardiq/onboardiq/internal/logging"
	"github.com/onboardiq/onboardiq/internal/token"

	handler "github.com/onboardiq/onboardiq/internal/adapter/http"
	otelAdapter "github.com/onboardiq/onboardiq/internal/adapter/otel"
	riverAdapter "github.com/onboardiq/onboardiq/internal/adapter/river"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("onboardiq: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// --- Observability ---
	providers, err := otelAdapter.Setup(ctx, otelAdapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", zap.Error(err))
		}
	}()

	// --- Adapters (out) ---
	db, err := otelAdapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer store.Close()

	riverClient, err := riverAdapter.Setup(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("river setup: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Warn("river stop", zap.Error(err))
		}
	}()

	var gateway domain.BillingGateway = billing.Disabled{}
	if cfg.BillingAPIURL != "" {
		gateway = billing.NewClient(cfg.BillingAPIURL)
	}

	sessions := otelAdapter.NewTracingSessionStore(store.Sessions)

	// --- Application ---
	svc := app.NewOnboardingService(app.Deps{
		Sessions:    sessions,
		Compensator: sessions,
		Tenants:     store.Tenants,
		Accounts:    store.Accounts,
		Billing:     gateway,
		Notifier:    otelAdapter.NewTracingNotifier(riverAdapter.NewNotifier(riverClient)),
		Validator:   fsm.New(),
		Tokens:      token.NewManager(cfg.VerificationTokenTTL),
		Logger:      logger,
	})

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("onboardiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("onboardiq", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("onboardiq listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}
