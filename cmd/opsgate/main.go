package main

import (
	"context"
	"log"
	"log/slog"
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

	"github.com/calegria/opsgate/internal/adapter/engine"
	"github.com/calegria/opsgate/internal/adapter/fsm"
	"github.com/calegria/opsgate/internal/adapter/otel"
	riveradapter "github.com/calegria/opsgate/internal/adapter/river"
	"github.com/calegria/opsgate/internal/adapter/sqlite"
	"github.com/calegria/opsgate/internal/app"

	handler "github.com/calegria/opsgate/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("opsgate: %v", err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "opsgate.db")
	engineMode := envOrDefault("ENGINE_MODE", "log")
	engineURL := envOrDefault("ENGINE_URL", "http://localhost:5678")
	engineTimeout, err := time.ParseDuration(envOrDefault("ENGINE_TIMEOUT", "10s"))
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx := context.Background()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		return err
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return err
	}
	defer store.Close()

	catalogRepo := sqlite.NewCatalogRepository(store)
	tenantRepo := sqlite.NewTenantRepository(store)
	entitlementRepo := sqlite.NewEntitlementRepository(store)
	instanceRepo := otel.NewTracingInstanceRepository(sqlite.NewInstanceRepository(store))
	usageRepo := sqlite.NewUsageRepository(store)
	requestRepo := sqlite.NewPurchaseRequestRepository(store)
	notificationRepo := sqlite.NewNotificationRepository(store)

	automation, err := engine.New(engineMode, engineURL, engineTimeout)
	if err != nil {
		return err
	}
	automation = otel.NewTracingEngine(automation)

	// --- Async queue ---
	riverClient, err := riveradapter.Setup(ctx, db, notificationRepo, entitlementRepo)
	if err != nil {
		return err
	}
	if err := riverClient.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Error("river shutdown", "error", err)
		}
	}()

	publisher := otel.NewTracingPublisher(riveradapter.NewPublisher(riverClient))

	// --- Application ---
	validator := fsm.New()
	catalogSvc := app.NewCatalogService(catalogRepo, tenantRepo)
	entitlementSvc := app.NewEntitlementService(catalogRepo, tenantRepo, entitlementRepo, requestRepo, publisher)
	lifecycleSvc := app.NewLifecycleService(catalogRepo, tenantRepo, entitlementRepo, instanceRepo, automation, validator, publisher)
	vaultSvc := app.NewVaultService(tenantRepo, instanceRepo, lifecycleSvc)
	usageSvc := app.NewUsageService(tenantRepo, entitlementRepo, usageRepo, instanceRepo, publisher)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("opsgate", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("opsgate", "0.1.0"))
	handler.Register(api, catalogSvc, entitlementSvc, lifecycleSvc, vaultSvc, usageSvc, notificationRepo)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("opsgate listening", "port", port, "engine_mode", engineMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	slog.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
