package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/config"
	"speechworks/internal/database"
	"speechworks/internal/handlers"
	"speechworks/internal/logging"
	"speechworks/internal/repository"
	"speechworks/internal/service"
	"speechworks/internal/telemetry"
	"speechworks/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "speechworks: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		Enabled: cfg.OTelEnabled,
		Stdout:  cfg.OTelStdout,
	})
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewMetrics(telemetry.Meter(""))
	if err != nil {
		return err
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", zap.String("type", cfg.DatabaseType))

	migrations, err := database.MigrationsFS(cfg.MigrationsPath)
	if err != nil {
		return err
	}
	if err := db.RunMigrations(ctx, migrations, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.SeedActivities {
		if _, err := service.SeedCatalog(ctx, db, logger); err != nil {
			logger.Warn("failed to seed activity catalog", zap.Error(err))
		}
	}

	// Initialize repositories
	activityRepo := repository.NewActivityRepository(db)
	clientRepo := repository.NewClientRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	// Initialize services
	notifier, err := service.NewEmailNotifier(ctx, service.EmailOptions{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SESFromName,
		ToEmail:   cfg.NotifyEmail,
	}, logger)
	if err != nil {
		return err
	}
	sessionService := service.NewSessionService(sessionRepo, notifier, logger, metrics)
	catalogService := service.NewCatalogService(activityRepo, clientRepo)
	practiceService := service.NewPracticeService(sessionRepo, progressRepo, logger)
	progressService := service.NewProgressService(progressRepo, clientRepo)

	registry := workspace.NewRegistry(workspace.Deps{
		Sessions:             sessionService,
		Catalog:              catalogService,
		Practice:             practiceService,
		Logger:               logger,
		Metrics:              metrics,
		AutoCompleteInterval: cfg.AutoCompleteInterval,
		RetryOffsets:         cfg.HandoffRetryDelays,
		IdleTimeout:          cfg.WorkspaceIdleTimeout,
	})

	// Initialize handlers
	router := handlers.NewRouter(handlers.Handlers{
		Catalog:  handlers.NewCatalogHandler(catalogService, progressService, logger),
		Sessions: handlers.NewSessionHandler(registry, sessionService, logger),
		Practice: handlers.NewPracticeHandler(registry, logger),
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			registry.CloseAll()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	registry.CloseAll()
	if terr := shutdownTelemetry(shutdownCtx); terr != nil {
		logger.Warn("failed to flush metrics", zap.Error(terr))
	}
	return err
}
