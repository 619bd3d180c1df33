// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/docshelf/internal/api"
	"github.com/nebari-dev/docshelf/internal/api/handlers"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/blob"
	"github.com/nebari-dev/docshelf/internal/config"
	"github.com/nebari-dev/docshelf/internal/db"
	"github.com/nebari-dev/docshelf/internal/ingestion"
	"github.com/nebari-dev/docshelf/internal/logger"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/rbac"
	"github.com/nebari-dev/docshelf/internal/service"
	"github.com/nebari-dev/docshelf/internal/store"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Version string // Version string to report
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Set version in handlers
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	// Load configuration
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from CLI flag if provided
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	// Initialize logger
	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting docshelf server", "version", handlers.Version, "mode", appCfg.Server.Mode)
	if appCfg.IsProduction() && appCfg.Auth.JWTSecret == "change-me-in-production" {
		slog.Warn("Using the default JWT secret in production mode, set JWT_SECRET")
	}

	database, err := OpenDatabase(appCfg)
	if err != nil {
		return err
	}
	defer db.Close(database)

	// Create default admin user if configured
	hasher := auth.NewBcryptHasher(appCfg.Auth.BcryptCost)
	if err := db.CreateDefaultAdmin(database, hasher, db.AdminCredentialsFromEnv()); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	router, err := NewHandler(ctx, appCfg, database)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", appCfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Wait for context cancellation
		<-gctx.Done()
		slog.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("docshelf exited")
	return nil
}

// OpenDatabase connects to the configured database and migrates the schema.
func OpenDatabase(appCfg *config.Config) (*gorm.DB, error) {
	// Propagate app log level to database if not explicitly set
	if appCfg.Database.LogLevel == "" {
		appCfg.Database.LogLevel = appCfg.Log.Level
	}

	database, err := db.New(appCfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")
	return database, nil
}

// NewHandler wires stores, services and the role gate into the HTTP router.
func NewHandler(ctx context.Context, appCfg *config.Config, database *gorm.DB) (*gin.Engine, error) {
	blobs, err := blob.New(ctx, appCfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	slog.Info("File storage initialized", "backend", appCfg.Storage.Backend)

	gate, err := rbac.NewGate(api.Routes(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize route gate: %w", err)
	}

	var m *metrics.Metrics
	if appCfg.Metrics.Enabled {
		m = metrics.New()
	}

	hasher := auth.NewBcryptHasher(appCfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(appCfg.Auth.JWTSecret, appCfg.Auth.TokenTTL)
	users := store.NewUserStore(database)
	docs := store.NewDocumentStore(database)
	auditLog := audit.New(database)

	return api.NewRouter(api.Deps{
		Config:    appCfg,
		Tokens:    tokens,
		Gate:      gate,
		UserStore: users,
		Auth:      service.NewAuthService(users, hasher, tokens, auditLog, m),
		Users:     service.NewUserService(users, docs, hasher, auditLog),
		Documents: service.NewDocumentService(docs, blobs, auditLog, m),
		Ingestion: ingestion.NewClient(appCfg.Ingestion.URL, appCfg.Ingestion.Timeout),
		Metrics:   m,
	}), nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}
