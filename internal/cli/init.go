// Package cli provides common initialization utilities shared by
// cmd/moneywise, cmd/moneywise-gateway and cmd/moneywise-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneywise/internal/config"
	"moneywise/internal/localstore"
	"moneywise/internal/log"
	"moneywise/internal/remote"
	"moneywise/internal/services"
)

// SetupLogger initializes structured logging for the given component and
// sets it as the process default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitLocalStore opens the SQLite-backed local store.
// Returns the store or exits the process on failure.
func InitLocalStore(logger *log.Logger, dbPath string) *localstore.Store {
	store, err := localstore.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open local store", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return store
}

// InitRemote builds the sync client when an endpoint is configured,
// nil otherwise.
func InitRemote(logger *log.Logger, cfg *config.Config) services.Remote {
	if !cfg.RemoteEnabled() {
		logger.Info("Remote sync disabled - no MW_SYNC_URL provided")
		return nil
	}
	logger.Info("Remote sync enabled", "endpoint", cfg.SyncURL)
	return remote.New(cfg.SyncURL)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
