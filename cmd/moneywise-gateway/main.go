package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/gateway"
	"moneywise/internal/log"
	"moneywise/internal/sheets"
	gsheet "moneywise/internal/sheets/google"
	"moneywise/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("moneywise-gateway")
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting moneywise-gateway",
		"port", cfg.Port,
		"backend", cfg.SheetsBackend)

	store := initStore(logger, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: gateway.New(store, cfg.LockTimeout, logger).Handler(),
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Gateway listening", "addr", srv.Addr)
	cli.WaitForShutdown(ctx, done)
}

func initStore(logger *log.Logger, cfg *config.Config) sheets.Store {
	switch cfg.SheetsBackend {
	case "memory":
		logger.Info("Using in-memory sheet store")
		return memory.New()
	default:
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client
	}
}
