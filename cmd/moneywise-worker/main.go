// moneywise-worker drains snapshot sync events and mirrors the local
// store onto the spreadsheet directly, without going through the gateway.
// Useful when the tracker and the spreadsheet live on the same host and
// the HTTP hop adds nothing.
package main

import (
	"context"
	"os"
	"time"

	"moneywise/internal/amqp"
	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/localstore"
	"moneywise/internal/log"
	"moneywise/internal/sheets"
	gsheet "moneywise/internal/sheets/google"
	"moneywise/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("moneywise-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	logger.Info("Starting moneywise-worker",
		"queue", cfg.AMQPQueue,
		"backend", cfg.SheetsBackend)

	store := cli.InitLocalStore(logger, cfg.LocalDBPath)
	defer store.Close()

	sheetStore := initStore(logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Mirror once at startup so a queue that was empty while the worker
	// was down still converges.
	if err := mirror(ctx, store, sheetStore, logger); err != nil {
		logger.Error("Startup mirror failed", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeSnapshotSync(ctx, func(msg *amqp.SnapshotSyncMessage) error {
			return mirror(ctx, store, sheetStore, logger)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

// mirror replaces the remote tables with the current local snapshot.
func mirror(ctx context.Context, store *localstore.Store, sheetStore sheets.Store, logger *log.Logger) error {
	snap, err := store.LoadState(ctx)
	if err != nil {
		return err
	}
	if err := sheetStore.Write(ctx, snap); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Snapshot mirrored",
		"transactions", len(snap.Transactions),
		"savings_days", snap.Savings.Total())
	return nil
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
