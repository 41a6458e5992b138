package main

import (
	"context"
	"errors"
	"os"
	"time"

	"feeledger/internal/cli"
	"feeledger/internal/log"
	"feeledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting fee-worker")

	res := cli.InitBackend(context.Background(), logger, cfg, true)
	if res.Exporter == nil {
		logger.Info("Ledger export disabled - no spreadsheet configured")
	}

	w := worker.NewLedgerWorker(res.API, res.Exporter, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	// Catch up on changes made while the worker was down.
	if err := w.Export(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
	}

	if err := res.Events.Consume(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("fee-worker stopped")
}
