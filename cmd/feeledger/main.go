package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"feeledger/internal/cli"
	apphttp "feeledger/internal/http"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	res := cli.InitBackend(context.Background(), logger, cfg, false)

	fees := services.NewFeeController(res.API, ledger.NewStore(), res.Session, res.JournalStore(), res.Publisher(),
		services.WithLogger(logger.WithComponent(log.ComponentLedger)))
	lookups := services.NewLookupService(res.API, cfg.LookupCacheTTL)

	// A failed first load is not fatal; the ledger is refreshed on demand.
	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.FeeAPITimeout)
	if n, err := fees.Refresh(loadCtx); err != nil {
		logger.Warn("Initial ledger load failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
	} else {
		logger.Info("Ledger loaded", log.FieldOperation, log.OpStartup, "records", n)
	}
	cancel()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Fees:               fees,
		Lookups:            lookups,
		Logger:             logger,
		Ready:              res.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting feeledger server",
		"port", cfg.Port,
		"backend", cfg.FeeBackend,
		"role", res.Session.User().Role,
		"journal", res.Journal != nil,
		"events", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
