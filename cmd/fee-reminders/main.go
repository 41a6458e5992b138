package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"feeledger/internal/cli"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentReminder)

	logger.Info("Starting fee-reminders", "schedule", cfg.ReminderCron)

	res := cli.InitBackend(context.Background(), logger, cfg, true)
	if res.Journal == nil {
		logger.Error("Reminders need the operation journal; set JOURNAL_DB_PATH")
		_ = res.Close()
		os.Exit(1)
	}

	fees := services.NewFeeController(res.API, ledger.NewStore(), res.Session, res.JournalStore(), res.Publisher(),
		services.WithLogger(logger))
	reminders, err := services.NewReminderService(fees, res.Journal, res.Publisher(), services.ReminderPolicy{
		DueSoonDays:  cfg.ReminderDueSoonDays,
		FollowUpDays: cfg.ReminderFollowUpDays,
	})
	if err != nil {
		logger.Error("Failed to build reminder service", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	run := func(ctx context.Context) {
		if _, err := fees.Refresh(ctx); err != nil {
			logger.Error("Ledger refresh failed, skipping reminder run", log.FieldOperation, log.OpRemind, log.FieldError, err)
			return
		}
		report, err := reminders.Run(ctx, time.Now())
		if err != nil {
			logger.Error("Reminder run failed", log.FieldOperation, log.OpRemind, log.FieldError, err)
			return
		}
		logger.Info("Reminder run complete",
			log.FieldOperation, log.OpRemind,
			"scanned", report.Scanned,
			"sent", report.Sent,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}

	sched := cron.New()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		<-sched.Stop().Done()
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	if _, err := sched.AddFunc(cfg.ReminderCron, func() { run(ctx) }); err != nil {
		logger.Error("Invalid reminder schedule", "schedule", cfg.ReminderCron, log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	// Run once at startup so a restart after the scheduled time is not a missed day.
	run(ctx)
	sched.Start()

	cli.WaitForShutdown(ctx, done)
	logger.Info("fee-reminders stopped")
}
