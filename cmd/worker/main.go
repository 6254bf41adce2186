package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"

	"github.com/roadline/roadline/internal/app"
	"github.com/roadline/roadline/internal/billing"
	"github.com/roadline/roadline/internal/platform/db"
	"github.com/roadline/roadline/jobs"
	"github.com/roadline/roadline/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var renderer jobs.ReceiptRenderer
	if cfg.GotenbergURL != "" {
		renderer = report.NewClient(cfg.GotenbergURL)
	}

	notifications := jobs.NewNotifications(pool, logger)
	receipts := jobs.NewReceipts(pool, renderer, cfg.ReceiptStorageDir, logger)
	cleaner := jobs.NewLedgerCleaner(ledgerPort{repo: billing.NewRepository(pool)}, cfg.WebhookRetention, logger)

	cleanupTask, err := jobs.NewLedgerCleanupTask(time.Now().UTC())
	if err != nil {
		logger.Error("build ledger cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPaymentCompleted, Handler: notifications.HandlePaymentCompleted},
			{Type: jobs.TaskEstimateLocked, Handler: notifications.HandleEstimateLocked},
			{Type: jobs.TaskOrderClosed, Handler: notifications.HandleOrderClosed},
			{Type: jobs.TaskGenerateReceipt, Handler: receipts.HandleGenerateReceipt},
			{Type: jobs.TaskLedgerCleanup, Handler: cleaner.HandleLedgerCleanup},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// ledgerPort adapts the billing repository to the cleanup job, which deals in
// retention durations rather than cutoff timestamps.
type ledgerPort struct {
	repo billing.RepositoryPort
}

func (p ledgerPort) CleanupEventLedger(ctx context.Context, retention time.Duration) (int64, error) {
	return p.repo.DeleteEventsBefore(ctx, time.Now().UTC().Add(-retention))
}
