package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stocksync/internal/app"
	"github.com/odyssey-erp/stocksync/internal/observability"
	"github.com/odyssey-erp/stocksync/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Default().Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	rt, err := app.Build(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	cron, err := schedule(cfg)
	if err != nil {
		return err
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger.With(slog.String("component", "worker")),
		Handlers:  jobs.NewSyncJob(rt.Service, logger, cfg.SyncDeltaLookback).Handlers(),
		Cron:      cron,
	})
	if err != nil {
		return err
	}
	return worker.Run(ctx)
}

// schedule builds the periodic delta and reconcile entries. The delta entry
// is unique per minute so a slow run never stacks a second copy.
func schedule(cfg *app.Config) ([]jobs.CronRegistration, error) {
	delta, err := jobs.NewSyncDeltaTask(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	reconcile, err := jobs.NewSyncReconcileTask(time.Time{})
	if err != nil {
		return nil, err
	}
	return []jobs.CronRegistration{
		{Spec: cfg.SyncDeltaCron, Task: delta, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Unique(time.Minute)}},
		{Spec: cfg.SyncReconcileCron, Task: reconcile, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}, nil
}
