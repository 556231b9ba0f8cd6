package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stocksync/internal/syncer"
)

// SyncService is the subset of the sync service the jobs drive.
type SyncService interface {
	ImportFromRemote(ctx context.Context) (syncer.ImportResult, error)
	ExportToRemote(ctx context.Context, itemID string) (syncer.ExportResult, error)
	Reconcile(ctx context.Context) (syncer.ReconcileResult, error)
	SyncDeltaEvents(ctx context.Context, start, end time.Time) (syncer.DeltaResult, error)
}

// SyncJob runs the sync workflows from the queue. Workflow metrics are
// recorded by the service itself.
type SyncJob struct {
	Service  SyncService
	Logger   *slog.Logger
	Lookback time.Duration
	clock    func() time.Time
}

// NewSyncJob initialises the sync job handlers.
func NewSyncJob(service SyncService, logger *slog.Logger, lookback time.Duration) *SyncJob {
	return &SyncJob{
		Service:  service,
		Logger:   logger,
		Lookback: lookback,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers returns the task registrations for the worker.
func (j *SyncJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskSyncDelta, Handler: j.HandleDelta},
		{Type: TaskSyncReconcile, Handler: j.HandleReconcile},
		{Type: TaskSyncImport, Handler: j.HandleImport},
		{Type: TaskSyncExport, Handler: j.HandleExport},
	}
}

// HandleDelta applies outbound delivery events. An empty window starts at
// now minus the lookback; the stored cursor still bounds it from below.
func (j *SyncJob) HandleDelta(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("sync delta: handler not configured")
	}
	var payload DeltaPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("sync delta: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.From.IsZero() && j.Lookback > 0 {
		payload.From = j.now().Add(-j.Lookback)
	}

	logger := j.logger(TaskSyncDelta)
	res, err := j.Service.SyncDeltaEvents(ctx, payload.From, payload.To)
	if err != nil {
		return j.outcome(logger, err)
	}
	logger.Info("delta sync completed",
		slog.Time("from", res.From),
		slog.Time("to", res.To),
		slog.Int("processed", res.Processed),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("errored", res.Errored),
	)
	return nil
}

// HandleReconcile removes linked items the remote no longer lists.
func (j *SyncJob) HandleReconcile(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("sync reconcile: handler not configured")
	}
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("sync reconcile: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger(TaskSyncReconcile)
	res, err := j.Service.Reconcile(ctx)
	if err != nil {
		return j.outcome(logger, err)
	}
	logger.Info("reconcile completed",
		slog.Int("added", res.Added),
		slog.Int("removed", res.Removed),
	)
	return nil
}

// HandleImport pulls the remote catalogue.
func (j *SyncJob) HandleImport(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("sync import: handler not configured")
	}
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("sync import: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger(TaskSyncImport)
	res, err := j.Service.ImportFromRemote(ctx)
	if err != nil {
		return j.outcome(logger, err)
	}
	logger.Info("import completed", slog.String("result", res.String()))
	return nil
}

// HandleExport pushes one item to the remote service.
func (j *SyncJob) HandleExport(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("sync export: handler not configured")
	}
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ItemID == "" {
		return fmt.Errorf("sync export: invalid payload: %w", asynq.SkipRetry)
	}
	logger := j.logger(TaskSyncExport).With(slog.String("item_id", payload.ItemID))
	res, err := j.Service.ExportToRemote(ctx, payload.ItemID)
	if errors.Is(err, syncer.ErrItemNotFound) {
		logger.Warn("export skipped, item not found")
		return fmt.Errorf("sync export: %v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return j.outcome(logger, err)
	}
	logger.Info("export completed", slog.String("remote_id", res.RemoteID), slog.Bool("created", res.Created))
	return nil
}

// outcome maps a workflow error onto the queue's retry semantics. A run
// rejected by the sync lock is not retried; the next schedule picks it up.
func (j *SyncJob) outcome(logger *slog.Logger, err error) error {
	if errors.Is(err, syncer.ErrConcurrentSync) {
		logger.Info("skipped, another sync is running")
		return nil
	}
	if errors.Is(err, syncer.ErrInvalidRange) {
		logger.Warn("invalid window", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.Error("workflow failed", slog.Any("error", err))
	return err
}

func (j *SyncJob) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *SyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
