package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stocksync/jobs"
)

// QueueAdmin enqueues sync tasks and inspects the default queue.
type QueueAdmin struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewQueueAdmin connects both the enqueue client and the inspector to Redis.
func NewQueueAdmin(redisAddr string) (*QueueAdmin, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &QueueAdmin{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases the inspector and the client, returning the first error.
func (q *QueueAdmin) Close() error {
	return errors.Join(q.inspector.Close(), q.client.Close())
}

// Trigger enqueues a delta, reconcile or import run.
func (q *QueueAdmin) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	return q.client.EnqueueNamed(ctx, name)
}

// TriggerExport enqueues an export of one item.
func (q *QueueAdmin) TriggerExport(ctx context.Context, itemID string) (*asynq.TaskInfo, error) {
	return q.client.EnqueueExport(ctx, itemID)
}

// QueueStats is a snapshot of the default queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
}

// InspectQueue reads the current counters of the default queue.
func (q *QueueAdmin) InspectQueue(_ context.Context) (QueueStats, error) {
	info, err := q.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Paused:    info.Paused,
	}, nil
}

// ListScheduled returns the first page of scheduled tasks.
func (q *QueueAdmin) ListScheduled(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	if size <= 0 {
		size = 10
	}
	return q.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
