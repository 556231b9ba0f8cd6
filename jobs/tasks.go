package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncDelta applies outbound delivery events since the cursor.
	TaskSyncDelta = "sync:delta"
	// TaskSyncReconcile removes local items missing from the remote catalogue.
	TaskSyncReconcile = "sync:reconcile"
	// TaskSyncImport pulls the remote catalogue into local stock.
	TaskSyncImport = "sync:import"
	// TaskSyncExport pushes one local item to the remote service.
	TaskSyncExport = "sync:export"
)

// DeltaPayload bounds a delta run. Zero values mean "from the lookback
// window" and "until now".
type DeltaPayload struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ExportPayload names the local item to export.
type ExportPayload struct {
	ItemID string `json:"item_id"`
}

// RunPayload carries scheduling metadata for parameterless workflows.
type RunPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewSyncDeltaTask constructs a delta task.
func NewSyncDeltaTask(from, to time.Time) (*asynq.Task, error) {
	return newTask(TaskSyncDelta, DeltaPayload{From: from, To: to})
}

// NewSyncReconcileTask constructs a reconcile task.
func NewSyncReconcileTask(at time.Time) (*asynq.Task, error) {
	return newTask(TaskSyncReconcile, RunPayload{RequestedAt: at})
}

// NewSyncImportTask constructs an import task.
func NewSyncImportTask(at time.Time) (*asynq.Task, error) {
	return newTask(TaskSyncImport, RunPayload{RequestedAt: at})
}

// NewSyncExportTask constructs an export task for one item.
func NewSyncExportTask(itemID string) (*asynq.Task, error) {
	if itemID == "" {
		return nil, fmt.Errorf("jobs: export task requires an item id")
	}
	return newTask(TaskSyncExport, ExportPayload{ItemID: itemID})
}

// NewTaskByName builds a task with default payload for operator triggers.
func NewTaskByName(name string, now time.Time) (*asynq.Task, error) {
	switch name {
	case TaskSyncDelta, "delta":
		return NewSyncDeltaTask(time.Time{}, time.Time{})
	case TaskSyncReconcile, "reconcile":
		return NewSyncReconcileTask(now)
	case TaskSyncImport, "import":
		return NewSyncImportTask(now)
	default:
		return nil, fmt.Errorf("jobs: unsupported task %s", name)
	}
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
