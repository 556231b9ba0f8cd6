// Package syncer coordinates the inventory sync workflows between the local
// store and the remote inventory service.
//
// Every workflow that gets past the sync lock writes exactly one audit entry.
// A call turned away with ErrConcurrentSync writes none: the store belongs to
// the running workflow, and the rejection is logged and returned instead.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/dedup"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stocksync/internal/jobs"
	"github.com/odyssey-erp/stocksync/internal/remote"
	"github.com/odyssey-erp/stocksync/internal/store"
)

// Workflow names used for audit entries and metrics.
const (
	ActionImport    = "import"
	ActionExport    = "export"
	ActionReconcile = "reconcile"
	ActionDelta     = "delta"
	ActionReplay    = "replay"
)

// maxDetailErrors caps how many per-record failures are spelled out in one
// audit entry.
const maxDetailErrors = 5

var (
	// ErrItemNotFound indicates the requested local item does not exist.
	ErrItemNotFound = errors.New("syncer: item not found")
	// ErrInvalidRange rejects a delta window that ends before it starts.
	ErrInvalidRange = errors.New("syncer: range end before start")
)

// RemotePort is the subset of the remote client used by the workflows.
type RemotePort interface {
	ListInventory(ctx context.Context) ([]remote.InventoryRecord, error)
	CreateInventory(ctx context.Context, rec remote.InventoryRecord) (remote.InventoryRecord, error)
	UpdateInventory(ctx context.Context, rec remote.InventoryRecord) (remote.InventoryRecord, error)
	OutboundEvents(ctx context.Context, from, to time.Time) ([]remote.OutboundDeliveryEvent, error)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Locker      Locker
	Redactor    *inventory.Redactor
	Audit       *auditlog.Log
	SettleDelay time.Duration
	Clock       func() time.Time
	Sleep       func(context.Context, time.Duration) error
}

// Service runs the sync workflows.
type Service struct {
	items    *inventory.Repository
	remote   RemotePort
	audit    *auditlog.Log
	cursor   *dedup.SyncCursor
	locker   Locker
	redactor *inventory.Redactor
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	settle   time.Duration
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewService wires the workflows onto a collection store and remote port.
func NewService(repo store.Repository, port RemotePort, opts Options) *Service {
	s := &Service{
		items:    inventory.NewRepository(repo),
		remote:   port,
		audit:    opts.Audit,
		cursor:   dedup.NewSyncCursor(repo),
		locker:   opts.Locker,
		redactor: opts.Redactor,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		settle:   opts.SettleDelay,
		now:      opts.Clock,
		sleep:    opts.Sleep,
	}
	if s.audit == nil {
		s.audit = auditlog.New(repo)
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

// CorrespondenceStatus counts local items by link state.
type CorrespondenceStatus struct {
	Total    int `json:"total"`
	Linked   int `json:"linked"`
	Unlinked int `json:"unlinked"`
}

// CheckCorrespondenceStatus reports how many local items are linked to a
// remote record. It is read-only and takes no lock.
func (s *Service) CheckCorrespondenceStatus(ctx context.Context) (CorrespondenceStatus, error) {
	items, err := s.items.Items(ctx)
	if err != nil {
		return CorrespondenceStatus{}, err
	}
	st := CorrespondenceStatus{Total: len(items)}
	for _, item := range items {
		if item.Linked() {
			st.Linked++
		} else {
			st.Unlinked++
		}
	}
	return st, nil
}

// RecentLogs returns the newest n audit entries in insertion order.
func (s *Service) RecentLogs(ctx context.Context, n int) ([]auditlog.Entry, error) {
	return s.audit.Recent(ctx, n)
}

// Cursor returns the persisted delta cursor.
func (s *Service) Cursor(ctx context.Context) (time.Time, error) {
	return s.cursor.Load(ctx)
}

// begin takes the sync lock. A rejected call writes no audit entry.
func (s *Service) begin(ctx context.Context, action string) (func(), *jobmetrics.Tracker, error) {
	release, err := s.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrConcurrentSync) {
			s.logger.Warn("sync rejected, lock held", slog.String("action", action))
		}
		return nil, nil, err
	}
	return release, s.metrics.Track(action), nil
}

// finish writes the single audit entry of a workflow call and records its
// metrics. It returns runErr, or the audit failure when the run succeeded.
func (s *Service) finish(ctx context.Context, tracker *jobmetrics.Tracker, action string, counts *auditlog.Counts, details string, runErr error) error {
	entry := auditlog.Entry{Action: action, Status: auditlog.StatusSuccess, Details: details, Counts: counts}
	if runErr != nil {
		entry.Status = auditlog.StatusError
		entry.Details = runErr.Error()
		s.logger.Error("sync workflow failed", slog.String("action", action), slog.Any("error", runErr))
	} else {
		s.logger.Info("sync workflow completed", slog.String("action", action), slog.String("details", details))
	}
	if counts != nil {
		s.metrics.AddOutcomes(action, "added", counts.Added)
		s.metrics.AddOutcomes(action, "updated", counts.Updated)
		s.metrics.AddOutcomes(action, "deleted", counts.Deleted)
		s.metrics.AddOutcomes(action, "skipped", counts.Skipped)
		s.metrics.AddOutcomes(action, "errored", counts.Errored)
		s.metrics.AddOutcomes(action, "duplicate", counts.Duplicates)
		s.metrics.AddOutcomes(action, "warning", counts.Warnings)
	}
	if _, err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("append sync log", slog.String("action", action), slog.Any("error", err))
		if runErr == nil {
			runErr = fmt.Errorf("syncer: record %s outcome: %w", action, err)
		}
	}
	return tracker.End(runErr)
}

// settleWrite pauses after a local write so readers observe it before the next
// remote call.
func (s *Service) settleWrite(ctx context.Context) {
	if s.settle <= 0 {
		return
	}
	if err := s.sleep(ctx, s.settle); err != nil {
		s.logger.Debug("settle delay interrupted", slog.Any("error", err))
	}
}

// problems collects per-record failures for the audit details.
type problems struct {
	msgs  []string
	total int
}

func (p *problems) add(format string, args ...any) {
	p.total++
	if len(p.msgs) < maxDetailErrors {
		p.msgs = append(p.msgs, fmt.Sprintf(format, args...))
	}
}

func (p *problems) String() string {
	if p.total == 0 {
		return ""
	}
	out := strings.Join(p.msgs, "; ")
	if more := p.total - len(p.msgs); more > 0 {
		out += fmt.Sprintf("; and %d more", more)
	}
	return out
}

func describe(summary string, p *problems) string {
	if detail := p.String(); detail != "" {
		return summary + ": " + detail
	}
	return summary
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
