package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stocksync/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stocksync/internal/jobs"
	"github.com/odyssey-erp/stocksync/internal/remote"
	"github.com/odyssey-erp/stocksync/internal/store"
	"github.com/odyssey-erp/stocksync/internal/syncer"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type replayRemote struct {
	events []remote.OutboundDeliveryEvent
}

func (r replayRemote) ListInventory(context.Context) ([]remote.InventoryRecord, error) {
	return nil, nil
}

func (r replayRemote) CreateInventory(_ context.Context, rec remote.InventoryRecord) (remote.InventoryRecord, error) {
	return rec, nil
}

func (r replayRemote) UpdateInventory(_ context.Context, rec remote.InventoryRecord) (remote.InventoryRecord, error) {
	return rec, nil
}

func (r replayRemote) OutboundEvents(context.Context, time.Time, time.Time) ([]remote.OutboundDeliveryEvent, error) {
	return r.events, nil
}

func TestDeltaThroughputAndOutcomeMetrics(t *testing.T) {
	const (
		items         = 50
		salesPerItem  = 4
		startingStock = 10
		replayed      = 20
	)

	seed := make([]inventory.Item, 0, items)
	var events []remote.OutboundDeliveryEvent
	for i := 0; i < items; i++ {
		seed = append(seed, inventory.Item{
			ID:           fmt.Sprintf("item-%03d", i),
			Title:        fmt.Sprintf("Title %03d", i),
			Quantity:     startingStock,
			RemoteID:     fmt.Sprintf("r%d", i),
			BuybackPrice: decimal.NewFromInt(5),
		})
		for s := 0; s < salesPerItem; s++ {
			events = append(events, remote.OutboundDeliveryEvent{
				ShipmentID:        fmt.Sprintf("S%d-%d", i, s),
				RemoteInventoryID: fmt.Sprintf("r%d", i),
				Title:             fmt.Sprintf("Title %03d", i),
				Quantity:          1,
				UnitPrice:         decimal.NewFromInt(9),
				DeliveryDate:      now.Add(-time.Hour),
				CounterpartyName:  fmt.Sprintf("Buyer %d-%d", i, s),
			})
		}
	}
	events = append(events, events[:replayed]...)

	repo := store.NewMemoryRepository()
	ctx := context.Background()
	if err := inventory.NewRepository(repo).SaveItems(ctx, seed); err != nil {
		t.Fatalf("seed items: %v", err)
	}

	reg := prometheus.NewRegistry()
	svc := syncer.NewService(repo, replayRemote{events: events}, syncer.Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: jobmetrics.NewMetrics(reg),
		Clock:   func() time.Time { return now },
	})

	res, err := svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("delta sync: %v", err)
	}
	if res.Processed != items*salesPerItem || res.Duplicates != replayed {
		t.Fatalf("unexpected result: %s", res)
	}

	stock, err := inventory.NewRepository(repo).Items(ctx)
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	for _, item := range stock {
		if item.Quantity != startingStock-salesPerItem {
			t.Fatalf("item %s quantity %d, want %d", item.ID, item.Quantity, startingStock-salesPerItem)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if got := metricValue(t, families, "stocksync_sync_runs_total", map[string]string{"workflow": syncer.ActionDelta, "status": "success"}); got != 1 {
		t.Fatalf("runs_total = %f, want 1", got)
	}
	if got := metricValue(t, families, "stocksync_sync_records_total", map[string]string{"workflow": syncer.ActionDelta, "outcome": "added"}); got != items*salesPerItem {
		t.Fatalf("added = %f, want %d", got, items*salesPerItem)
	}
	if got := metricValue(t, families, "stocksync_sync_records_total", map[string]string{"workflow": syncer.ActionDelta, "outcome": "duplicate"}); got != replayed {
		t.Fatalf("duplicate = %f, want %d", got, replayed)
	}
	if mean := histogramMean(t, families, "stocksync_sync_duration_seconds", map[string]string{"workflow": syncer.ActionDelta}); mean > 2.0 {
		t.Fatalf("delta duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
