package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

func delivery(shipment, remoteID, title string, qty int, day int, counterparty string) remote.OutboundDeliveryEvent {
	return remote.OutboundDeliveryEvent{
		ShipmentID:        shipment,
		RemoteInventoryID: remoteID,
		Title:             title,
		Quantity:          qty,
		UnitPrice:         decimal.NewFromInt(10),
		DeliveryDate:      time.Date(2026, 5, day, 10, 0, 0, 0, time.UTC),
		CounterpartyName:  counterparty,
	}
}

func (f fixture) sales(t *testing.T) []inventory.SaleRecord {
	t.Helper()
	sales, err := f.items.Sales(context.Background())
	require.NoError(t, err)
	return sales
}

func (f fixture) ledger(t *testing.T) []inventory.LedgerEntry {
	t.Helper()
	entries, err := f.items.Ledger(context.Background())
	require.NoError(t, err)
	return entries
}

func TestDeltaSkipsDuplicateShipmentLine(t *testing.T) {
	port := &fakeRemote{events: []remote.OutboundDeliveryEvent{
		delivery("S1", "42", "Alpha", 2, 3, "Jane Roe"),
		delivery("S1", "42", "Alpha", 2, 3, "John Doe"),
	}}
	f := newFixture(t, port, inventory.Item{
		ID: "a", Title: "Alpha", Quantity: 5, RemoteID: "42",
		BuybackPrice: decimal.NewFromInt(4),
	})

	res, err := f.svc.SyncDeltaEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Duplicates)
	require.Zero(t, res.Errored)

	sales := f.sales(t)
	require.Len(t, sales, 1)
	require.Equal(t, "a", sales[0].ItemID)
	require.Equal(t, inventory.ProvenanceRemoteSync, sales[0].Provenance)
	require.True(t, decimal.NewFromInt(12).Equal(sales[0].Profit))

	ledger := f.ledger(t)
	require.Len(t, ledger, 1)
	require.Equal(t, sales[0].ID, ledger[0].SaleID)
	require.True(t, ledger[0].Redacted)
	require.Empty(t, ledger[0].CounterpartyName)
	require.NotEmpty(t, ledger[0].CounterpartyRef)

	require.Equal(t, 3, f.allItems(t)[0].Quantity)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	require.Equal(t, ActionDelta, logs[0].Action)
	require.Equal(t, 1, logs[0].Counts.Added)
	require.Equal(t, 1, logs[0].Counts.Duplicates)
}

func TestDeltaUnknownItemCountsError(t *testing.T) {
	port := &fakeRemote{events: []remote.OutboundDeliveryEvent{
		delivery("S9", "99", "Zeta", 1, 3, "Jane Roe"),
	}}
	f := newFixture(t, port, inventory.Item{ID: "a", Title: "Alpha", Quantity: 5, RemoteID: "42"})

	res, err := f.svc.SyncDeltaEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Errored)
	require.Zero(t, res.Processed)
	require.Empty(t, f.sales(t))
	require.Equal(t, 5, f.allItems(t)[0].Quantity)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	require.Equal(t, auditlog.StatusSuccess, logs[0].Status)
	require.Equal(t, 1, logs[0].Counts.Errored)
	require.Contains(t, logs[0].Details, "S9")
}

func TestDeltaAmbiguousTitleIsNotGuessed(t *testing.T) {
	port := &fakeRemote{events: []remote.OutboundDeliveryEvent{
		delivery("S1", "77", "Alpha", 1, 3, "Jane Roe"),
	}}
	f := newFixture(t, port,
		inventory.Item{ID: "a", Title: "Alpha", Quantity: 5},
		inventory.Item{ID: "b", Title: "Alpha", Quantity: 5},
	)

	res, err := f.svc.SyncDeltaEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Errored)
	require.Empty(t, f.sales(t))
}

func TestDeltaConservesStockAcrossRuns(t *testing.T) {
	port := &fakeRemote{events: []remote.OutboundDeliveryEvent{
		delivery("S1", "42", "Alpha", 2, 3, "Jane Roe"),
	}}
	f := newFixture(t, port, inventory.Item{ID: "a", Title: "Alpha", Quantity: 3, RemoteID: "42"})
	ctx := context.Background()

	_, err := f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	// the replayed S1 line and a new shipment exceeding the remaining stock
	port.events = append(port.events, delivery("S2", "42", "Alpha", 2, 4, "Max Mustermann"))
	res, err := f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Duplicates)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Warnings)

	res, err = f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Duplicates)
	require.Zero(t, res.Processed)

	sales := f.sales(t)
	require.Len(t, sales, 2)
	decremented := 0
	for _, s := range sales {
		decremented += s.StockDecrement
	}
	require.Equal(t, 3, decremented)
	require.Equal(t, 2, sales[1].Quantity)
	require.Equal(t, 1, sales[1].StockDecrement)
	require.Zero(t, f.allItems(t)[0].Quantity)
	require.Len(t, f.ledger(t), 2)
}

func TestDeltaWindowStartsAtCursor(t *testing.T) {
	port := &fakeRemote{}
	f := newFixture(t, port)
	ctx := context.Background()

	res, err := f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, res.From.IsZero())
	require.Equal(t, testNow, res.To)

	cursor, err := f.svc.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.Equal(testNow))

	_, err = f.svc.SyncDeltaEvents(ctx, testNow.AddDate(0, 0, -10), time.Time{})
	require.NoError(t, err)
	require.Len(t, port.windows, 2)
	require.True(t, port.windows[1][0].Equal(testNow))

	// a window ending in the future leaves the cursor at now
	_, err = f.svc.SyncDeltaEvents(ctx, testNow, testNow.Add(48*time.Hour))
	require.NoError(t, err)
	cursor, err = f.svc.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.Equal(testNow))
}

func TestDeltaRejectsInvertedWindow(t *testing.T) {
	f := newFixture(t, &fakeRemote{})
	_, err := f.svc.SyncDeltaEvents(context.Background(), testNow, testNow.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)
	require.Equal(t, auditlog.StatusError, f.logs(t)[0].Status)
}

func TestDeltaGatewayFailureAbortsRun(t *testing.T) {
	port := &fakeRemote{eventsErr: &remote.GatewayError{
		Method: "GET", Endpoint: "/shipment", Tries: 3,
		Attempts: []remote.Attempt{{Path: "direct", Err: &remote.TransportError{Path: "direct", Status: 503}}},
	}}
	f := newFixture(t, port, inventory.Item{ID: "a", Title: "Alpha", Quantity: 5, RemoteID: "42"})
	ctx := context.Background()

	_, err := f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	var transport *remote.TransportError
	require.ErrorAs(t, err, &transport)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	require.Equal(t, auditlog.StatusError, logs[0].Status)

	cursor, err := f.svc.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.IsZero())
}

func TestReplayPicksUpEventsBeforeCursor(t *testing.T) {
	port := &fakeRemote{events: []remote.OutboundDeliveryEvent{
		delivery("S1", "42", "Alpha", 1, 3, "Jane Roe"),
		delivery("S2", "99", "Gamma", 2, 4, "John Doe"),
	}}
	f := newFixture(t, port, inventory.Item{ID: "a", Title: "Alpha", Quantity: 5, RemoteID: "42"})
	ctx := context.Background()

	res, err := f.svc.SyncDeltaEvents(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Errored)

	// the item behind S2 is imported after the cursor moved past it
	items := append(f.allItems(t), inventory.Item{ID: "g", Title: "Gamma", Quantity: 3, RemoteID: "99"})
	require.NoError(t, f.items.SaveItems(ctx, items))

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	res, err = f.svc.ReplayDeltaEvents(ctx, start, time.Time{})
	require.NoError(t, err)
	require.True(t, port.windows[1][0].Equal(start))
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.Duplicates)

	byID := map[string]int{}
	for _, item := range f.allItems(t) {
		byID[item.ID] = item.Quantity
	}
	require.Equal(t, 4, byID["a"])
	require.Equal(t, 1, byID["g"])
	require.Len(t, f.sales(t), 2)

	cursor, err := f.svc.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, cursor.Equal(testNow))

	logs := f.logs(t)
	require.Equal(t, ActionReplay, logs[len(logs)-1].Action)
	require.Equal(t, auditlog.StatusSuccess, logs[len(logs)-1].Status)
}

func TestReplayRequiresStart(t *testing.T) {
	f := newFixture(t, &fakeRemote{})
	_, err := f.svc.ReplayDeltaEvents(context.Background(), time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrInvalidRange)
	require.Equal(t, ActionReplay, f.logs(t)[0].Action)
}
