package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/dedup"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/matching"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

// DeltaResult summarises an incremental delta run.
type DeltaResult struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Fetched    int       `json:"fetched"`
	Processed  int       `json:"processed"`
	Duplicates int       `json:"duplicates"`
	Errored    int       `json:"errored"`
	Warnings   int       `json:"warnings"`
}

func (r DeltaResult) counts() *auditlog.Counts {
	return &auditlog.Counts{Added: r.Processed, Duplicates: r.Duplicates, Errored: r.Errored, Warnings: r.Warnings}
}

func (r DeltaResult) String() string {
	return fmt.Sprintf("window %s..%s: processed %d, duplicates %d, errors %d, warnings %d",
		r.From.Format(time.RFC3339), r.To.Format(time.RFC3339), r.Processed, r.Duplicates, r.Errored, r.Warnings)
}

// SyncDeltaEvents applies remote outbound delivery events in [start, end] to
// local stock. The window never starts before the persisted cursor; a zero
// start means "since the cursor" and a zero end means now. Each surviving
// event decrements its item, appends one sale and one ledger entry in a
// single write, and a failing event never aborts the rest of the run.
func (s *Service) SyncDeltaEvents(ctx context.Context, start, end time.Time) (DeltaResult, error) {
	release, tracker, err := s.begin(ctx, ActionDelta)
	if err != nil {
		return DeltaResult{}, err
	}
	defer release()

	res, p, err := s.delta(ctx, start, end, false)
	if err != nil {
		return res, s.finish(ctx, tracker, ActionDelta, nil, "", err)
	}
	return res, s.finish(ctx, tracker, ActionDelta, res.counts(), describe(res.String(), p), nil)
}

// ReplayDeltaEvents applies the events of an explicit window even when it
// lies before the cursor, so deliveries that arrived before their item was
// imported can be picked up later. Events already applied are recognised
// from the stored sales and skipped as duplicates. start is required; the
// cursor only ever moves forward.
func (s *Service) ReplayDeltaEvents(ctx context.Context, start, end time.Time) (DeltaResult, error) {
	release, tracker, err := s.begin(ctx, ActionReplay)
	if err != nil {
		return DeltaResult{}, err
	}
	defer release()

	res, p, err := s.delta(ctx, start, end, true)
	if err != nil {
		return res, s.finish(ctx, tracker, ActionReplay, nil, "", err)
	}
	return res, s.finish(ctx, tracker, ActionReplay, res.counts(), describe(res.String(), p), nil)
}

func (s *Service) delta(ctx context.Context, start, end time.Time, replay bool) (DeltaResult, *problems, error) {
	var res DeltaResult
	p := &problems{}

	if replay && start.IsZero() {
		return res, p, fmt.Errorf("%w: replay needs an explicit start", ErrInvalidRange)
	}
	cursor, err := s.cursor.Load(ctx)
	if err != nil {
		return res, p, err
	}
	from := start.UTC()
	if !replay && cursor.After(from) {
		from = cursor
	}
	to := end.UTC()
	if end.IsZero() {
		to = s.now().UTC()
	}
	if to.Before(from) {
		return res, p, fmt.Errorf("%w: %s..%s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	res.From, res.To = from, to

	events, err := s.remote.OutboundEvents(ctx, from, to)
	if err != nil {
		return res, p, fmt.Errorf("list outbound events: %w", err)
	}
	res.Fetched = len(events)

	items, err := s.items.Items(ctx)
	if err != nil {
		return res, p, err
	}
	sales, err := s.items.Sales(ctx)
	if err != nil {
		return res, p, err
	}
	ledger, err := s.items.Ledger(ctx)
	if err != nil {
		return res, p, err
	}

	seen := dedup.NewSeenKeys()
	for _, sale := range sales {
		if sale.Provenance == inventory.ProvenanceRemoteSync {
			seen.Seed(matching.EventKeys(eventFromSale(sale)))
		}
	}

	for _, ev := range events {
		if !seen.Admit(ev) {
			res.Duplicates++
			s.logger.Info("duplicate delivery event skipped",
				slog.String("shipment_id", ev.ShipmentID),
				slog.String("remote_id", ev.RemoteInventoryID),
				slog.Any("reason", dedup.ErrDuplicateEvent))
			continue
		}
		nextItems, sale, entry, short, err := s.applyEvent(ev, items)
		if err != nil {
			res.Errored++
			p.add("shipment %s item %s: %v", ev.ShipmentID, ev.RemoteInventoryID, err)
			s.logger.Warn("delivery event not applied",
				slog.String("shipment_id", ev.ShipmentID),
				slog.String("remote_id", ev.RemoteInventoryID),
				slog.Any("error", err))
			continue
		}
		nextSales := append(sales[:len(sales):len(sales)], sale)
		nextLedger := append(ledger[:len(ledger):len(ledger)], entry)
		if err := s.items.CommitSale(ctx, nextItems, nextSales, nextLedger); err != nil {
			res.Errored++
			p.add("shipment %s item %s: %v", ev.ShipmentID, ev.RemoteInventoryID, err)
			s.logger.Error("commit delivery event", slog.String("shipment_id", ev.ShipmentID), slog.Any("error", err))
			continue
		}
		items, sales, ledger = nextItems, nextSales, nextLedger
		res.Processed++
		if short {
			res.Warnings++
			s.logger.Warn("delivery exceeds local stock, quantity floored at zero",
				slog.String("item_id", sale.ItemID),
				slog.Int("requested", sale.Quantity),
				slog.Int("applied", sale.StockDecrement))
		}
		s.settleWrite(ctx)
	}

	// a window reaching into the future must not hide events yet to happen
	mark := to
	if now := s.now().UTC(); mark.After(now) {
		mark = now
	}
	if _, err := s.cursor.Advance(ctx, mark); err != nil {
		return res, p, err
	}
	return res, p, nil
}

// applyEvent resolves the event's item and computes the mutations without
// touching items; the caller commits them.
func (s *Service) applyEvent(ev remote.OutboundDeliveryEvent, items []inventory.Item) ([]inventory.Item, inventory.SaleRecord, inventory.LedgerEntry, bool, error) {
	if ev.Quantity <= 0 {
		return nil, inventory.SaleRecord{}, inventory.LedgerEntry{}, false, inventory.ErrInvalidSaleQuantity
	}
	match, err := matching.Resolve(matching.Target{RemoteID: ev.RemoteInventoryID, Title: ev.Title}, items)
	if err != nil {
		return nil, inventory.SaleRecord{}, inventory.LedgerEntry{}, false, err
	}

	now := s.now().UTC()
	next := make([]inventory.Item, len(items))
	copy(next, items)
	item := &next[match.Index]
	before := *item
	applied, short := inventory.Decrement(item, ev.Quantity, now)

	sale, err := inventory.NewSale(before, inventory.SaleInput{
		RemoteInventoryID: ev.RemoteInventoryID,
		ShipmentID:        ev.ShipmentID,
		Title:             ev.Title,
		Quantity:          ev.Quantity,
		StockDecrement:    applied,
		UnitPrice:         ev.UnitPrice,
		Counterparty:      ev.CounterpartyName,
		DeliveryDate:      ev.DeliveryDate,
		Provenance:        inventory.ProvenanceRemoteSync,
	}, now)
	if err != nil {
		return nil, inventory.SaleRecord{}, inventory.LedgerEntry{}, false, err
	}
	entry := inventory.LedgerFromSale(sale, s.redactor, now)
	return next, sale, entry, short, nil
}
