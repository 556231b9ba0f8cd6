package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/matching"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

// ImportResult summarises an inbound import.
type ImportResult struct {
	Added    int `json:"added"`
	Linked   int `json:"linked"`
	Skipped  int `json:"skipped"`
	Errored  int `json:"errored"`
	Warnings int `json:"warnings"`
}

func (r ImportResult) counts() *auditlog.Counts {
	return &auditlog.Counts{Added: r.Added, Updated: r.Linked, Skipped: r.Skipped, Errored: r.Errored, Warnings: r.Warnings}
}

func (r ImportResult) String() string {
	return fmt.Sprintf("added %d, linked %d, skipped %d, errors %d", r.Added, r.Linked, r.Skipped, r.Errored)
}

// ExportResult describes the remote record written for a local item.
type ExportResult struct {
	ItemID   string `json:"itemId"`
	RemoteID string `json:"remoteId"`
	Created  bool   `json:"created"`
}

// ReconcileResult summarises a bidirectional reconciliation.
type ReconcileResult struct {
	Added   int          `json:"added"`
	Removed int          `json:"removed"`
	Import  ImportResult `json:"import"`
}

// ImportFromRemote materialises remote records that have no local
// counterpart yet.
func (s *Service) ImportFromRemote(ctx context.Context) (ImportResult, error) {
	release, tracker, err := s.begin(ctx, ActionImport)
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	res, _, p, err := s.importRecords(ctx)
	if err != nil {
		return res, s.finish(ctx, tracker, ActionImport, nil, "", err)
	}
	return res, s.finish(ctx, tracker, ActionImport, res.counts(), describe(res.String(), p), nil)
}

// importRecords pulls the remote catalogue and applies it to the local items.
// It returns the remote records so reconciliation can reuse them.
func (s *Service) importRecords(ctx context.Context) (ImportResult, []remote.InventoryRecord, *problems, error) {
	var res ImportResult
	p := &problems{}
	records, err := s.remote.ListInventory(ctx)
	if err != nil {
		return res, nil, p, fmt.Errorf("list remote inventory: %w", err)
	}
	items, err := s.items.Items(ctx)
	if err != nil {
		return res, records, p, err
	}

	now := s.now().UTC()
	changed := false
	for _, rec := range records {
		id := string(rec.ID)
		if id == "" {
			res.Errored++
			p.add("record %q has no id", rec.Title)
			continue
		}
		if rec.Title == "" {
			res.Errored++
			p.add("record %s: %v", id, inventory.ErrTitleRequired)
			continue
		}
		if len(matching.ByRemoteID(id, items)) > 0 {
			res.Skipped++
			continue
		}
		byTitle := matching.ByTitle(rec.Title, items)
		switch {
		case len(byTitle) > 1:
			res.Errored++
			p.add("record %s: title %q on %d items: %v", id, rec.Title, len(byTitle), matching.ErrAmbiguousMatch)
		case len(byTitle) == 1 && items[byTitle[0]].Linked():
			res.Skipped++
			s.logger.Debug("title already linked elsewhere",
				slog.String("remote_id", id),
				slog.String("item_id", items[byTitle[0]].ID))
		case len(byTitle) == 1:
			items[byTitle[0]].RemoteID = id
			items[byTitle[0]].UpdatedAt = now
			res.Linked++
			changed = true
		default:
			item, warnings := itemFromRemote(rec, now)
			for _, w := range warnings {
				res.Warnings++
				s.logger.Warn("import attribute ignored", slog.String("detail", w))
			}
			items = append(items, item)
			res.Added++
			changed = true
		}
	}
	if !changed {
		return res, records, p, nil
	}
	if err := s.items.SaveItems(ctx, items); err != nil {
		return res, records, p, fmt.Errorf("save imported items: %w", err)
	}
	s.settleWrite(ctx)
	return res, records, p, nil
}

// ExportToRemote writes a local item to the remote service. An unlinked item
// is created remotely and the returned id is stored on it; a linked item has
// its remote record updated.
func (s *Service) ExportToRemote(ctx context.Context, itemID string) (ExportResult, error) {
	release, tracker, err := s.begin(ctx, ActionExport)
	if err != nil {
		return ExportResult{}, err
	}
	defer release()

	res, counts, err := s.export(ctx, itemID)
	if err != nil {
		return res, s.finish(ctx, tracker, ActionExport, nil, "", fmt.Errorf("export item %s: %w", itemID, err))
	}
	verb := "updated"
	if res.Created {
		verb = "created"
	}
	details := fmt.Sprintf("%s remote record %s for item %s", verb, res.RemoteID, res.ItemID)
	return res, s.finish(ctx, tracker, ActionExport, counts, details, nil)
}

func (s *Service) export(ctx context.Context, itemID string) (ExportResult, *auditlog.Counts, error) {
	res := ExportResult{ItemID: itemID}
	items, err := s.items.Items(ctx)
	if err != nil {
		return res, nil, err
	}
	idx := -1
	for i := range items {
		if items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return res, nil, ErrItemNotFound
	}
	item := items[idx]
	if strings.TrimSpace(item.Title) == "" {
		return res, nil, inventory.ErrTitleRequired
	}

	if item.Linked() {
		updated, err := s.remote.UpdateInventory(ctx, recordFromItem(item))
		if err != nil {
			return res, nil, err
		}
		res.RemoteID = string(updated.ID)
		return res, &auditlog.Counts{Updated: 1}, nil
	}

	created, err := s.remote.CreateInventory(ctx, recordFromItem(item))
	if err != nil {
		return res, nil, err
	}
	if created.ID == "" {
		return res, nil, &remote.RemoteValidationError{Message: "create response carries no id"}
	}
	items[idx].RemoteID = string(created.ID)
	items[idx].UpdatedAt = s.now().UTC()
	if err := s.items.SaveItems(ctx, items); err != nil {
		if errors.Is(err, inventory.ErrDuplicateRemoteID) {
			return res, nil, fmt.Errorf("remote id %s: %w", created.ID, err)
		}
		return res, nil, err
	}
	s.settleWrite(ctx)
	res.RemoteID = string(created.ID)
	res.Created = true
	return res, &auditlog.Counts{Added: 1}, nil
}

// Reconcile imports the remote catalogue, then deletes local items whose
// remote record no longer exists.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	release, tracker, err := s.begin(ctx, ActionReconcile)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer release()

	imported, records, p, err := s.importRecords(ctx)
	res := ReconcileResult{Added: imported.Added, Import: imported}
	if err != nil {
		return res, s.finish(ctx, tracker, ActionReconcile, nil, "", err)
	}

	present := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			present[string(rec.ID)] = struct{}{}
		}
	}
	items, err := s.items.Items(ctx)
	if err != nil {
		return res, s.finish(ctx, tracker, ActionReconcile, nil, "", err)
	}
	kept := items[:0]
	for _, item := range items {
		if _, ok := present[item.RemoteID]; item.Linked() && !ok {
			s.logger.Info("removing item missing remotely",
				slog.String("item_id", item.ID),
				slog.String("remote_id", item.RemoteID))
			res.Removed++
			continue
		}
		kept = append(kept, item)
	}
	if res.Removed > 0 {
		if err := s.items.SaveItems(ctx, kept); err != nil {
			return res, s.finish(ctx, tracker, ActionReconcile, nil, "", fmt.Errorf("remove stale items: %w", err))
		}
		s.settleWrite(ctx)
	}

	counts := imported.counts()
	counts.Deleted = res.Removed
	summary := fmt.Sprintf("added %d, removed %d, linked %d, errors %d", res.Added, res.Removed, imported.Linked, imported.Errored)
	return res, s.finish(ctx, tracker, ActionReconcile, counts, describe(summary, p), nil)
}
