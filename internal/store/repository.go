// Package store persists the named local collections used by the sync engine.
//
// Every collection is a flat ordered sequence of JSON records. Callers read a
// collection in full, edit it in memory and write it back in full; there is no
// partial update path.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names shared by the engine.
const (
	CollectionItems  = "inventory_items"
	CollectionSales  = "sale_history"
	CollectionLedger = "ledger_entries"
	CollectionLog    = "sync_log"
	CollectionCursor = "sync_cursor"
)

// ErrUnknownCollection is returned for an empty collection name.
var ErrUnknownCollection = errors.New("store: collection name required")

// Repository reads and rewrites whole collections.
type Repository interface {
	// Get returns every record of the collection in stored order. A
	// collection that was never written is empty, not an error.
	Get(ctx context.Context, collection string) ([]json.RawMessage, error)
	// Put replaces the collection with records.
	Put(ctx context.Context, collection string, records []json.RawMessage) error
	// PutAll replaces several collections in one atomic write.
	PutAll(ctx context.Context, batch map[string][]json.RawMessage) error
}

// Load decodes a collection into typed records.
func Load[T any](ctx context.Context, repo Repository, collection string) ([]T, error) {
	raw, err := repo.Get(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", collection, err)
	}
	out := make([]T, 0, len(raw))
	for i, rec := range raw {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, fmt.Errorf("store: decode %s[%d]: %w", collection, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode marshals typed records for Put or PutAll.
func Encode[T any](records []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(records))
	for i := range records {
		raw, err := json.Marshal(records[i])
		if err != nil {
			return nil, fmt.Errorf("store: encode record %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Save encodes and rewrites a collection.
func Save[T any](ctx context.Context, repo Repository, collection string, records []T) error {
	raw, err := Encode(records)
	if err != nil {
		return err
	}
	if err := repo.Put(ctx, collection, raw); err != nil {
		return fmt.Errorf("store: put %s: %w", collection, err)
	}
	return nil
}

func cloneRecords(records []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, rec := range records {
		cp := make(json.RawMessage, len(rec))
		copy(cp, rec)
		out[i] = cp
	}
	return out
}
