package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/stocksync/internal/store"
)

// cursorRecord is the single record held in the cursor collection.
type cursorRecord struct {
	LastProcessed time.Time `json:"lastProcessed"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SyncCursor is the persisted "last processed" timestamp of delta sync.
type SyncCursor struct {
	repo store.Repository
	now  func() time.Time
}

// NewSyncCursor binds a cursor to the collection store.
func NewSyncCursor(repo store.Repository) *SyncCursor {
	return &SyncCursor{repo: repo, now: time.Now}
}

// Load returns the stored cursor, or the zero time if none was written.
func (c *SyncCursor) Load(ctx context.Context) (time.Time, error) {
	recs, err := store.Load[cursorRecord](ctx, c.repo, store.CollectionCursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("dedup: load cursor: %w", err)
	}
	if len(recs) == 0 {
		return time.Time{}, nil
	}
	return recs[len(recs)-1].LastProcessed, nil
}

// Advance moves the cursor to to. A value not after the stored cursor leaves
// it unchanged. The returned time is the cursor after the call.
func (c *SyncCursor) Advance(ctx context.Context, to time.Time) (time.Time, error) {
	current, err := c.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !to.After(current) {
		return current, nil
	}
	to = to.UTC()
	rec := cursorRecord{LastProcessed: to, UpdatedAt: c.now().UTC()}
	if err := store.Save(ctx, c.repo, store.CollectionCursor, []cursorRecord{rec}); err != nil {
		return current, fmt.Errorf("dedup: advance cursor: %w", err)
	}
	return to, nil
}
