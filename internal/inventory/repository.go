package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/stocksync/internal/store"
)

// Repository gives typed access to the local inventory collections.
type Repository struct {
	repo store.Repository
}

// NewRepository wraps a collection store.
func NewRepository(repo store.Repository) *Repository {
	return &Repository{repo: repo}
}

// Items loads every inventory item.
func (r *Repository) Items(ctx context.Context) ([]Item, error) {
	return store.Load[Item](ctx, r.repo, store.CollectionItems)
}

// SaveItems rewrites the item collection after checking invariants.
func (r *Repository) SaveItems(ctx context.Context, items []Item) error {
	if err := ValidateItems(items); err != nil {
		return err
	}
	return store.Save(ctx, r.repo, store.CollectionItems, items)
}

// Sales loads the sale history.
func (r *Repository) Sales(ctx context.Context) ([]SaleRecord, error) {
	return store.Load[SaleRecord](ctx, r.repo, store.CollectionSales)
}

// Ledger loads the ledger entries.
func (r *Repository) Ledger(ctx context.Context) ([]LedgerEntry, error) {
	return store.Load[LedgerEntry](ctx, r.repo, store.CollectionLedger)
}

// CommitSale rewrites items, sales and ledger in one atomic write.
func (r *Repository) CommitSale(ctx context.Context, items []Item, sales []SaleRecord, ledger []LedgerEntry) error {
	if err := ValidateItems(items); err != nil {
		return err
	}
	batch := make(map[string][]json.RawMessage, 3)
	var err error
	if batch[store.CollectionItems], err = store.Encode(items); err != nil {
		return err
	}
	if batch[store.CollectionSales], err = store.Encode(sales); err != nil {
		return err
	}
	if batch[store.CollectionLedger], err = store.Encode(ledger); err != nil {
		return err
	}
	if err := r.repo.PutAll(ctx, batch); err != nil {
		return fmt.Errorf("inventory: commit sale: %w", err)
	}
	return nil
}
