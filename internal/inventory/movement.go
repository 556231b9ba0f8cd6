package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidateItems checks the collection-wide invariants before a rewrite.
func ValidateItems(items []Item) error {
	seen := make(map[string]string, len(items))
	for _, item := range items {
		if item.Quantity < 0 {
			return fmt.Errorf("item %s: %w", item.ID, ErrNegativeQuantity)
		}
		if item.RemoteID == "" {
			continue
		}
		if other, ok := seen[item.RemoteID]; ok {
			return fmt.Errorf("remote id %s on items %s and %s: %w", item.RemoteID, other, item.ID, ErrDuplicateRemoteID)
		}
		seen[item.RemoteID] = item.ID
	}
	return nil
}

// Decrement removes up to qty units from the item. The quantity is floored at
// zero; applied is the number of units actually removed and short reports
// whether the request exceeded the available stock.
func Decrement(item *Item, qty int, now time.Time) (applied int, short bool) {
	if qty <= 0 {
		return 0, false
	}
	applied = qty
	if applied > item.Quantity {
		applied = item.Quantity
		short = true
	}
	item.Quantity -= applied
	item.UpdatedAt = now
	return applied, short
}

// SaleInput describes a sale to record against an item.
type SaleInput struct {
	RemoteInventoryID string
	ShipmentID        string
	Title             string
	Quantity          int
	StockDecrement    int
	UnitPrice         decimal.Decimal
	Counterparty      string
	DeliveryDate      time.Time
	Provenance        Provenance
}

// NewSale builds a SaleRecord with computed profit.
func NewSale(item Item, input SaleInput, now time.Time) (SaleRecord, error) {
	if input.Quantity <= 0 {
		return SaleRecord{}, ErrInvalidSaleQuantity
	}
	title := input.Title
	if title == "" {
		title = item.Title
	}
	provenance := input.Provenance
	if provenance == "" {
		provenance = ProvenanceManual
	}
	qty := decimal.NewFromInt(int64(input.Quantity))
	profit := input.UnitPrice.Sub(item.BuybackPrice).Mul(qty)
	return SaleRecord{
		ID:                uuid.NewString(),
		ItemID:            item.ID,
		RemoteInventoryID: input.RemoteInventoryID,
		ShipmentID:        input.ShipmentID,
		Title:             title,
		Quantity:          input.Quantity,
		StockDecrement:    input.StockDecrement,
		UnitPrice:         input.UnitPrice,
		Profit:            profit,
		Counterparty:      input.Counterparty,
		DeliveryDate:      input.DeliveryDate,
		Provenance:        provenance,
		CreatedAt:         now,
	}, nil
}

// LedgerFromSale derives the single ledger entry for a sale. Sync-originated
// entries drop the counterparty name and keep only its pseudonym.
func LedgerFromSale(sale SaleRecord, redactor *Redactor, now time.Time) LedgerEntry {
	entry := LedgerEntry{
		ID:         uuid.NewString(),
		SaleID:     sale.ID,
		ItemID:     sale.ItemID,
		Kind:       LedgerKindSale,
		Title:      sale.Title,
		Quantity:   sale.Quantity,
		UnitPrice:  sale.UnitPrice,
		Amount:     sale.UnitPrice.Mul(decimal.NewFromInt(int64(sale.Quantity))),
		Profit:     sale.Profit,
		Provenance: sale.Provenance,
		OccurredAt: sale.DeliveryDate,
		RecordedAt: now,
	}
	if sale.Provenance == ProvenanceRemoteSync {
		entry.Redacted = true
		entry.CounterpartyRef = redactor.Ref(sale.Counterparty)
		return entry
	}
	entry.CounterpartyName = sale.Counterparty
	return entry
}
