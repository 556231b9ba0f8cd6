package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Provenance tags where a local record came from.
type Provenance string

const (
	// ProvenanceManual marks records entered locally.
	ProvenanceManual Provenance = "manual"
	// ProvenanceRemoteSync marks records created by the sync engine.
	ProvenanceRemoteSync Provenance = "remote-sync"
)

// LedgerKind enumerates ledger entry types.
type LedgerKind string

const (
	// LedgerKindSale records stock leaving through a sale.
	LedgerKindSale LedgerKind = "SALE"
	// LedgerKindAcquisition records stock bought in.
	LedgerKindAcquisition LedgerKind = "ACQUISITION"
)

// Item is a locally owned inventory record.
type Item struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	AltTitles     []string        `json:"altTitles,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	BuybackPrice  decimal.Decimal `json:"buybackPrice"`
	Condition     string          `json:"condition,omitempty"`
	RemoteID      string          `json:"remoteId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Linked reports whether the item corresponds to a remote record.
func (i Item) Linked() bool {
	return i.RemoteID != ""
}

// Titles returns the primary title followed by every alternate title.
func (i Item) Titles() []string {
	out := make([]string, 0, 1+len(i.AltTitles))
	out = append(out, i.Title)
	return append(out, i.AltTitles...)
}

// SaleRecord is created once per applied outbound delivery event.
type SaleRecord struct {
	ID                string          `json:"id"`
	ItemID            string          `json:"itemId"`
	RemoteInventoryID string          `json:"remoteInventoryId"`
	ShipmentID        string          `json:"shipmentId"`
	Title             string          `json:"title"`
	Quantity          int             `json:"quantity"`
	StockDecrement    int             `json:"stockDecrement"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Profit            decimal.Decimal `json:"profit"`
	Counterparty      string          `json:"counterparty"`
	DeliveryDate      time.Time       `json:"deliveryDate"`
	Provenance        Provenance      `json:"provenance"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// LedgerEntry is the append-only compliance record derived from a sale.
type LedgerEntry struct {
	ID               string          `json:"id"`
	SaleID           string          `json:"saleId"`
	ItemID           string          `json:"itemId"`
	Kind             LedgerKind      `json:"kind"`
	Title            string          `json:"title"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Amount           decimal.Decimal `json:"amount"`
	Profit           decimal.Decimal `json:"profit"`
	CounterpartyName string          `json:"counterpartyName,omitempty"`
	CounterpartyRef  string          `json:"counterpartyRef,omitempty"`
	Redacted         bool            `json:"redacted"`
	Provenance       Provenance      `json:"provenance"`
	OccurredAt       time.Time       `json:"occurredAt"`
	RecordedAt       time.Time       `json:"recordedAt"`
}

var (
	// ErrNegativeQuantity rejects an item with quantity below zero.
	ErrNegativeQuantity = errors.New("inventory: quantity must be >= 0")
	// ErrDuplicateRemoteID rejects two items linked to the same remote record.
	ErrDuplicateRemoteID = errors.New("inventory: remote id linked to more than one item")
	// ErrTitleRequired rejects an item without a title.
	ErrTitleRequired = errors.New("inventory: title required")
	// ErrInvalidSaleQuantity rejects a sale with a non-positive quantity.
	ErrInvalidSaleQuantity = errors.New("inventory: sale quantity must be > 0")
)
