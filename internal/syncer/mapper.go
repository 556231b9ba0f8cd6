package syncer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

// itemFromRemote materialises a local item. warnings lists attribute values
// that could not be parsed and were left at zero.
func itemFromRemote(rec remote.InventoryRecord, now time.Time) (item inventory.Item, warnings []string) {
	item = inventory.Item{
		ID:        uuid.NewString(),
		Title:     rec.Title,
		Quantity:  rec.Units(),
		RemoteID:  string(rec.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	var err error
	if item.PurchasePrice, err = priceAttribute(rec, remote.AttrPurchasePrice); err != nil {
		warnings = append(warnings, err.Error())
	}
	if item.BuybackPrice, err = priceAttribute(rec, remote.AttrBuybackPrice); err != nil {
		warnings = append(warnings, err.Error())
	}
	if v, ok := rec.Attribute(remote.AttrCondition); ok {
		item.Condition = v
	}
	return item, warnings
}

func priceAttribute(rec remote.InventoryRecord, name string) (decimal.Decimal, error) {
	v, ok := rec.Attribute(name)
	if !ok || v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("record %s: attribute %s=%q: %w", rec.ID, name, v, err)
	}
	return d, nil
}

// recordFromItem is the remote representation of a local item.
func recordFromItem(item inventory.Item) remote.InventoryRecord {
	rec := remote.InventoryRecord{
		ID:       remote.ID(item.RemoteID),
		Title:    item.Title,
		Quantity: float64(item.Quantity),
		Attributes: []remote.Attribute{
			{Name: remote.AttrPurchasePrice, Value: item.PurchasePrice.String()},
			{Name: remote.AttrBuybackPrice, Value: item.BuybackPrice.String()},
		},
	}
	if item.Condition != "" {
		rec.Attributes = append(rec.Attributes, remote.Attribute{Name: remote.AttrCondition, Value: item.Condition})
	}
	return rec
}

// eventFromSale rebuilds the delivery event a sync-originated sale was
// created from, so its dedup keys can be recomputed.
func eventFromSale(sale inventory.SaleRecord) remote.OutboundDeliveryEvent {
	return remote.OutboundDeliveryEvent{
		ShipmentID:        sale.ShipmentID,
		RemoteInventoryID: sale.RemoteInventoryID,
		Title:             sale.Title,
		Quantity:          sale.Quantity,
		UnitPrice:         sale.UnitPrice,
		DeliveryDate:      sale.DeliveryDate,
		CounterpartyName:  sale.Counterparty,
	}
}
