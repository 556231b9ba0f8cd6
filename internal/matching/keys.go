package matching

import (
	"strings"

	"github.com/odyssey-erp/stocksync/internal/remote"
)

// keySep separates composite key fields.
const keySep = "\x1f"

// PrimaryKey identifies an outbound event by shipment and remote item.
// It is empty when either component is missing.
func PrimaryKey(shipmentID, remoteInventoryID string) string {
	if shipmentID == "" || remoteInventoryID == "" {
		return ""
	}
	return shipmentID + keySep + remoteInventoryID
}

// SecondaryKey identifies an outbound event by its business content, for
// event shapes without a stable primary identifier.
func SecondaryKey(title, unitPrice, deliveryDate, counterparty string) string {
	return strings.Join([]string{canonical(title), unitPrice, deliveryDate, canonical(counterparty)}, keySep)
}

// EventKeys returns both dedup keys of an event.
func EventKeys(e remote.OutboundDeliveryEvent) (primary, secondary string) {
	date := ""
	if !e.DeliveryDate.IsZero() {
		date = e.DeliveryDate.UTC().Format("2006-01-02")
	}
	return PrimaryKey(e.ShipmentID, e.RemoteInventoryID),
		SecondaryKey(e.Title, e.UnitPrice.String(), date, e.CounterpartyName)
}
