package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Attribute names used to carry fields the remote schema has no column for.
const (
	AttrPurchasePrice = "purchasePrice"
	AttrBuybackPrice  = "buybackPrice"
	AttrCondition     = "condition"
)

// ID is an identifier assigned by the remote service. The service emits it
// either as a JSON string or as a number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("remote: id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Attribute is a free-form name/value pair on an inventory record.
type Attribute struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

// InventoryRecord is the remote copy of a stock item.
type InventoryRecord struct {
	ID         ID          `json:"id,omitempty"`
	Title      string      `json:"title" validate:"required"`
	Quantity   float64     `json:"quantity" validate:"gte=0"`
	Attributes []Attribute `json:"attributes,omitempty" validate:"dive"`
}

// Attribute returns the value of the named attribute.
func (r InventoryRecord) Attribute(name string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Units returns the quantity as whole units.
func (r InventoryRecord) Units() int {
	return wholeUnits(r.Quantity)
}

// ShipmentLine is a delivery line nested in a shipment.
type ShipmentLine struct {
	InventoryID ID              `json:"inventoryId"`
	Title       string          `json:"title"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Shipment is a remote packing/shipment record.
type Shipment struct {
	ID               ID             `json:"id"`
	CounterpartyName string         `json:"customerName"`
	DeliveryDate     int64          `json:"deliveryDate"`
	Lines            []ShipmentLine `json:"deliveryLines"`
}

// Delivered returns the delivery date; the wire value is epoch milliseconds.
func (s Shipment) Delivered() time.Time {
	if s.DeliveryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.DeliveryDate).UTC()
}

// OutboundDeliveryEvent is one item leaving remote stock.
type OutboundDeliveryEvent struct {
	ShipmentID        string
	RemoteInventoryID string
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal
	DeliveryDate      time.Time
	CounterpartyName  string
}

// Events flattens the shipment's delivery lines.
func (s Shipment) Events() []OutboundDeliveryEvent {
	events := make([]OutboundDeliveryEvent, 0, len(s.Lines))
	for _, line := range s.Lines {
		events = append(events, OutboundDeliveryEvent{
			ShipmentID:        string(s.ID),
			RemoteInventoryID: string(line.InventoryID),
			Title:             line.Title,
			Quantity:          wholeUnits(line.Quantity),
			UnitPrice:         line.UnitPrice,
			DeliveryDate:      s.Delivered(),
			CounterpartyName:  s.CounterpartyName,
		})
	}
	return events
}

func wholeUnits(q float64) int {
	if q <= 0 || math.IsNaN(q) {
		return 0
	}
	return int(math.Round(q))
}
