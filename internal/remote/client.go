package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	inventoryEndpoint = "/inventory"
	shipmentEndpoint  = "/shipment"
	defaultPageSize   = 100
	maxPages          = 1000
)

// Client exposes the remote service operations used by the sync engine.
type Client struct {
	gateway  *Gateway
	validate *validator.Validate
	pageSize int
}

// NewClient wraps a Gateway. A non-positive pageSize uses the default.
func NewClient(gateway *Gateway, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{gateway: gateway, validate: validator.New(), pageSize: pageSize}
}

// listEnvelope is one page of a list endpoint. Result is a pointer so a body
// without the key is told apart from an empty page.
type listEnvelope[T any] struct {
	Result *[]T `json:"result"`
}

func decodePage[T any](into *[]T) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var env listEnvelope[T]
		if err := decodeObject(raw, &env); err != nil {
			return err
		}
		if env.Result == nil {
			return errors.New(`list body has no "result" array`)
		}
		*into = *env.Result
		return nil
	}
}

// decodeObject unmarshals raw into target and rejects anything but a JSON
// object, null included.
func decodeObject(raw json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("body is not a JSON object")
	}
	return json.Unmarshal(trimmed, target)
}

func listPaged[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	var out []T
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		var batch []T
		req := &Request{Method: http.MethodGet, Endpoint: endpoint, Query: q, Decode: decodePage(&batch)}
		if _, err := c.gateway.CallWithRetry(ctx, req); err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < c.pageSize {
			return out, nil
		}
	}
	return out, nil
}

// ListInventory returns every remote inventory record.
func (c *Client) ListInventory(ctx context.Context) ([]InventoryRecord, error) {
	return listPaged[InventoryRecord](ctx, c, inventoryEndpoint, nil)
}

// CreateInventory creates a remote record and returns it with its new id.
func (c *Client) CreateInventory(ctx context.Context, rec InventoryRecord) (InventoryRecord, error) {
	rec.ID = ""
	created, err := c.write(ctx, http.MethodPost, inventoryEndpoint, rec)
	if err != nil {
		return InventoryRecord{}, err
	}
	if created.ID == "" {
		return InventoryRecord{}, &RemoteValidationError{Message: "create inventory: response carries no id"}
	}
	return created, nil
}

// UpdateInventory replaces the remote record identified by rec.ID.
func (c *Client) UpdateInventory(ctx context.Context, rec InventoryRecord) (InventoryRecord, error) {
	if rec.ID == "" {
		return InventoryRecord{}, &ValidationError{Err: fmt.Errorf("update inventory: id required")}
	}
	updated, err := c.write(ctx, http.MethodPut, inventoryEndpoint+"/id/"+url.PathEscape(string(rec.ID)), rec)
	if err != nil {
		return InventoryRecord{}, err
	}
	if updated.ID == "" {
		updated.ID = rec.ID
	}
	return updated, nil
}

func (c *Client) write(ctx context.Context, method, endpoint string, rec InventoryRecord) (InventoryRecord, error) {
	if err := c.validate.Struct(rec); err != nil {
		return InventoryRecord{}, &ValidationError{Err: err}
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return InventoryRecord{}, &ValidationError{Err: err}
	}
	var out InventoryRecord
	req := &Request{Method: method, Endpoint: endpoint, Body: body, Decode: func(raw json.RawMessage) error {
		// 204 arrives as null; callers decide whether an empty answer is enough.
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			out = InventoryRecord{}
			return nil
		}
		var rec InventoryRecord
		if err := decodeObject(raw, &rec); err != nil {
			return err
		}
		out = rec
		return nil
	}}
	if _, err := c.gateway.CallWithRetry(ctx, req); err != nil {
		return InventoryRecord{}, err
	}
	return out, nil
}

// ListShipments returns shipments delivered within [from, to]. A zero bound
// is left open.
func (c *Client) ListShipments(ctx context.Context, from, to time.Time) ([]Shipment, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("deliveryDate-ge", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		q.Set("deliveryDate-le", strconv.FormatInt(to.UnixMilli(), 10))
	}
	return listPaged[Shipment](ctx, c, shipmentEndpoint, q)
}

// OutboundEvents returns the delivery events of shipments within [from, to].
func (c *Client) OutboundEvents(ctx context.Context, from, to time.Time) ([]OutboundDeliveryEvent, error) {
	shipments, err := c.ListShipments(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var events []OutboundDeliveryEvent
	for _, s := range shipments {
		events = append(events, s.Events()...)
	}
	return events, nil
}
