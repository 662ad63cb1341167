// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
)

// Client is a mock shipper for testing. It validates requests with the
// real Validator so callers see the same violations as production.
type Client struct {
	name      string
	validator *shipper.Validator

	// Fail, when set, is returned by every operation.
	Fail *shipper.ShipperError
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name, validator: shipper.NewValidator()}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Services returns two mock services.
func (c *Client) Services(ctx context.Context, q *shipper.ServiceQuery) (*shipper.Services, error) {
	if c.Fail != nil {
		return nil, c.Fail
	}
	if v := c.validator.ValidateServiceQuery(q); len(v) > 0 {
		return nil, shipper.FromViolations(c.name, v)
	}

	delivery := shipper.DateOnly(time.Now().AddDate(0, 0, 1))
	countries := []string{q.Delivery.CountryCode}
	return shipper.NewServices(c.name, []shipper.Service{
		{
			Code:                  "ND16",
			Name:                  "Parcel Next Day 16:00",
			Carrier:               c.name,
			ItemType:              shipper.ItemParcel,
			DeliveryGroup:         "NEXT DAY",
			Countries:             countries,
			CostUnit:              shipper.CostUnit,
			MinTransitDays:        1,
			MaxTransitDays:        1,
			Tracked:               true,
			MaxCompensation:       100,
			EstimatedDeliveryDate: &delivery,
		},
		{
			Code:                  "TDAY",
			Name:                  "Two Day",
			Carrier:               c.name,
			ItemType:              shipper.ItemParcel,
			DeliveryGroup:         "TWO DAY",
			Countries:             countries,
			CostUnit:              shipper.CostUnit,
			MinTransitDays:        2,
			MaxTransitDays:        2,
			MaxCompensation:       50,
			EstimatedDeliveryDate: &delivery,
		},
	}), nil
}

// CreateDelivery books a mock delivery.
func (c *Client) CreateDelivery(ctx context.Context, req *shipper.ShipmentRequest) *shipper.Result {
	return c.book(req)
}

// CreateCollection books a mock collection.
func (c *Client) CreateCollection(ctx context.Context, req *shipper.ShipmentRequest) *shipper.Result {
	return c.book(req)
}

func (c *Client) book(req *shipper.ShipmentRequest) *shipper.Result {
	if c.Fail != nil {
		return shipper.Failed(c.Fail)
	}
	valid, v := c.validator.Validate(req)
	if len(v) > 0 {
		return shipper.Failed(shipper.FromViolations(c.name, v))
	}

	r := valid.Request()
	now := time.Now()
	orderNumber := fmt.Sprintf("%s-order-%d", c.name, now.UnixNano())
	return shipper.Succeeded(shipper.Consignment{
		Number:      fmt.Sprintf("MOCK%d", now.UnixNano()%1000000000),
		OrderNumber: orderNumber,
		Reference:   r.Reference,
		ProductCode: r.ServiceCode,
		LabelRef:    orderNumber,
	})
}

// GetLabel returns a mock shipping label.
func (c *Client) GetLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
	if c.Fail != nil {
		return nil, c.Fail
	}
	if req == nil || strings.TrimSpace(req.OrderNumber) == "" {
		return nil, shipper.FromViolations(c.name, shipper.Violations{{
			Field: "order_number", Rule: "required", Message: "is required",
		}})
	}
	format := req.Format
	if format == "" {
		format = shipper.LabelPDF
	}
	return &shipper.Label{
		OrderNumber: req.OrderNumber,
		Format:      format,
		Data:        []byte("%PDF-1.4 mock label"),
	}, nil
}

// Track returns a mock tracking history.
func (c *Client) Track(ctx context.Context, wayBill string) (*shipper.Tracking, error) {
	if c.Fail != nil {
		return nil, c.Fail
	}
	now := time.Now()
	return &shipper.Tracking{
		WayBill: wayBill,
		Status:  shipper.StatusInTransit,
		Events: []shipper.TrackingEvent{
			{Timestamp: now.Add(-24 * time.Hour), Description: "Collected", Status: shipper.StatusCollected},
			{Timestamp: now, Description: "At hub", Status: shipper.StatusInTransit},
		},
	}, nil
}

// CancelOrder cancels a mock order.
func (c *Client) CancelOrder(ctx context.Context, orderNumber string) error {
	if c.Fail != nil {
		return c.Fail
	}
	return nil
}

var _ shipper.Shipper = (*Client)(nil)
