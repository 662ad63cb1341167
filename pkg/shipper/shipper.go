// Package shipper provides the carrier-neutral model for booking courier
// shipments: addresses, items, services, request validation and results.
package shipper

import (
	"context"
)

// Shipper defines the interface that a courier account must implement.
// Every error returned is a *ShipperError.
type Shipper interface {
	// Name returns the account identifier (e.g., "apc").
	Name() string

	// Services lists the services that can carry the queried items.
	Services(ctx context.Context, q *ServiceQuery) (*Services, error)

	// CreateDelivery books goods from the company to a customer.
	CreateDelivery(ctx context.Context, req *ShipmentRequest) *Result

	// CreateCollection books goods from a customer back to the company.
	CreateCollection(ctx context.Context, req *ShipmentRequest) *Result

	// GetLabel retrieves the shipping label for an order.
	GetLabel(ctx context.Context, req *LabelRequest) (*Label, error)

	// Track returns the tracking history of a consignment.
	Track(ctx context.Context, wayBill string) (*Tracking, error)

	// CancelOrder cancels an order that has not been collected.
	CancelOrder(ctx context.Context, orderNumber string) error
}
