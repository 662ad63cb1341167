package apc

import (
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
)

// APC wire layouts.
const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
)

// BuildOrderPayload converts a validated shipment into the APC order
// payload. The mapping is pure: the same shipment always yields the same
// payload. A nil shipment is a programming error and panics.
func BuildOrderPayload(s *shipper.ValidShipment) *OrderPayload {
	if s == nil {
		panic("apc: BuildOrderPayload called with nil ValidShipment")
	}
	r := s.Request()

	return &OrderPayload{
		Orders: OrdersEnvelope{
			Order: WireOrder{
				ProductCode:     r.ServiceCode,
				Reference:       r.Reference,
				CollectionDate:  r.CollectionDate.Format(dateLayout),
				ReadyAt:         r.ReadyAt.String(),
				ClosedAt:        r.ClosedAt.String(),
				Collection:      addressToWire(r.Origin),
				Delivery:        addressToWire(r.Destination),
				GoodsInfo:       goodsToWire(r.Goods),
				ShipmentDetails: itemsToWire(r.Items),
			},
		},
	}
}

// BuildServiceCheckPayload converts an availability query into the APC
// payload. The query must already have been validated.
func BuildServiceCheckPayload(q *shipper.ServiceQuery) *ServiceCheckPayload {
	if q == nil {
		panic("apc: BuildServiceCheckPayload called with nil ServiceQuery")
	}

	return &ServiceCheckPayload{
		Orders: ServiceCheckOrders{
			Order: ServiceCheckOrder{
				CollectionDate: q.CollectionDate.Format(dateLayout),
				ReadyAt:        q.ReadyAt.String(),
				ClosedAt:       q.ClosedAt.String(),
				Collection: WireLocation{
					PostalCode:  q.Collection.PostalCode,
					CountryCode: q.Collection.CountryCode,
				},
				Delivery: WireLocation{
					PostalCode:  q.Delivery.PostalCode,
					CountryCode: q.Delivery.CountryCode,
				},
				GoodsInfo: WireGoodsInfo{
					GoodsValue: Float(q.GoodsValue),
					Fragile:    Bool(q.Fragile),
				},
				ShipmentDetails: *itemsToWire(q.Items),
			},
		},
	}
}

// ParseOrderPayload reads an order payload back into a domain request.
// It is the inverse of BuildOrderPayload.
func ParseOrderPayload(p *OrderPayload, kind shipper.ShipmentKind) (*shipper.ShipmentRequest, error) {
	if p == nil {
		return nil, fmt.Errorf("parsing order payload: %w", shipper.ErrInvalidRequest)
	}
	o := p.Orders.Order
	if o.Collection == nil || o.Delivery == nil {
		return nil, fmt.Errorf("parsing order payload: collection and delivery are required: %w", shipper.ErrInvalidAddress)
	}

	date, err := time.Parse(dateLayout, o.CollectionDate)
	if err != nil {
		return nil, fmt.Errorf("parsing collection date %q: %w", o.CollectionDate, err)
	}
	readyAt, err := shipper.ParseClock(o.ReadyAt)
	if err != nil {
		return nil, err
	}
	closedAt, err := shipper.ParseClock(o.ClosedAt)
	if err != nil {
		return nil, err
	}

	req := &shipper.ShipmentRequest{
		Kind:           kind,
		ServiceCode:    o.ProductCode,
		Origin:         addressFromWire(o.Collection),
		Destination:    addressFromWire(o.Delivery),
		Reference:      o.Reference,
		CollectionDate: date,
		ReadyAt:        readyAt,
		ClosedAt:       closedAt,
	}
	if o.GoodsInfo != nil {
		req.Goods = shipper.GoodsInfo{
			Description:        o.GoodsInfo.GoodsDescription,
			Value:              float64(o.GoodsInfo.GoodsValue),
			Fragile:            bool(o.GoodsInfo.Fragile),
			IncreasedLiability: bool(o.GoodsInfo.IncreasedLiability),
		}
	}
	if o.ShipmentDetails != nil {
		req.Items = itemsFromWire(o.ShipmentDetails.Items.Item)
	}
	return req, nil
}

// ============================================================================
// Conversion helpers: Shipper models <-> API models
// ============================================================================

func addressToWire(a shipper.Address) *WireAddress {
	w := &WireAddress{
		CompanyName:  a.Company,
		PostalCode:   a.PostalCode,
		City:         a.City,
		County:       a.County,
		CountryCode:  a.CountryCode,
		Safeplace:    a.SafePlace,
		Instructions: a.Instructions,
	}
	if len(a.Lines) > 0 {
		w.AddressLine1 = a.Lines[0]
	}
	if len(a.Lines) > 1 {
		w.AddressLine2 = a.Lines[1]
	}
	if a.Contact != (shipper.Contact{}) {
		w.Contact = &WireContact{
			PersonName:   a.Contact.Name,
			PhoneNumber:  a.Contact.Phone,
			MobileNumber: a.Contact.Mobile,
			Email:        a.Contact.Email,
		}
	}
	return w
}

func addressFromWire(w *WireAddress) shipper.Address {
	a := shipper.Address{
		Company:      w.CompanyName,
		City:         w.City,
		County:       w.County,
		PostalCode:   w.PostalCode,
		CountryCode:  w.CountryCode,
		Instructions: w.Instructions,
		SafePlace:    w.Safeplace,
	}
	for _, line := range []string{w.AddressLine1, w.AddressLine2} {
		if strings.TrimSpace(line) != "" {
			a.Lines = append(a.Lines, line)
		}
	}
	if w.Contact != nil {
		a.Contact = shipper.Contact{
			Name:   w.Contact.PersonName,
			Phone:  w.Contact.PhoneNumber,
			Mobile: w.Contact.MobileNumber,
			Email:  w.Contact.Email,
		}
	}
	return a
}

func goodsToWire(g shipper.GoodsInfo) *WireGoodsInfo {
	return &WireGoodsInfo{
		GoodsValue:         Float(g.Value),
		GoodsDescription:   g.Description,
		Fragile:            Bool(g.Fragile),
		IncreasedLiability: Bool(g.IncreasedLiability),
	}
}

func itemsToWire(items []shipper.Item) *WireShipmentDetails {
	list := make(ItemList, len(items))
	var total float64
	for i, it := range items {
		itemType := it.Type
		if itemType == "" {
			itemType = shipper.ItemAll
		}
		list[i] = WireItem{
			Type:   string(itemType),
			Weight: Float(it.Weight),
			Length: Float(it.Length),
			Width:  Float(it.Width),
			Height: Float(it.Height),
			Value:  Float(it.Value),
		}
		total += it.Weight
	}
	return &WireShipmentDetails{
		NumberOfPieces: Int(len(items)),
		TotalWeight:    Float(total),
		Items:          WireItems{Item: list},
	}
}

func itemsFromWire(list ItemList) []shipper.Item {
	items := make([]shipper.Item, len(list))
	for i, w := range list {
		items[i] = shipper.Item{
			Type:   shipper.ItemType(strings.ToUpper(w.Type)),
			Weight: float64(w.Weight),
			Length: float64(w.Length),
			Width:  float64(w.Width),
			Height: float64(w.Height),
			Value:  float64(w.Value),
		}
	}
	return items
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{dateLayout, dateTimeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
