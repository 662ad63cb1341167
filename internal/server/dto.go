package server

import (
	"strings"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
)

const dateLayout = "2006-01-02"

// Request types

type addressInput struct {
	Company      string          `json:"company,omitempty"`
	Lines        []string        `json:"lines"`
	City         string          `json:"city"`
	County       string          `json:"county,omitempty"`
	PostalCode   string          `json:"postal_code"`
	CountryCode  string          `json:"country_code,omitempty"`
	Contact      shipper.Contact `json:"contact"`
	SafePlace    string          `json:"safe_place,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
}

func (a addressInput) toAddress() shipper.Address {
	addr := shipper.NewAddress(a.Lines, a.City, a.PostalCode, a.CountryCode,
		shipper.WithCompanyName(a.Company),
		shipper.WithCounty(a.County),
		shipper.WithContact(a.Contact),
		shipper.WithSafePlace(a.SafePlace),
	)
	return addr
}

// shipmentInput is the body of POST /v1/deliveries and /v1/collections.
// Address is the customer: the destination of a delivery or the origin of
// a collection. The company side comes from the server configuration.
type shipmentInput struct {
	Carrier        string             `json:"carrier,omitempty"`
	ServiceCode    string             `json:"service_code"`
	Address        addressInput       `json:"address"`
	Items          []shipper.Item     `json:"items"`
	Reference      string             `json:"reference,omitempty"`
	CollectionDate string             `json:"collection_date,omitempty"`
	ReadyAt        string             `json:"ready_at,omitempty"`
	ClosedAt       string             `json:"closed_at,omitempty"`
	Goods          *shipper.GoodsInfo `json:"goods,omitempty"`
}

// toRequest converts the input into a domain request. Malformed dates and
// times come back as violations, in the same shape the validator uses.
func (in shipmentInput) toRequest(company shipper.Company, kind shipper.ShipmentKind) (*shipper.ShipmentRequest, shipper.Violations) {
	var violations shipper.Violations
	opts := []shipper.RequestOption{
		shipper.WithReference(in.Reference),
		shipper.WithInstructions(in.Address.Instructions),
	}

	if in.CollectionDate != "" {
		date, err := time.Parse(dateLayout, strings.TrimSpace(in.CollectionDate))
		if err != nil {
			violations = append(violations, formatViolation("collection_date", "YYYY-MM-DD"))
		} else {
			opts = append(opts, shipper.WithCollectionDate(date))
		}
	}
	if in.ReadyAt != "" || in.ClosedAt != "" {
		readyAt, closedAt, v := parseHours(in.ReadyAt, in.ClosedAt, company)
		violations = append(violations, v...)
		opts = append(opts, shipper.WithHours(readyAt, closedAt))
	}
	if in.Goods != nil {
		opts = append(opts, shipper.WithGoods(*in.Goods))
	}
	if len(violations) > 0 {
		return nil, violations
	}

	customer := in.Address.toAddress()
	if kind == shipper.KindCollection {
		return shipper.NewCollectionRequest(company, in.ServiceCode, customer, in.Items, opts...), nil
	}
	return shipper.NewDeliveryRequest(company, in.ServiceCode, customer, in.Items, opts...), nil
}

// servicesInput is the body of POST /v1/services.
type servicesInput struct {
	Carriers       []string       `json:"carriers,omitempty"`
	PostalCode     string         `json:"postal_code"`
	CountryCode    string         `json:"country_code,omitempty"`
	Items          []shipper.Item `json:"items"`
	CollectionDate string         `json:"collection_date,omitempty"`
	ReadyAt        string         `json:"ready_at,omitempty"`
	ClosedAt       string         `json:"closed_at,omitempty"`
	GoodsValue     float64        `json:"goods_value,omitempty"`
	Fragile        bool           `json:"fragile,omitempty"`

	// Filters applied to the offered services.
	ItemType       string `json:"item_type,omitempty"`
	DeliveryGroup  string `json:"delivery_group,omitempty"`
	Tracked        bool   `json:"tracked,omitempty"`
	Signed         bool   `json:"signed,omitempty"`
	MaxTransitDays int    `json:"max_transit_days,omitempty"`
}

func (in servicesInput) toQuery(company shipper.Company) (*shipper.ServiceQuery, shipper.Violations) {
	var violations shipper.Violations
	q := shipper.NewServiceQuery(company, in.PostalCode, in.CountryCode, in.Items)
	q.GoodsValue = in.GoodsValue
	q.Fragile = in.Fragile

	if in.CollectionDate != "" {
		date, err := time.Parse(dateLayout, strings.TrimSpace(in.CollectionDate))
		if err != nil {
			violations = append(violations, formatViolation("collection_date", "YYYY-MM-DD"))
		} else {
			q.CollectionDate = shipper.DateOnly(date)
		}
	}
	if in.ReadyAt != "" || in.ClosedAt != "" {
		readyAt, closedAt, v := parseHours(in.ReadyAt, in.ClosedAt, company)
		violations = append(violations, v...)
		q.ReadyAt, q.ClosedAt = readyAt, closedAt
	}
	return q, violations
}

func (in servicesInput) predicates() []shipper.ServicePredicate {
	var preds []shipper.ServicePredicate
	if in.ItemType != "" {
		preds = append(preds, shipper.ByItemType(shipper.ItemType(in.ItemType)))
	}
	if in.DeliveryGroup != "" {
		preds = append(preds, shipper.ByDeliveryGroup(in.DeliveryGroup))
	}
	if in.Tracked {
		preds = append(preds, shipper.Tracked())
	}
	if in.Signed {
		preds = append(preds, shipper.Signed())
	}
	if in.MaxTransitDays > 0 {
		preds = append(preds, shipper.MaxTransitDays(in.MaxTransitDays))
	}
	return preds
}

// parseHours reads "HH:MM" opening hours, falling back to the company's
// for whichever side is blank.
func parseHours(readyAt, closedAt string, company shipper.Company) (shipper.Clock, shipper.Clock, shipper.Violations) {
	var violations shipper.Violations
	from, to := company.OpenFrom, company.OpenTo
	if readyAt != "" {
		c, err := shipper.ParseClock(readyAt)
		if err != nil {
			violations = append(violations, formatViolation("ready_at", "HH:MM"))
		}
		from = c
	}
	if closedAt != "" {
		c, err := shipper.ParseClock(closedAt)
		if err != nil {
			violations = append(violations, formatViolation("closed_at", "HH:MM"))
		}
		to = c
	}
	return from, to, violations
}

func formatViolation(field, layout string) shipper.Violation {
	return shipper.Violation{Field: field, Rule: "format", Message: "must be formatted as " + layout}
}

// Response types

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Carrier   string       `json:"carrier,omitempty"`
	Kind      string       `json:"kind,omitempty"`
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	Fields    []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func toErrorBody(e *shipper.ShipperError) errorBody {
	body := errorBody{
		Carrier:   e.Carrier,
		Kind:      string(e.Kind),
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
	}
	for _, f := range e.Fields {
		body.Fields = append(body.Fields, fieldError{Field: f.Field, Rule: f.Rule, Message: f.Message})
	}
	return body
}

type consignmentResponse struct {
	Carrier             string   `json:"carrier"`
	Number              string   `json:"number"`
	OrderNumber         string   `json:"order_number,omitempty"`
	Barcode             string   `json:"barcode,omitempty"`
	Reference           string   `json:"reference,omitempty"`
	ProductCode         string   `json:"product_code,omitempty"`
	NetworkName         string   `json:"network_name,omitempty"`
	CollectionDate      string   `json:"collection_date,omitempty"`
	DeliveryDate        string   `json:"delivery_date,omitempty"`
	ItemTrackingNumbers []string `json:"item_tracking_numbers,omitempty"`
	LabelRef            string   `json:"label_ref,omitempty"`
}

func toConsignmentResponse(carrier string, c shipper.Consignment) consignmentResponse {
	return consignmentResponse{
		Carrier:             carrier,
		Number:              c.Number,
		OrderNumber:         c.OrderNumber,
		Barcode:             c.Barcode,
		Reference:           c.Reference,
		ProductCode:         c.ProductCode,
		NetworkName:         c.NetworkName,
		CollectionDate:      formatDate(c.CollectionDate),
		DeliveryDate:        formatDate(c.DeliveryDate),
		ItemTrackingNumbers: c.ItemTrackingNumbers,
		LabelRef:            c.LabelRef,
	}
}

type servicesResponse struct {
	Services []serviceResponse `json:"services"`
	Errors   []string          `json:"errors,omitempty"`
}

type serviceResponse struct {
	Carrier               string   `json:"carrier"`
	Code                  string   `json:"code"`
	Name                  string   `json:"name"`
	ItemType              string   `json:"item_type,omitempty"`
	DeliveryGroup         string   `json:"delivery_group,omitempty"`
	Countries             []string `json:"countries,omitempty"`
	CostUnit              string   `json:"cost_unit,omitempty"`
	MinTransitDays        int      `json:"min_transit_days"`
	MaxTransitDays        int      `json:"max_transit_days"`
	Tracked               bool     `json:"tracked"`
	Signed                bool     `json:"signed"`
	MaxCompensation       float64  `json:"max_compensation"`
	CollectionDate        string   `json:"collection_date,omitempty"`
	EstimatedDeliveryDate string   `json:"estimated_delivery_date,omitempty"`
}

func toServiceResponse(account string, s shipper.Service) serviceResponse {
	return serviceResponse{
		Carrier:               account,
		Code:                  s.Code,
		Name:                  s.Name,
		ItemType:              string(s.ItemType),
		DeliveryGroup:         s.DeliveryGroup,
		Countries:             s.Countries,
		CostUnit:              s.CostUnit,
		MinTransitDays:        s.MinTransitDays,
		MaxTransitDays:        s.MaxTransitDays,
		Tracked:               s.Tracked,
		Signed:                s.Signed,
		MaxCompensation:       s.MaxCompensation,
		CollectionDate:        formatDate(s.CollectionDate),
		EstimatedDeliveryDate: formatDate(s.EstimatedDeliveryDate),
	}
}

type trackingResponse struct {
	WayBill string          `json:"waybill"`
	Status  string          `json:"status"`
	Events  []trackingEvent `json:"events"`
}

type trackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	CarrierCode string    `json:"carrier_code,omitempty"`
}

func toTrackingResponse(t *shipper.Tracking) trackingResponse {
	resp := trackingResponse{
		WayBill: t.WayBill,
		Status:  string(t.Status),
		Events:  make([]trackingEvent, 0, len(t.Events)),
	}
	for _, e := range t.Events {
		resp.Events = append(resp.Events, trackingEvent{
			Timestamp:   e.Timestamp,
			Status:      string(e.Status),
			Description: e.Description,
			Location:    e.Location,
			CarrierCode: e.CarrierCode,
		})
	}
	return resp
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
