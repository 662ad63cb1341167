package apc

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// APIClient defines the transport for APC API operations.
// It returns the raw status and body so the response mapper sees exactly
// what the carrier sent; only transport failures are returned as errors.
type APIClient interface {
	// ServiceAvailability posts a service availability check.
	ServiceAvailability(ctx context.Context, req *ServiceCheckPayload) (*RawResponse, error)

	// CreateOrder books a delivery or collection.
	CreateOrder(ctx context.Context, req *OrderPayload) (*RawResponse, error)

	// GetOrder fetches an order, including its label in the given format.
	GetOrder(ctx context.Context, orderNumber string, labelFormat string) (*RawResponse, error)

	// CancelOrder cancels an order.
	CancelOrder(ctx context.Context, orderNumber string) (*RawResponse, error)

	// Track fetches the tracking history for a waybill.
	Track(ctx context.Context, wayBill string) (*RawResponse, error)
}

// RawResponse is an HTTP reply as received.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// ============================================================================
// Wire payload types (match the APC hypaship 3.0 JSON structure)
// ============================================================================

// OrderPayload is the body of POST /Orders.json and of its reply.
type OrderPayload struct {
	Orders OrdersEnvelope `json:"Orders"`
}

// OrdersEnvelope wraps a single order.
type OrdersEnvelope struct {
	Messages *Messages `json:"Messages,omitempty"`
	Order    WireOrder `json:"Order"`
}

// WireOrder is an APC order. Fields after ShipmentDetails are only
// present in replies.
type WireOrder struct {
	ProductCode     string               `json:"ProductCode,omitempty"`
	Reference       string               `json:"Reference,omitempty"`
	CollectionDate  string               `json:"CollectionDate,omitempty"`
	ReadyAt         string               `json:"ReadyAt,omitempty"`
	ClosedAt        string               `json:"ClosedAt,omitempty"`
	Status          string               `json:"Status,omitempty"`
	Collection      *WireAddress         `json:"Collection,omitempty"`
	Delivery        *WireAddress         `json:"Delivery,omitempty"`
	GoodsInfo       *WireGoodsInfo       `json:"GoodsInfo,omitempty"`
	ShipmentDetails *WireShipmentDetails `json:"ShipmentDetails,omitempty"`

	Messages     *Messages  `json:"Messages,omitempty"`
	OrderNumber  string     `json:"OrderNumber,omitempty"`
	WayBill      string     `json:"WayBill,omitempty"`
	Barcode      string     `json:"Barcode,omitempty"`
	NetworkName  string     `json:"NetworkName,omitempty"`
	ItemOption   string     `json:"ItemOption,omitempty"`
	DeliveryDate string     `json:"DeliveryDate,omitempty"`
	Label        *WireLabel `json:"Label,omitempty"`
}

// WireAddress is an APC collection or delivery address.
type WireAddress struct {
	CompanyName  string       `json:"CompanyName,omitempty"`
	AddressLine1 string       `json:"AddressLine1,omitempty"`
	AddressLine2 string       `json:"AddressLine2,omitempty"`
	PostalCode   string       `json:"PostalCode"`
	City         string       `json:"City,omitempty"`
	County       string       `json:"County,omitempty"`
	CountryCode  string       `json:"CountryCode"`
	Safeplace    string       `json:"Safeplace,omitempty"`
	Contact      *WireContact `json:"Contact,omitempty"`
	Instructions string       `json:"Instructions,omitempty"`
}

// WireContact is the contact block of an address.
type WireContact struct {
	PersonName   string `json:"PersonName,omitempty"`
	PhoneNumber  string `json:"PhoneNumber,omitempty"`
	MobileNumber string `json:"MobileNumber,omitempty"`
	Email        string `json:"Email,omitempty"`
}

// WireGoodsInfo describes the goods.
type WireGoodsInfo struct {
	GoodsValue         Float  `json:"GoodsValue,omitempty"`
	GoodsDescription   string `json:"GoodsDescription,omitempty"`
	Fragile            Bool   `json:"Fragile"`
	IncreasedLiability Bool   `json:"IncreasedLiability"`
}

// WireShipmentDetails lists the pieces.
type WireShipmentDetails struct {
	NumberOfPieces Int       `json:"NumberOfPieces"`
	TotalWeight    Float     `json:"TotalWeight,omitempty"`
	Items          WireItems `json:"Items"`
}

// WireItems holds the pieces under "Item". APC sends and expects a bare
// object when there is a single piece.
type WireItems struct {
	Item ItemList `json:"Item"`
}

// WireItem is a single piece.
type WireItem struct {
	Type           string `json:"Type,omitempty"`
	Weight         Float  `json:"Weight"`
	Length         Float  `json:"Length,omitempty"`
	Width          Float  `json:"Width,omitempty"`
	Height         Float  `json:"Height,omitempty"`
	Value          Float  `json:"Value,omitempty"`
	ItemNumber     Int    `json:"ItemNumber,omitempty"`
	Reference      string `json:"Reference,omitempty"`
	TrackingNumber string `json:"TrackingNumber,omitempty"`
}

// WireLabel is an inline label document.
type WireLabel struct {
	Content string `json:"Content"`
	Format  string `json:"Format"`
}

// Messages is the status block APC attaches to every envelope.
type Messages struct {
	Code        string           `json:"Code"`
	Description string           `json:"Description,omitempty"`
	ErrorFields ErrorFieldGroups `json:"ErrorFields,omitempty"`
}

// ErrorFields lists the fields APC rejected. APC sends either one group
// holding a list, or a list of single-field groups.
type ErrorFields struct {
	ErrorField ErrorFieldList `json:"ErrorField"`
}

// ErrorField is a single rejected field.
type ErrorField struct {
	FieldName    string `json:"FieldName"`
	ErrorMessage string `json:"ErrorMessage"`
}

// ServiceCheckPayload is the body of POST /ServiceAvailability.json.
type ServiceCheckPayload struct {
	Orders ServiceCheckOrders `json:"Orders"`
}

// ServiceCheckOrders wraps the availability order.
type ServiceCheckOrders struct {
	Order ServiceCheckOrder `json:"Order"`
}

// ServiceCheckOrder is the availability question.
type ServiceCheckOrder struct {
	CollectionDate  string              `json:"CollectionDate"`
	ReadyAt         string              `json:"ReadyAt"`
	ClosedAt        string              `json:"ClosedAt"`
	Collection      WireLocation        `json:"Collection"`
	Delivery        WireLocation        `json:"Delivery"`
	GoodsInfo       WireGoodsInfo       `json:"GoodsInfo"`
	ShipmentDetails WireShipmentDetails `json:"ShipmentDetails"`
}

// WireLocation is a bare postcode and country.
type WireLocation struct {
	PostalCode  string `json:"PostalCode"`
	CountryCode string `json:"CountryCode"`
}

// ServiceAvailabilityReply is the body returned by the availability check.
type ServiceAvailabilityReply struct {
	ServiceAvailability struct {
		Messages *Messages `json:"Messages"`
		Services struct {
			Service ServiceList `json:"Service"`
		} `json:"Services"`
	} `json:"ServiceAvailability"`
}

// WireService is one offered service.
type WireService struct {
	Carrier               string `json:"Carrier"`
	ServiceName           string `json:"ServiceName"`
	ProductCode           string `json:"ProductCode"`
	MinTransitDays        Int    `json:"MinTransitDays"`
	MaxTransitDays        Int    `json:"MaxTransitDays"`
	Tracked               Bool   `json:"Tracked"`
	Signed                Bool   `json:"Signed"`
	MaxCompensation       Float  `json:"MaxCompensation"`
	MaxItemLength         Int    `json:"MaxItemLength"`
	MaxItemWidth          Int    `json:"MaxItemWidth"`
	MaxItemHeight         Int    `json:"MaxItemHeight"`
	ItemType              string `json:"ItemType"`
	DeliveryGroup         string `json:"DeliveryGroup"`
	CollectionDate        string `json:"CollectionDate"`
	EstimatedDeliveryDate string `json:"EstimatedDeliveryDate"`
	LatestBookingDateTime string `json:"LatestBookingDateTime"`
}

// TracksReply is the body returned by the tracking endpoint.
type TracksReply struct {
	Tracks struct {
		Messages *Messages `json:"Messages"`
		Track    struct {
			WayBill string `json:"WayBill"`
			Status  string `json:"Status"`
			History struct {
				Detail DetailList `json:"Detail"`
			} `json:"History"`
		} `json:"Track"`
	} `json:"Tracks"`
}

// WireTrackDetail is one tracking event.
type WireTrackDetail struct {
	StatusCode  string `json:"StatusCode"`
	Status      string `json:"Status"`
	Description string `json:"Description"`
	DateTime    string `json:"DateTime"`
	Location    string `json:"Location"`
}

// CancelPayload is the body of PUT /Orders/{n}.json.
type CancelPayload struct {
	Orders struct {
		Order struct {
			Status string `json:"Status"`
		} `json:"Order"`
	} `json:"Orders"`
}

// ============================================================================
// Lenient scalar and list types. APC sends numbers and booleans as strings
// and collapses single-element lists to objects.
// ============================================================================

// Float accepts 1.5 or "1.500".
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int accepts 2 or "2".
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*i = Int(v)
	return nil
}

// Bool accepts true, "true", "True", "1" and "Y".
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(unquote(data)) {
	case "true", "1", "y", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

func unquote(b []byte) string {
	return strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(b)), `"`))
}

// ItemList marshals a single item as an object.
type ItemList []WireItem

// MarshalJSON implements json.Marshaler.
func (l ItemList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]WireItem(l))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *ItemList) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]WireItem)(l))
}

// ErrorFieldList accepts an object or an array.
type ErrorFieldList []ErrorField

// UnmarshalJSON implements json.Unmarshaler.
func (l *ErrorFieldList) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]ErrorField)(l))
}

// ErrorFieldGroups accepts an object or an array.
type ErrorFieldGroups []ErrorFields

// UnmarshalJSON implements json.Unmarshaler.
func (g *ErrorFieldGroups) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]ErrorFields)(g))
}

// Fields flattens every group into a single list.
func (g ErrorFieldGroups) Fields() []ErrorField {
	var out []ErrorField
	for _, group := range g {
		out = append(out, group.ErrorField...)
	}
	return out
}

// ServiceList accepts an object or an array.
type ServiceList []WireService

// UnmarshalJSON implements json.Unmarshaler.
func (l *ServiceList) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]WireService)(l))
}

// DetailList accepts an object or an array.
type DetailList []WireTrackDetail

// UnmarshalJSON implements json.Unmarshaler.
func (l *DetailList) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]WireTrackDetail)(l))
}

func unmarshalOneOrMany[T any](b []byte, dst *[]T) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*dst = nil
		return nil
	case b[0] == '[':
		return json.Unmarshal(b, dst)
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*dst = []T{one}
	return nil
}
