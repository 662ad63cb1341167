package shipper

import (
	"fmt"
	"strings"
	"time"
)

// ShipmentKind distinguishes deliveries from collections.
type ShipmentKind string

const (
	KindDelivery   ShipmentKind = "delivery"
	KindCollection ShipmentKind = "collection"
)

// ShipmentStatus represents the normalized status of a shipment.
type ShipmentStatus string

const (
	StatusPending        ShipmentStatus = "pending"
	StatusConfirmed      ShipmentStatus = "confirmed"
	StatusCollected      ShipmentStatus = "collected"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusCancelled      ShipmentStatus = "cancelled"
	StatusException      ShipmentStatus = "exception"
)

// ItemType is the APC classification of a piece.
type ItemType string

const (
	ItemAll               ItemType = "ALL"
	ItemParcel            ItemType = "PARCEL"
	ItemPack              ItemType = "PACK"
	ItemPallet            ItemType = "PALLET"
	ItemLiquids           ItemType = "LIQUIDS"
	ItemLimitedQuantities ItemType = "LIMITED QUANTITIES"
)

// ItemTypes lists every accepted item type.
var ItemTypes = []ItemType{ItemAll, ItemParcel, ItemPack, ItemPallet, ItemLiquids, ItemLimitedQuantities}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	for _, known := range ItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "PDF"
	LabelPNG LabelFormat = "PNG"
	LabelZPL LabelFormat = "ZPL"
)

// DefaultCountryCode is used when an address carries no country.
const DefaultCountryCode = "GB"

// CostUnit is the currency APC quotes compensation in.
const CostUnit = "GBP"

// Clock is a time of day with minute precision. The zero value means
// unset; build clocks with NewClock or ParseClock so that midnight is a
// real time.
type Clock struct {
	Hour   int
	Minute int

	set bool
}

// NewClock returns the clock for hour:minute.
func NewClock(hour, minute int) Clock {
	return Clock{Hour: hour, Minute: minute, set: true}
}

// ParseClock parses "15:04" formatted times.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// IsZero reports whether the clock is unset.
func (c Clock) IsZero() bool {
	return !c.set
}

// Valid reports whether the clock is a real time of day.
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// Before reports whether c is strictly earlier than o.
func (c Clock) Before(o Clock) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Contact holds the person to speak to at an address.
type Contact struct {
	Name   string `json:"name" validate:"omitempty,max=60"`
	Phone  string `json:"phone" validate:"omitempty,max=20"`
	Mobile string `json:"mobile" validate:"omitempty,max=20"`
	Email  string `json:"email" validate:"omitempty,email,max=100"`
}

// Address represents a collection or delivery point.
type Address struct {
	Company      string   `json:"company" validate:"omitempty,max=60"`
	Lines        []string `json:"lines" validate:"required,min=1,max=2,dive,required,max=60"`
	City         string   `json:"city" validate:"required,max=60"`
	County       string   `json:"county" validate:"omitempty,max=60"`
	PostalCode   string   `json:"postal_code" validate:"required"`
	CountryCode  string   `json:"country_code" validate:"required,iso3166_1_alpha2"`
	Contact      Contact  `json:"contact"`
	Instructions string   `json:"instructions" validate:"omitempty,max=200"`
	SafePlace    string   `json:"safe_place" validate:"omitempty,max=60"`
}

// AddressOption customizes an Address built by NewAddress.
type AddressOption func(*Address)

// WithCompanyName sets the company name on the address.
func WithCompanyName(name string) AddressOption {
	return func(a *Address) { a.Company = strings.TrimSpace(name) }
}

// WithContact sets the contact details on the address.
func WithContact(c Contact) AddressOption {
	return func(a *Address) { a.Contact = c }
}

// WithCounty sets the county.
func WithCounty(county string) AddressOption {
	return func(a *Address) { a.County = strings.TrimSpace(county) }
}

// WithSafePlace sets where the courier may leave the goods.
func WithSafePlace(place string) AddressOption {
	return func(a *Address) { a.SafePlace = place }
}

// NewAddress builds an address, normalizing the postcode and country code.
// It never fails; use a Validator to check the result.
func NewAddress(lines []string, city, postalCode, countryCode string, opts ...AddressOption) Address {
	a := Address{
		Lines:       trimLines(lines),
		City:        strings.TrimSpace(city),
		PostalCode:  NormalizePostalCode(postalCode),
		CountryCode: normalizeCountry(countryCode),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Name returns the best display name for the address.
func (a Address) Name() string {
	if a.Company != "" {
		return a.Company
	}
	return a.Contact.Name
}

func (a Address) clone() Address {
	a.Lines = append([]string(nil), a.Lines...)
	return a
}

// Company is the account holder: its address is the default collection
// point and its opening hours bound collection times.
type Company struct {
	Address  Address
	OpenFrom Clock
	OpenTo   Clock
}

// NewCompany returns a Company. Opening hours are mandatory for booking.
func NewCompany(addr Address, openFrom, openTo Clock) (Company, error) {
	if openFrom.IsZero() || !openFrom.Valid() {
		return Company{}, fmt.Errorf("company must have a valid opening time, got %s", openFrom)
	}
	if openTo.IsZero() || !openTo.Valid() {
		return Company{}, fmt.Errorf("company must have a valid closing time, got %s", openTo)
	}
	if !openFrom.Before(openTo) {
		return Company{}, fmt.Errorf("company opening time %s must be before closing time %s", openFrom, openTo)
	}
	return Company{Address: addr, OpenFrom: openFrom, OpenTo: openTo}, nil
}

// Item represents a single piece in a shipment. Weight is in kilograms,
// dimensions in centimetres and value in GBP.
type Item struct {
	Type   ItemType `json:"type" validate:"omitempty,item_type"`
	Weight float64  `json:"weight" validate:"gt=0,lte=100"`
	Length float64  `json:"length" validate:"omitempty,gt=0,lte=1000"`
	Width  float64  `json:"width" validate:"omitempty,gt=0,lte=1000"`
	Height float64  `json:"height" validate:"omitempty,gt=0,lte=1000"`
	Value  float64  `json:"value" validate:"omitempty,gt=0"`
}

// NewItem returns an item of type ALL with the given weight.
func NewItem(weight float64) Item {
	return Item{Type: ItemAll, Weight: weight}
}

// WithDimensions returns a copy of the item with dimensions set.
func (i Item) WithDimensions(length, width, height float64) Item {
	i.Length, i.Width, i.Height = length, width, height
	return i
}

// GoodsInfo describes the contents of a shipment.
type GoodsInfo struct {
	Description        string  `json:"description" validate:"omitempty,max=100"`
	Value              float64 `json:"value" validate:"omitempty,gt=0"`
	Fragile            bool    `json:"fragile"`
	IncreasedLiability bool    `json:"increased_liability"`
}

// ShipmentRequest is a delivery or collection booking. Build one with
// NewDeliveryRequest or NewCollectionRequest and validate it before use.
type ShipmentRequest struct {
	Kind           ShipmentKind `json:"kind" validate:"required,oneof=delivery collection"`
	ServiceCode    string       `json:"service_code" validate:"required,service_code"`
	Origin         Address      `json:"origin"`
	Destination    Address      `json:"destination"`
	Items          []Item       `json:"items" validate:"required,min=1,max=99,dive"`
	Reference      string       `json:"reference" validate:"omitempty,max=30"`
	CollectionDate time.Time    `json:"collection_date"`
	ReadyAt        Clock        `json:"ready_at" validate:"required,clock"`
	ClosedAt       Clock        `json:"closed_at" validate:"required,clock"`
	Goods          GoodsInfo    `json:"goods"`
}

// Pieces returns the number of pieces in the shipment.
func (r *ShipmentRequest) Pieces() int {
	return len(r.Items)
}

// TotalWeight returns the combined weight of all pieces.
func (r *ShipmentRequest) TotalWeight() float64 {
	var total float64
	for _, it := range r.Items {
		total += it.Weight
	}
	return total
}

// CustomerAddress returns the non-company side of the shipment.
func (r *ShipmentRequest) CustomerAddress() Address {
	if r.Kind == KindCollection {
		return r.Origin
	}
	return r.Destination
}

func (r ShipmentRequest) clone() ShipmentRequest {
	r.Origin = r.Origin.clone()
	r.Destination = r.Destination.clone()
	r.Items = append([]Item(nil), r.Items...)
	return r
}

// RequestOption customizes a ShipmentRequest.
type RequestOption func(*ShipmentRequest)

// WithReference sets the customer reference printed on the label.
func WithReference(ref string) RequestOption {
	return func(r *ShipmentRequest) { r.Reference = strings.TrimSpace(ref) }
}

// WithCollectionDate sets the collection date. Only the date part is kept.
func WithCollectionDate(d time.Time) RequestOption {
	return func(r *ShipmentRequest) { r.CollectionDate = DateOnly(d) }
}

// WithInstructions sets courier instructions on the customer address.
func WithInstructions(text string) RequestOption {
	return func(r *ShipmentRequest) {
		if r.Kind == KindCollection {
			r.Origin.Instructions = text
			return
		}
		r.Destination.Instructions = text
	}
}

// WithGoods sets the goods description and value.
func WithGoods(g GoodsInfo) RequestOption {
	return func(r *ShipmentRequest) { r.Goods = g }
}

// WithHours overrides the ready and closing times taken from the company.
func WithHours(readyAt, closedAt Clock) RequestOption {
	return func(r *ShipmentRequest) {
		r.ReadyAt = readyAt
		r.ClosedAt = closedAt
	}
}

// NewDeliveryRequest books goods from the company to a customer.
func NewDeliveryRequest(company Company, serviceCode string, to Address, items []Item, opts ...RequestOption) *ShipmentRequest {
	r := &ShipmentRequest{
		Kind:           KindDelivery,
		ServiceCode:    strings.ToUpper(strings.TrimSpace(serviceCode)),
		Origin:         company.Address.clone(),
		Destination:    to.clone(),
		Items:          append([]Item(nil), items...),
		CollectionDate: DateOnly(time.Now()),
		ReadyAt:        company.OpenFrom,
		ClosedAt:       company.OpenTo,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewCollectionRequest books goods from a customer back to the company.
func NewCollectionRequest(company Company, serviceCode string, from Address, items []Item, opts ...RequestOption) *ShipmentRequest {
	r := &ShipmentRequest{
		Kind:           KindCollection,
		ServiceCode:    strings.ToUpper(strings.TrimSpace(serviceCode)),
		Origin:         from.clone(),
		Destination:    company.Address.clone(),
		Items:          append([]Item(nil), items...),
		CollectionDate: DateOnly(time.Now()),
		ReadyAt:        company.OpenFrom,
		ClosedAt:       company.OpenTo,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location is a postcode and country pair used for availability checks.
type Location struct {
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code" validate:"required,iso3166_1_alpha2"`
}

// LocationOf returns the postcode and country of an address.
func LocationOf(a Address) Location {
	return Location{PostalCode: a.PostalCode, CountryCode: a.CountryCode}
}

// ServiceQuery asks which services can carry the given items.
type ServiceQuery struct {
	Collection     Location  `json:"collection"`
	Delivery       Location  `json:"delivery"`
	Items          []Item    `json:"items" validate:"required,min=1,max=99,dive"`
	CollectionDate time.Time `json:"collection_date"`
	ReadyAt        Clock     `json:"ready_at" validate:"required,clock"`
	ClosedAt       Clock     `json:"closed_at" validate:"required,clock"`
	GoodsValue     float64   `json:"goods_value" validate:"omitempty,gt=0"`
	Fragile        bool      `json:"fragile"`
}

// NewServiceQuery builds an availability check from the company to the
// given postcode, collected today within company hours.
func NewServiceQuery(company Company, postalCode, countryCode string, items []Item) *ServiceQuery {
	return &ServiceQuery{
		Collection: LocationOf(company.Address),
		Delivery: Location{
			PostalCode:  NormalizePostalCode(postalCode),
			CountryCode: normalizeCountry(countryCode),
		},
		Items:          append([]Item(nil), items...),
		CollectionDate: DateOnly(time.Now()),
		ReadyAt:        company.OpenFrom,
		ClosedAt:       company.OpenTo,
	}
}

// Service is a product the courier offers for a route. Immutable
// reference data returned by the availability check.
type Service struct {
	Code                  string
	Name                  string
	Carrier               string
	ItemType              ItemType
	DeliveryGroup         string
	Countries             []string
	CostUnit              string
	MinTransitDays        int
	MaxTransitDays        int
	Tracked               bool
	Signed                bool
	MaxCompensation       float64
	MaxItemLength         int
	MaxItemWidth          int
	MaxItemHeight         int
	CollectionDate        *time.Time
	EstimatedDeliveryDate *time.Time
	LatestBooking         *time.Time
}

// SupportsCountry reports whether the service delivers to the country.
func (s Service) SupportsCountry(code string) bool {
	code = normalizeCountry(code)
	for _, c := range s.Countries {
		if c == code {
			return true
		}
	}
	return false
}

// Label is a shipping label document.
type Label struct {
	OrderNumber string
	Format      LabelFormat
	Data        []byte
}

// LabelRequest asks for the label of a booked order.
type LabelRequest struct {
	OrderNumber string
	Format      LabelFormat
}

// TrackingEvent represents a tracking event.
type TrackingEvent struct {
	Timestamp   time.Time
	Description string
	Location    string
	Status      ShipmentStatus
	CarrierCode string
}

// Tracking is the status history of a consignment.
type Tracking struct {
	WayBill string
	Status  ShipmentStatus
	Events  []TrackingEvent
}

// DateOnly truncates t to midnight UTC on the same calendar day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizePostalCode upper-cases a postcode and collapses inner spaces.
func NormalizePostalCode(pc string) string {
	return strings.Join(strings.Fields(strings.ToUpper(pc)), " ")
}

func normalizeCountry(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCountryCode
	}
	return code
}

func trimLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
