package apc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/tournevent/apc/pkg/shipper"
)

// Messages.Code values APC sets on accepted and rejected requests.
const (
	messageSuccess = "SUCCESS"
	messageError   = "ERROR"
)

// Top-level keys of the APC reply envelopes.
const (
	keyOrders              = "Orders"
	keyServiceAvailability = "ServiceAvailability"
	keyTracks              = "Tracks"
)

// MapOrderResponse turns the reply to an order submission into a Result.
// It recognizes the APC envelope and the flat {"consignment": ...} and
// {"code": ..., "message": ...} shapes. It never panics, whatever the body.
func MapOrderResponse(status int, body []byte) *shipper.Result {
	top, ok := topLevelObject(body)
	if !ok {
		return shipper.Failed(unparseable(status, body))
	}

	if _, ok := top[keyOrders]; ok {
		if fail := envelopeFailure(status, keyOrders, top); fail != nil {
			return shipper.Failed(fail)
		}
		if status >= http.StatusBadRequest {
			return shipper.Failed(unparseable(status, body))
		}

		var reply orderReceipt
		if err := json.Unmarshal(body, &reply); err != nil {
			return shipper.Failed(unparseable(status, body).WithCause(err))
		}
		o := reply.Orders.Order
		if o.WayBill == "" && o.OrderNumber == "" {
			return shipper.Failed(unparseable(status, body))
		}
		return shipper.Succeeded(consignmentFromOrder(o))
	}

	if fail := flatFailure(status, top); fail != nil {
		return shipper.Failed(fail)
	}
	if status >= http.StatusBadRequest {
		return shipper.Failed(unparseable(status, body))
	}

	if raw, ok := top["consignment"]; ok {
		var number string
		if err := json.Unmarshal(raw, &number); err == nil && strings.TrimSpace(number) != "" {
			return shipper.Succeeded(shipper.Consignment{Number: number})
		}
	}
	return shipper.Failed(unparseable(status, body))
}

// MapServicesResponse turns an availability reply into services. The
// delivery country is recorded on each service because APC does not echo it.
func MapServicesResponse(status int, body []byte, deliveryCountry string) ([]shipper.Service, *shipper.ShipperError) {
	var reply ServiceAvailabilityReply
	if fail := decodeReply(status, body, keyServiceAvailability, &reply); fail != nil {
		return nil, fail
	}

	wire := reply.ServiceAvailability.Services.Service
	services := make([]shipper.Service, 0, len(wire))
	for _, w := range wire {
		if w.ProductCode == "" {
			continue
		}
		services = append(services, shipper.Service{
			Code:                  strings.ToUpper(w.ProductCode),
			Name:                  w.ServiceName,
			Carrier:               w.Carrier,
			ItemType:              shipper.ItemType(strings.ToUpper(w.ItemType)),
			DeliveryGroup:         w.DeliveryGroup,
			Countries:             []string{deliveryCountry},
			CostUnit:              shipper.CostUnit,
			MinTransitDays:        int(w.MinTransitDays),
			MaxTransitDays:        int(w.MaxTransitDays),
			Tracked:               bool(w.Tracked),
			Signed:                bool(w.Signed),
			MaxCompensation:       float64(w.MaxCompensation),
			MaxItemLength:         int(w.MaxItemLength),
			MaxItemWidth:          int(w.MaxItemWidth),
			MaxItemHeight:         int(w.MaxItemHeight),
			CollectionDate:        parseDate(w.CollectionDate),
			EstimatedDeliveryDate: parseDate(w.EstimatedDeliveryDate),
			LatestBooking:         parseDate(w.LatestBookingDateTime),
		})
	}
	return services, nil
}

// MapLabelResponse extracts the label document from an order reply.
func MapLabelResponse(status int, body []byte, req *shipper.LabelRequest) (*shipper.Label, *shipper.ShipperError) {
	var reply orderReceipt
	if fail := decodeReply(status, body, keyOrders, &reply); fail != nil {
		return nil, fail
	}

	label := reply.Orders.Order.Label
	if label == nil || label.Content == "" {
		return nil, shipper.NewShipperError(carrierName, "LABEL_NOT_AVAILABLE", "order has no label yet").
			WithStatusCode(status).
			WithCause(shipper.ErrLabelNotAvailable)
	}

	data, err := base64.StdEncoding.DecodeString(label.Content)
	if err != nil {
		return nil, unparseable(status, body).WithCause(err)
	}

	format := req.Format
	if label.Format != "" {
		format = shipper.LabelFormat(strings.ToUpper(label.Format))
	}
	return &shipper.Label{
		OrderNumber: req.OrderNumber,
		Format:      format,
		Data:        data,
	}, nil
}

// MapTrackResponse turns a tracking reply into the consignment history.
func MapTrackResponse(status int, body []byte, wayBill string) (*shipper.Tracking, *shipper.ShipperError) {
	var reply TracksReply
	if fail := decodeReply(status, body, keyTracks, &reply); fail != nil {
		return nil, fail
	}

	track := reply.Tracks.Track
	tracking := &shipper.Tracking{
		WayBill: wayBill,
		Status:  shipper.StatusPending,
		Events:  make([]shipper.TrackingEvent, 0, len(track.History.Detail)),
	}
	if track.WayBill != "" {
		tracking.WayBill = track.WayBill
	}

	for _, d := range track.History.Detail {
		event := shipper.TrackingEvent{
			Description: d.Description,
			Location:    d.Location,
			Status:      normalizeStatus(d.Status + " " + d.Description),
			CarrierCode: d.StatusCode,
		}
		if ts := parseDate(d.DateTime); ts != nil {
			event.Timestamp = *ts
		}
		tracking.Events = append(tracking.Events, event)
	}

	switch {
	case track.Status != "":
		tracking.Status = normalizeStatus(track.Status)
	case len(tracking.Events) > 0:
		tracking.Status = tracking.Events[len(tracking.Events)-1].Status
	}
	return tracking, nil
}

// MapCancelResponse checks the reply to a cancellation. An empty 2xx body
// counts as success.
func MapCancelResponse(status int, body []byte) *shipper.ShipperError {
	if status >= 200 && status < 300 && len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var reply orderReceipt
	return decodeReply(status, body, keyOrders, &reply)
}

// MapTransportError classifies a failure to get any reply at all.
func MapTransportError(err error) *shipper.ShipperError {
	code, msg := shipper.CodeUnreachable, "APC API unreachable"

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code, msg = shipper.CodeTimeout, "APC API did not respond in time"
	}

	return shipper.NewShipperError(carrierName, code, msg).
		WithKind(shipper.KindUnreachable).
		WithRetryable(true).
		WithCause(err)
}

// ============================================================================
// Shared decoding
// ============================================================================

// decodeReply applies the common error rules and decodes a successful body
// into dst.
func decodeReply(status int, body []byte, key string, dst interface{}) *shipper.ShipperError {
	top, ok := topLevelObject(body)
	if !ok {
		return unparseable(status, body)
	}
	if _, ok := top[key]; ok {
		if fail := envelopeFailure(status, key, top); fail != nil {
			return fail
		}
	} else if fail := flatFailure(status, top); fail != nil {
		return fail
	}
	if status >= http.StatusBadRequest {
		return unparseable(status, body)
	}
	if _, ok := top[key]; !ok {
		return unparseable(status, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return unparseable(status, body).WithCause(err)
	}
	return nil
}

func topLevelObject(body []byte) (map[string]json.RawMessage, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || len(top) == 0 {
		return nil, false
	}
	return top, true
}

// envelopeFailure reads {"<Key>": {"Messages": {"Code": "ERROR"}, "<Key
// without s>": {"Messages": {...}}}}. The inner messages carry the
// description and the rejected fields; the outer ones are the fallback.
func envelopeFailure(status int, key string, reply map[string]json.RawMessage) *shipper.ShipperError {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(reply[key], &outer); err != nil {
		return nil
	}
	var top Messages
	if err := json.Unmarshal(outer["Messages"], &top); err != nil {
		return nil
	}
	// ERROR always rejects. On a 4xx/5xx any other code but SUCCESS is the
	// upstream failure code too.
	code := strings.ToUpper(strings.TrimSpace(top.Code))
	if code != messageError && (status < http.StatusBadRequest || code == "" || code == messageSuccess) {
		return nil
	}

	msgs := top
	if child := strings.TrimSuffix(key, "s"); child != key {
		var inner struct {
			Messages *Messages `json:"Messages"`
		}
		if raw, ok := outer[child]; ok && json.Unmarshal(raw, &inner) == nil && inner.Messages != nil {
			msgs = *inner.Messages
		}
	}

	message := msgs.Description
	if message == "" {
		message = top.Description
	}
	if message == "" {
		message = "request rejected"
	}

	fail := shipper.NewShipperError(carrierName, code, message).WithStatusCode(status)
	for _, f := range msgs.ErrorFields.Fields() {
		fail.WithFields(shipper.FieldError{
			Field:   camelToSnake(f.FieldName),
			Rule:    "upstream",
			Message: f.ErrorMessage,
		})
	}
	return classifyStatus(fail, status)
}

// flatFailure reads {"code": "...", "message": "..."}.
func flatFailure(status int, reply map[string]json.RawMessage) *shipper.ShipperError {
	raw, ok := reply["code"]
	if !ok {
		return nil
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil || code == "" {
		return nil
	}
	var message string
	if rawMsg, ok := reply["message"]; ok {
		_ = json.Unmarshal(rawMsg, &message)
	}
	return classifyStatus(shipper.NewShipperError(carrierName, code, message).WithStatusCode(status), status)
}

func unparseable(status int, body []byte) *shipper.ShipperError {
	code := shipper.CodeUnparseable
	if status >= http.StatusBadRequest {
		code = fmt.Sprintf("HTTP_%d", status)
	}
	fail := shipper.NewShipperError(carrierName, code, unparseableMessage(status, body)).
		WithKind(shipper.KindUnparseable).
		WithStatusCode(status)
	return classifyStatus(fail, status)
}

func unparseableMessage(status int, body []byte) string {
	const maxSnippet = 200
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	if snippet == "" {
		return fmt.Sprintf("unrecognized reply (HTTP %d, empty body)", status)
	}
	return fmt.Sprintf("unrecognized reply (HTTP %d): %s", status, snippet)
}

// classifyStatus attaches the sentinel and retry advice implied by the
// HTTP status, unless a cause is already set.
func classifyStatus(fail *shipper.ShipperError, status int) *shipper.ShipperError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		fail.Cause = shipper.ErrAuthenticationFailed
	case status == http.StatusNotFound:
		fail.Cause = shipper.ErrOrderNotFound
	case status == http.StatusTooManyRequests:
		fail.Cause = shipper.ErrRateLimitExceeded
		fail.Retryable = true
	case status >= http.StatusInternalServerError:
		fail.Cause = shipper.ErrServiceUnavailable
		fail.Retryable = true
	}
	return fail
}

// orderReceipt is the part of an order reply the mappers read. The echoed
// request sections are not decoded, so a malformed echo cannot turn a
// booked order into a failure.
type orderReceipt struct {
	Orders struct {
		Order receiptOrder `json:"Order"`
	} `json:"Orders"`
}

type receiptOrder struct {
	OrderNumber     string          `json:"OrderNumber"`
	WayBill         string          `json:"WayBill"`
	Barcode         string          `json:"Barcode"`
	Reference       string          `json:"Reference"`
	ProductCode     string          `json:"ProductCode"`
	NetworkName     string          `json:"NetworkName"`
	CollectionDate  string          `json:"CollectionDate"`
	DeliveryDate    string          `json:"DeliveryDate"`
	Label           *WireLabel      `json:"Label"`
	ShipmentDetails json.RawMessage `json:"ShipmentDetails"`
}

type trackingRef struct {
	TrackingNumber string `json:"TrackingNumber"`
}

type trackingRefList []trackingRef

// UnmarshalJSON implements json.Unmarshaler.
func (l *trackingRefList) UnmarshalJSON(b []byte) error {
	return unmarshalOneOrMany(b, (*[]trackingRef)(l))
}

// itemTrackingNumbers reads the per-piece tracking numbers. A details
// block it cannot read yields none.
func itemTrackingNumbers(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var details struct {
		Items struct {
			Item trackingRefList `json:"Item"`
		} `json:"Items"`
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil
	}
	var numbers []string
	for _, it := range details.Items.Item {
		if it.TrackingNumber != "" {
			numbers = append(numbers, it.TrackingNumber)
		}
	}
	return numbers
}

func consignmentFromOrder(o receiptOrder) shipper.Consignment {
	c := shipper.Consignment{
		Number:         o.WayBill,
		OrderNumber:    o.OrderNumber,
		Barcode:        o.Barcode,
		Reference:      o.Reference,
		ProductCode:    o.ProductCode,
		NetworkName:    o.NetworkName,
		CollectionDate: parseDate(o.CollectionDate),
		DeliveryDate:   parseDate(o.DeliveryDate),
		LabelRef:       o.OrderNumber,
	}
	if c.Number == "" {
		c.Number = o.OrderNumber
	}
	c.ItemTrackingNumbers = itemTrackingNumbers(o.ShipmentDetails)
	return c
}

// normalizeStatus maps APC status text onto the shipment status set.
func normalizeStatus(text string) shipper.ShipmentStatus {
	t := strings.ToUpper(text)
	switch {
	case strings.Contains(t, "CANCEL"):
		return shipper.StatusCancelled
	case strings.Contains(t, "FAIL"), strings.Contains(t, "EXCEPTION"), strings.Contains(t, "DAMAGED"),
		strings.Contains(t, "NOT DELIVERED"):
		return shipper.StatusException
	case strings.Contains(t, "OUT FOR DELIVERY"):
		return shipper.StatusOutForDelivery
	case strings.Contains(t, "DELIVERED"):
		return shipper.StatusDelivered
	case strings.Contains(t, "COLLECTED"):
		return shipper.StatusCollected
	case strings.Contains(t, "TRANSIT"), strings.Contains(t, "HUB"), strings.Contains(t, "DEPOT"):
		return shipper.StatusInTransit
	case strings.Contains(t, "CONFIRMED"), strings.Contains(t, "BOOKED"), strings.Contains(t, "MANIFEST"):
		return shipper.StatusConfirmed
	default:
		return shipper.StatusPending
	}
}

var (
	camelWord  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	camelUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// camelToSnake converts APC field names such as "PostalCode" to
// "postal_code".
func camelToSnake(name string) string {
	s := camelWord.ReplaceAllString(name, "${1}_${2}")
	return strings.ToLower(camelUpper.ReplaceAllString(s, "${1}_${2}"))
}
