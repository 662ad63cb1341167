package apc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
// By default it answers every call with a canned APC success reply.
type MockAPIClient struct {
	// SimulateErrors makes every call return an APC error envelope.
	SimulateErrors bool
	// SimulateTimeout makes every call fail as if the deadline passed.
	SimulateTimeout bool
	SimulateLatency time.Duration

	OnServiceAvailability func(ctx context.Context, req *ServiceCheckPayload) (*RawResponse, error)
	OnCreateOrder         func(ctx context.Context, req *OrderPayload) (*RawResponse, error)
	OnGetOrder            func(ctx context.Context, orderNumber string, labelFormat string) (*RawResponse, error)
	OnCancelOrder         func(ctx context.Context, orderNumber string) (*RawResponse, error)
	OnTrack               func(ctx context.Context, wayBill string) (*RawResponse, error)

	mu        sync.Mutex
	calls     map[string]int
	lastOrder *OrderPayload
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{calls: make(map[string]int)}
}

// Calls returns how many times the named operation was invoked.
func (m *MockAPIClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *MockAPIClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// LastOrder returns the last order payload received, or nil.
func (m *MockAPIClient) LastOrder() *OrderPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOrder
}

// before records the call and applies the simulated latency and failures.
// A non-nil response or error ends the call.
func (m *MockAPIClient) before(ctx context.Context, op, envelope string) (*RawResponse, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateTimeout {
		return nil, fmt.Errorf("mock %s: %w", op, context.DeadlineExceeded)
	}

	if m.SimulateErrors {
		return jsonResponse(http.StatusUnprocessableEntity, errorEnvelope(envelope,
			"Simulated API error",
			ErrorField{FieldName: "PostalCode", ErrorMessage: "Simulated field error"},
		)), nil
	}
	return nil, nil
}

// ServiceAvailability returns two mock services.
func (m *MockAPIClient) ServiceAvailability(ctx context.Context, req *ServiceCheckPayload) (*RawResponse, error) {
	if resp, err := m.before(ctx, "ServiceAvailability", keyServiceAvailability); resp != nil || err != nil {
		return resp, err
	}

	if m.OnServiceAvailability != nil {
		return m.OnServiceAvailability(ctx, req)
	}

	collection := req.Orders.Order.CollectionDate
	delivery := time.Now().AddDate(0, 0, 1).Format(dateLayout)
	latest := time.Now().Format(dateLayout) + " 16:00"

	return jsonResponse(http.StatusOK, map[string]interface{}{
		keyServiceAvailability: map[string]interface{}{
			"Messages": Messages{Code: "SUCCESS", Description: "SUCCESS"},
			"Services": map[string]interface{}{
				"Service": []map[string]interface{}{
					{
						"Carrier":               "APC",
						"ServiceName":           "Parcel Next Day 16:00",
						"ProductCode":           "ND16",
						"MinTransitDays":        "1",
						"MaxTransitDays":        "1",
						"Tracked":               "true",
						"Signed":                "false",
						"MaxCompensation":       "100.00",
						"MaxItemLength":         "120",
						"MaxItemWidth":          "55",
						"MaxItemHeight":         "50",
						"ItemType":              "PARCEL",
						"DeliveryGroup":         "NEXT DAY",
						"CollectionDate":        collection,
						"EstimatedDeliveryDate": delivery,
						"LatestBookingDateTime": latest,
					},
					{
						"Carrier":               "APC",
						"ServiceName":           "Courier Pack Next Day 12:00",
						"ProductCode":           "CP12",
						"MinTransitDays":        "1",
						"MaxTransitDays":        "1",
						"Tracked":               "true",
						"Signed":                "true",
						"MaxCompensation":       "50.00",
						"MaxItemLength":         "45",
						"MaxItemWidth":          "35",
						"MaxItemHeight":         "10",
						"ItemType":              "PACK",
						"DeliveryGroup":         "NEXT DAY",
						"CollectionDate":        collection,
						"EstimatedDeliveryDate": delivery,
						"LatestBookingDateTime": latest,
					},
				},
			},
		},
	}), nil
}

// CreateOrder books a mock order and echoes the request with numbers added.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *OrderPayload) (*RawResponse, error) {
	m.mu.Lock()
	m.lastOrder = req
	m.mu.Unlock()

	if resp, err := m.before(ctx, "CreateOrder", keyOrders); resp != nil || err != nil {
		return resp, err
	}

	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}

	order := req.Orders.Order
	wayBill := fmt.Sprintf("%d", 2000000000000+time.Now().UnixNano()%1000000000000)
	order.Messages = &Messages{Code: "SUCCESS", Description: "SUCCESS"}
	order.OrderNumber = "WB" + strings.ToUpper(uuid.New().String()[:8])
	order.WayBill = wayBill
	order.Barcode = wayBill
	order.NetworkName = "APC"
	order.DeliveryDate = time.Now().AddDate(0, 0, 1).Format(dateLayout)

	if order.ShipmentDetails != nil {
		details := *order.ShipmentDetails
		items := make(ItemList, len(details.Items.Item))
		for i, it := range details.Items.Item {
			it.ItemNumber = Int(i + 1)
			it.TrackingNumber = fmt.Sprintf("%s%03d", wayBill, i+1)
			items[i] = it
		}
		details.Items.Item = items
		order.ShipmentDetails = &details
	}

	return jsonResponse(http.StatusOK, OrderPayload{
		Orders: OrdersEnvelope{
			Messages: &Messages{Code: "SUCCESS", Description: "SUCCESS"},
			Order:    order,
		},
	}), nil
}

// GetOrder returns a mock order with a tiny PDF label.
func (m *MockAPIClient) GetOrder(ctx context.Context, orderNumber string, labelFormat string) (*RawResponse, error) {
	if resp, err := m.before(ctx, "GetOrder", keyOrders); resp != nil || err != nil {
		return resp, err
	}

	if m.OnGetOrder != nil {
		return m.OnGetOrder(ctx, orderNumber, labelFormat)
	}

	if labelFormat == "" {
		labelFormat = "PDF"
	}
	return jsonResponse(http.StatusOK, OrderPayload{
		Orders: OrdersEnvelope{
			Messages: &Messages{Code: "SUCCESS"},
			Order: WireOrder{
				OrderNumber: orderNumber,
				Label: &WireLabel{
					Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 mock label " + orderNumber)),
					Format:  labelFormat,
				},
			},
		},
	}), nil
}

// CancelOrder cancels a mock order.
func (m *MockAPIClient) CancelOrder(ctx context.Context, orderNumber string) (*RawResponse, error) {
	if resp, err := m.before(ctx, "CancelOrder", keyOrders); resp != nil || err != nil {
		return resp, err
	}

	if m.OnCancelOrder != nil {
		return m.OnCancelOrder(ctx, orderNumber)
	}

	return jsonResponse(http.StatusOK, OrderPayload{
		Orders: OrdersEnvelope{
			Messages: &Messages{Code: "SUCCESS"},
			Order:    WireOrder{OrderNumber: orderNumber, Status: "CANCELLED"},
		},
	}), nil
}

// Track returns a mock two-event history.
func (m *MockAPIClient) Track(ctx context.Context, wayBill string) (*RawResponse, error) {
	if resp, err := m.before(ctx, "Track", keyTracks); resp != nil || err != nil {
		return resp, err
	}

	if m.OnTrack != nil {
		return m.OnTrack(ctx, wayBill)
	}

	now := time.Now()
	return jsonResponse(http.StatusOK, map[string]interface{}{
		keyTracks: map[string]interface{}{
			"Messages": Messages{Code: "SUCCESS"},
			"Track": map[string]interface{}{
				"WayBill": wayBill,
				"Status":  "IN TRANSIT",
				"History": map[string]interface{}{
					"Detail": []WireTrackDetail{
						{StatusCode: "COL", Status: "COLLECTED", Description: "Collected from sender", DateTime: now.Add(-24 * time.Hour).Format(dateTimeLayout), Location: "Cannock"},
						{StatusCode: "HUB", Status: "AT HUB", Description: "Arrived at hub", DateTime: now.Format(dateTimeLayout), Location: "Cannock Hub"},
					},
				},
			},
		},
	}), nil
}

// ============================================================================
// Canned reply helpers, exported for tests of callers.
// ============================================================================

// SuccessOrderResponse builds an APC success reply for an order.
func SuccessOrderResponse(orderNumber, wayBill string) *RawResponse {
	return jsonResponse(http.StatusOK, OrderPayload{
		Orders: OrdersEnvelope{
			Messages: &Messages{Code: "SUCCESS", Description: "SUCCESS"},
			Order: WireOrder{
				Messages:    &Messages{Code: "SUCCESS"},
				OrderNumber: orderNumber,
				WayBill:     wayBill,
				Barcode:     wayBill,
				NetworkName: "APC",
			},
		},
	})
}

// ErrorResponse builds an APC error reply under the given envelope key.
func ErrorResponse(status int, key, description string, fields ...ErrorField) *RawResponse {
	return jsonResponse(status, errorEnvelope(key, description, fields...))
}

func errorEnvelope(key, description string, fields ...ErrorField) map[string]interface{} {
	detail := Messages{
		Code:        messageError,
		Description: description,
		ErrorFields: ErrorFieldGroups{{ErrorField: fields}},
	}
	child := strings.TrimSuffix(key, "s")
	if child == key {
		return map[string]interface{}{key: map[string]interface{}{"Messages": detail}}
	}
	return map[string]interface{}{
		key: map[string]interface{}{
			"Messages": Messages{Code: messageError},
			child:      map[string]interface{}{"Messages": detail},
		},
	}
}

func jsonResponse(status int, v interface{}) *RawResponse {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("apc mock: marshal reply: %v", err))
	}
	return &RawResponse{StatusCode: status, Body: body}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
