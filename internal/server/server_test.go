package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/internal/server"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/apc"
	"github.com/tournevent/apc/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type testEnv struct {
	handler http.Handler
	server  *server.Server
	api     *apc.MockAPIClient
	other   *mock.Client
}

func testCompany(t *testing.T) shipper.Company {
	t.Helper()
	addr := shipper.NewAddress([]string{"Unit 4 Kingsway"}, "Cannock", "WS11 8JR", "GB",
		shipper.WithCompanyName("Tournevent Ltd"))
	company, err := shipper.NewCompany(addr, shipper.NewClock(9, 0), shipper.NewClock(17, 30))
	require.NoError(t, err)
	return company
}

// newTestServer registers the APC client over a mock transport as "apc"
// and a mock shipper as "test-shipper".
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	company := testCompany(t)

	api := apc.NewMockAPIClient()
	other := mock.New("test-shipper")

	registry := shipper.NewRegistry()
	registry.Register(apc.NewWithAPIClient(apc.Config{Company: company}, api, logger, nil))
	registry.Register(other)

	srv := server.New(server.Config{Port: 8080, Company: company}, registry, logger)
	return &testEnv{handler: srv.Handler(), server: srv, api: api, other: other}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, rec)
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return e
}

const deliveryBody = `{
	"service_code": "nd16",
	"reference": "INV-1001",
	"collection_date": "2026-11-02",
	"address": {
		"lines": ["221B Baker Street"],
		"city": "London",
		"postal_code": "nw1 6xe",
		"contact": {"name": "Sherlock Holmes", "phone": "020 7224 3688"},
		"instructions": "Ring the bell"
	},
	"items": [{"weight": 2.5}]
}`

func TestServer_Health(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDPropagated(t *testing.T) {
	env := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestServer_CreateDelivery(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/v1/deliveries", deliveryBody)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "apc", body["carrier"])
	assert.NotEmpty(t, body["number"])
	assert.Equal(t, "INV-1001", body["reference"])
	assert.Equal(t, "ND16", body["product_code"])

	sent := env.api.LastOrder().Orders.Order
	assert.Equal(t, "WS11 8JR", sent.Collection.PostalCode)
	assert.Equal(t, "NW1 6XE", sent.Delivery.PostalCode)
	assert.Equal(t, "Ring the bell", sent.Delivery.Instructions)
	assert.Equal(t, "02/11/2026", sent.CollectionDate)
}

func TestServer_CreateCollection(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/v1/collections", deliveryBody)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := env.api.LastOrder().Orders.Order
	assert.Equal(t, "NW1 6XE", sent.Collection.PostalCode)
	assert.Equal(t, "WS11 8JR", sent.Delivery.PostalCode)
}

func TestServer_CreateDelivery_OtherCarrier(t *testing.T) {
	env := newTestServer(t)
	body := strings.Replace(deliveryBody, `"service_code"`, `"carrier": "test-shipper", "service_code"`, 1)

	rec := env.do(t, http.MethodPost, "/v1/deliveries", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "test-shipper", decodeBody(t, rec)["carrier"])
	assert.Equal(t, 0, env.api.TotalCalls())
}

func TestServer_CreateDelivery_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"invalid json", `{"service_code":`, http.StatusBadRequest, "INVALID_JSON", ""},
		{"unknown field", `{"weight_kg": 3}`, http.StatusBadRequest, "INVALID_JSON", ""},
		{"zero weight", strings.Replace(deliveryBody, `"weight": 2.5`, `"weight": 0`, 1),
			http.StatusUnprocessableEntity, shipper.CodeValidation, "items[0].weight"},
		{"bad postcode", strings.Replace(deliveryBody, `"nw1 6xe"`, `"12345"`, 1),
			http.StatusUnprocessableEntity, shipper.CodeValidation, "destination.postal_code"},
		{"bad date", strings.Replace(deliveryBody, `"2026-11-02"`, `"02/11/2026"`, 1),
			http.StatusUnprocessableEntity, shipper.CodeValidation, "collection_date"},
		{"bad hours", strings.Replace(deliveryBody, `"reference"`, `"ready_at": "9am", "reference"`, 1),
			http.StatusUnprocessableEntity, shipper.CodeValidation, "ready_at"},
		{"unknown carrier", strings.Replace(deliveryBody, `"service_code"`, `"carrier": "dhl", "service_code"`, 1),
			http.StatusNotFound, "CARRIER_NOT_FOUND", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t)

			rec := env.do(t, http.MethodPost, "/v1/deliveries", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			e := errorOf(t, rec)
			assert.Equal(t, tt.wantCode, e["code"])
			if tt.wantField != "" {
				fields, ok := e["fields"].([]interface{})
				require.True(t, ok, rec.Body.String())
				var names []string
				for _, f := range fields {
					names = append(names, f.(map[string]interface{})["field"].(string))
				}
				assert.Contains(t, names, tt.wantField)
			}
			assert.Equal(t, 0, env.api.TotalCalls(), "nothing must reach APC")
		})
	}
}

func TestServer_CreateDelivery_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(m *apc.MockAPIClient)
		wantStatus int
		wantKind   string
	}{
		{"timeout", func(m *apc.MockAPIClient) { m.SimulateTimeout = true }, http.StatusGatewayTimeout, "unreachable"},
		{"rejected", func(m *apc.MockAPIClient) { m.SimulateErrors = true }, http.StatusUnprocessableEntity, "upstream"},
		{"garbage", func(m *apc.MockAPIClient) {
			m.OnCreateOrder = func(_ context.Context, _ *apc.OrderPayload) (*apc.RawResponse, error) {
				return &apc.RawResponse{StatusCode: http.StatusBadGateway, Body: []byte("<html>")}, nil
			}
		}, http.StatusBadGateway, "unparseable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t)
			tt.configure(env.api)

			rec := env.do(t, http.MethodPost, "/v1/deliveries", deliveryBody)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantKind, errorOf(t, rec)["kind"])
		})
	}
}

func TestServer_Services(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/v1/services", `{"postal_code":"M1 1AE","items":[{"weight":2.5}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Services []struct {
			Carrier string `json:"carrier"`
			Code    string `json:"code"`
		} `json:"services"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Services, 4)
	assert.Empty(t, resp.Errors)

	assert.Equal(t, 1, env.api.Calls("ServiceAvailability"))
}

func TestServer_Services_Filtered(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/v1/services",
		`{"carriers":["apc"],"postal_code":"M1 1AE","items":[{"weight":1}],"item_type":"pack","signed":true}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	services := decodeBody(t, rec)["services"].([]interface{})
	require.Len(t, services, 1)
	svc := services[0].(map[string]interface{})
	assert.Equal(t, "CP12", svc["code"])
	assert.Equal(t, "apc", svc["carrier"])
}

func TestServer_Services_PartialFailure(t *testing.T) {
	env := newTestServer(t)
	env.other.Fail = shipper.NewShipperError("test-shipper", "DOWN", "maintenance")

	rec := env.do(t, http.MethodPost, "/v1/services", `{"postal_code":"M1 1AE","items":[{"weight":1}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Len(t, body["services"], 2)
	errs := body["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "test-shipper")
}

func TestServer_Services_Invalid(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/v1/services", `{"carriers":["apc"],"postal_code":"nowhere","items":[{"weight":1}]}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "validation", errorOf(t, rec)["kind"])
	assert.Equal(t, 0, env.api.TotalCalls())
}

func TestServer_Label(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/v1/orders/WB1234/label", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 mock label WB1234", rec.Body.String())
}

func TestServer_Label_NotReady(t *testing.T) {
	env := newTestServer(t)
	env.api.OnGetOrder = func(_ context.Context, orderNumber, _ string) (*apc.RawResponse, error) {
		return apc.SuccessOrderResponse(orderNumber, "2000000000001"), nil
	}

	rec := env.do(t, http.MethodGet, "/v1/orders/WB1234/label?format=zpl", "")

	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "LABEL_NOT_AVAILABLE", errorOf(t, rec)["code"])
}

func TestServer_Cancel(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodDelete, "/v1/orders/WB1234", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.api.Calls("CancelOrder"))

	env.api.OnCancelOrder = func(_ context.Context, _ string) (*apc.RawResponse, error) {
		return apc.ErrorResponse(http.StatusNotFound, "Orders", "Order not found"), nil
	}
	rec = env.do(t, http.MethodDelete, "/v1/orders/WB404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Track(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/v1/tracks/2000000000001?carrier=test-shipper", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "2000000000001", body["waybill"])
	assert.Equal(t, "in_transit", body["status"])
	assert.Len(t, body["events"], 2)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodGet, "/v1/deliveries", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestServer(t)
	env.do(t, http.MethodPost, "/v1/deliveries", deliveryBody)

	rec := env.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `apc_requests_total{carrier="apc",operation="create_delivery",status="success"} 1`)
}
