package apc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a reply is read into memory.
const maxResponseBytes = 10 << 20

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// HTTPClient replaces the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = LiveBaseURL
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &HTTPAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + credentials,
		httpClient: httpClient,
	}
}

// ServiceAvailability checks which services can carry a shipment.
// POST /ServiceAvailability.json
func (c *HTTPAPIClient) ServiceAvailability(ctx context.Context, req *ServiceCheckPayload) (*RawResponse, error) {
	return c.doRequest(ctx, http.MethodPost, "/ServiceAvailability.json", nil, req)
}

// CreateOrder books a delivery or collection.
// POST /Orders.json
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *OrderPayload) (*RawResponse, error) {
	return c.doRequest(ctx, http.MethodPost, "/Orders.json", nil, req)
}

// GetOrder fetches an order with its label.
// GET /Orders/{order_number}.json?labelformat=PDF
func (c *HTTPAPIClient) GetOrder(ctx context.Context, orderNumber string, labelFormat string) (*RawResponse, error) {
	query := url.Values{}
	if labelFormat != "" {
		query.Set("labelformat", strings.ToUpper(labelFormat))
	}
	return c.doRequest(ctx, http.MethodGet, orderPath(orderNumber), query, nil)
}

// CancelOrder cancels an order by setting its status.
// PUT /Orders/{order_number}.json
func (c *HTTPAPIClient) CancelOrder(ctx context.Context, orderNumber string) (*RawResponse, error) {
	var body CancelPayload
	body.Orders.Order.Status = "CANCELLED"
	return c.doRequest(ctx, http.MethodPut, orderPath(orderNumber), nil, &body)
}

// Track fetches the history of a consignment.
// GET /Tracks/{waybill}.json?searchtype=CarrierWaybill&history=Yes
func (c *HTTPAPIClient) Track(ctx context.Context, wayBill string) (*RawResponse, error) {
	query := url.Values{}
	query.Set("searchtype", "CarrierWaybill")
	query.Set("history", "Yes")
	return c.doRequest(ctx, http.MethodGet, "/Tracks/"+url.PathEscape(wayBill)+".json", query, nil)
}

func orderPath(orderNumber string) string {
	return "/Orders/" + url.PathEscape(orderNumber) + ".json"
}

// doRequest performs an HTTP request with proper headers and authentication.
// Any HTTP status is returned as a RawResponse; only transport failures
// produce an error.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*RawResponse, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("remote-user", c.authHeader) // APC authenticates with a remote-user header
	req.Header.Set("User-Agent", "tournevent-apc/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &RawResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
