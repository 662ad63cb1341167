package apc_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/apc"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// newRecordingServer answers every request with the given status and body
// and keeps the last request it saw.
func newRecordingServer(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	seen := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*seen = recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   data,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newHTTPClient(srv *httptest.Server) *apc.HTTPAPIClient {
	return apc.NewHTTPAPIClient(apc.HTTPAPIClientConfig{
		BaseURL:  srv.URL + "/api/3.0/",
		Username: "acme@example.com",
		Password: "s3cret",
		Timeout:  5 * time.Second,
	})
}

func TestHTTPAPIClient_CreateOrder(t *testing.T) {
	srv, seen := newRecordingServer(t, http.StatusOK, `{"consignment":"ABC123"}`)
	client := newHTTPClient(srv)

	payload := apc.BuildOrderPayload(mustValidate(t, ukDelivery(t)))
	resp, err := client.CreateOrder(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"consignment":"ABC123"}`, string(resp.Body))

	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/api/3.0/Orders.json", seen.Path)
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("acme@example.com:s3cret"))
	assert.Equal(t, wantAuth, seen.Header.Get("remote-user"))
	assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", seen.Header.Get("Accept"))

	var sent apc.OrderPayload
	require.NoError(t, json.Unmarshal(seen.Body, &sent))
	assert.Equal(t, "ND16", sent.Orders.Order.ProductCode)
	assert.Equal(t, "NW1 6XE", sent.Orders.Order.Delivery.PostalCode)
}

func TestHTTPAPIClient_Routes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *apc.HTTPAPIClient) (*apc.RawResponse, error)
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   string
	}{
		{
			name: "service availability",
			call: func(c *apc.HTTPAPIClient) (*apc.RawResponse, error) {
				q := shipper.NewServiceQuery(testCompany(t), "M1 1AE", "GB", []shipper.Item{shipper.NewItem(1)})
				return c.ServiceAvailability(context.Background(), apc.BuildServiceCheckPayload(q))
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/3.0/ServiceAvailability.json",
		},
		{
			name: "get order",
			call: func(c *apc.HTTPAPIClient) (*apc.RawResponse, error) {
				return c.GetOrder(context.Background(), "WB1234", "zpl")
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/3.0/Orders/WB1234.json",
			wantQuery:  "labelformat=ZPL",
		},
		{
			name: "cancel order",
			call: func(c *apc.HTTPAPIClient) (*apc.RawResponse, error) {
				return c.CancelOrder(context.Background(), "WB1234")
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/3.0/Orders/WB1234.json",
			wantBody:   `{"Orders":{"Order":{"Status":"CANCELLED"}}}`,
		},
		{
			name: "track",
			call: func(c *apc.HTTPAPIClient) (*apc.RawResponse, error) {
				return c.Track(context.Background(), "2000000000001")
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/3.0/Tracks/2000000000001.json",
			wantQuery:  "history=Yes&searchtype=CarrierWaybill",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := newRecordingServer(t, http.StatusOK, `{}`)

			_, err := tt.call(newHTTPClient(srv))

			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, seen.Method)
			assert.Equal(t, tt.wantPath, seen.Path)
			assert.Equal(t, tt.wantQuery, seen.Query)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, string(seen.Body))
			}
			if tt.wantMethod == http.MethodGet {
				assert.Empty(t, seen.Body)
			}
		})
	}
}

func TestHTTPAPIClient_StatusPassthrough(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusInternalServerError, "<html>boom</html>")

	resp, err := newHTTPClient(srv).CreateOrder(context.Background(), &apc.OrderPayload{})

	require.NoError(t, err, "an HTTP error status is a reply, not a transport failure")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "<html>boom</html>", string(resp.Body))
}

func TestHTTPAPIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := apc.NewHTTPAPIClient(apc.HTTPAPIClientConfig{
		BaseURL:  srv.URL,
		Username: "u",
		Password: "p",
		Timeout:  50 * time.Millisecond,
	})

	_, err := client.Track(context.Background(), "1")

	require.Error(t, err)
	fail := apc.MapTransportError(err)
	assert.Equal(t, shipper.CodeTimeout, fail.Code)
	assert.Equal(t, shipper.KindUnreachable, fail.Kind)
}

func TestHTTPAPIClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := apc.NewHTTPAPIClient(apc.HTTPAPIClientConfig{BaseURL: url, Username: "u", Password: "p"})
	_, err := client.Track(context.Background(), "1")

	require.Error(t, err)
	assert.Equal(t, shipper.CodeUnreachable, apc.MapTransportError(err).Code)
}

func TestClient_OverHTTP(t *testing.T) {
	reply := apc.SuccessOrderResponse("WB00000001", "2000000000042")
	srv, seen := newRecordingServer(t, reply.StatusCode, string(reply.Body))

	client, err := apc.New(apc.Config{
		Username: "acme@example.com",
		Password: "s3cret",
		BaseURL:  srv.URL,
		Company:  testCompany(t),
	}, nil, nil)
	require.NoError(t, err)

	result := client.CreateDelivery(context.Background(), ukDelivery(t))

	require.True(t, result.OK(), "unexpected failure: %v", result.Err())
	c, _ := result.Consignment()
	assert.Equal(t, "2000000000042", c.Number)
	assert.Equal(t, "WB00000001", c.OrderNumber)
	assert.Equal(t, "/Orders.json", seen.Path)
}
