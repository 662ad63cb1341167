// Package apc provides integration with the APC Overnight courier API.
package apc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "apc"

// APC API base URLs.
const (
	LiveBaseURL    = "https://apc.hypaship.com/api/3.0"
	SandboxBaseURL = "https://apc-training.hypaship.com/api/3.0"
)

// DefaultTimeout bounds every call to the APC API.
const DefaultTimeout = 30 * time.Second

// ErrMissingCredentials is returned by New when a live client has no
// username or password.
var ErrMissingCredentials = errors.New("apc: username and password are required")

// errNoReply stands in for a transport that returned neither a reply nor
// an error.
var errNoReply = errors.New("apc: transport returned no reply")

// Config holds APC configuration.
type Config struct {
	Username string
	Password string
	BaseURL  string // Overrides the live/sandbox URL when set
	Sandbox  bool
	UseMock  bool // When true, uses mock API client
	Timeout  time.Duration

	// Company is the account holder: default collection point and hours.
	Company shipper.Company

	// KnownServices, when set, restricts service codes at validation time.
	KnownServices []string
}

// URL returns the base URL the client talks to.
func (c Config) URL() string {
	switch {
	case c.BaseURL != "":
		return strings.TrimRight(c.BaseURL, "/")
	case c.Sandbox:
		return SandboxBaseURL
	default:
		return LiveBaseURL
	}
}

// Client is the APC shipper client.
// It implements the shipper.Shipper interface: every submission is
// validated locally, built into the APC payload, sent through the
// APIClient (mock or HTTP) and mapped back into a shipper.Result.
type Client struct {
	config    Config
	apiClient APIClient
	validator *shipper.Validator
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new APC client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		if cfg.Username == "" || cfg.Password == "" {
			return nil, ErrMissingCredentials
		}
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:  cfg.URL(),
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer), nil
}

// NewWithAPIClient creates a new APC client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/apc/pkg/shipper/apc")
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		validator: shipper.NewValidator(shipper.WithKnownServices(cfg.KnownServices...)),
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Company returns the configured account holder.
func (c *Client) Company() shipper.Company {
	return c.config.Company
}

// Validator returns the validator the client checks submissions with.
func (c *Client) Validator() *shipper.Validator {
	return c.validator
}

// Services returns the services APC offers for the query. Unset collection
// point, date and hours are taken from the company.
func (c *Client) Services(ctx context.Context, q *shipper.ServiceQuery) (*shipper.Services, error) {
	ctx, span := c.tracer.Start(ctx, "apc.Services")
	defer span.End()

	if q == nil {
		fail := shipper.FromViolations(carrierName, c.validator.ValidateServiceQuery(nil))
		return nil, c.fail(ctx, span, "Invalid service query", fail)
	}
	query := c.withCompanyDefaults(*q)

	span.SetAttributes(
		attribute.String("apc.delivery.postal_code", query.Delivery.PostalCode),
		attribute.String("apc.delivery.country", query.Delivery.CountryCode),
		attribute.Int("apc.pieces", len(query.Items)),
	)
	c.logger.Ctx(ctx).Info("Checking APC service availability",
		zap.String("collection_postal_code", query.Collection.PostalCode),
		zap.String("delivery_postal_code", query.Delivery.PostalCode),
		zap.String("delivery_country", query.Delivery.CountryCode),
		zap.Int("item_count", len(query.Items)),
	)

	if v := c.validator.ValidateServiceQuery(&query); len(v) > 0 {
		return nil, c.fail(ctx, span, "Invalid service query", shipper.FromViolations(carrierName, v))
	}

	resp, err := c.apiClient.ServiceAvailability(ctx, BuildServiceCheckPayload(&query))
	if fail := transportFailure(resp, err); fail != nil {
		return nil, c.fail(ctx, span, "APC API unreachable", fail)
	}

	list, fail := MapServicesResponse(resp.StatusCode, resp.Body, query.Delivery.CountryCode)
	if fail != nil {
		return nil, c.fail(ctx, span, "APC service availability failed", fail)
	}

	span.SetAttributes(attribute.Int("apc.services", len(list)))
	return shipper.NewServices(carrierName, list), nil
}

// CreateDelivery books goods from the company to a customer.
func (c *Client) CreateDelivery(ctx context.Context, req *shipper.ShipmentRequest) *shipper.Result {
	return c.submit(ctx, "apc.CreateDelivery", shipper.KindDelivery, req)
}

// CreateCollection books goods from a customer back to the company.
func (c *Client) CreateCollection(ctx context.Context, req *shipper.ShipmentRequest) *shipper.Result {
	return c.submit(ctx, "apc.CreateCollection", shipper.KindCollection, req)
}

// submit runs validate, build, send and map. Nothing is sent when the
// request is invalid.
func (c *Client) submit(ctx context.Context, op string, kind shipper.ShipmentKind, req *shipper.ShipmentRequest) *shipper.Result {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("apc.kind", string(kind))))
	defer span.End()

	if req != nil && req.Kind != kind {
		fail := shipper.FromViolations(carrierName, shipper.Violations{{
			Field: "kind", Rule: "oneof", Message: "must be " + string(kind),
		}})
		return shipper.Failed(c.fail(ctx, span, "Invalid shipment request", fail))
	}

	valid, violations := c.validator.Validate(req)
	if len(violations) > 0 {
		return shipper.Failed(c.fail(ctx, span, "Invalid shipment request", shipper.FromViolations(carrierName, violations)))
	}

	r := valid.Request()
	span.SetAttributes(
		attribute.String("apc.service_code", r.ServiceCode),
		attribute.Int("apc.pieces", r.Pieces()),
	)
	c.logger.Ctx(ctx).Info("Creating APC order",
		zap.String("kind", string(kind)),
		zap.String("service_code", r.ServiceCode),
		zap.String("customer", r.CustomerAddress().Name()),
		zap.String("customer_postal_code", r.CustomerAddress().PostalCode),
		zap.Int("pieces", r.Pieces()),
		zap.Float64("total_weight", r.TotalWeight()),
	)

	resp, err := c.apiClient.CreateOrder(ctx, BuildOrderPayload(valid))
	if fail := transportFailure(resp, err); fail != nil {
		return shipper.Failed(c.fail(ctx, span, "APC API unreachable", fail))
	}

	result := MapOrderResponse(resp.StatusCode, resp.Body)
	if !result.OK() {
		return shipper.Failed(c.fail(ctx, span, "APC order rejected", result.Failure()))
	}

	consignment, _ := result.Consignment()
	span.SetAttributes(attribute.String("apc.waybill", consignment.Number))
	c.logger.Ctx(ctx).Info("APC order created",
		zap.String("order_number", consignment.OrderNumber),
		zap.String("waybill", consignment.Number),
	)
	return result
}

// GetLabel retrieves the shipping label of an order.
func (c *Client) GetLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
	ctx, span := c.tracer.Start(ctx, "apc.GetLabel")
	defer span.End()

	if req == nil || strings.TrimSpace(req.OrderNumber) == "" {
		return nil, c.fail(ctx, span, "Invalid label request", requiredField("order_number"))
	}
	lr := *req
	if lr.Format == "" {
		lr.Format = shipper.LabelPDF
	}

	span.SetAttributes(attribute.String("apc.order_number", lr.OrderNumber))
	c.logger.Ctx(ctx).Info("Getting APC label",
		zap.String("order_number", lr.OrderNumber),
		zap.String("format", string(lr.Format)),
	)

	resp, err := c.apiClient.GetOrder(ctx, lr.OrderNumber, string(lr.Format))
	if fail := transportFailure(resp, err); fail != nil {
		return nil, c.fail(ctx, span, "APC API unreachable", fail)
	}

	label, fail := MapLabelResponse(resp.StatusCode, resp.Body, &lr)
	if fail != nil {
		return nil, c.fail(ctx, span, "APC label retrieval failed", fail)
	}
	return label, nil
}

// Track returns the tracking history of a consignment.
func (c *Client) Track(ctx context.Context, wayBill string) (*shipper.Tracking, error) {
	ctx, span := c.tracer.Start(ctx, "apc.Track")
	defer span.End()

	wayBill = strings.TrimSpace(wayBill)
	if wayBill == "" {
		return nil, c.fail(ctx, span, "Invalid tracking request", requiredField("waybill"))
	}

	span.SetAttributes(attribute.String("apc.waybill", wayBill))
	c.logger.Ctx(ctx).Info("Tracking APC consignment", zap.String("waybill", wayBill))

	resp, err := c.apiClient.Track(ctx, wayBill)
	if fail := transportFailure(resp, err); fail != nil {
		return nil, c.fail(ctx, span, "APC API unreachable", fail)
	}

	tracking, fail := MapTrackResponse(resp.StatusCode, resp.Body, wayBill)
	if fail != nil {
		return nil, c.fail(ctx, span, "APC tracking failed", fail)
	}
	return tracking, nil
}

// CancelOrder cancels an order that has not been collected.
func (c *Client) CancelOrder(ctx context.Context, orderNumber string) error {
	ctx, span := c.tracer.Start(ctx, "apc.CancelOrder")
	defer span.End()

	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return c.fail(ctx, span, "Invalid cancel request", requiredField("order_number"))
	}

	span.SetAttributes(attribute.String("apc.order_number", orderNumber))
	c.logger.Ctx(ctx).Info("Cancelling APC order", zap.String("order_number", orderNumber))

	resp, err := c.apiClient.CancelOrder(ctx, orderNumber)
	if fail := transportFailure(resp, err); fail != nil {
		return c.fail(ctx, span, "APC API unreachable", fail)
	}
	if fail := MapCancelResponse(resp.StatusCode, resp.Body); fail != nil {
		return c.fail(ctx, span, "APC cancellation failed", fail)
	}
	return nil
}

// fail records a failure on the span and in the log, and returns it.
// transportFailure reports a call that never produced a reply to map.
func transportFailure(resp *RawResponse, err error) *shipper.ShipperError {
	if err != nil {
		return MapTransportError(err)
	}
	if resp == nil {
		return MapTransportError(errNoReply)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, msg string, err *shipper.ShipperError) *shipper.ShipperError {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Code)

	fields := []zap.Field{
		zap.String("kind", string(err.Kind)),
		zap.String("code", err.Code),
		zap.Error(err),
	}
	if err.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", err.StatusCode))
	}
	if err.Kind == shipper.KindValidation {
		c.logger.Ctx(ctx).Warn(msg, fields...)
	} else {
		c.logger.Ctx(ctx).Error(msg, fields...)
	}
	return err
}

func (c *Client) withCompanyDefaults(q shipper.ServiceQuery) shipper.ServiceQuery {
	company := c.config.Company
	if q.Collection == (shipper.Location{}) {
		q.Collection = shipper.LocationOf(company.Address)
	}
	if q.CollectionDate.IsZero() {
		q.CollectionDate = shipper.DateOnly(time.Now())
	}
	if q.ReadyAt.IsZero() && q.ClosedAt.IsZero() {
		q.ReadyAt, q.ClosedAt = company.OpenFrom, company.OpenTo
	}
	q.Items = append([]shipper.Item(nil), q.Items...)
	return q
}

func requiredField(field string) *shipper.ShipperError {
	return shipper.FromViolations(carrierName, shipper.Violations{{
		Field: field, Rule: "required", Message: "is required",
	}})
}

// Ensure Client implements shipper.Shipper interface
var _ shipper.Shipper = (*Client)(nil)
