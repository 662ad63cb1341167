package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
	"go.uber.org/zap"
)

// Operation names used in logs and metrics.
const (
	opServices         = "services"
	opCreateDelivery   = "create_delivery"
	opCreateCollection = "create_collection"
	opGetLabel         = "get_label"
	opCancelOrder      = "cancel_order"
	opTrack            = "track"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in servicesInput
	if !s.decode(w, r, &in) {
		return
	}

	q, violations := in.toQuery(s.company)
	if len(violations) > 0 {
		s.fail(w, r, opServices, "", time.Since(start), shipper.FromViolations("", violations))
		return
	}

	found, errs := s.registry.ServicesFrom(r.Context(), q, in.Carriers)
	if len(found) == 0 && len(errs) > 0 {
		s.fail(w, r, opServices, "", time.Since(start), errs[0])
		return
	}

	resp := servicesResponse{Services: []serviceResponse{}}
	preds := in.predicates()
	for _, services := range found {
		for _, svc := range services.Filter(preds...).All() {
			resp.Services = append(resp.Services, toServiceResponse(services.Carrier, svc))
		}
	}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, err.Error())
	}

	s.succeed(opServices, "", time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	s.handleShipment(w, r, opCreateDelivery, shipper.KindDelivery)
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	s.handleShipment(w, r, opCreateCollection, shipper.KindCollection)
}

func (s *Server) handleShipment(w http.ResponseWriter, r *http.Request, op string, kind shipper.ShipmentKind) {
	start := time.Now()

	var in shipmentInput
	if !s.decode(w, r, &in) {
		return
	}

	carrier, ok := s.resolveShipper(w, r, op, in.Carrier)
	if !ok {
		return
	}

	req, violations := in.toRequest(s.company, kind)
	if len(violations) > 0 {
		s.fail(w, r, op, carrier.Name(), time.Since(start), shipper.FromViolations(carrier.Name(), violations))
		return
	}

	var result *shipper.Result
	if kind == shipper.KindCollection {
		result = carrier.CreateCollection(r.Context(), req)
	} else {
		result = carrier.CreateDelivery(r.Context(), req)
	}

	consignment, ok := result.Consignment()
	if !ok {
		s.fail(w, r, op, carrier.Name(), time.Since(start), result.Err())
		return
	}

	s.succeed(op, carrier.Name(), time.Since(start))
	s.logger.Ctx(r.Context()).Info("Shipment booked",
		zap.String("request_id", requestID(r.Context())),
		zap.String("kind", string(kind)),
		zap.String("carrier", carrier.Name()),
		zap.String("waybill", consignment.Number),
	)
	writeJSON(w, http.StatusCreated, toConsignmentResponse(carrier.Name(), consignment))
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	carrier, ok := s.resolveShipper(w, r, opGetLabel, r.URL.Query().Get("carrier"))
	if !ok {
		return
	}

	format := shipper.LabelFormat(strings.ToUpper(r.URL.Query().Get("format")))
	label, err := carrier.GetLabel(r.Context(), &shipper.LabelRequest{
		OrderNumber: r.PathValue("id"),
		Format:      format,
	})
	if err != nil {
		s.fail(w, r, opGetLabel, carrier.Name(), time.Since(start), err)
		return
	}

	s.succeed(opGetLabel, carrier.Name(), time.Since(start))
	w.Header().Set("Content-Type", labelContentType(label.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, label.OrderNumber, strings.ToLower(string(label.Format))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(label.Data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	carrier, ok := s.resolveShipper(w, r, opCancelOrder, r.URL.Query().Get("carrier"))
	if !ok {
		return
	}

	if err := carrier.CancelOrder(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, opCancelOrder, carrier.Name(), time.Since(start), err)
		return
	}

	s.succeed(opCancelOrder, carrier.Name(), time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	carrier, ok := s.resolveShipper(w, r, opTrack, r.URL.Query().Get("carrier"))
	if !ok {
		return
	}

	tracking, err := carrier.Track(r.Context(), r.PathValue("waybill"))
	if err != nil {
		s.fail(w, r, opTrack, carrier.Name(), time.Since(start), err)
		return
	}

	s.succeed(opTrack, carrier.Name(), time.Since(start))
	writeJSON(w, http.StatusOK, toTrackingResponse(tracking))
}

// Helpers

// resolveShipper resolves the named account, or the default one when name is
// empty. It writes the error response itself.
func (s *Server) resolveShipper(w http.ResponseWriter, r *http.Request, op, name string) (shipper.Shipper, bool) {
	var (
		carrier shipper.Shipper
		err     error
	)
	if name == "" {
		carrier, err = s.registry.Default()
	} else {
		carrier, err = s.registry.Get(name)
	}
	if err != nil {
		s.fail(w, r, op, name, 0, err)
		return nil, false
	}
	return carrier, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    "INVALID_JSON",
			Message: "Invalid JSON: " + err.Error(),
		}})
		return false
	}
	return true
}

func (s *Server) succeed(op, carrier string, elapsed time.Duration) {
	s.metrics.RecordRequest(op, carrier, "success", elapsed.Seconds())
}

// fail records the failure and writes it with the status its kind implies.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, carrier string, elapsed time.Duration, err error) {
	var shipperErr *shipper.ShipperError
	if !errors.As(err, &shipperErr) {
		status, code := http.StatusInternalServerError, "INTERNAL"
		if errors.Is(err, shipper.ErrCarrierNotFound) {
			status, code = http.StatusNotFound, "CARRIER_NOT_FOUND"
		}
		s.metrics.RecordRequest(op, carrier, "error", elapsed.Seconds())
		s.metrics.RecordError(carrier, "", code)
		writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
		return
	}

	if carrier == "" {
		carrier = shipperErr.Carrier
	}
	s.metrics.RecordRequest(op, carrier, "error", elapsed.Seconds())
	s.metrics.RecordError(carrier, string(shipperErr.Kind), shipperErr.Code)

	status := statusFor(shipperErr)
	fields := []zap.Field{
		zap.String("request_id", requestID(r.Context())),
		zap.String("operation", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed", fields...)
	} else {
		s.logger.Ctx(r.Context()).Warn("Request rejected", fields...)
	}
	writeJSON(w, status, errorResponse{Error: toErrorBody(shipperErr)})
}

// statusFor maps a carrier failure onto an HTTP status.
func statusFor(e *shipper.ShipperError) int {
	switch e.Kind {
	case shipper.KindValidation:
		return http.StatusUnprocessableEntity
	case shipper.KindUnreachable:
		if e.Code == shipper.CodeTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case shipper.KindUnparseable:
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(e, shipper.ErrOrderNotFound), errors.Is(e, shipper.ErrLabelNotAvailable):
		return http.StatusNotFound
	case errors.Is(e, shipper.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(e, shipper.ErrAuthenticationFailed), errors.Is(e, shipper.ErrServiceUnavailable):
		return http.StatusBadGateway
	case e.StatusCode < http.StatusInternalServerError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func labelContentType(f shipper.LabelFormat) string {
	switch f {
	case shipper.LabelPNG:
		return "image/png"
	case shipper.LabelZPL:
		return "application/x-zpl"
	default:
		return "application/pdf"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
