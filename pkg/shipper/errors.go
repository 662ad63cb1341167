package shipper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where a failure came from.
type ErrorKind string

const (
	// KindValidation is a locally detected, field-level input problem.
	KindValidation ErrorKind = "validation"
	// KindUpstream is a structured error returned by the carrier API.
	KindUpstream ErrorKind = "upstream"
	// KindUnreachable is a network or timeout failure.
	KindUnreachable ErrorKind = "unreachable"
	// KindUnparseable is a carrier reply in a shape we do not recognize.
	KindUnparseable ErrorKind = "unparseable"
)

// Error codes set by this package rather than the carrier.
const (
	CodeValidation  = "VALIDATION"
	CodeTimeout     = "TIMEOUT"
	CodeUnreachable = "UNREACHABLE"
	CodeUnparseable = "UNPARSEABLE"
)

// FieldError is one field-level complaint, either from local validation or
// from the carrier's error field list.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Fields     []FieldError
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new upstream ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Kind:    KindUpstream,
		Code:    code,
		Message: message,
	}
}

// WithKind sets the failure kind.
func (e *ShipperError) WithKind(kind ErrorKind) *ShipperError {
	e.Kind = kind
	return e
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// WithFields attaches field-level details.
func (e *ShipperError) WithFields(fields ...FieldError) *ShipperError {
	e.Fields = append(e.Fields, fields...)
	return e
}

// FromViolations turns local validation output into a ShipperError so
// callers handle it on the same path as carrier failures.
func FromViolations(carrier string, v Violations) *ShipperError {
	fields := make([]FieldError, len(v))
	for i, violation := range v {
		fields[i] = FieldError(violation)
	}
	return &ShipperError{
		Carrier: carrier,
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: v.Error(),
		Fields:  fields,
		Cause:   v.sentinel(),
	}
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrInvalidRequest indicates some other request field is invalid.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrOrderNotFound indicates the order ID was not found.
	ErrOrderNotFound = errors.New("order not found")

	// ErrLabelNotAvailable indicates the label is not yet available.
	ErrLabelNotAvailable = errors.New("label not available")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")
)

// IsRetryable returns true if the error is retryable. Nothing in this
// module retries; the flag is advice for callers.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// KindOf returns the failure kind of err, or "" when err is not a
// ShipperError.
func KindOf(err error) ErrorKind {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Kind
	}
	return ""
}
