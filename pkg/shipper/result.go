package shipper

import "time"

// Consignment is what the carrier hands back for a booked shipment.
type Consignment struct {
	// Number is the consignment (waybill) number used for tracking.
	Number         string
	OrderNumber    string
	Barcode        string
	Reference      string
	ProductCode    string
	NetworkName    string
	CollectionDate *time.Time
	DeliveryDate   *time.Time
	// ItemTrackingNumbers holds one tracking number per piece, if issued.
	ItemTrackingNumbers []string
	// LabelRef identifies the label to fetch with GetLabel.
	LabelRef string
}

// Result is the tagged outcome of a submission: exactly one of a
// consignment or a failure. It cannot be changed after construction.
type Result struct {
	consignment *Consignment
	failure     *ShipperError
}

// Succeeded returns a successful Result.
func Succeeded(c Consignment) *Result {
	c.ItemTrackingNumbers = append([]string(nil), c.ItemTrackingNumbers...)
	return &Result{consignment: &c}
}

// Failed returns a failed Result. A nil error is replaced by a generic
// unparseable failure so a Result is never empty.
func Failed(err *ShipperError) *Result {
	if err == nil {
		err = &ShipperError{Kind: KindUnparseable, Code: CodeUnparseable, Message: "unknown failure"}
	}
	return &Result{failure: err}
}

// OK reports whether the submission succeeded.
func (r *Result) OK() bool {
	return r.consignment != nil
}

// Consignment returns a copy of the consignment and true on success.
func (r *Result) Consignment() (Consignment, bool) {
	if r.consignment == nil {
		return Consignment{}, false
	}
	c := *r.consignment
	c.ItemTrackingNumbers = append([]string(nil), c.ItemTrackingNumbers...)
	return c, true
}

// Failure returns the failure, or nil on success.
func (r *Result) Failure() *ShipperError {
	return r.failure
}

// Err returns the failure as an error, or nil on success.
func (r *Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// Kind returns the failure kind, or "" on success.
func (r *Result) Kind() ErrorKind {
	if r.failure == nil {
		return ""
	}
	return r.failure.Kind
}
