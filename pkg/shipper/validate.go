package shipper

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ukPostcode matches UK postcodes, including BFPO and overseas
	// territories that APC routes through the UK network.
	ukPostcode = regexp.MustCompile(`^(([A-Z]{1,2}[0-9][A-Z0-9]?|ASCN|STHL|TDCU|BBND|[BFS]IQQ|PCRN|TKCA) ?[0-9][A-Z]{2}|BFPO ?[0-9]{1,4}|(KY[0-9]|MSR|VG|AI)[ -]?[0-9]{4}|GE ?CX|GIR ?0A{2}|SAN ?TA1)$`)

	foreignPostcode = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 -]{1,9}$`)

	serviceCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)
)

// ukPostcodeCountries use the UK postcode format.
var ukPostcodeCountries = map[string]bool{"GB": true, "GG": true, "JE": true, "IM": true}

// PostcodeValid reports whether pc is a well-formed postcode for the
// country. UK and Crown Dependency postcodes must match the UK pattern.
func PostcodeValid(pc, countryCode string) bool {
	pc = NormalizePostalCode(pc)
	if ukPostcodeCountries[strings.ToUpper(countryCode)] || countryCode == "" {
		return ukPostcode.MatchString(pc)
	}
	return foreignPostcode.MatchString(pc)
}

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string
	Rule    string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Violations is the non-empty set of failures for an invalid request.
type Violations []Violation

// Error implements the error interface.
func (v Violations) Error() string {
	parts := make([]string, len(v))
	for i, violation := range v {
		parts[i] = violation.String()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether any violation names field.
func (v Violations) Has(field string) bool {
	return len(v.ForField(field)) > 0
}

// ForField returns the violations for field.
func (v Violations) ForField(field string) Violations {
	var out Violations
	for _, violation := range v {
		if violation.Field == field {
			out = append(out, violation)
		}
	}
	return out
}

// sentinel picks the sentinel error matching the first violation.
func (v Violations) sentinel() error {
	for _, violation := range v {
		switch {
		case strings.HasPrefix(violation.Field, "items"):
			return ErrInvalidPackage
		case strings.HasPrefix(violation.Field, "origin."),
			strings.HasPrefix(violation.Field, "destination."),
			strings.HasPrefix(violation.Field, "collection."),
			strings.HasPrefix(violation.Field, "delivery."):
			return ErrInvalidAddress
		}
	}
	return ErrInvalidRequest
}

// ValidShipment is a ShipmentRequest that passed validation. It can only be
// obtained from Validator.Validate and holds its own copy of the request.
type ValidShipment struct {
	req ShipmentRequest
}

// Request returns a copy of the validated request.
func (s *ValidShipment) Request() ShipmentRequest {
	return s.req.clone()
}

// Kind returns whether this is a delivery or a collection.
func (s *ValidShipment) Kind() ShipmentKind {
	return s.req.Kind
}

// Validator checks requests locally before anything is sent. It is safe
// for concurrent use and never performs I/O.
type Validator struct {
	validate *validator.Validate
	services map[string]struct{}
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithKnownServices restricts service codes to the given set, typically the
// codes returned by an earlier availability check.
func WithKnownServices(codes ...string) ValidatorOption {
	return func(v *Validator) {
		if len(codes) == 0 {
			return
		}
		v.services = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			v.services[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
		}
	}
}

// NewValidator returns a Validator with the APC rule set.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(v)
	}

	v.validate.RegisterTagNameFunc(jsonTagName)
	v.validate.RegisterCustomTypeFunc(clockValue, Clock{})
	mustRegister(v.validate, "clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	mustRegister(v.validate, "item_type", func(fl validator.FieldLevel) bool {
		return ItemType(fl.Field().String()).Valid()
	})
	mustRegister(v.validate, "service_code", func(fl validator.FieldLevel) bool {
		return serviceCodePattern.MatchString(fl.Field().String())
	})
	v.validate.RegisterStructValidation(locationLevel, Address{}, Location{})
	v.validate.RegisterStructValidation(v.shipmentLevel, ShipmentRequest{})
	v.validate.RegisterStructValidation(queryLevel, ServiceQuery{})
	return v
}

// Validate checks a delivery or collection request. On success it returns
// an immutable ValidShipment; otherwise a non-empty Violations.
func (v *Validator) Validate(req *ShipmentRequest) (*ValidShipment, Violations) {
	if req == nil {
		return nil, Violations{{Field: "request", Rule: "required", Message: "is required"}}
	}
	snapshot := req.clone()
	if violations := v.check(snapshot); len(violations) > 0 {
		return nil, violations
	}
	return &ValidShipment{req: snapshot}, nil
}

// ValidateAddress checks a single address.
func (v *Validator) ValidateAddress(a Address) Violations {
	return v.check(a)
}

// ValidateItems checks a list of pieces.
func (v *Validator) ValidateItems(items []Item) Violations {
	return v.check(itemSet{Items: items})
}

type itemSet struct {
	Items []Item `json:"items" validate:"required,min=1,max=99,dive"`
}

// ValidateServiceQuery checks an availability query.
func (v *Validator) ValidateServiceQuery(q *ServiceQuery) Violations {
	if q == nil {
		return Violations{{Field: "query", Rule: "required", Message: "is required"}}
	}
	return v.check(*q)
}

func (v *Validator) check(s interface{}) Violations {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Violations{{Field: "request", Rule: "invalid", Message: err.Error()}}
	}

	out := make(Violations, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: describe(fe),
		})
	}
	return out
}

func (v *Validator) shipmentLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(ShipmentRequest)

	if r.CollectionDate.IsZero() {
		sl.ReportError(r.CollectionDate, "collection_date", "CollectionDate", "required", "")
	}
	if !r.ReadyAt.IsZero() && !r.ClosedAt.IsZero() && !r.ReadyAt.Before(r.ClosedAt) {
		sl.ReportError(r.ReadyAt, "ready_at", "ReadyAt", "before_closed", "")
	}
	if len(v.services) > 0 && r.ServiceCode != "" {
		if _, ok := v.services[r.ServiceCode]; !ok {
			sl.ReportError(r.ServiceCode, "service_code", "ServiceCode", "known_service", "")
		}
	}
}

func queryLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(ServiceQuery)

	if q.CollectionDate.IsZero() {
		sl.ReportError(q.CollectionDate, "collection_date", "CollectionDate", "required", "")
	}
	if !q.ReadyAt.IsZero() && !q.ClosedAt.IsZero() && !q.ReadyAt.Before(q.ClosedAt) {
		sl.ReportError(q.ReadyAt, "ready_at", "ReadyAt", "before_closed", "")
	}
}

// locationLevel checks the postcode against the country it sits in, and
// that an address names somebody.
func locationLevel(sl validator.StructLevel) {
	var pc, country string
	switch loc := sl.Current().Interface().(type) {
	case Address:
		pc, country = loc.PostalCode, loc.CountryCode
		if loc.Company == "" && loc.Contact.Name == "" {
			sl.ReportError(loc.Company, "company", "Company", "name", "")
		}
	case Location:
		pc, country = loc.PostalCode, loc.CountryCode
	default:
		return
	}
	if pc != "" && !PostcodeValid(pc, country) {
		sl.ReportError(pc, "postal_code", "PostalCode", "postcode", strings.ToUpper(country))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "postcode":
		if ukPostcodeCountries[fe.Param()] || fe.Param() == "" {
			return "does not match UK pattern"
		}
		return "is not a valid postcode for " + fe.Param()
	case "iso3166_1_alpha2":
		return "is not a known ISO 3166-1 alpha-2 country code"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " entries"
		}
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "email":
		return "is not a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "clock":
		return "must be a time of day (HH:MM)"
	case "item_type":
		return "is not a known item type"
	case "service_code":
		return "is not a valid service code"
	case "known_service":
		return "is not an available service"
	case "before_closed":
		return "must be before closed_at"
	case "name":
		return "requires a company or contact name"
	default:
		return "failed " + fe.Tag()
	}
}

// fieldPath drops the root struct name from a validator namespace:
// "ShipmentRequest.destination.postal_code" becomes "destination.postal_code".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

func clockValue(v reflect.Value) interface{} {
	c, ok := v.Interface().(Clock)
	if !ok || c.IsZero() {
		return ""
	}
	return c.String()
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}
