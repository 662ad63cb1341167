package shipper

import "strings"

// Services is the ordered set of services returned by an availability check.
type Services struct {
	Carrier string
	items   []Service
}

// NewServices wraps a list of services. The list is copied.
func NewServices(carrier string, list []Service) *Services {
	return &Services{Carrier: carrier, items: append([]Service(nil), list...)}
}

// ServicePredicate selects services in Filter.
type ServicePredicate func(Service) bool

// All returns a copy of every service.
func (s *Services) All() []Service {
	return append([]Service(nil), s.items...)
}

// Len returns the number of services.
func (s *Services) Len() int {
	return len(s.items)
}

// At returns the i-th service.
func (s *Services) At(i int) Service {
	return s.items[i]
}

// Codes returns the product codes in order.
func (s *Services) Codes() []string {
	codes := make([]string, len(s.items))
	for i, svc := range s.items {
		codes[i] = svc.Code
	}
	return codes
}

// Find returns the service with the given product code.
func (s *Services) Find(code string) (Service, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, svc := range s.items {
		if svc.Code == code {
			return svc, true
		}
	}
	return Service{}, false
}

// Filter returns the services matching every predicate.
func (s *Services) Filter(preds ...ServicePredicate) *Services {
	out := make([]Service, 0, len(s.items))
next:
	for _, svc := range s.items {
		for _, p := range preds {
			if !p(svc) {
				continue next
			}
		}
		out = append(out, svc)
	}
	return &Services{Carrier: s.Carrier, items: out}
}

// ByItemType matches services for an item type, case-insensitively.
func ByItemType(t ItemType) ServicePredicate {
	return func(s Service) bool {
		return strings.EqualFold(string(s.ItemType), string(t))
	}
}

// ByDeliveryGroup matches a delivery group such as "NEXT DAY".
func ByDeliveryGroup(group string) ServicePredicate {
	return func(s Service) bool {
		return strings.EqualFold(s.DeliveryGroup, group)
	}
}

// NameContains matches services whose name contains substr.
func NameContains(substr string) ServicePredicate {
	substr = strings.ToLower(substr)
	return func(s Service) bool {
		return strings.Contains(strings.ToLower(s.Name), substr)
	}
}

// Tracked matches tracked services.
func Tracked() ServicePredicate {
	return func(s Service) bool { return s.Tracked }
}

// Signed matches services that take a signature.
func Signed() ServicePredicate {
	return func(s Service) bool { return s.Signed }
}

// MaxTransitDays matches services delivering within days.
func MaxTransitDays(days int) ServicePredicate {
	return func(s Service) bool { return s.MaxTransitDays <= days }
}
