package apc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/apc"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func testCompany(t *testing.T) shipper.Company {
	t.Helper()
	addr := shipper.NewAddress(
		[]string{"Unit 4 Kingsway", "Industrial Estate"},
		"Cannock", "WS11 8JR", "GB",
		shipper.WithCompanyName("Tournevent Ltd"),
		shipper.WithContact(shipper.Contact{Name: "Dispatch", Phone: "01543 000000"}),
	)
	company, err := shipper.NewCompany(addr, shipper.NewClock(9, 0), shipper.NewClock(17, 30))
	require.NoError(t, err)
	return company
}

func customerAddress() shipper.Address {
	return shipper.NewAddress(
		[]string{"221B Baker Street"},
		"London", "NW1 6XE", "GB",
		shipper.WithContact(shipper.Contact{Name: "Sherlock Holmes", Phone: "020 7224 3688", Email: "sherlock@example.co.uk"}),
	)
}

var collectionDate = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

// ukDelivery is a 2.5 kg next-day delivery within the UK.
func ukDelivery(t *testing.T, opts ...shipper.RequestOption) *shipper.ShipmentRequest {
	t.Helper()
	opts = append([]shipper.RequestOption{shipper.WithCollectionDate(collectionDate)}, opts...)
	return shipper.NewDeliveryRequest(testCompany(t), "ND16", customerAddress(), []shipper.Item{shipper.NewItem(2.5)}, opts...)
}

func mustValidate(t *testing.T, req *shipper.ShipmentRequest) *shipper.ValidShipment {
	t.Helper()
	valid, violations := shipper.NewValidator().Validate(req)
	require.Empty(t, violations, violations.Error())
	return valid
}

func newTestClient(t *testing.T, mockClient *apc.MockAPIClient) *apc.Client {
	t.Helper()
	logger := otelzap.New(zap.NewNop())
	return apc.NewWithAPIClient(
		apc.Config{Company: testCompany(t)},
		mockClient,
		logger,
		nil,
	)
}
