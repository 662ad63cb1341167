package shipper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/pkg/shipper"
)

func testCompany(t *testing.T) shipper.Company {
	t.Helper()
	addr := shipper.NewAddress(
		[]string{"Unit 4 Kingsway", "Industrial Estate"},
		"Cannock", "ws11 8jr", "gb",
		shipper.WithCompanyName("Tournevent Ltd"),
		shipper.WithContact(shipper.Contact{Name: "Dispatch", Phone: "01543 000000", Email: "dispatch@example.co.uk"}),
	)
	company, err := shipper.NewCompany(addr, shipper.NewClock(9, 0), shipper.NewClock(17, 30))
	require.NoError(t, err)
	return company
}

func customerAddress() shipper.Address {
	return shipper.NewAddress(
		[]string{"221B Baker Street"},
		"London", "NW1 6XE", "GB",
		shipper.WithContact(shipper.Contact{Name: "Sherlock Holmes", Phone: "020 7224 3688"}),
	)
}

func tomorrow() time.Time {
	return shipper.DateOnly(time.Now().AddDate(0, 0, 1))
}
