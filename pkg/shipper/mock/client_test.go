package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/mock"
)

func TestClient_GetLabel(t *testing.T) {
	client := mock.New("mock")

	label, err := client.GetLabel(context.Background(), &shipper.LabelRequest{OrderNumber: "WB1"})

	require.NoError(t, err)
	assert.Equal(t, "WB1", label.OrderNumber)
	assert.Equal(t, shipper.LabelPDF, label.Format)
}

func TestClient_GetLabel_MissingOrder(t *testing.T) {
	client := mock.New("mock")

	for _, req := range []*shipper.LabelRequest{nil, {OrderNumber: "  "}} {
		var label *shipper.Label
		var err error
		assert.NotPanics(t, func() {
			label, err = client.GetLabel(context.Background(), req)
		})

		assert.Nil(t, label)
		var se *shipper.ShipperError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, shipper.KindValidation, se.Kind)
		assert.Equal(t, "order_number", se.Fields[0].Field)
	}
}
