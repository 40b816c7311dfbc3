package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/testutil"
)

func TestShippingService_GetShipmentByOrderID_Success(t *testing.T) {
	repo := new(testutil.MockShipmentRepository)
	svc := NewShippingService(repo)

	shipment := &domain.Shipment{ID: "ship-1", OrderID: "order-1", Status: domain.ShipmentStatusScheduled}
	repo.On("GetByOrderID", mock.Anything, "order-1").Return(shipment, nil)

	got, err := svc.GetShipmentByOrderID(t.Context(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, shipment, got)
}

func TestShippingService_GetShipmentByOrderID_NotFound(t *testing.T) {
	repo := new(testutil.MockShipmentRepository)
	svc := NewShippingService(repo)

	repo.On("GetByOrderID", mock.Anything, "missing").Return(nil, domain.ErrShipmentNotFound)

	_, err := svc.GetShipmentByOrderID(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
}

func TestShippingService_GetShipment_Success(t *testing.T) {
	repo := new(testutil.MockShipmentRepository)
	svc := NewShippingService(repo)

	shipment := &domain.Shipment{ID: "ship-1", OrderID: "order-1", Status: domain.ShipmentStatusScheduled}
	repo.On("GetByID", mock.Anything, "ship-1").Return(shipment, nil)

	got, err := svc.GetShipment(t.Context(), "ship-1")
	require.NoError(t, err)
	assert.Equal(t, shipment, got)
}
