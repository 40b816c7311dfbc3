package saga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/services/shipping/internal/carrier"
	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/testutil"
)

func TestHandler_HandleOrderConfirmed_SchedulesShipment(t *testing.T) {
	shipments := new(testutil.MockShipmentRepository)
	repo := new(testutil.MockCommandRepository)
	c := new(testutil.MockCarrierClient)
	h := NewHandler(shipments, repo, c)

	eta := time.Now().Add(4 * 24 * time.Hour)
	shipments.On("GetByOrderID", mock.Anything, "order-1").Return(nil, domain.ErrShipmentNotFound)
	c.On("Schedule", mock.Anything, "order-1", "123 Main St").Return(carrier.Response{Scheduled: true, TrackingNumber: "TRK1234567890"}, nil)
	c.On("EstimatedDelivery").Return(eta)
	repo.On("CreateAndEmit", mock.Anything, mock.AnythingOfType("*domain.Shipment"), mock.AnythingOfType("*outbox.Outbox")).Return(nil)

	env, err := event.New(event.TypeOrderConfirmed, "order-1", "corr-1", "cause-1", event.OrderConfirmedPayload{
		OrderID: "order-1", ShippingAddress: "123 Main St",
	})
	require.NoError(t, err)

	err = h.HandleOrderConfirmed(t.Context(), env)
	require.NoError(t, err)
	shipments.AssertExpectations(t)
	repo.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestHandler_HandleOrderConfirmed_CarrierDeclinesAddress(t *testing.T) {
	shipments := new(testutil.MockShipmentRepository)
	repo := new(testutil.MockCommandRepository)
	c := new(testutil.MockCarrierClient)
	h := NewHandler(shipments, repo, c)

	shipments.On("GetByOrderID", mock.Anything, "order-1").Return(nil, domain.ErrShipmentNotFound)
	c.On("Schedule", mock.Anything, "order-1", "Invalid Address").Return(carrier.Response{Scheduled: false, Reason: "invalid shipping address"}, nil)

	var created *domain.Shipment
	repo.On("CreateAndEmit", mock.Anything, mock.AnythingOfType("*domain.Shipment"), mock.AnythingOfType("*outbox.Outbox")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Shipment) }).
		Return(nil)

	env, err := event.New(event.TypeOrderConfirmed, "order-1", "corr-1", "cause-1", event.OrderConfirmedPayload{
		OrderID: "order-1", ShippingAddress: "Invalid Address",
	})
	require.NoError(t, err)

	err = h.HandleOrderConfirmed(t.Context(), env)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, domain.ShipmentStatusFailed, created.Status)
	c.AssertNotCalled(t, "EstimatedDelivery")
}

func TestHandler_HandleOrderConfirmed_Idempotent_NoOp(t *testing.T) {
	shipments := new(testutil.MockShipmentRepository)
	repo := new(testutil.MockCommandRepository)
	c := new(testutil.MockCarrierClient)
	h := NewHandler(shipments, repo, c)

	existing := &domain.Shipment{ID: "ship-1", OrderID: "order-1", Status: domain.ShipmentStatusScheduled}
	shipments.On("GetByOrderID", mock.Anything, "order-1").Return(existing, nil)

	env, err := event.New(event.TypeOrderConfirmed, "order-1", "corr-1", "cause-1", event.OrderConfirmedPayload{
		OrderID: "order-1", ShippingAddress: "123 Main St",
	})
	require.NoError(t, err)

	err = h.HandleOrderConfirmed(t.Context(), env)
	require.NoError(t, err)
	c.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateAndEmit", mock.Anything, mock.Anything, mock.Anything)
}
