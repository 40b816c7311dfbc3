// Package testutil содержит общие моки для тестирования Shipping Service.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/shipping/internal/carrier"
	"github.com/sagacore/order-saga/services/shipping/internal/domain"
)

// MockShipmentRepository — мок repository.ShipmentRepository.
type MockShipmentRepository struct {
	mock.Mock
}

func (m *MockShipmentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

// MockCommandRepository — мок saga.CommandRepository.
type MockCommandRepository struct {
	mock.Mock
}

func (m *MockCommandRepository) CreateAndEmit(ctx context.Context, shipment *domain.Shipment, reply *outboxpkg.Outbox) error {
	return m.Called(ctx, shipment, reply).Error(0)
}

// MockCarrierClient — мок carrier.Client.
type MockCarrierClient struct {
	mock.Mock
}

func (m *MockCarrierClient) Schedule(ctx context.Context, orderID, shippingAddress string) (carrier.Response, error) {
	args := m.Called(ctx, orderID, shippingAddress)
	return args.Get(0).(carrier.Response), args.Error(1)
}

func (m *MockCarrierClient) EstimatedDelivery() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}
