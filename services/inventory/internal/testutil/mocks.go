// Package testutil содержит общие моки для тестирования Inventory Service.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/saga"
)

// MockProductRepository — мок repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Product), args.Error(1)
}

func (m *MockProductRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockReservationRepository — мок repository.ReservationRepository.
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

// MockCommandRepository — мок saga.CommandRepository.
type MockCommandRepository struct {
	mock.Mock
}

func (m *MockCommandRepository) ReserveAndEmit(ctx context.Context, reservation *domain.Reservation, updates []saga.ProductReservation, reply *outboxpkg.Outbox) error {
	return m.Called(ctx, reservation, updates, reply).Error(0)
}

func (m *MockCommandRepository) EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error {
	return m.Called(ctx, reply).Error(0)
}

func (m *MockCommandRepository) Release(ctx context.Context, reservation *domain.Reservation, updates []saga.ProductReservation) error {
	return m.Called(ctx, reservation, updates).Error(0)
}
