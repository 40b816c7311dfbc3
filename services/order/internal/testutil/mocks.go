// Package testutil содержит общие моки для тестирования Order Service.
// Моки вынесены сюда для избежания дублирования (DRY) между пакетами
// service и saga.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sagacore/order-saga/pkg/event"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/order/internal/domain"
)

// =============================================================================
// MockOrderRepository — мок для repository.OrderRepository
// =============================================================================

// MockOrderRepository — мок OrderRepository для unit-тестов.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByCustomerID(ctx context.Context, customerID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	args := m.Called(ctx, customerID, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus domain.OrderStatus) error {
	return m.Called(ctx, orderID, expectedStatus, newStatus).Error(0)
}

// =============================================================================
// MockOrchestrator — мок для saga.Orchestrator
// =============================================================================

// MockOrchestrator — мок saga.Orchestrator для тестов service-слоя.
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) CreateOrder(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrchestrator) HandleInventoryReserved(ctx context.Context, env *event.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

func (m *MockOrchestrator) HandleInventoryReserveFailed(ctx context.Context, env *event.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

func (m *MockOrchestrator) HandlePaymentProcessed(ctx context.Context, env *event.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

func (m *MockOrchestrator) HandlePaymentFailed(ctx context.Context, env *event.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

func (m *MockOrchestrator) CompensateStuckOrder(ctx context.Context, order *domain.Order, reason string) error {
	return m.Called(ctx, order, reason).Error(0)
}

// =============================================================================
// MockOrchestratorRepository — мок для saga.OrchestratorRepository
// =============================================================================

// MockOrchestratorRepository — мок saga.OrchestratorRepository для тестов
// оркестратора без реальной БД.
type MockOrchestratorRepository struct {
	mock.Mock
}

func (m *MockOrchestratorRepository) CreateOrder(ctx context.Context, order *domain.Order, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error {
	callArgs := make([]any, 0, len(commands)+3)
	callArgs = append(callArgs, ctx, order, log)
	for _, c := range commands {
		callArgs = append(callArgs, c)
	}
	return m.Called(callArgs...).Error(0)
}

func (m *MockOrchestratorRepository) TransitionOrder(ctx context.Context, order *domain.Order, expectedStatus domain.OrderStatus, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error {
	callArgs := make([]any, 0, len(commands)+4)
	callArgs = append(callArgs, ctx, order, expectedStatus, log)
	for _, c := range commands {
		callArgs = append(callArgs, c)
	}
	return m.Called(callArgs...).Error(0)
}

func (m *MockOrchestratorRepository) GetStuckOrders(ctx context.Context, stuckSince time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, stuckSince, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrchestratorRepository) ListSagaLogs(ctx context.Context, orderID string) ([]*domain.SagaLog, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SagaLog), args.Error(1)
}
