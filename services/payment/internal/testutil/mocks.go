// Package testutil содержит общие моки для тестирования Payment Service.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/gateway"
)

// MockTransactionRepository — мок repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockTransactionRepository) CreateRefund(ctx context.Context, refund *domain.Refund, tx *domain.Transaction) error {
	return m.Called(ctx, refund, tx).Error(0)
}

func (m *MockTransactionRepository) GetCompletedRefundByTransactionID(ctx context.Context, transactionID string) (*domain.Refund, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *MockTransactionRepository) GetStuckProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

// MockCommandRepository — мок saga.CommandRepository.
type MockCommandRepository struct {
	mock.Mock
}

func (m *MockCommandRepository) CreateProcessing(ctx context.Context, tx *domain.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockCommandRepository) Finalize(ctx context.Context, tx *domain.Transaction, reply *outboxpkg.Outbox) error {
	return m.Called(ctx, tx, reply).Error(0)
}

func (m *MockCommandRepository) EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error {
	return m.Called(ctx, reply).Error(0)
}

// MockGatewayClient — мок gateway.Client.
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) Charge(ctx context.Context, idempotencyKey string, amountMinorUnits int64, currency string) (gateway.Response, error) {
	args := m.Called(ctx, idempotencyKey, amountMinorUnits, currency)
	return args.Get(0).(gateway.Response), args.Error(1)
}

func (m *MockGatewayClient) Refund(ctx context.Context, transactionID string, amountMinorUnits int64) (gateway.Response, error) {
	args := m.Called(ctx, transactionID, amountMinorUnits)
	return args.Get(0).(gateway.Response), args.Error(1)
}
