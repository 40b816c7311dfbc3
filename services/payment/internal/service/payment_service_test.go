package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/testutil"
)

func TestPaymentService_GetTransactionByOrderID_Success(t *testing.T) {
	repo := new(testutil.MockTransactionRepository)
	svc := NewPaymentService(repo)

	tx := &domain.Transaction{ID: "txn-1", OrderID: "order-1", Status: domain.TransactionStatusCompleted}
	repo.On("GetByOrderID", mock.Anything, "order-1").Return(tx, nil)

	got, err := svc.GetTransactionByOrderID(t.Context(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestPaymentService_GetTransactionByOrderID_NotFound(t *testing.T) {
	repo := new(testutil.MockTransactionRepository)
	svc := NewPaymentService(repo)

	repo.On("GetByOrderID", mock.Anything, "missing").Return(nil, domain.ErrTransactionNotFound)

	_, err := svc.GetTransactionByOrderID(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestPaymentService_GetTransaction_Success(t *testing.T) {
	repo := new(testutil.MockTransactionRepository)
	svc := NewPaymentService(repo)

	tx := &domain.Transaction{ID: "txn-1", OrderID: "order-1", Status: domain.TransactionStatusCompleted}
	repo.On("GetByID", mock.Anything, "txn-1").Return(tx, nil)

	got, err := svc.GetTransaction(t.Context(), "txn-1")
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}
