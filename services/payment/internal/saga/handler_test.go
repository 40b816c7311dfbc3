package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/gateway"
	"github.com/sagacore/order-saga/services/payment/internal/testutil"
)

func TestHandler_HandlePaymentRequested_ChargesAndCompletes(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	transactions.On("GetByIdempotencyKey", mock.Anything, domain.IdempotencyKeyForOrder("order-1")).
		Return(nil, domain.ErrTransactionNotFound)
	repo.On("CreateProcessing", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	gw.On("Charge", mock.Anything, domain.IdempotencyKeyForOrder("order-1"), int64(1000), "USD").
		Return(gateway.Response{Approved: true, Reference: "gw_ref"}, nil)
	repo.On("Finalize", mock.Anything, mock.AnythingOfType("*domain.Transaction"), mock.AnythingOfType("*outbox.Outbox")).
		Return(nil)

	env, err := event.New(event.TypePaymentRequested, "order-1", "corr-1", "cause-1", event.PaymentRequestedPayload{
		OrderID: "order-1", CustomerID: "customer-1", Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	err = h.HandlePaymentRequested(t.Context(), env)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestHandler_HandlePaymentRequested_GatewayDeclines(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	transactions.On("GetByIdempotencyKey", mock.Anything, domain.IdempotencyKeyForOrder("order-1")).
		Return(nil, domain.ErrTransactionNotFound)
	repo.On("CreateProcessing", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	gw.On("Charge", mock.Anything, domain.IdempotencyKeyForOrder("order-1"), int64(1000), "USD").
		Return(gateway.Response{Approved: false, Reason: "Insufficient funds"}, nil)

	var finalized *domain.Transaction
	repo.On("Finalize", mock.Anything, mock.AnythingOfType("*domain.Transaction"), mock.AnythingOfType("*outbox.Outbox")).
		Run(func(args mock.Arguments) { finalized = args.Get(1).(*domain.Transaction) }).
		Return(nil)

	env, err := event.New(event.TypePaymentRequested, "order-1", "corr-1", "cause-1", event.PaymentRequestedPayload{
		OrderID: "order-1", CustomerID: "customer-1", Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	err = h.HandlePaymentRequested(t.Context(), env)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.Equal(t, domain.TransactionStatusFailed, finalized.Status)
	assert.Equal(t, gateway.ErrCodePaymentFailed, finalized.ErrorCode)
}

// total_amount = 0 reserves nothing but must still pass payment as a
// success with amount 0 — Charge is still called (the
// gateway, not the handler, decides approval) and the transaction completes.
func TestHandler_HandlePaymentRequested_ZeroAmount_ChargesAndCompletes(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	transactions.On("GetByIdempotencyKey", mock.Anything, domain.IdempotencyKeyForOrder("order-1")).
		Return(nil, domain.ErrTransactionNotFound)
	repo.On("CreateProcessing", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	gw.On("Charge", mock.Anything, domain.IdempotencyKeyForOrder("order-1"), int64(0), "USD").
		Return(gateway.Response{Approved: true, Reference: "gw_ref_zero"}, nil)

	var finalized *domain.Transaction
	repo.On("Finalize", mock.Anything, mock.AnythingOfType("*domain.Transaction"), mock.AnythingOfType("*outbox.Outbox")).
		Run(func(args mock.Arguments) { finalized = args.Get(1).(*domain.Transaction) }).
		Return(nil)

	env, err := event.New(event.TypePaymentRequested, "order-1", "corr-1", "cause-1", event.PaymentRequestedPayload{
		OrderID: "order-1", CustomerID: "customer-1", Amount: 0, Currency: "USD",
	})
	require.NoError(t, err)

	err = h.HandlePaymentRequested(t.Context(), env)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.Equal(t, domain.TransactionStatusCompleted, finalized.Status)
	assert.Equal(t, int64(0), finalized.Amount)
	transactions.AssertExpectations(t)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestHandler_HandlePaymentRequested_Idempotent_Republishes(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	existing := &domain.Transaction{
		ID: "txn-1", OrderID: "order-1", Amount: 1000, Currency: "USD",
		Status: domain.TransactionStatusCompleted,
	}
	transactions.On("GetByIdempotencyKey", mock.Anything, domain.IdempotencyKeyForOrder("order-1")).
		Return(existing, nil)
	repo.On("EmitOnly", mock.Anything, mock.AnythingOfType("*outbox.Outbox")).Return(nil)

	env, err := event.New(event.TypePaymentRequested, "order-1", "corr-1", "cause-1", event.PaymentRequestedPayload{
		OrderID: "order-1", CustomerID: "customer-1", Amount: 1000, Currency: "USD",
	})
	require.NoError(t, err)

	err = h.HandlePaymentRequested(t.Context(), env)
	require.NoError(t, err)
	gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestHandler_HandlePaymentRefunded_CreatesRefund(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	tx := &domain.Transaction{ID: "txn-1", OrderID: "order-1", Amount: 1000, Currency: "USD", Status: domain.TransactionStatusCompleted}
	transactions.On("GetByOrderID", mock.Anything, "order-1").Return(tx, nil)
	transactions.On("GetCompletedRefundByTransactionID", mock.Anything, "txn-1").Return(nil, nil)
	gw.On("Refund", mock.Anything, "txn-1", int64(1000)).Return(gateway.Response{Approved: true, Reference: "gwrefund_1"}, nil)
	transactions.On("CreateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund"), tx).Return(nil)

	env, err := event.New(event.TypePaymentRefunded, "order-1", "corr-1", "cause-1", event.PaymentRefundedPayload{
		OrderID: "order-1", TransactionID: "txn-1", RefundID: "refund-1", Amount: 1000,
	})
	require.NoError(t, err)

	err = h.HandlePaymentRefunded(t.Context(), env)
	require.NoError(t, err)
	transactions.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestHandler_HandlePaymentRefunded_AlreadyRefunded_Ignored(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	gw := new(testutil.MockGatewayClient)
	h := NewHandler(transactions, repo, gw)

	tx := &domain.Transaction{ID: "txn-1", OrderID: "order-1", Status: domain.TransactionStatusRefunded}
	transactions.On("GetByOrderID", mock.Anything, "order-1").Return(tx, nil)

	env, err := event.New(event.TypePaymentRefunded, "order-1", "corr-1", "cause-1", event.PaymentRefundedPayload{
		OrderID: "order-1", TransactionID: "txn-1", RefundID: "refund-1", Amount: 1000,
	})
	require.NoError(t, err)

	err = h.HandlePaymentRefunded(t.Context(), env)
	require.NoError(t, err)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}
