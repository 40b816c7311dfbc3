package saga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/pkg/event"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/gateway"
	"github.com/sagacore/order-saga/services/payment/internal/testutil"
)

func TestSweepWorker_FailsStuckTransactionAndEmitsPaymentFailed(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	w := NewSweepWorker(transactions, repo, DefaultSweepWorkerConfig())

	stuck := &domain.Transaction{
		ID:            "txn-1",
		OrderID:       "order-1",
		CorrelationID: "corr-1",
		Amount:        1000,
		Currency:      "USD",
		Status:        domain.TransactionStatusProcessing,
	}
	transactions.On("GetStuckProcessing", mock.Anything, 2*time.Minute, 50).
		Return([]*domain.Transaction{stuck}, nil)

	var finalized *domain.Transaction
	var reply *outboxpkg.Outbox
	repo.On("Finalize", mock.Anything, mock.AnythingOfType("*domain.Transaction"), mock.AnythingOfType("*outbox.Outbox")).
		Run(func(args mock.Arguments) {
			finalized = args.Get(1).(*domain.Transaction)
			reply = args.Get(2).(*outboxpkg.Outbox)
		}).
		Return(nil)

	w.sweep(t.Context())

	require.NotNil(t, finalized)
	assert.Equal(t, domain.TransactionStatusFailed, finalized.Status)
	assert.Equal(t, gateway.ErrCodePaymentFailed, finalized.ErrorCode)

	require.NotNil(t, reply)
	assert.Equal(t, string(event.TypePaymentFailed), reply.EventType)

	env, err := event.Unmarshal(reply.Payload)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", env.CorrelationID)

	var payload event.PaymentFailedPayload
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, "order-1", payload.OrderID)
	assert.Equal(t, gateway.ErrCodePaymentFailed, payload.ErrorCode)
}

func TestSweepWorker_NothingStuck_NoFinalize(t *testing.T) {
	transactions := new(testutil.MockTransactionRepository)
	repo := new(testutil.MockCommandRepository)
	w := NewSweepWorker(transactions, repo, DefaultSweepWorkerConfig())

	transactions.On("GetStuckProcessing", mock.Anything, 2*time.Minute, 50).
		Return([]*domain.Transaction{}, nil)

	w.sweep(t.Context())

	repo.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything)
}
