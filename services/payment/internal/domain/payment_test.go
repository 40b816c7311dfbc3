package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKeyForOrder(t *testing.T) {
	assert.Equal(t, "payment_order-1", IdempotencyKeyForOrder("order-1"))
}

func TestNewTransaction(t *testing.T) {
	tx := NewTransaction("order-1", 1999, "USD")

	assert.Equal(t, "order-1", tx.OrderID)
	assert.Equal(t, "payment_order-1", tx.IdempotencyKey)
	assert.Equal(t, TransactionStatusProcessing, tx.Status)
	assert.False(t, tx.Status.IsTerminal())
	require.NoError(t, tx.Validate())
}

func TestTransaction_Validate(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"missing order id", Transaction{Amount: 100, Currency: "USD"}, ErrInvalidOrderID},
		// Нулевая сумма — валидная граница: оплата на 0 проходит как успех.
		{"zero amount is valid", Transaction{OrderID: "o1", Currency: "USD"}, nil},
		{"negative amount", Transaction{OrderID: "o1", Amount: -1, Currency: "USD"}, ErrInvalidAmount},
		{"missing currency", Transaction{OrderID: "o1", Amount: 100}, ErrInvalidCurrency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.tx.Validate(), tc.want)
		})
	}
}

func TestTransaction_Complete(t *testing.T) {
	tx := NewTransaction("order-1", 1999, "USD")
	tx.Complete("gw-ref-1")

	assert.Equal(t, TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "gw-ref-1", tx.GatewayReference)
	require.NotNil(t, tx.ProcessedAt)
	assert.False(t, tx.Status.IsTerminal()) // completed не терминален — возможен refund
}

func TestTransaction_Fail(t *testing.T) {
	tx := NewTransaction("order-1", 1999, "USD")
	tx.Fail("PAYMENT_FAILED", "Insufficient funds")

	assert.Equal(t, TransactionStatusFailed, tx.Status)
	assert.Equal(t, "PAYMENT_FAILED", tx.ErrorCode)
	assert.Equal(t, "Insufficient funds", tx.ErrorMessage)
	assert.True(t, tx.Status.IsTerminal())
	require.NotNil(t, tx.ProcessedAt)
}

func TestTransaction_MarkRefunded(t *testing.T) {
	t.Run("from completed", func(t *testing.T) {
		tx := NewTransaction("order-1", 1999, "USD")
		tx.Complete("gw-ref-1")
		require.NoError(t, tx.MarkRefunded())
		assert.Equal(t, TransactionStatusRefunded, tx.Status)
		assert.True(t, tx.Status.IsTerminal())
	})

	t.Run("rejects non-completed", func(t *testing.T) {
		tx := NewTransaction("order-1", 1999, "USD")
		assert.ErrorIs(t, tx.MarkRefunded(), ErrTransactionNotCompleted)
	})
}

func TestRefund_Validate(t *testing.T) {
	cases := []struct {
		name string
		r    Refund
		want error
	}{
		{"missing transaction id", Refund{OrderID: "o1", Amount: 100}, ErrInvalidTransactionID},
		{"missing order id", Refund{TransactionID: "t1", Amount: 100}, ErrInvalidOrderID},
		{"zero amount", Refund{TransactionID: "t1", OrderID: "o1"}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.r.Validate(), tc.want)
		})
	}
}

func TestNewCompletedRefund(t *testing.T) {
	r := NewCompletedRefund("t1", "o1", 1999, "customer requested")

	assert.Equal(t, RefundStatusCompleted, r.Status)
	require.NotNil(t, r.ProcessedAt)
	require.NoError(t, r.Validate())
}
