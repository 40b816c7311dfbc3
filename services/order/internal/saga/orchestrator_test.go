package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/services/order/internal/domain"
	"github.com/sagacore/order-saga/services/order/internal/testutil"
)

func TestOrchestrator_CreateOrder_EmitsReserveRequest(t *testing.T) {
	orders := new(testutil.MockOrderRepository)
	repo := new(testutil.MockOrchestratorRepository)
	orch := NewOrchestrator(orders, repo)

	repo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*domain.Order"), mock.AnythingOfType("*domain.SagaLog"), mock.Anything, mock.Anything).
		Return(nil)

	order := &domain.Order{
		CustomerID:      "customer-1",
		ShippingAddress: "ул. Ленина, 1",
		Items:           []domain.OrderItem{{ProductID: "product-1", Quantity: 2, UnitPrice: domain.Money{Amount: 1000, Currency: "RUB"}}},
	}

	err := orch.CreateOrder(t.Context(), order)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(2000), order.TotalAmount.Amount)
	repo.AssertExpectations(t)
}

func TestOrchestrator_HandlePaymentFailed_CompensatesReservation(t *testing.T) {
	orders := new(testutil.MockOrderRepository)
	repo := new(testutil.MockOrchestratorRepository)
	orch := NewOrchestrator(orders, repo)

	reservationID := "reservation-1"
	order := &domain.Order{
		ID:            "order-1",
		CorrelationID: "corr-1",
		Status:        domain.OrderStatusInventoryReserved,
		ReservationID: &reservationID,
	}
	orders.On("GetByID", mock.Anything, "order-1").Return(order, nil)
	repo.On("TransitionOrder", mock.Anything, order, domain.OrderStatusInventoryReserved, mock.AnythingOfType("*domain.SagaLog"), mock.Anything, mock.Anything).
		Return(nil)

	env, err := event.New(event.TypePaymentFailed, "order-1", "corr-1", "cause-1", event.PaymentFailedPayload{OrderID: "order-1", Reason: "insufficient funds"})
	require.NoError(t, err)

	err = orch.HandlePaymentFailed(t.Context(), env)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	orders.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestOrchestrator_HandlePaymentProcessed_Idempotent(t *testing.T) {
	orders := new(testutil.MockOrderRepository)
	repo := new(testutil.MockOrchestratorRepository)
	orch := NewOrchestrator(orders, repo)

	order := &domain.Order{ID: "order-1", CorrelationID: "corr-1", Status: domain.OrderStatusConfirmed}
	orders.On("GetByID", mock.Anything, "order-1").Return(order, nil)

	env, err := event.New(event.TypePaymentProcessed, "order-1", "corr-1", "cause-1", event.PaymentProcessedPayload{OrderID: "order-1", TransactionID: "txn-1"})
	require.NoError(t, err)

	err = orch.HandlePaymentProcessed(t.Context(), env)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "TransitionOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
