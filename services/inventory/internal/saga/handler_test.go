package saga_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/saga"
	"github.com/sagacore/order-saga/services/inventory/internal/testutil"
)

func TestHandler_HandleReserveRequested_ReservesAvailableStock(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	repo := new(testutil.MockCommandRepository)
	h := saga.NewHandler(products, reservations, repo)

	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(nil, domain.ErrReservationNotFound)
	products.On("GetByID", mock.Anything, "product-1").
		Return(&domain.Product{ID: "product-1", AvailableQty: 10, ReservedQty: 0, Version: 3}, nil)
	repo.On("ReserveAndEmit", mock.Anything, mock.AnythingOfType("*domain.Reservation"),
		mock.MatchedBy(func(updates []saga.ProductReservation) bool {
			return len(updates) == 1 && updates[0].ProductID == "product-1" && updates[0].Quantity == 2 && updates[0].OldVersion == 3
		}), mock.AnythingOfType("*outbox.Outbox")).Return(nil)

	env, err := event.New(event.TypeInventoryReserveRequested, "order-1", "corr-1", "cause-1", event.InventoryReserveRequestedPayload{
		OrderID: "order-1",
		Items:   []event.Item{{ProductID: "product-1", Quantity: 2, Price: 500}},
	})
	require.NoError(t, err)

	err = h.HandleReserveRequested(t.Context(), env)
	require.NoError(t, err)
	products.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestHandler_HandleReserveRequested_InsufficientStock(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	repo := new(testutil.MockCommandRepository)
	h := saga.NewHandler(products, reservations, repo)

	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(nil, domain.ErrReservationNotFound)
	products.On("GetByID", mock.Anything, "product-1").
		Return(&domain.Product{ID: "product-1", AvailableQty: 1, ReservedQty: 0, Version: 1}, nil)
	repo.On("EmitOnly", mock.Anything, mock.AnythingOfType("*outbox.Outbox")).Return(nil)

	env, err := event.New(event.TypeInventoryReserveRequested, "order-1", "corr-1", "cause-1", event.InventoryReserveRequestedPayload{
		OrderID: "order-1",
		Items:   []event.Item{{ProductID: "product-1", Quantity: 5, Price: 500}},
	})
	require.NoError(t, err)

	err = h.HandleReserveRequested(t.Context(), env)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "ReserveAndEmit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_HandleReserveRequested_Idempotent_Republishes(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	repo := new(testutil.MockCommandRepository)
	h := saga.NewHandler(products, reservations, repo)

	existing := &domain.Reservation{
		ID: "res-1", OrderID: "order-1", Status: domain.ReservationStatusActive,
		Items: []domain.ReservationItem{{ProductID: "product-1", Quantity: 2}},
	}
	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(existing, nil)
	repo.On("EmitOnly", mock.Anything, mock.AnythingOfType("*outbox.Outbox")).Return(nil)

	env, err := event.New(event.TypeInventoryReserveRequested, "order-1", "corr-1", "cause-1", event.InventoryReserveRequestedPayload{
		OrderID: "order-1",
		Items:   []event.Item{{ProductID: "product-1", Quantity: 2, Price: 500}},
	})
	require.NoError(t, err)

	err = h.HandleReserveRequested(t.Context(), env)
	require.NoError(t, err)
	products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestHandler_HandleReleased_ReleasesActiveReservation(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	repo := new(testutil.MockCommandRepository)
	h := saga.NewHandler(products, reservations, repo)

	reservation := &domain.Reservation{
		ID: "res-1", OrderID: "order-1", Status: domain.ReservationStatusActive,
		Items: []domain.ReservationItem{{ProductID: "product-1", Quantity: 2}},
	}
	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(reservation, nil)
	repo.On("Release", mock.Anything, reservation, mock.MatchedBy(func(updates []saga.ProductReservation) bool {
		return len(updates) == 1 && updates[0].ProductID == "product-1" && updates[0].Quantity == 2
	})).Return(nil)

	env, err := event.New(event.TypeInventoryReleased, "order-1", "corr-1", "cause-1", event.InventoryReleasedPayload{
		OrderID: "order-1", ReservationID: "res-1",
	})
	require.NoError(t, err)

	err = h.HandleReleased(t.Context(), env)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandler_HandleReleased_AlreadyReleased_Ignored(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	repo := new(testutil.MockCommandRepository)
	h := saga.NewHandler(products, reservations, repo)

	reservation := &domain.Reservation{ID: "res-1", OrderID: "order-1", Status: domain.ReservationStatusReleased}
	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(reservation, nil)

	env, err := event.New(event.TypeInventoryReleased, "order-1", "corr-1", "cause-1", event.InventoryReleasedPayload{
		OrderID: "order-1", ReservationID: "res-1",
	})
	require.NoError(t, err)

	err = h.HandleReleased(t.Context(), env)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}
