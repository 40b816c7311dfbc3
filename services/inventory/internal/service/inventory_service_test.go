package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/testutil"
)

func TestInventoryService_ListProducts(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	svc := NewInventoryService(products, reservations)

	want := []*domain.Product{{ID: "p1", Name: "Laptop"}}
	products.On("List", mock.Anything).Return(want, nil)

	got, err := svc.ListProducts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInventoryService_GetProduct_NotFound(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	svc := NewInventoryService(products, reservations)

	products.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrProductNotFound)

	_, err := svc.GetProduct(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestInventoryService_GetReservationByOrderID(t *testing.T) {
	products := new(testutil.MockProductRepository)
	reservations := new(testutil.MockReservationRepository)
	svc := NewInventoryService(products, reservations)

	want := &domain.Reservation{ID: "res-1", OrderID: "order-1"}
	reservations.On("GetByOrderID", mock.Anything, "order-1").Return(want, nil)

	got, err := svc.GetReservationByOrderID(t.Context(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
