package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name        string
		product     *Product
		expectedErr error
	}{
		{
			name:        "валидный товар",
			product:     &Product{Name: "Laptop", PriceMinorUnits: 120000, AvailableQty: 50},
			expectedErr: nil,
		},
		{
			name:        "пустое имя",
			product:     &Product{Name: "   ", PriceMinorUnits: 120000, AvailableQty: 50},
			expectedErr: ErrInvalidProductName,
		},
		{
			name:        "нулевая цена",
			product:     &Product{Name: "Laptop", PriceMinorUnits: 0, AvailableQty: 50},
			expectedErr: ErrInvalidPrice,
		},
		{
			name:        "отрицательный остаток",
			product:     &Product{Name: "Laptop", PriceMinorUnits: 120000, AvailableQty: -1},
			expectedErr: ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestProduct_CanReserve(t *testing.T) {
	p := &Product{AvailableQty: 5}
	assert.True(t, p.CanReserve(5))
	assert.True(t, p.CanReserve(3))
	assert.False(t, p.CanReserve(6))
}

func TestReservation_Release_Idempotent(t *testing.T) {
	r := NewActiveReservation("order-1", "corr-1", []ReservationItem{{ProductID: "p1", Quantity: 2}})
	assert.Equal(t, ReservationStatusActive, r.Status)

	r.Release()
	assert.Equal(t, ReservationStatusReleased, r.Status)
	require := r.ReleasedAt
	assert.NotNil(t, require)

	r.Release()
	assert.Equal(t, ReservationStatusReleased, r.Status)
	assert.Equal(t, require, r.ReleasedAt)
}
