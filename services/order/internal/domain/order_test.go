package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Validate(t *testing.T) {
	validItem := OrderItem{ProductID: "product-123", ProductName: "Товар 1", Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}}

	tests := []struct {
		name        string
		order       *Order
		expectedErr error
	}{
		{
			name:        "валидные данные",
			order:       &Order{CustomerID: "customer-1", ShippingAddress: "ул. Ленина, 1", Items: []OrderItem{validItem}},
			expectedErr: nil,
		},
		{
			name:        "пустой CustomerID",
			order:       &Order{CustomerID: "", ShippingAddress: "адрес", Items: []OrderItem{validItem}},
			expectedErr: ErrInvalidCustomerID,
		},
		{
			name:        "CustomerID только пробелы",
			order:       &Order{CustomerID: "   ", ShippingAddress: "адрес", Items: []OrderItem{validItem}},
			expectedErr: ErrInvalidCustomerID,
		},
		{
			name:        "пустой адрес доставки",
			order:       &Order{CustomerID: "customer-1", ShippingAddress: "", Items: []OrderItem{validItem}},
			expectedErr: ErrInvalidShippingAddress,
		},
		{
			name:        "пустой список позиций",
			order:       &Order{CustomerID: "customer-1", ShippingAddress: "адрес", Items: []OrderItem{}},
			expectedErr: ErrEmptyOrderItems,
		},
		{
			name:        "nil список позиций",
			order:       &Order{CustomerID: "customer-1", ShippingAddress: "адрес", Items: nil},
			expectedErr: ErrEmptyOrderItems,
		},
		{
			name: "невалидная позиция - пустой ProductID",
			order: &Order{CustomerID: "customer-1", ShippingAddress: "адрес", Items: []OrderItem{
				{ProductID: "", Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			}},
			expectedErr: ErrInvalidProductID,
		},
		{
			name: "невалидная позиция - нулевое количество",
			order: &Order{CustomerID: "customer-1", ShippingAddress: "адрес", Items: []OrderItem{
				{ProductID: "product-123", Quantity: 0, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			}},
			expectedErr: ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// An order whose items are all zero-priced has total_amount = 0 and must
// still validate and reach payment — it is not rejected at order creation.
func TestOrder_Validate_ZeroTotalOrderPasses(t *testing.T) {
	order := &Order{
		CustomerID:      "customer-1",
		ShippingAddress: "ул. Ленина, 1",
		Items: []OrderItem{
			{ProductID: "product-123", ProductName: "Промо-товар", Quantity: 1, UnitPrice: Money{Amount: 0, Currency: "RUB"}},
		},
	}

	require := assert.New(t)
	require.NoError(order.Validate())

	order.CalculateTotal()
	require.Equal(int64(0), order.TotalAmount.Amount)
	require.Equal("RUB", order.TotalAmount.Currency)
}

func TestOrder_CalculateTotal(t *testing.T) {
	tests := []struct {
		name             string
		items            []OrderItem
		expectedAmount   int64
		expectedCurrency string
	}{
		{
			name:             "одна позиция",
			items:            []OrderItem{{Quantity: 3, UnitPrice: Money{Amount: 1000, Currency: "RUB"}}},
			expectedAmount:   3000,
			expectedCurrency: "RUB",
		},
		{
			name: "несколько позиций",
			items: []OrderItem{
				{Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
				{Quantity: 1, UnitPrice: Money{Amount: 500, Currency: "RUB"}},
			},
			expectedAmount:   2500,
			expectedCurrency: "RUB",
		},
		{
			name:             "пустой список позиций",
			items:            []OrderItem{},
			expectedAmount:   0,
			expectedCurrency: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Items: tt.items}
			order.CalculateTotal()

			assert.Equal(t, tt.expectedAmount, order.TotalAmount.Amount)
			assert.Equal(t, tt.expectedCurrency, order.TotalAmount.Currency)
		})
	}
}

func TestOrder_Cancel(t *testing.T) {
	tests := []struct {
		name           string
		status         OrderStatus
		expectedErr    error
		expectedStatus OrderStatus
	}{
		{name: "успешная отмена pending", status: OrderStatusPending, expectedErr: nil, expectedStatus: OrderStatusCancelled},
		{name: "ошибка отмены confirmed", status: OrderStatusConfirmed, expectedErr: ErrOrderCannotCancel, expectedStatus: OrderStatusConfirmed},
		{name: "ошибка отмены inventory_reserved", status: OrderStatusInventoryReserved, expectedErr: ErrOrderCannotCancel, expectedStatus: OrderStatusInventoryReserved},
		{name: "ошибка отмены failed", status: OrderStatusFailed, expectedErr: ErrOrderCannotCancel, expectedStatus: OrderStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Status: tt.status}
			err := order.Cancel()

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedStatus, order.Status)
		})
	}
}

func TestOrderItem_Validate(t *testing.T) {
	tests := []struct {
		name        string
		item        *OrderItem
		expectedErr error
	}{
		{
			name:        "валидные данные",
			item:        &OrderItem{ProductID: "product-123", Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			expectedErr: nil,
		},
		{
			name:        "пустой ProductID",
			item:        &OrderItem{ProductID: "", Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			expectedErr: ErrInvalidProductID,
		},
		{
			name:        "ProductID только пробелы",
			item:        &OrderItem{ProductID: "   ", Quantity: 2, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			expectedErr: ErrInvalidProductID,
		},
		{
			name:        "нулевое количество",
			item:        &OrderItem{ProductID: "product-123", Quantity: 0, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			expectedErr: ErrInvalidQuantity,
		},
		{
			name:        "отрицательное количество",
			item:        &OrderItem{ProductID: "product-123", Quantity: -1, UnitPrice: Money{Amount: 1000, Currency: "RUB"}},
			expectedErr: ErrInvalidQuantity,
		},
		{
			// Нулевая цена — допустимая граница, а не ошибка валидации:
			// заказ с total_amount = 0 всё равно проходит оплату.
			name:        "нулевая цена допустима",
			item:        &OrderItem{ProductID: "product-123", Quantity: 2, UnitPrice: Money{Amount: 0, Currency: "RUB"}},
			expectedErr: nil,
		},
		{
			name:        "отрицательная цена",
			item:        &OrderItem{ProductID: "product-123", Quantity: 2, UnitPrice: Money{Amount: -100, Currency: "RUB"}},
			expectedErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderItem_Total(t *testing.T) {
	item := &OrderItem{Quantity: 3, UnitPrice: Money{Amount: 1000, Currency: "RUB"}}
	total := item.Total()
	assert.Equal(t, int64(3000), total.Amount)
	assert.Equal(t, "RUB", total.Currency)
}

func TestMoney_Multiply(t *testing.T) {
	m := Money{Amount: 1000, Currency: "RUB"}
	result := m.Multiply(3)
	assert.Equal(t, int64(3000), result.Amount)
	assert.Equal(t, "RUB", result.Currency)
}

func TestOrder_ReserveInventoryAndConfirm(t *testing.T) {
	order := &Order{ID: "order-123", Status: OrderStatusPending}

	require := assert.New(t)
	require.NoError(order.ReserveInventory("reservation-1"))
	require.Equal(OrderStatusInventoryReserved, order.Status)
	require.NotNil(order.ReservationID)
	require.Equal("reservation-1", *order.ReservationID)

	require.NoError(order.Confirm("transaction-1"))
	require.Equal(OrderStatusConfirmed, order.Status)
	require.NotNil(order.TransactionID)
	require.Equal("transaction-1", *order.TransactionID)
}

func TestOrder_FailAt(t *testing.T) {
	order := &Order{ID: "order-123", Status: OrderStatusPending}

	err := order.FailAt(SagaStepInventoryReservation, "товара нет в наличии")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusFailed, order.Status)
	assert.NotNil(t, order.ErrorMessage)
	assert.Equal(t, "товара нет в наличии", *order.ErrorMessage)

	// Терминальный статус нельзя снова перевести в failed.
	err = order.FailAt(SagaStepPaymentProcessing, "повтор")
	assert.ErrorIs(t, err, ErrOrderInvalidTransition)
}

func TestOrder_CanTransition(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.True(t, order.CanTransition(OrderStatusInventoryReserved))
	assert.False(t, order.CanTransition(OrderStatusConfirmed))

	order.Status = OrderStatusInventoryReserved
	assert.True(t, order.CanTransition(OrderStatusConfirmed))
	assert.False(t, order.CanTransition(OrderStatusCancelled))

	order.Status = OrderStatusConfirmed
	assert.False(t, order.CanTransition(OrderStatusFailed))
}
