package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/repository"
)

// seedProducts заполняет каталог демонстрационными товарами, если он пуст.
func seedProducts(ctx context.Context, products repository.ProductRepository) error {
	count, err := products.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := []*domain.Product{
		{ID: uuid.New().String(), Name: "Laptop", Description: "High-performance laptop", PriceMinorUnits: 120000, Currency: "USD", AvailableQty: 50},
		{ID: uuid.New().String(), Name: "Mouse", Description: "Wireless mouse", PriceMinorUnits: 2500, Currency: "USD", AvailableQty: 200},
		{ID: uuid.New().String(), Name: "Keyboard", Description: "Mechanical keyboard", PriceMinorUnits: 8000, Currency: "USD", AvailableQty: 100},
		{ID: uuid.New().String(), Name: "Monitor", Description: "27-inch 4K monitor", PriceMinorUnits: 35000, Currency: "USD", AvailableQty: 30},
	}

	for _, p := range seed {
		if err := products.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
