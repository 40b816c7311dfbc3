// Package service содержит прикладную логику Inventory Service поверх
// доступа к данным — в текущем объёме только read-only витрина каталога и
// резервирований (мутации идут через services/inventory/internal/saga).
package service

import (
	"context"
	"fmt"

	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/repository"
)

// InventoryService предоставляет read-only доступ к товарам и
// резервированиям для HTTP-слоя.
type InventoryService interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error)
}

type inventoryService struct {
	products     repository.ProductRepository
	reservations repository.ReservationRepository
}

// NewInventoryService создаёт сервис каталога и резервирований.
func NewInventoryService(products repository.ProductRepository, reservations repository.ReservationRepository) InventoryService {
	return &inventoryService{products: products, reservations: reservations}
}

func (s *inventoryService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка товаров: %w", err)
	}
	return products, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *inventoryService) GetReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	reservation, err := s.reservations.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return reservation, nil
}
