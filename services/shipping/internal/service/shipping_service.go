// Package service содержит прикладную логику Shipping Service поверх
// доступа к данным — read-only витрина отгрузок (планирование идёт через
// services/shipping/internal/saga).
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/repository"
)

// ShippingService предоставляет read-only доступ к отгрузкам для HTTP-слоя.
type ShippingService interface {
	GetShipmentByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error)
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
}

type shippingService struct {
	shipments repository.ShipmentRepository
}

// NewShippingService создаёт сервис чтения состояния отгрузок.
func NewShippingService(shipments repository.ShipmentRepository) ShippingService {
	return &shippingService{shipments: shipments}
}

func (s *shippingService) GetShipmentByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error) {
	shipment, err := s.shipments.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения отгрузки: %w", err)
	}
	return shipment, nil
}

func (s *shippingService) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения отгрузки: %w", err)
	}
	return shipment, nil
}
