// Package domain содержит бизнес-сущность Shipping Service: Shipment —
// отгрузка по подтверждённому заказу.
package domain

import "time"

// ShipmentStatus — статус отгрузки.
type ShipmentStatus string

const (
	ShipmentStatusScheduled  ShipmentStatus = "scheduled"
	ShipmentStatusDispatched ShipmentStatus = "dispatched"
	ShipmentStatusInTransit  ShipmentStatus = "in_transit"
	ShipmentStatusDelivered  ShipmentStatus = "delivered"
	ShipmentStatusFailed     ShipmentStatus = "failed"
)

// Shipment — отгрузка по заказу. Не более одной отгрузки на order_id;
// создаётся обработкой order.confirmed, дальнейшие
// переходы статуса (dispatched/in_transit/delivered) не вырабатываются
// сагой и принадлежат внешнему наблюдению за перевозчиком.
type Shipment struct {
	ID                string
	OrderID           string
	CorrelationID     string
	Status            ShipmentStatus
	TrackingNumber    string
	ShippingAddress   string
	EstimatedDelivery *time.Time
	FailureReason     string
	CreatedAt         time.Time
	DispatchedAt      *time.Time
	DeliveredAt       *time.Time
}

// NewScheduledShipment создаёт отгрузку в статусе scheduled — единственный
// успешный результат обработки order.confirmed. Вызывающий код
// отвечает за присвоение ID.
func NewScheduledShipment(orderID, correlationID, shippingAddress, trackingNumber string, estimatedDelivery time.Time) *Shipment {
	return &Shipment{
		OrderID:           orderID,
		CorrelationID:     correlationID,
		Status:            ShipmentStatusScheduled,
		TrackingNumber:    trackingNumber,
		ShippingAddress:   shippingAddress,
		EstimatedDelivery: &estimatedDelivery,
		CreatedAt:         time.Now(),
	}
}

// NewFailedShipment создаёт отгрузку в терминальном статусе failed, когда
// перевозчик отклоняет планирование отгрузки (reason — причина отказа).
func NewFailedShipment(orderID, correlationID, shippingAddress, reason string) *Shipment {
	return &Shipment{
		OrderID:         orderID,
		CorrelationID:   correlationID,
		Status:          ShipmentStatusFailed,
		ShippingAddress: shippingAddress,
		FailureReason:   reason,
		CreatedAt:       time.Now(),
	}
}

// Validate проверяет корректность полей перед созданием отгрузки.
func (s *Shipment) Validate() error {
	if s.OrderID == "" {
		return ErrInvalidOrderID
	}
	if s.ShippingAddress == "" {
		return ErrInvalidShippingAddress
	}
	return nil
}
