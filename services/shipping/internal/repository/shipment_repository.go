// Package repository содержит реализацию доступа к данным для Shipping
// Service.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sagacore/order-saga/services/shipping/internal/domain"
)

// ShipmentRepository покрывает чтение отгрузок. CAS-вставка, требующая
// атомарности с outbox, живёт в services/shipping/internal/saga.CommandRepository.
type ShipmentRepository interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error)
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)
}

// ShipmentModel — GORM модель таблицы shipments.
type ShipmentModel struct {
	ID                string     `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID           string     `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	CorrelationID     string     `gorm:"column:correlation_id;type:varchar(36);not null"`
	Status            string     `gorm:"column:status;type:varchar(20);not null;index"`
	TrackingNumber    string     `gorm:"column:tracking_number;type:varchar(100);uniqueIndex"`
	ShippingAddress   string     `gorm:"column:shipping_address;type:text;not null"`
	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery"`
	FailureReason     string     `gorm:"column:failure_reason;type:varchar(255)"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_shipments_status_created"`
	DispatchedAt      *time.Time `gorm:"column:dispatched_at"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`
}

// TableName возвращает имя таблицы в БД.
func (ShipmentModel) TableName() string {
	return "shipments"
}

// ToDomain конвертирует GORM модель отгрузки в доменную сущность.
func (m *ShipmentModel) ToDomain() *domain.Shipment {
	return &domain.Shipment{
		ID:                m.ID,
		OrderID:           m.OrderID,
		CorrelationID:     m.CorrelationID,
		Status:            domain.ShipmentStatus(m.Status),
		TrackingNumber:    m.TrackingNumber,
		ShippingAddress:   m.ShippingAddress,
		EstimatedDelivery: m.EstimatedDelivery,
		FailureReason:     m.FailureReason,
		CreatedAt:         m.CreatedAt,
		DispatchedAt:      m.DispatchedAt,
		DeliveredAt:       m.DeliveredAt,
	}
}

// ShipmentModelFromDomain конвертирует доменную сущность отгрузки в GORM
// модель. Экспортирован для переиспользования в saga.CommandRepository.
func ShipmentModelFromDomain(s *domain.Shipment) *ShipmentModel {
	return &ShipmentModel{
		ID:                s.ID,
		OrderID:           s.OrderID,
		CorrelationID:     s.CorrelationID,
		Status:            string(s.Status),
		TrackingNumber:    s.TrackingNumber,
		ShippingAddress:   s.ShippingAddress,
		EstimatedDelivery: s.EstimatedDelivery,
		FailureReason:     s.FailureReason,
		CreatedAt:         s.CreatedAt,
		DispatchedAt:      s.DispatchedAt,
		DeliveredAt:       s.DeliveredAt,
	}
}

type shipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository создаёт новый репозиторий отгрузок.
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error) {
	var model ShipmentModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *shipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	var model ShipmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IsDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// Экспортирован для переиспользования в saga.CommandRepository при гонке на
// вставке Shipment (уникальный индекс на order_id).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
