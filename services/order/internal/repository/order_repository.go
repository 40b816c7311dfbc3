// Package repository содержит реализацию доступа к данным для Order Service.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sagacore/order-saga/services/order/internal/domain"
)

// OrderRepository определяет интерфейс для работы с заказами в БД.
// Переходы, требующие атомарности с SagaLog/outbox, живут в
// services/order/internal/saga.OrchestratorRepository — этот репозиторий
// покрывает только чтение и операции, не участвующие в саге (отмена до
// старта, листинг).
type OrderRepository interface {
	// Create создаёт новый заказ с позициями. Выполняется вне саги: путь
	// саги создаёт заказ через OrchestratorRepository.CreateOrder вместе со
	// SagaLog и outbox, а не через этот метод.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ по ID с загруженными позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByCorrelationID возвращает заказ по correlation_id (уникален и
	// неизменен на весь срок саги).
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error)

	// ListByCustomerID возвращает заказы покупателя с пагинацией.
	ListByCustomerID(ctx context.Context, customerID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error)

	// UpdateStatus обновляет статус заказа с CAS-проверкой на ожидаемый
	// предыдущий статус — защита от TOCTOU при отмене.
	UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus domain.OrderStatus) error
}

// OrderModel — GORM модель для таблицы orders.
type OrderModel struct {
	ID              string           `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID      string           `gorm:"column:customer_id;type:varchar(36);not null;index"`
	Status          string           `gorm:"column:status;type:varchar(30);not null;index"`
	CurrentStep     string           `gorm:"column:current_step;type:varchar(30);not null"`
	TotalAmount     int64            `gorm:"column:total_amount;not null"`
	Currency        string           `gorm:"column:currency;type:varchar(3);not null"`
	ShippingAddress string           `gorm:"column:shipping_address;type:varchar(500);not null"`
	CorrelationID   string           `gorm:"column:correlation_id;type:varchar(36);not null;uniqueIndex"`
	ReservationID   *string          `gorm:"column:reservation_id;type:varchar(36)"`
	TransactionID   *string          `gorm:"column:transaction_id;type:varchar(36)"`
	ShippingID      *string          `gorm:"column:shipping_id;type:varchar(36)"`
	ErrorMessage    *string          `gorm:"column:error_message;type:text"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel — GORM модель для таблицы order_items.
type OrderItemModel struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID     string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID   string    `gorm:"column:product_id;type:varchar(36);not null"`
	ProductName string    `gorm:"column:product_name;type:varchar(255);not null"`
	Quantity    int32     `gorm:"column:quantity;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Currency    string    `gorm:"column:currency;type:varchar(3);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain конвертирует GORM модель заказа в доменную сущность. Экспортирован
// для повторного использования в saga.OrchestratorRepository.
func (m *OrderModel) ToDomain() *domain.Order {
	order := &domain.Order{
		ID:              m.ID,
		CustomerID:      m.CustomerID,
		Status:          domain.OrderStatus(m.Status),
		CurrentStep:     domain.SagaStep(m.CurrentStep),
		TotalAmount:     domain.Money{Amount: m.TotalAmount, Currency: m.Currency},
		ShippingAddress: m.ShippingAddress,
		CorrelationID:   m.CorrelationID,
		ReservationID:   m.ReservationID,
		TransactionID:   m.TransactionID,
		ShippingID:      m.ShippingID,
		ErrorMessage:    m.ErrorMessage,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Items:           make([]domain.OrderItem, len(m.Items)),
	}

	for i, item := range m.Items {
		order.Items[i] = *item.toDomain()
	}

	return order
}

func (m *OrderItemModel) toDomain() *domain.OrderItem {
	return &domain.OrderItem{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   domain.Money{Amount: m.UnitPrice, Currency: m.Currency},
	}
}

// OrderModelFromDomain конвертирует доменную сущность заказа в GORM модель.
// Экспортирован для переиспользования в saga.OrchestratorRepository.
func OrderModelFromDomain(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		CurrentStep:     string(o.CurrentStep),
		TotalAmount:     o.TotalAmount.Amount,
		Currency:        o.TotalAmount.Currency,
		ShippingAddress: o.ShippingAddress,
		CorrelationID:   o.CorrelationID,
		ReservationID:   o.ReservationID,
		TransactionID:   o.TransactionID,
		ShippingID:      o.ShippingID,
		ErrorMessage:    o.ErrorMessage,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemModel, len(o.Items)),
	}

	for i, item := range o.Items {
		model.Items[i] = *orderItemModelFromDomain(&item)
	}

	return model
}

func orderItemModelFromDomain(oi *domain.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:          oi.ID,
		OrderID:     oi.OrderID,
		ProductID:   oi.ProductID,
		ProductName: oi.ProductName,
		Quantity:    oi.Quantity,
		UnitPrice:   oi.UnitPrice.Amount,
		Currency:    oi.UnitPrice.Currency,
	}
}

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create создаёт новый заказ с позициями.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := OrderModelFromDomain(order)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateCorrelationID
		}
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID возвращает заказ по ID с загруженными позициями.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.ToDomain(), nil
}

// GetByCorrelationID возвращает заказ по correlation_id.
func (r *orderRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("correlation_id = ?", correlationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.ToDomain(), nil
}

// ListByCustomerID возвращает заказы покупателя с пагинацией.
func (r *orderRepository) ListByCustomerID(ctx context.Context, customerID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("customer_id = ?", customerID)

	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].ToDomain()
	}

	return orders, totalCount, nil
}

// UpdateStatus обновляет статус заказа с CAS-проверкой на ожидаемый статус.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, expectedStatus, newStatus domain.OrderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(expectedStatus)).
		Updates(map[string]any{
			"status":     string(newStatus),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderInvalidTransition
	}
	return nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
