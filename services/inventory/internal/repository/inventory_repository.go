// Package repository содержит реализацию доступа к данным для Inventory Service.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sagacore/order-saga/services/inventory/internal/domain"
)

// ProductRepository покрывает чтение и не-саговые операции над товарами.
// CAS-резервирование/освобождение, требующее атомарности с Reservation и
// outbox, живёт в services/inventory/internal/saga.CommandRepository.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	Count(ctx context.Context) (int64, error)
}

// ReservationRepository покрывает чтение резервирований.
type ReservationRepository interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error)
}

// ProductModel — GORM модель таблицы products.
type ProductModel struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Name            string    `gorm:"column:name;type:varchar(255);not null"`
	Description     string    `gorm:"column:description;type:text"`
	PriceMinorUnits int64     `gorm:"column:price_minor_units;not null"`
	Currency        string    `gorm:"column:currency;type:varchar(3);not null;default:USD"`
	AvailableQty    int32     `gorm:"column:available_quantity;not null"`
	ReservedQty     int32     `gorm:"column:reserved_quantity;not null;default:0"`
	Version         int64     `gorm:"column:version;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain конвертирует GORM модель товара в доменную сущность.
func (m *ProductModel) ToDomain() *domain.Product {
	return &domain.Product{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		PriceMinorUnits: m.PriceMinorUnits,
		Currency:        m.Currency,
		AvailableQty:    m.AvailableQty,
		ReservedQty:     m.ReservedQty,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ProductModelFromDomain конвертирует доменную сущность товара в GORM модель.
// Экспортирован для переиспользования в saga.CommandRepository.
func ProductModelFromDomain(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		PriceMinorUnits: p.PriceMinorUnits,
		Currency:        p.Currency,
		AvailableQty:    p.AvailableQty,
		ReservedQty:     p.ReservedQty,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// reservationItemDTO — сериализуемое представление позиции резервирования.
type reservationItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// ReservationModel — GORM модель таблицы reservations. Items хранится как
// JSON-столбец (тот же подход, что и pkg/outbox.OutboxModel.Payload), потому
// что состав позиций резервирования фиксируется на момент резервирования и
// не требует отдельной таблицы связей.
type ReservationModel struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID       string     `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	CorrelationID string     `gorm:"column:correlation_id;type:varchar(36);not null"`
	Status        string     `gorm:"column:status;type:varchar(20);not null"`
	Items         []byte     `gorm:"column:items;type:json;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	ReleasedAt    *time.Time `gorm:"column:released_at"`
}

// TableName возвращает имя таблицы в БД.
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain конвертирует GORM модель резервирования в доменную сущность.
func (m *ReservationModel) ToDomain() (*domain.Reservation, error) {
	var dtos []reservationItemDTO
	if err := json.Unmarshal(m.Items, &dtos); err != nil {
		return nil, err
	}
	items := make([]domain.ReservationItem, len(dtos))
	for i, d := range dtos {
		items[i] = domain.ReservationItem{ProductID: d.ProductID, Quantity: d.Quantity}
	}
	return &domain.Reservation{
		ID:            m.ID,
		OrderID:       m.OrderID,
		CorrelationID: m.CorrelationID,
		Status:        domain.ReservationStatus(m.Status),
		Items:         items,
		CreatedAt:     m.CreatedAt,
		ReleasedAt:    m.ReleasedAt,
	}, nil
}

// ReservationModelFromDomain конвертирует доменную сущность резервирования в
// GORM модель. Экспортирован для переиспользования в saga.CommandRepository.
func ReservationModelFromDomain(r *domain.Reservation) (*ReservationModel, error) {
	dtos := make([]reservationItemDTO, len(r.Items))
	for i, item := range r.Items {
		dtos[i] = reservationItemDTO{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	body, err := json.Marshal(dtos)
	if err != nil {
		return nil, err
	}
	return &ReservationModel{
		ID:            r.ID,
		OrderID:       r.OrderID,
		CorrelationID: r.CorrelationID,
		Status:        string(r.Status),
		Items:         body,
		CreatedAt:     r.CreatedAt,
		ReleasedAt:    r.ReleasedAt,
	}, nil
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	model := ProductModelFromDomain(product)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	product.CreatedAt = model.CreatedAt
	product.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = models[i].ToDomain()
	}
	return products, nil
}

func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ProductModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository создаёт новый репозиторий резервирований.
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// IsDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// Экспортирован для переиспользования в saga.CommandRepository при гонке на
// вставке Reservation (уникальный индекс на order_id).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
