// Package repository содержит реализацию доступа к данным для Payment Service:
// Transaction (списание по заказу) и Refund (возврат по завершённой транзакции).
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sagacore/order-saga/services/payment/internal/domain"
)

// TransactionRepository определяет интерфейс для работы с транзакциями и
// возвратами в БД Payment Service.
type TransactionRepository interface {
	// Create создаёт новую транзакцию. Возвращает domain.ErrDuplicateTransaction,
	// если идемпотентность нарушена гонкой двух обработчиков payment.requested.
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByIdempotencyKey возвращает транзакцию по ключу идемпотентности
	// ("payment_" + order_id) — основной путь идемпотентного Charge.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)

	// GetByOrderID возвращает транзакцию по order_id (для HTTP lookup).
	GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)

	// GetByID возвращает транзакцию по ID (для обработки payment.refunded).
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// Update сохраняет изменения транзакции (переход в completed/failed/refunded).
	Update(ctx context.Context, tx *domain.Transaction) error

	// CreateRefund создаёт возврат и атомарно переводит транзакцию в refunded.
	CreateRefund(ctx context.Context, refund *domain.Refund, tx *domain.Transaction) error

	// GetCompletedRefundByTransactionID возвращает завершённый возврат по
	// транзакции, если он уже существует (идемпотентность Refund).
	GetCompletedRefundByTransactionID(ctx context.Context, transactionID string) (*domain.Refund, error)

	// GetStuckProcessing возвращает транзакции, застрявшие в processing
	// дольше olderThan — используется sweep-воркером, зеркалящим подход
	// Order Service к зависшим сагам.
	GetStuckProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error)
}

// TransactionModel — GORM модель для таблицы transactions.
type TransactionModel struct {
	ID               string     `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID          string     `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	CorrelationID    string     `gorm:"column:correlation_id;type:varchar(36);not null;index"`
	IdempotencyKey   string     `gorm:"column:idempotency_key;type:varchar(80);not null;uniqueIndex"`
	Amount           int64      `gorm:"column:amount;not null"`
	Currency         string     `gorm:"column:currency;type:varchar(3);not null"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;index"`
	GatewayReference string     `gorm:"column:gateway_reference;type:varchar(64)"`
	ErrorCode        string     `gorm:"column:error_code;type:varchar(50)"`
	ErrorMessage     string     `gorm:"column:error_message;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (TransactionModel) TableName() string {
	return "transactions"
}

// RefundModel — GORM модель для таблицы refunds.
type RefundModel struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	TransactionID string     `gorm:"column:transaction_id;type:varchar(36);not null;index"`
	OrderID       string     `gorm:"column:order_id;type:varchar(36);not null"`
	Amount        int64      `gorm:"column:amount;not null"`
	Reason        string     `gorm:"column:reason;type:varchar(255)"`
	Status        string     `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
}

// TableName возвращает имя таблицы в БД.
func (RefundModel) TableName() string {
	return "refunds"
}

func TransactionModelFromDomain(t *domain.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:               t.ID,
		OrderID:          t.OrderID,
		CorrelationID:    t.CorrelationID,
		IdempotencyKey:   t.IdempotencyKey,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		GatewayReference: t.GatewayReference,
		ErrorCode:        t.ErrorCode,
		ErrorMessage:     t.ErrorMessage,
		ProcessedAt:      t.ProcessedAt,
	}
}

func (m *TransactionModel) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:               m.ID,
		OrderID:          m.OrderID,
		CorrelationID:    m.CorrelationID,
		IdempotencyKey:   m.IdempotencyKey,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Status:           domain.TransactionStatus(m.Status),
		GatewayReference: m.GatewayReference,
		ErrorCode:        m.ErrorCode,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func RefundModelFromDomain(r *domain.Refund) *RefundModel {
	return &RefundModel{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		OrderID:       r.OrderID,
		Amount:        r.Amount,
		Reason:        r.Reason,
		Status:        string(r.Status),
		ProcessedAt:   r.ProcessedAt,
	}
}

func (m *RefundModel) toDomain() *domain.Refund {
	return &domain.Refund{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		OrderID:       m.OrderID,
		Amount:        m.Amount,
		Reason:        m.Reason,
		Status:        domain.RefundStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
	}
}

// transactionRepository — GORM реализация TransactionRepository.
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository создаёт новый репозиторий транзакций Payment Service.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	model := TransactionModelFromDomain(tx)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateTransaction
		}
		return err
	}
	tx.CreatedAt = model.CreatedAt
	tx.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *transactionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *transactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	tx.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(&TransactionModel{}).
		Where("id = ?", tx.ID).
		Updates(map[string]any{
			"status":            string(tx.Status),
			"gateway_reference": tx.GatewayReference,
			"error_code":        tx.ErrorCode,
			"error_message":     tx.ErrorMessage,
			"processed_at":      tx.ProcessedAt,
			"updated_at":        tx.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) CreateRefund(ctx context.Context, refund *domain.Refund, tx *domain.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if err := gtx.Create(RefundModelFromDomain(refund)).Error; err != nil {
			return err
		}
		result := gtx.Model(&TransactionModel{}).
			Where("id = ? AND status = ?", tx.ID, string(domain.TransactionStatusCompleted)).
			Updates(map[string]any{"status": string(domain.TransactionStatusRefunded), "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTransactionNotCompleted
		}
		return nil
	})
}

func (r *transactionRepository) GetCompletedRefundByTransactionID(ctx context.Context, transactionID string) (*domain.Refund, error) {
	var model RefundModel
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND status = ?", transactionID, string(domain.RefundStatusCompleted)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *transactionRepository) GetStuckProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error) {
	var models []TransactionModel
	cutoff := time.Now().Add(-olderThan)
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.TransactionStatusProcessing), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
