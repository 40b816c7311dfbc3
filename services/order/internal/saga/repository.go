// Package saga реализует Saga Orchestration поверх Order Service: Order —
// агрегат с состоянием, SagaLog — append-only журнал переходов, каждая
// транзакция шага саги атомарно пишет обе таблицы и команду-событие в outbox.
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/order/internal/domain"
	"github.com/sagacore/order-saga/services/order/internal/repository"
)

// ErrStaleTransition возвращается, когда ожидаемый исходный статус заказа не
// совпадает с текущим — либо дубликат ответа, либо гонка с таймаут-воркером.
// Идемпотентность на стороне оркестратора: вызывающий код должен
// залогировать и проигнорировать, а не считать это ошибкой обработки.
var ErrStaleTransition = errors.New("заказ уже не в ожидаемом статусе")

// SagaLogModel — GORM модель append-only журнала саги.
type SagaLogModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID       string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	CorrelationID string    `gorm:"column:correlation_id;type:varchar(36);not null;index"`
	Step          string    `gorm:"column:step;type:varchar(30);not null"`
	EventType     string    `gorm:"column:event_type;type:varchar(100);not null"`
	EventID       string    `gorm:"column:event_id;type:varchar(36);not null"`
	Status        string    `gorm:"column:status;type:varchar(20);not null"`
	Error         *string   `gorm:"column:error;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (SagaLogModel) TableName() string {
	return "saga_logs"
}

func sagaLogModelFromDomain(l *domain.SagaLog) *SagaLogModel {
	return &SagaLogModel{
		ID:            l.ID,
		OrderID:       l.OrderID,
		CorrelationID: l.CorrelationID,
		Step:          string(l.Step),
		EventType:     l.EventType,
		EventID:       l.EventID,
		Status:        string(l.Status),
		Error:         l.Error,
	}
}

func (m *SagaLogModel) toDomain() *domain.SagaLog {
	return &domain.SagaLog{
		ID:            m.ID,
		OrderID:       m.OrderID,
		CorrelationID: m.CorrelationID,
		Step:          domain.SagaStep(m.Step),
		EventType:     m.EventType,
		EventID:       m.EventID,
		Status:        domain.SagaLogStatus(m.Status),
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}

// NewSagaLog строит запись журнала для немедленной вставки в рамках той же
// транзакции, что и переход заказа.
func NewSagaLog(orderID, correlationID string, step domain.SagaStep, eventType, eventID string, status domain.SagaLogStatus, errMsg *string) *domain.SagaLog {
	return &domain.SagaLog{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		CorrelationID: correlationID,
		Step:          step,
		EventType:     eventType,
		EventID:       eventID,
		Status:        status,
		Error:         errMsg,
		CreatedAt:     time.Now(),
	}
}

// OrchestratorRepository объединяет операции, требующие атомарности между
// Order, SagaLog и Outbox — ключевой механизм, которым Saga Orchestrator
// решает dual-write между своей БД и шиной событий.
type OrchestratorRepository interface {
	// CreateOrder атомарно создаёт заказ, стартовую запись SagaLog
	// (order_placed/completed) и команду inventory.reserve.requested в outbox.
	CreateOrder(ctx context.Context, order *domain.Order, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error

	// TransitionOrder атомарно применяет мутацию к заказу (уже выполненную в
	// памяти доменным методом), проверяя, что текущий статус в БД всё ещё
	// равен expectedStatus (идемпотентность при дублирующихся событиях),
	// дописывает SagaLog и ставит в очередь на публикацию ноль и более
	// команд/событий. Возвращает ErrStaleTransition, если expectedStatus
	// больше не совпадает.
	TransitionOrder(ctx context.Context, order *domain.Order, expectedStatus domain.OrderStatus, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error

	// GetStuckOrders возвращает заказы в нетерминальном статусе, не
	// обновлявшиеся с stuckSince — вход для таймаут-воркера.
	GetStuckOrders(ctx context.Context, stuckSince time.Time, limit int) ([]*domain.Order, error)

	// ListSagaLogs возвращает журнал саги заказа в хронологическом порядке.
	ListSagaLogs(ctx context.Context, orderID string) ([]*domain.SagaLog, error)
}

type orchestratorRepository struct {
	db *gorm.DB
}

// NewOrchestratorRepository создаёт репозиторий координатора саги.
func NewOrchestratorRepository(db *gorm.DB) OrchestratorRepository {
	return &orchestratorRepository{db: db}
}

func (r *orchestratorRepository) CreateOrder(ctx context.Context, order *domain.Order, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderModel := repository.OrderModelFromDomain(order)
		if err := tx.Create(orderModel).Error; err != nil {
			if isDuplicateKeyError(err) {
				return domain.ErrDuplicateCorrelationID
			}
			return err
		}
		order.CreatedAt = orderModel.CreatedAt
		order.UpdatedAt = orderModel.UpdatedAt

		if err := tx.Create(sagaLogModelFromDomain(log)).Error; err != nil {
			return err
		}

		for _, cmd := range commands {
			if err := tx.Create(outboxpkg.ModelFromDomain(cmd)).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *orchestratorRepository) TransitionOrder(ctx context.Context, order *domain.Order, expectedStatus domain.OrderStatus, log *domain.SagaLog, commands ...*outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderModel := repository.OrderModelFromDomain(order)

		result := tx.Model(&repository.OrderModel{}).
			Where("id = ? AND status = ?", order.ID, string(expectedStatus)).
			Updates(map[string]any{
				"status":         orderModel.Status,
				"current_step":   orderModel.CurrentStep,
				"reservation_id": orderModel.ReservationID,
				"transaction_id": orderModel.TransactionID,
				"shipping_id":    orderModel.ShippingID,
				"error_message":  orderModel.ErrorMessage,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleTransition
		}

		if err := tx.Create(sagaLogModelFromDomain(log)).Error; err != nil {
			return err
		}

		for _, cmd := range commands {
			if err := tx.Create(outboxpkg.ModelFromDomain(cmd)).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *orchestratorRepository) GetStuckOrders(ctx context.Context, stuckSince time.Time, limit int) ([]*domain.Order, error) {
	var models []repository.OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status NOT IN ? AND updated_at < ?", []string{
			string(domain.OrderStatusConfirmed),
			string(domain.OrderStatusCancelled),
			string(domain.OrderStatusFailed),
		}, stuckSince).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].ToDomain()
	}
	return orders, nil
}

func (r *orchestratorRepository) ListSagaLogs(ctx context.Context, orderID string) ([]*domain.SagaLog, error) {
	var models []SagaLogModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	logs := make([]*domain.SagaLog, len(models))
	for i := range models {
		logs[i] = models[i].toDomain()
	}
	return logs, nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом уникального ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
