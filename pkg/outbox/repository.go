package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrOutboxNotFound — запись outbox не найдена.
var ErrOutboxNotFound = errors.New("запись outbox не найдена")

// OutboxRepository определяет методы работы с outbox.
// Интерфейс для тестируемости (Dependency Inversion).
type OutboxRepository interface {
	// Create создаёт новую запись outbox. Обычно вызывается внутри той же
	// GORM-транзакции, что и бизнес-запись (через CreateTx).
	Create(ctx context.Context, record *Outbox) error

	// CreateTx — то же самое, но на переданной транзакции; используется
	// сервисами, которые пишут бизнес-строку и outbox-строку атомарно.
	CreateTx(tx *gorm.DB, record *Outbox) error

	// GetPending возвращает записи в статусе pending, упорядоченные по
	// created_at, для публикации воркером.
	GetPending(ctx context.Context, limit int) ([]*Outbox, error)

	// MarkPublished помечает запись опубликованной (терминальное состояние).
	MarkPublished(ctx context.Context, id string) error

	// MarkFailed увеличивает retry_count и сохраняет ошибку; если после
	// инкремента retry_count >= maxRetries, переводит запись в status=failed.
	MarkFailed(ctx context.Context, id string, recordErr error, maxRetries int) error

	// RetryFailed сбрасывает до limit записей из failed обратно в pending
	// с retry_count=0, позволяя оператору повторить отправку.
	RetryFailed(ctx context.Context, limit int) (int64, error)

	// DeleteProcessedBefore удаляет опубликованные записи старше before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// outboxRepository — GORM реализация OutboxRepository.
// aggregateType фильтрует записи по типу агрегата ("order" / "inventory" / ...).
type outboxRepository struct {
	db            *gorm.DB
	aggregateType string
}

// NewOutboxRepository создаёт новый репозиторий outbox.
// aggregateType — тип агрегата для фильтрации.
func NewOutboxRepository(db *gorm.DB, aggregateType string) OutboxRepository {
	return &outboxRepository{db: db, aggregateType: aggregateType}
}

// Create создаёт новую запись outbox вне транзакции.
func (r *outboxRepository) Create(ctx context.Context, record *Outbox) error {
	return r.CreateTx(r.db.WithContext(ctx), record)
}

// CreateTx создаёт новую запись outbox на переданной транзакции.
func (r *outboxRepository) CreateTx(tx *gorm.DB, record *Outbox) error {
	if record.Status == "" {
		record.Status = StatusPending
	}
	model := ModelFromDomain(record)
	if err := tx.Create(model).Error; err != nil {
		return err
	}
	record.CreatedAt = model.CreatedAt
	return nil
}

// GetPending возвращает записи в статусе pending, отсортированные по времени создания.
func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*Outbox, error) {
	var models []OutboxModel

	if err := r.db.WithContext(ctx).
		Where("status = ? AND aggregate_type = ?", string(StatusPending), r.aggregateType).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*Outbox, len(models))
	for i := range models {
		result[i] = models[i].ToDomain()
	}
	return result, nil
}

// MarkPublished помечает запись как успешно опубликованную.
func (r *outboxRepository) MarkPublished(ctx context.Context, id string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&OutboxModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       string(StatusPublished),
			"published_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

// MarkFailed увеличивает счётчик ошибок и, при исчерпании лимита, переводит
// запись в терминальный статус failed: pending переходит в failed только
// после retry_count >= max.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, recordErr error, maxRetries int) error {
	errStr := recordErr.Error()

	var model OutboxModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return err
	}

	newRetryCount := model.RetryCount + 1
	status := string(StatusPending)
	if newRetryCount >= maxRetries {
		status = string(StatusFailed)
	}

	result := r.db.WithContext(ctx).Model(&OutboxModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count": newRetryCount,
			"last_error":  errStr,
			"status":      status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

// RetryFailed сбрасывает failed-записи обратно в pending для повторной публикации.
func (r *outboxRepository) RetryFailed(ctx context.Context, limit int) (int64, error) {
	var models []OutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND aggregate_type = ?", string(StatusFailed), r.aggregateType).
		Limit(limit).
		Find(&models).Error; err != nil {
		return 0, err
	}
	if len(models) == 0 {
		return 0, nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	result := r.db.WithContext(ctx).Model(&OutboxModel{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":      string(StatusPending),
			"retry_count": 0,
			"last_error":  nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteProcessedBefore удаляет опубликованные записи outbox старше указанного времени.
// Удаляет пачками по 1000 для предотвращения длинных блокировок.
func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND published_at < ? AND aggregate_type = ?", string(StatusPublished), before, r.aggregateType).
		Limit(1000).
		Delete(&OutboxModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
