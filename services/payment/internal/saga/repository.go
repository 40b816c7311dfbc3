// Package saga обрабатывает payment.requested/payment.refunded для Payment
// Service: идемпотентное списание по order_id и компенсирующий возврат.
package saga

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/repository"
)

// CommandRepository объединяет операции, требующие атомарности между
// Transaction/Refund и Outbox — тот же dual-write механизм, что и
// services/order/internal/saga.OrchestratorRepository, применённый к
// Payment Service.
type CommandRepository interface {
	// CreateProcessing вставляет транзакцию в статусе processing — первая
	// из двух локальных транзакций шага Charge. Возвращает
	// domain.ErrDuplicateTransaction на гонку по idempotency_key.
	CreateProcessing(ctx context.Context, tx *domain.Transaction) error

	// Finalize атомарно обновляет транзакцию (статус/результат шлюза) и
	// пишет конверт ответа в outbox — вторая транзакция шага Charge.
	// Обновление применяется только к строке в статусе processing; иначе
	// возвращается domain.ErrTransactionNotFound и outbox не пишется.
	Finalize(ctx context.Context, tx *domain.Transaction, reply *outboxpkg.Outbox) error

	// EmitOnly пишет событие в outbox без сопутствующей мутации бизнес-строки —
	// используется при идемпотентном replay (транзакция уже в терминальном
	// статусе, повторно эмитится тот же ответ).
	EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error
}

type commandRepository struct {
	db *gorm.DB
}

// NewCommandRepository создаёт атомарный репозиторий команд Payment Service.
func NewCommandRepository(db *gorm.DB) CommandRepository {
	return &commandRepository{db: db}
}

func (r *commandRepository) CreateProcessing(ctx context.Context, tx *domain.Transaction) error {
	model := repository.TransactionModelFromDomain(tx)
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

func (r *commandRepository) Finalize(ctx context.Context, tx *domain.Transaction, reply *outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		now := time.Now()
		result := gtx.Model(&repository.TransactionModel{}).
			Where("id = ? AND status = ?", tx.ID, string(domain.TransactionStatusProcessing)).
			Updates(map[string]any{
				"status":            string(tx.Status),
				"gateway_reference": tx.GatewayReference,
				"error_code":        tx.ErrorCode,
				"error_message":     tx.ErrorMessage,
				"processed_at":      tx.ProcessedAt,
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTransactionNotFound
		}
		return gtx.Create(outboxpkg.ModelFromDomain(reply)).Error
	})
}

func (r *commandRepository) EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error {
	return outboxpkg.NewOutboxRepository(r.db, "payment").Create(ctx, reply)
}

func isDuplicateKeyError(err error) bool {
	return err != nil && errors.Is(err, gorm.ErrDuplicatedKey)
}
