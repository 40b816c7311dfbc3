// Package saga реализует Shipping Service как участника саги: идемпотентное
// планирование отгрузки по команде order.confirmed.
package saga

import (
	"context"

	"gorm.io/gorm"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/repository"
)

// CommandRepository объединяет операции, требующие атомарности между
// Shipment и outbox — тот же dual-write механизм, что и
// services/inventory/internal/saga.CommandRepository, применённый к
// Shipping Service.
type CommandRepository interface {
	// CreateAndEmit атомарно вставляет отгрузку и кладёт reply
	// (shipping.scheduled/shipping.failed) в outbox. Возвращает
	// domain.ErrDuplicateShipment на гонку по order_id.
	CreateAndEmit(ctx context.Context, shipment *domain.Shipment, reply *outboxpkg.Outbox) error
}

type commandRepository struct {
	db *gorm.DB
}

// NewCommandRepository создаёт репозиторий команд саги Shipping Service.
func NewCommandRepository(db *gorm.DB) CommandRepository {
	return &commandRepository{db: db}
}

func (r *commandRepository) CreateAndEmit(ctx context.Context, shipment *domain.Shipment, reply *outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := repository.ShipmentModelFromDomain(shipment)
		if err := tx.Create(model).Error; err != nil {
			if repository.IsDuplicateKeyError(err) {
				return domain.ErrDuplicateShipment
			}
			return err
		}
		shipment.CreatedAt = model.CreatedAt

		return tx.Create(outboxpkg.ModelFromDomain(reply)).Error
	})
}
