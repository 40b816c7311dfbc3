// Package saga реализует Inventory Service как участника саги: идемпотентное
// резервирование и освобождение складских позиций по командам
// inventory.reserve.requested/inventory.released.
package saga

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/repository"
)

// ErrStaleVersion сигнализирует проигранную гонку CAS-обновления товара —
// вызывающий код должен перечитать товары и повторить попытку резервирования
// с начала.
var ErrStaleVersion = errors.New("версия товара изменилась во время резервирования, требуется повтор")

// ErrDuplicateReservation сигнализирует, что резервирование для этого
// order_id уже было вставлено конкурентно между проверкой идемпотентности в
// обработчике и записью в этой транзакции.
var ErrDuplicateReservation = errors.New("резервирование для этого заказа уже создано конкурентно")

// ProductReservation — запрошенное изменение одного товара внутри транзакции
// резервирования: CAS-условие по версии, прочитанной до начала резервирования.
type ProductReservation struct {
	ProductID  string
	Quantity   int32
	OldVersion int64
}

// CommandRepository объединяет операции, требующие атомарности между
// Product, Reservation и outbox.
type CommandRepository interface {
	// ReserveAndEmit атомарно применяет CAS-обновление остатков для каждого
	// товара в updates, создаёт запись Reservation и кладёт reply в outbox.
	// Возвращает ErrStaleVersion, если хотя бы одно CAS-обновление не
	// затронуло ни одной строки (конкурентное резервирование того же
	// товара успело обновить version первым).
	ReserveAndEmit(ctx context.Context, reservation *domain.Reservation, updates []ProductReservation, reply *outboxpkg.Outbox) error

	// EmitOnly кладёт событие в outbox без изменения состояния склада —
	// путь идемпотентного повтора и отказа по нехватке остатка.
	EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error

	// Release атомарно возвращает остатки по резервированию и переводит
	// Reservation в released. Без outbox-события — inventory.released это
	// компенсация без ответа (оркестратор её не ждёт).
	Release(ctx context.Context, reservation *domain.Reservation, updates []ProductReservation) error
}

type commandRepository struct {
	db *gorm.DB
}

// NewCommandRepository создаёт репозиторий команд саги Inventory Service.
func NewCommandRepository(db *gorm.DB) CommandRepository {
	return &commandRepository{db: db}
}

func (r *commandRepository) ReserveAndEmit(ctx context.Context, reservation *domain.Reservation, updates []ProductReservation, reply *outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, u := range updates {
			result := tx.Model(&repository.ProductModel{}).
				Where("id = ? AND version = ? AND available_quantity >= ?", u.ProductID, u.OldVersion, u.Quantity).
				Updates(map[string]any{
					"available_quantity": gorm.Expr("available_quantity - ?", u.Quantity),
					"reserved_quantity":  gorm.Expr("reserved_quantity + ?", u.Quantity),
					"version":            gorm.Expr("version + 1"),
					"updated_at":         now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrStaleVersion
			}
		}

		reservationModel, err := repository.ReservationModelFromDomain(reservation)
		if err != nil {
			return err
		}
		if err := tx.Create(reservationModel).Error; err != nil {
			if repository.IsDuplicateKeyError(err) {
				return ErrDuplicateReservation
			}
			return err
		}
		reservation.CreatedAt = reservationModel.CreatedAt

		return tx.Create(outboxpkg.ModelFromDomain(reply)).Error
	})
}

func (r *commandRepository) EmitOnly(ctx context.Context, reply *outboxpkg.Outbox) error {
	return outboxpkg.NewOutboxRepository(r.db, "inventory").Create(ctx, reply)
}

func (r *commandRepository) Release(ctx context.Context, reservation *domain.Reservation, updates []ProductReservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, u := range updates {
			result := tx.Model(&repository.ProductModel{}).
				Where("id = ?", u.ProductID).
				Updates(map[string]any{
					"available_quantity": gorm.Expr("available_quantity + ?", u.Quantity),
					"reserved_quantity":  gorm.Expr("reserved_quantity - ?", u.Quantity),
					"version":            gorm.Expr("version + 1"),
					"updated_at":         now,
				})
			if result.Error != nil {
				return result.Error
			}
		}

		result := tx.Model(&repository.ReservationModel{}).
			Where("id = ? AND status = ?", reservation.ID, string(domain.ReservationStatusActive)).
			Updates(map[string]any{
				"status":      string(domain.ReservationStatusReleased),
				"released_at": now,
			})
		return result.Error
	})
}
