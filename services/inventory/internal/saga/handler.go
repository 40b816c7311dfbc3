package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
	"github.com/sagacore/order-saga/services/inventory/internal/repository"
)

const (
	aggregateType      = "inventory"
	maxReserveAttempts = 3
)

// Handler обрабатывает команды inventory.reserve.requested/inventory.released,
// приходящие с шины событий.
type Handler interface {
	// HandleReserveRequested резервирует остаток по позициям заказа.
	// Идемпотентен по order_id: повторная доставка того же
	// inventory.reserve.requested переотправляет уже сохранённый результат,
	// а не резервирует повторно.
	HandleReserveRequested(ctx context.Context, env *event.Envelope) error

	// HandleReleased освобождает ранее сделанное резервирование
	// (компенсация при провале оплаты).
	HandleReleased(ctx context.Context, env *event.Envelope) error
}

type handler struct {
	products     repository.ProductRepository
	reservations repository.ReservationRepository
	repo         CommandRepository
}

// NewHandler создаёт обработчик команд Inventory Service.
func NewHandler(products repository.ProductRepository, reservations repository.ReservationRepository, repo CommandRepository) Handler {
	return &handler{products: products, reservations: reservations, repo: repo}
}

func (h *handler) HandleReserveRequested(ctx context.Context, env *event.Envelope) error {
	var payload event.InventoryReserveRequestedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode inventory.reserve.requested: %w", err)
	}

	log := logger.FromContext(ctx)

	existing, err := h.reservations.GetByOrderID(ctx, payload.OrderID)
	if err != nil && !errors.Is(err, domain.ErrReservationNotFound) {
		return err
	}
	if existing != nil {
		log.Warn().Str("order_id", payload.OrderID).Msg("inventory.reserve.requested: резервирование уже существует, переотправляем прошлый результат")
		return h.emitReserved(ctx, env, existing)
	}

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		err := h.attemptReserve(ctx, env, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStaleVersion) {
			log.Warn().Str("order_id", payload.OrderID).Int("attempt", attempt+1).Msg("inventory.reserve.requested: конкурентное обновление товара, повторяем")
			continue
		}
		return err
	}

	return fmt.Errorf("inventory.reserve.requested: исчерпаны попытки резервирования для заказа %s", payload.OrderID)
}

// attemptReserve выполняет одну попытку: читает актуальные товары, проверяет
// доступность и либо резервирует атомарно (CAS по version), либо
// отказывает. Возвращает ErrStaleVersion, если попытка проиграла гонку и
// должна быть повторена с начала (перечитав товары).
func (h *handler) attemptReserve(ctx context.Context, env *event.Envelope, payload event.InventoryReserveRequestedPayload) error {
	var unavailable []event.UnavailableItem
	updates := make([]ProductReservation, 0, len(payload.Items))

	for _, item := range payload.Items {
		product, err := h.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				unavailable = append(unavailable, event.UnavailableItem{ProductID: item.ProductID, Requested: item.Quantity, Available: 0})
				continue
			}
			return err
		}
		if !product.CanReserve(item.Quantity) {
			unavailable = append(unavailable, event.UnavailableItem{ProductID: item.ProductID, Requested: item.Quantity, Available: product.AvailableQty})
			continue
		}
		updates = append(updates, ProductReservation{ProductID: product.ID, Quantity: item.Quantity, OldVersion: product.Version})
	}

	if len(unavailable) > 0 {
		return h.emitReserveFailed(ctx, env, payload.OrderID, unavailable)
	}

	items := make([]domain.ReservationItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = domain.ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	reservation := domain.NewActiveReservation(payload.OrderID, env.CorrelationID, items)
	reservation.ID = uuid.New().String()

	reply, err := h.reservedEnvelope(env, reservation)
	if err != nil {
		return err
	}
	replyOutbox, err := toOutbox(reply)
	if err != nil {
		return err
	}

	if err := h.repo.ReserveAndEmit(ctx, reservation, updates, replyOutbox); err != nil {
		if errors.Is(err, ErrDuplicateReservation) {
			log := logger.FromContext(ctx)
			log.Warn().Str("order_id", payload.OrderID).Msg("inventory.reserve.requested: гонка на создании резервирования, перечитываем")
			existing, getErr := h.reservations.GetByOrderID(ctx, payload.OrderID)
			if getErr != nil {
				return getErr
			}
			return h.emitReserved(ctx, env, existing)
		}
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("order_id", payload.OrderID).Str("reservation_id", reservation.ID).Msg("склад зарезервирован")
	return nil
}

func (h *handler) emitReserveFailed(ctx context.Context, env *event.Envelope, orderID string, unavailable []event.UnavailableItem) error {
	reply, err := event.New(event.TypeInventoryReserveFailed, orderID, env.CorrelationID, env.EventID, event.InventoryReserveFailedPayload{
		OrderID:          orderID,
		Reason:           "Insufficient inventory",
		UnavailableItems: unavailable,
	})
	if err != nil {
		return fmt.Errorf("build inventory.reserve.failed: %w", err)
	}
	ob, err := toOutbox(reply)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Warn().Str("order_id", orderID).Interface("unavailable_items", unavailable).Msg("недостаточно товара на складе")
	return h.repo.EmitOnly(ctx, ob)
}

// emitReserved переотправляет inventory.reserved из уже сохранённого
// резервирования — путь идемпотентного повтора.
func (h *handler) emitReserved(ctx context.Context, env *event.Envelope, reservation *domain.Reservation) error {
	reply, err := h.reservedEnvelope(env, reservation)
	if err != nil {
		return err
	}
	ob, err := toOutbox(reply)
	if err != nil {
		return err
	}
	return h.repo.EmitOnly(ctx, ob)
}

func (h *handler) reservedEnvelope(env *event.Envelope, reservation *domain.Reservation) (*event.Envelope, error) {
	items := make([]event.Item, len(reservation.Items))
	for i, it := range reservation.Items {
		items[i] = event.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return event.New(event.TypeInventoryReserved, reservation.OrderID, env.CorrelationID, env.EventID, event.InventoryReservedPayload{
		OrderID:       reservation.OrderID,
		ReservationID: reservation.ID,
		Items:         items,
	})
}

func (h *handler) HandleReleased(ctx context.Context, env *event.Envelope) error {
	var payload event.InventoryReleasedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode inventory.released: %w", err)
	}

	log := logger.FromContext(ctx)
	reservation, err := h.reservations.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			log.Warn().Str("order_id", payload.OrderID).Msg("inventory.released: резервирование не найдено, освобождать нечего")
			return nil
		}
		return err
	}
	if reservation.ID != payload.ReservationID {
		log.Warn().Str("order_id", payload.OrderID).Str("expected", reservation.ID).Str("got", payload.ReservationID).
			Msg("inventory.released: reservation_id не совпадает с текущим активным резервированием, игнорируем")
		return nil
	}
	if reservation.Status == domain.ReservationStatusReleased {
		log.Info().Str("reservation_id", reservation.ID).Msg("inventory.released: уже освобождено, игнорируем (дубликат компенсации)")
		return nil
	}

	updates := make([]ProductReservation, len(reservation.Items))
	for i, item := range reservation.Items {
		updates[i] = ProductReservation{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	if err := h.repo.Release(ctx, reservation, updates); err != nil {
		return err
	}

	log.Info().Str("order_id", payload.OrderID).Str("reservation_id", reservation.ID).Msg("резервирование освобождено")
	return nil
}

// toOutbox сериализует конверт события в запись outbox с routing key, равным
// типу события.
func toOutbox(env *event.Envelope) (*outboxpkg.Outbox, error) {
	body, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", env.EventType, err)
	}
	return &outboxpkg.Outbox{
		ID:            env.EventID,
		AggregateType: aggregateType,
		AggregateID:   env.AggregateID,
		EventType:     string(env.EventType),
		RoutingKey:    string(env.EventType),
		Payload:       body,
		Status:        outboxpkg.StatusPending,
	}, nil
}
