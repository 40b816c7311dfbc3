package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/order/internal/domain"
	"github.com/sagacore/order-saga/services/order/internal/repository"
)

const aggregateType = "order"

// Orchestrator управляет сагой обработки заказа: от order.placed до
// order.confirmed/order.failed, включая компенсацию. Каждый
// обработчик идемпотентен — если заказ уже не в ожидаемом исходном статусе
// (дубликат доставки события), переход молча пропускается.
type Orchestrator interface {
	// CreateOrder валидирует и создаёт заказ, атомарно публикуя в outbox
	// order.placed и команду inventory.reserve.requested — первый шаг саги.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// HandleInventoryReserved продвигает заказ в inventory_reserved и
	// запрашивает платёж.
	HandleInventoryReserved(ctx context.Context, env *event.Envelope) error

	// HandleInventoryReserveFailed переводит заказ в failed — резервирование
	// ещё не случилось, компенсировать нечего.
	HandleInventoryReserveFailed(ctx context.Context, env *event.Envelope) error

	// HandlePaymentProcessed подтверждает заказ.
	HandlePaymentProcessed(ctx context.Context, env *event.Envelope) error

	// HandlePaymentFailed компенсирует резервирование склада (если оно
	// было сделано) и переводит заказ в failed.
	HandlePaymentFailed(ctx context.Context, env *event.Envelope) error

	// CompensateStuckOrder помечает зависший (не завершившийся вовремя)
	// заказ как failed, компенсируя резервирование склада при необходимости.
	// Вызывается из timeout_worker.go для заказов из GetStuckOrders.
	CompensateStuckOrder(ctx context.Context, order *domain.Order, reason string) error
}

type orchestrator struct {
	orders repository.OrderRepository
	repo   OrchestratorRepository
}

// NewOrchestrator создаёт Saga Orchestrator. orders используется для чтения
// текущего состояния заказа при обработке входящих событий; repo — для
// атомарных переходов (Order + SagaLog + outbox).
func NewOrchestrator(orders repository.OrderRepository, repo OrchestratorRepository) Orchestrator {
	return &orchestrator{orders: orders, repo: repo}
}

func (o *orchestrator) CreateOrder(ctx context.Context, order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	order.CalculateTotal()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CorrelationID == "" {
		order.CorrelationID = uuid.New().String()
	}
	order.Status = domain.OrderStatusPending
	order.CurrentStep = domain.SagaStepOrderPlaced
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}

	placedEnv, err := event.New(event.TypeOrderPlaced, order.ID, order.CorrelationID, "", orderPlacedPayload(order))
	if err != nil {
		return fmt.Errorf("build order.placed: %w", err)
	}

	reserveEnv, err := event.New(event.TypeInventoryReserveRequested, order.ID, order.CorrelationID, placedEnv.EventID, inventoryReserveRequestedPayload(order))
	if err != nil {
		return fmt.Errorf("build inventory.reserve.requested: %w", err)
	}

	placedOutbox, err := toOutbox(placedEnv)
	if err != nil {
		return err
	}
	reserveOutbox, err := toOutbox(reserveEnv)
	if err != nil {
		return err
	}

	startLog := NewSagaLog(order.ID, order.CorrelationID, domain.SagaStepOrderPlaced, string(event.TypeOrderPlaced), placedEnv.EventID, domain.SagaLogCompleted, nil)

	if err := o.repo.CreateOrder(ctx, order, startLog, placedOutbox, reserveOutbox); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("order_id", order.ID).
		Str("correlation_id", order.CorrelationID).
		Msg("saga started: order placed, inventory reservation requested")
	return nil
}

func (o *orchestrator) HandleInventoryReserved(ctx context.Context, env *event.Envelope) error {
	var payload event.InventoryReservedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode inventory.reserved: %w", err)
	}

	order, err := o.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if order.Status != domain.OrderStatusPending {
		log.Warn().Str("order_id", order.ID).Str("status", string(order.Status)).
			Msg("inventory.reserved: заказ уже не в статусе pending, игнорируем (дубликат или гонка)")
		return nil
	}

	expected := order.Status
	if err := order.ReserveInventory(payload.ReservationID); err != nil {
		return err
	}

	payEnv, err := event.New(event.TypePaymentRequested, order.ID, order.CorrelationID, env.EventID, event.PaymentRequestedPayload{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Amount:     order.TotalAmount.Amount,
		Currency:   order.TotalAmount.Currency,
	})
	if err != nil {
		return fmt.Errorf("build payment.requested: %w", err)
	}
	payOutbox, err := toOutbox(payEnv)
	if err != nil {
		return err
	}

	sagaLog := NewSagaLog(order.ID, order.CorrelationID, domain.SagaStepInventoryReservation, string(env.EventType), env.EventID, domain.SagaLogCompleted, nil)

	if err := o.repo.TransitionOrder(ctx, order, expected, sagaLog, payOutbox); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			log.Warn().Str("order_id", order.ID).Msg("inventory.reserved: гонка с другим переходом, пропускаем")
			return nil
		}
		return err
	}

	log.Info().Str("order_id", order.ID).Str("reservation_id", payload.ReservationID).Msg("инвентарь зарезервирован, запрошен платёж")
	return nil
}

func (o *orchestrator) HandleInventoryReserveFailed(ctx context.Context, env *event.Envelope) error {
	var payload event.InventoryReserveFailedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode inventory.reserve.failed: %w", err)
	}

	order, err := o.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if order.Status.IsTerminal() {
		log.Warn().Str("order_id", order.ID).Msg("inventory.reserve.failed: заказ уже в терминальном статусе, игнорируем")
		return nil
	}

	expected := order.Status
	reason := payload.Reason
	if err := order.FailAt(domain.SagaStepInventoryReservation, reason); err != nil {
		return err
	}

	failedEnv, err := event.New(event.TypeOrderFailed, order.ID, order.CorrelationID, env.EventID, event.OrderFailedPayload{
		OrderID:    order.ID,
		Reason:     reason,
		FailedStep: string(domain.SagaStepInventoryReservation),
	})
	if err != nil {
		return fmt.Errorf("build order.failed: %w", err)
	}
	failedOutbox, err := toOutbox(failedEnv)
	if err != nil {
		return err
	}

	sagaLog := NewSagaLog(order.ID, order.CorrelationID, domain.SagaStepInventoryReservation, string(env.EventType), env.EventID, domain.SagaLogFailed, &reason)

	if err := o.repo.TransitionOrder(ctx, order, expected, sagaLog, failedOutbox); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil
		}
		return err
	}

	log.Info().Str("order_id", order.ID).Str("reason", reason).Msg("резервирование склада не удалось, заказ отклонён")
	return nil
}

func (o *orchestrator) HandlePaymentProcessed(ctx context.Context, env *event.Envelope) error {
	var payload event.PaymentProcessedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode payment.processed: %w", err)
	}

	order, err := o.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if order.Status != domain.OrderStatusInventoryReserved {
		log.Warn().Str("order_id", order.ID).Str("status", string(order.Status)).
			Msg("payment.processed: заказ уже не ожидает платёж, игнорируем (дубликат)")
		return nil
	}

	expected := order.Status
	if err := order.Confirm(payload.TransactionID); err != nil {
		return err
	}

	confirmedEnv, err := event.New(event.TypeOrderConfirmed, order.ID, order.CorrelationID, env.EventID, event.OrderConfirmedPayload{OrderID: order.ID, ShippingAddress: order.ShippingAddress})
	if err != nil {
		return fmt.Errorf("build order.confirmed: %w", err)
	}
	confirmedOutbox, err := toOutbox(confirmedEnv)
	if err != nil {
		return err
	}

	sagaLog := NewSagaLog(order.ID, order.CorrelationID, domain.SagaStepOrderConfirmation, string(env.EventType), env.EventID, domain.SagaLogCompleted, nil)

	if err := o.repo.TransitionOrder(ctx, order, expected, sagaLog, confirmedOutbox); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil
		}
		return err
	}

	log.Info().Str("order_id", order.ID).Str("transaction_id", payload.TransactionID).Msg("платёж проведён, заказ подтверждён")
	return nil
}

func (o *orchestrator) HandlePaymentFailed(ctx context.Context, env *event.Envelope) error {
	var payload event.PaymentFailedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode payment.failed: %w", err)
	}

	order, err := o.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if order.Status.IsTerminal() {
		log.Warn().Str("order_id", order.ID).Msg("payment.failed: заказ уже в терминальном статусе, игнорируем")
		return nil
	}

	expected := order.Status
	reason := payload.Reason
	reservationID := order.ReservationID

	if err := order.FailAt(domain.SagaStepPaymentProcessing, reason); err != nil {
		return err
	}

	failedEnv, err := event.New(event.TypeOrderFailed, order.ID, order.CorrelationID, env.EventID, event.OrderFailedPayload{
		OrderID:    order.ID,
		Reason:     reason,
		FailedStep: string(domain.SagaStepPaymentProcessing),
	})
	if err != nil {
		return fmt.Errorf("build order.failed: %w", err)
	}
	failedOutbox, err := toOutbox(failedEnv)
	if err != nil {
		return err
	}

	outboxes := []*outboxpkg.Outbox{failedOutbox}
	logStatus := domain.SagaLogFailed

	if reservationID != nil {
		releaseEnv, err := event.New(event.TypeInventoryReleased, order.ID, order.CorrelationID, env.EventID, event.InventoryReleasedPayload{
			OrderID:       order.ID,
			ReservationID: *reservationID,
		})
		if err != nil {
			return fmt.Errorf("build inventory.released: %w", err)
		}
		releaseOutbox, err := toOutbox(releaseEnv)
		if err != nil {
			return err
		}
		outboxes = append(outboxes, releaseOutbox)
		logStatus = domain.SagaLogCompensated
	}

	sagaLog := NewSagaLog(order.ID, order.CorrelationID, domain.SagaStepPaymentProcessing, string(env.EventType), env.EventID, logStatus, &reason)

	if err := o.repo.TransitionOrder(ctx, order, expected, sagaLog, outboxes...); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil
		}
		return err
	}

	log.Info().Str("order_id", order.ID).Str("reason", reason).Bool("compensated_inventory", reservationID != nil).Msg("платёж отклонён, заказ отменён")
	return nil
}

func (o *orchestrator) CompensateStuckOrder(ctx context.Context, order *domain.Order, reason string) error {
	expected := order.Status
	step := order.CurrentStep

	if err := order.FailAt(step, reason); err != nil {
		return err
	}

	failedEnv, err := event.New(event.TypeOrderFailed, order.ID, order.CorrelationID, "", event.OrderFailedPayload{
		OrderID:    order.ID,
		Reason:     reason,
		FailedStep: string(step),
	})
	if err != nil {
		return fmt.Errorf("build order.failed: %w", err)
	}
	failedOutbox, err := toOutbox(failedEnv)
	if err != nil {
		return err
	}

	outboxes := []*outboxpkg.Outbox{failedOutbox}
	logStatus := domain.SagaLogFailed

	if order.ReservationID != nil {
		releaseEnv, err := event.New(event.TypeInventoryReleased, order.ID, order.CorrelationID, failedEnv.EventID, event.InventoryReleasedPayload{
			OrderID:       order.ID,
			ReservationID: *order.ReservationID,
		})
		if err != nil {
			return fmt.Errorf("build inventory.released: %w", err)
		}
		releaseOutbox, err := toOutbox(releaseEnv)
		if err != nil {
			return err
		}
		outboxes = append(outboxes, releaseOutbox)
		logStatus = domain.SagaLogCompensated
	}

	sagaLog := NewSagaLog(order.ID, order.CorrelationID, step, "saga.timeout", failedEnv.EventID, logStatus, &reason)

	if err := o.repo.TransitionOrder(ctx, order, expected, sagaLog, outboxes...); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil
		}
		return err
	}

	log := logger.FromContext(ctx)
	log.Warn().Str("order_id", order.ID).Str("step", string(step)).Str("reason", reason).Msg("зависшая сага скомпенсирована таймаут-воркером")
	return nil
}

func orderPlacedPayload(order *domain.Order) event.OrderPlacedPayload {
	items := make([]event.Item, len(order.Items))
	for i, it := range order.Items {
		items[i] = event.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.UnitPrice.Amount}
	}
	return event.OrderPlacedPayload{
		CustomerID:      order.CustomerID,
		Items:           items,
		TotalAmount:     order.TotalAmount.Amount,
		Currency:        order.TotalAmount.Currency,
		ShippingAddress: order.ShippingAddress,
	}
}

func inventoryReserveRequestedPayload(order *domain.Order) event.InventoryReserveRequestedPayload {
	items := make([]event.Item, len(order.Items))
	for i, it := range order.Items {
		items[i] = event.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.UnitPrice.Amount}
	}
	return event.InventoryReserveRequestedPayload{OrderID: order.ID, Items: items}
}

// toOutbox сериализует конверт события в запись outbox с routing key,
// равным типу события (routing key по умолчанию = event_type).
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
