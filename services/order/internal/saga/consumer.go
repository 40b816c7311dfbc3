package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/eventbus"
	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/order/internal/domain"
)

// ReplyConsumer подписывает Orchestrator на события-ответы участников саги:
// inventory.reserved / inventory.reserve.failed / payment.processed /
// payment.failed. Каждый обработчик идемпотентен (см. orchestrator.go), так
// что at-least-once доставка шины событий не нарушает семантику саги.
type ReplyConsumer struct {
	bus          *eventbus.Bus
	orchestrator Orchestrator
	queuePrefix  string
	maxRetries   int
}

// NewReplyConsumer создаёт консьюмер ответов для Saga Orchestrator.
// queuePrefix входит в имя каждой очереди ("<prefix>.<routing key>"), так что
// очереди этого сервиса не совпадают с очередями других сервисов на той же шине.
func NewReplyConsumer(bus *eventbus.Bus, orchestrator Orchestrator, queuePrefix string, maxRetries int) *ReplyConsumer {
	return &ReplyConsumer{bus: bus, orchestrator: orchestrator, queuePrefix: queuePrefix, maxRetries: maxRetries}
}

// Start объявляет одну очередь на тип события и запускает их потребление.
// Возвращает ошибку, если объявление/биндинг какой-либо очереди не удалось.
func (c *ReplyConsumer) Start(ctx context.Context) error {
	subscriptions := []struct {
		routingKey string
		handler    eventbus.Handler
	}{
		{string(event.TypeInventoryReserved), c.handle(c.orchestrator.HandleInventoryReserved)},
		{string(event.TypeInventoryReserveFailed), c.handle(c.orchestrator.HandleInventoryReserveFailed)},
		{string(event.TypePaymentProcessed), c.handle(c.orchestrator.HandlePaymentProcessed)},
		{string(event.TypePaymentFailed), c.handle(c.orchestrator.HandlePaymentFailed)},
	}

	for _, sub := range subscriptions {
		queueName := fmt.Sprintf("%s.%s", c.queuePrefix, sub.routingKey)
		if err := c.bus.Subscribe(ctx, sub.routingKey, queueName, sub.handler, c.maxRetries); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.routingKey, err)
		}
	}

	logger.Info().Str("prefix", c.queuePrefix).Int("subscriptions", len(subscriptions)).Msg("saga reply consumer started")
	return nil
}

// handle adapts an Orchestrator method taking a raw Envelope into an
// eventbus.Handler, tagging the context with the event's correlation id for
// log propagation. A reply referencing an unknown order is logged and
// acknowledged: retrying cannot make the order appear, and bouncing the
// message through the backoff cycle would only end in the DLQ.
func (c *ReplyConsumer) handle(fn func(ctx context.Context, env *event.Envelope) error) eventbus.Handler {
	return func(ctx context.Context, env *event.Envelope) error {
		ctx = logger.NewContextWithIDs(ctx, "", env.CorrelationID)
		if err := fn(ctx, env); err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				log := logger.FromContext(ctx)
				log.Warn().
					Str("event_id", env.EventID).
					Str("event_type", string(env.EventType)).
					Msg("событие ссылается на несуществующий заказ, пропускаем")
				return nil
			}
			return err
		}
		return nil
	}
}
