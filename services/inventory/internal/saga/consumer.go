package saga

import (
	"context"
	"fmt"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/eventbus"
	"github.com/sagacore/order-saga/pkg/logger"
)

// CommandConsumer подписывает Inventory Service на команды
// inventory.reserve.requested / inventory.released с шины событий,
// зеркаля services/order/internal/saga.ReplyConsumer со
// стороны участника, а не оркестратора.
type CommandConsumer struct {
	bus         *eventbus.Bus
	handler     Handler
	queuePrefix string
	maxRetries  int
}

// NewCommandConsumer создаёт консьюмер команд Inventory Service.
func NewCommandConsumer(bus *eventbus.Bus, handler Handler, queuePrefix string, maxRetries int) *CommandConsumer {
	return &CommandConsumer{bus: bus, handler: handler, queuePrefix: queuePrefix, maxRetries: maxRetries}
}

// Start объявляет одну очередь на тип команды и запускает их потребление.
func (c *CommandConsumer) Start(ctx context.Context) error {
	subscriptions := []struct {
		routingKey string
		handler    eventbus.Handler
	}{
		{string(event.TypeInventoryReserveRequested), c.handle(c.handler.HandleReserveRequested)},
		{string(event.TypeInventoryReleased), c.handle(c.handler.HandleReleased)},
	}

	for _, sub := range subscriptions {
		queueName := fmt.Sprintf("%s.%s", c.queuePrefix, sub.routingKey)
		if err := c.bus.Subscribe(ctx, sub.routingKey, queueName, sub.handler, c.maxRetries); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.routingKey, err)
		}
	}

	logger.Info().Str("prefix", c.queuePrefix).Int("subscriptions", len(subscriptions)).Msg("inventory command consumer started")
	return nil
}

func (c *CommandConsumer) handle(fn func(ctx context.Context, env *event.Envelope) error) eventbus.Handler {
	return func(ctx context.Context, env *event.Envelope) error {
		ctx = logger.NewContextWithIDs(ctx, "", env.CorrelationID)
		return fn(ctx, env)
	}
}
