package saga

import (
	"context"
	"fmt"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/eventbus"
	"github.com/sagacore/order-saga/pkg/logger"
)

// CommandConsumer подписывает Shipping Service на order.confirmed с шины
// событий, зеркаля services/inventory/internal/saga.CommandConsumer
// со стороны другого участника.
type CommandConsumer struct {
	bus         *eventbus.Bus
	handler     Handler
	queuePrefix string
	maxRetries  int
}

// NewCommandConsumer создаёт консьюмер команд Shipping Service.
func NewCommandConsumer(bus *eventbus.Bus, handler Handler, queuePrefix string, maxRetries int) *CommandConsumer {
	return &CommandConsumer{bus: bus, handler: handler, queuePrefix: queuePrefix, maxRetries: maxRetries}
}

// Start объявляет очередь на order.confirmed и запускает её потребление.
// queuePrefix входит в имя очереди ("<prefix>.order.confirmed"), так что она
// не совпадает с очередями других сервисов на той же шине.
func (c *CommandConsumer) Start(ctx context.Context) error {
	queueName := fmt.Sprintf("%s.%s", c.queuePrefix, event.TypeOrderConfirmed)
	if err := c.bus.Subscribe(ctx, string(event.TypeOrderConfirmed), queueName, c.handle(c.handler.HandleOrderConfirmed), c.maxRetries); err != nil {
		return fmt.Errorf("subscribe %s: %w", event.TypeOrderConfirmed, err)
	}

	logger.Info().Str("prefix", c.queuePrefix).Msg("shipping command consumer started")
	return nil
}

func (c *CommandConsumer) handle(fn func(ctx context.Context, env *event.Envelope) error) eventbus.Handler {
	return func(ctx context.Context, env *event.Envelope) error {
		ctx = logger.NewContextWithIDs(ctx, "", env.CorrelationID)
		return fn(ctx, env)
	}
}
