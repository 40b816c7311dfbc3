// Package eventbus реализует транспорт саги поверх RabbitMQ (AMQP 0-9-1):
// один durable topic exchange для доменных событий, одна dead-letter
// exchange, durable quorum очереди на потребителя, prefetch=1 и
// republish-with-backoff при ошибке обработчика.
//
// Топология: exchange "saga_events", DLX "saga_events_dlx",
// backoff min(2^retry_count, 60s); wildcard-подписки republish-ят с
// фактическим routing key доставки, а не с шаблоном подписки. Это
// единственный транспорт с нужной топологией: у Kafka нет ни exchange,
// ни DLX, ни per-message reject-to-DLQ.
package eventbus

import (
	"context"
	"fmt"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sagacore/order-saga/pkg/config"
	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/pkg/metrics"
)

// HeaderRetryCount — заголовок AMQP-сообщения с числом уже выполненных попыток.
const HeaderRetryCount = "x-retry-count"

// Handler обрабатывает одно доставленное событие. Ошибка означает
// транзитный сбой и запускает retry-with-backoff (см. пакет doc).
// Бизнес-отказы НЕ должны возвращаться как error — они оформляются
// отдельным событием через outbox.
type Handler func(ctx context.Context, env *event.Envelope) error

// DeadLetter — сообщение, извлечённое из dead_letter_queue для осмотра/replay.
type DeadLetter struct {
	Envelope   *event.Envelope
	Headers    map[string]any
	RoutingKey string
}

// Bus — подключение к шине событий саги.
type Bus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  config.EventBusConfig
}

// Connect устанавливает соединение, канал, QoS и объявляет топологию:
// основной exchange, DLX и общую очередь dead_letter_queue.
func Connect(cfg config.EventBusConfig) (*Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchSize, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.ExchangeDeclare(cfg.DLXExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare dlx %s: %w", cfg.DLXExchange, err)
	}

	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, amqp.Table{
		"x-queue-type": "quorum",
	}); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare dlq %s: %w", cfg.DLQQueue, err)
	}

	// Всё, что попало в DLX, независимо от "dlq.<pattern>" ключа, собирается
	// в одну общую очередь.
	if err := ch.QueueBind(cfg.DLQQueue, "#", cfg.DLXExchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind dlq %s: %w", cfg.DLQQueue, err)
	}

	logger.Info().Str("exchange", cfg.Exchange).Msg("connected to event bus")

	return &Bus{conn: conn, ch: ch, cfg: cfg}, nil
}

// Close закрывает канал и соединение.
func (b *Bus) Close() error {
	if err := b.ch.Close(); err != nil {
		return err
	}
	return b.conn.Close()
}

// Publish публикует событие в основной exchange с заданным routing key
// (по умолчанию вызывающий код передаёт string(env.EventType)).
func (b *Bus) Publish(ctx context.Context, env *event.Envelope, routingKey string) error {
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	headers := amqp.Table{
		"event_type":     string(env.EventType),
		"event_id":       env.EventID,
		"correlation_id": env.CorrelationID,
		"version":        env.Version,
	}

	// Trace context уезжает вместе с сообщением (traceparent), чтобы
	// потребитель продолжил trace публикатора.
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers[k] = v
	}

	return b.ch.PublishWithContext(ctx, b.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

// Replay republishes an event with fresh headers (no x-retry-count).
func (b *Bus) Replay(ctx context.Context, env *event.Envelope) error {
	logger.Info().Str("event_id", env.EventID).Msg("replaying event")
	return b.Publish(ctx, env, string(env.EventType))
}

// Subscribe declares a durable quorum queue bound to pattern, dead-lettering
// into the bus's DLX with routing key "dlq.<pattern>", and runs the consumer
// loop until ctx is cancelled. maxRetries bounds the retry-then-republish
// cycle described in the package doc before a message is rejected to the DLQ.
//
// pattern may be an exact routing key (e.g. "payment.requested") or a topic
// wildcard (e.g. "order.*", "*.failed"); on retry the message is
// republished with the routing key the delivery actually carried, so a
// wildcard consumer's retries keep landing on a consumer bound to that same
// key. The subscribed pattern is used only when the delivery carries an
// empty routing key.
func (b *Bus) Subscribe(ctx context.Context, pattern, queueName string, handler Handler, maxRetries int) error {
	q, err := b.ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    b.cfg.DLXExchange,
		"x-dead-letter-routing-key": "dlq." + pattern,
		"x-queue-type":              "quorum",
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	if err := b.ch.QueueBind(q.Name, pattern, b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queueName, pattern, err)
	}

	deliveries, err := b.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	go b.consumeLoop(ctx, deliveries, pattern, handler, maxRetries)

	logger.Info().Str("queue", queueName).Str("pattern", pattern).Msg("subscribed")
	return nil
}

func (b *Bus) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, pattern string, handler Handler, maxRetries int) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.process(ctx, d, pattern, handler, maxRetries)
		}
	}
}

func (b *Bus) process(ctx context.Context, d amqp.Delivery, pattern string, handler Handler, maxRetries int) {
	env, err := event.Unmarshal(d.Body)
	if err != nil {
		// Programmer error — malformed payload, never requeue, never retry.
		logger.Error().Err(err).Msg("malformed event payload, dropping")
		_ = d.Ack(false)
		return
	}

	ctx = extractTraceContext(ctx, d.Headers)

	retryCount := retryCountOf(d.Headers)
	log := logger.With().
		Str("event_id", env.EventID).
		Str("event_type", string(env.EventType)).
		Int("retry_count", retryCount).
		Logger()

	if err := handler(ctx, env); err != nil {
		log.Error().Err(err).Msg("handler failed")
		b.retryOrDeadLetter(ctx, d, env, pattern, retryCount, maxRetries)
		return
	}

	_ = d.Ack(false)
}

func (b *Bus) retryOrDeadLetter(ctx context.Context, d amqp.Delivery, env *event.Envelope, pattern string, retryCount, maxRetries int) {
	retryCount++

	if retryCount <= maxRetries {
		backoff := backoffFor(retryCount, b.cfg.MaxBackoff)
		metrics.EventBusRetriedTotal.WithLabelValues(string(env.EventType)).Inc()
		logger.Info().Int("attempt", retryCount).Int("max", maxRetries).Dur("backoff", backoff).Msg("retrying event")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			_ = d.Nack(false, false)
			return
		}

		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers[HeaderRetryCount] = retryCount

		routingKey := d.RoutingKey
		if routingKey == "" {
			routingKey = pattern
		}

		if err := b.ch.PublishWithContext(ctx, b.cfg.Exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         d.Body,
			Timestamp:    time.Now(),
		}); err != nil {
			logger.Error().Err(err).Msg("failed to republish for retry")
		}

		_ = d.Ack(false)
		return
	}

	metrics.EventBusDeadLetteredTotal.WithLabelValues(string(env.EventType)).Inc()
	logger.Error().Str("event_id", env.EventID).Int("retries", retryCount).Msg("max retries exceeded, routing to DLQ")
	_ = d.Nack(false, false)
}

// backoffFor returns min(2^retryCount, maxBackoff).
func backoffFor(retryCount int, maxBackoff time.Duration) time.Duration {
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}
	seconds := math.Pow(2, float64(retryCount))
	d := time.Duration(seconds) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// extractTraceContext восстанавливает trace context публикатора из
// AMQP-заголовков сообщения (traceparent).
func extractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func retryCountOf(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[HeaderRetryCount].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// DrainDLQ pulls up to limit messages off dead_letter_queue for inspection,
// acknowledging each as it is read.
func (b *Bus) DrainDLQ(ctx context.Context, limit int) ([]DeadLetter, error) {
	out := make([]DeadLetter, 0, limit)

	for i := 0; i < limit; i++ {
		d, ok, err := b.ch.Get(b.cfg.DLQQueue, false)
		if err != nil {
			return out, fmt.Errorf("get from dlq: %w", err)
		}
		if !ok {
			break
		}

		env, err := event.Unmarshal(d.Body)
		if err != nil {
			_ = d.Ack(false)
			continue
		}

		headers := map[string]any{}
		for k, v := range d.Headers {
			headers[k] = v
		}

		out = append(out, DeadLetter{Envelope: env, Headers: headers, RoutingKey: d.RoutingKey})
		_ = d.Ack(false)
	}

	return out, nil
}
