package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/shipping/internal/carrier"
	"github.com/sagacore/order-saga/services/shipping/internal/domain"
	"github.com/sagacore/order-saga/services/shipping/internal/repository"
)

const aggregateType = "shipping"

// Handler обрабатывает order.confirmed для Shipping Service:
// идемпотентное планирование отгрузки, без ответа, ожидаемого Orchestrator
// (shipping.scheduled — терминальное наблюдаемое событие, а не шаг,
// участвующий в компенсациях: компенсируются только inventory и payment).
type Handler interface {
	// HandleOrderConfirmed планирует отгрузку по подтверждённому заказу.
	// Идемпотентен по order_id: повторная доставка того же order.confirmed
	// не создаёт вторую отгрузку.
	HandleOrderConfirmed(ctx context.Context, env *event.Envelope) error
}

type handler struct {
	shipments repository.ShipmentRepository
	repo      CommandRepository
	carrier   carrier.Client
}

// NewHandler создаёт обработчик команд Shipping Service.
func NewHandler(shipments repository.ShipmentRepository, repo CommandRepository, c carrier.Client) Handler {
	return &handler{shipments: shipments, repo: repo, carrier: c}
}

func (h *handler) HandleOrderConfirmed(ctx context.Context, env *event.Envelope) error {
	var payload event.OrderConfirmedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode order.confirmed: %w", err)
	}

	log := logger.FromContext(ctx)

	existing, err := h.shipments.GetByOrderID(ctx, payload.OrderID)
	if err != nil && !errors.Is(err, domain.ErrShipmentNotFound) {
		return err
	}
	if existing != nil {
		log.Info().Str("order_id", payload.OrderID).Msg("order.confirmed: отгрузка уже существует, пропускаем (дубликат)")
		return nil
	}

	resp, err := h.carrier.Schedule(ctx, payload.OrderID, payload.ShippingAddress)
	if err != nil {
		return fmt.Errorf("carrier schedule: %w", err)
	}

	var shipment *domain.Shipment
	if resp.Scheduled {
		shipment = domain.NewScheduledShipment(payload.OrderID, env.CorrelationID, payload.ShippingAddress, resp.TrackingNumber, h.carrier.EstimatedDelivery())
	} else {
		shipment = domain.NewFailedShipment(payload.OrderID, env.CorrelationID, payload.ShippingAddress, resp.Reason)
	}
	shipment.ID = uuid.New().String()
	if err := shipment.Validate(); err != nil {
		return err
	}

	reply, err := h.replyEnvelope(env, shipment)
	if err != nil {
		return err
	}
	replyOutbox, err := toOutbox(reply)
	if err != nil {
		return err
	}

	if err := h.repo.CreateAndEmit(ctx, shipment, replyOutbox); err != nil {
		if errors.Is(err, domain.ErrDuplicateShipment) {
			log.Info().Str("order_id", payload.OrderID).Msg("order.confirmed: гонка на создании отгрузки, пропускаем")
			return nil
		}
		return err
	}

	log.Info().Str("order_id", shipment.OrderID).Str("shipment_id", shipment.ID).Str("status", string(shipment.Status)).
		Str("tracking_number", shipment.TrackingNumber).Msg("отгрузка запланирована")
	return nil
}

func (h *handler) replyEnvelope(env *event.Envelope, shipment *domain.Shipment) (*event.Envelope, error) {
	if shipment.Status == domain.ShipmentStatusScheduled {
		return event.New(event.TypeShippingScheduled, shipment.OrderID, env.CorrelationID, env.EventID, event.ShippingScheduledPayload{
			OrderID:           shipment.OrderID,
			ShippingID:        shipment.ID,
			EstimatedDelivery: *shipment.EstimatedDelivery,
			ShippingAddress:   shipment.ShippingAddress,
		})
	}
	return event.New(event.TypeShippingFailed, shipment.OrderID, env.CorrelationID, env.EventID, event.ShippingFailedPayload{
		OrderID: shipment.OrderID,
		Reason:  shipment.FailureReason,
	})
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
