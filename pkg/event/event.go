// Package event определяет конверт событий саги и типизированные полезные
// нагрузки для каждого типа события: единая структура Envelope с тегом
// EventType и полем Payload, декодируемым по тегу в конкретную
// typed-payload структуру.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type — тип события в саге обработки заказа. Значения — routing key шины событий.
type Type string

const (
	TypeOrderPlaced    Type = "order.placed"
	TypeOrderConfirmed Type = "order.confirmed"
	TypeOrderCancelled Type = "order.cancelled"
	TypeOrderFailed    Type = "order.failed"

	TypeInventoryReserveRequested Type = "inventory.reserve.requested"
	TypeInventoryReserved         Type = "inventory.reserved"
	TypeInventoryReserveFailed    Type = "inventory.reserve.failed"
	TypeInventoryReleased         Type = "inventory.released"

	TypePaymentRequested Type = "payment.requested"
	TypePaymentProcessed Type = "payment.processed"
	TypePaymentFailed    Type = "payment.failed"
	TypePaymentRefunded  Type = "payment.refunded"

	TypeShippingScheduled  Type = "shipping.scheduled"
	TypeShippingDispatched Type = "shipping.dispatched"
	TypeShippingDelivered  Type = "shipping.delivered"
	TypeShippingFailed     Type = "shipping.failed"
)

// Envelope — общий конверт события саги. Каждое событие, независимо от типа,
// несёт эти поля; тип-специфичные данные лежат в Payload в "плоском" виде,
// сериализуемые/десериализуемые вместе с конвертом через json.RawMessage.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Item — позиция заказа в полезной нагрузке события (без типов GORM/domain,
// чтобы пакет event не зависел ни от одного сервиса).
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     int64  `json:"price"`
}

// UnavailableItem — позиция, которой не хватило на складе.
type UnavailableItem struct {
	ProductID string `json:"product_id"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
}

// Типизированные полезные нагрузки. Одна на event_type, имя поля Payload
// в Envelope.Payload соответствует этим структурам при кодировании/декодировании.

type OrderPlacedPayload struct {
	CustomerID      string `json:"customer_id"`
	Items           []Item `json:"items"`
	TotalAmount     int64  `json:"total_amount"`
	Currency        string `json:"currency"`
	ShippingAddress string `json:"shipping_address"`
}

type OrderConfirmedPayload struct {
	OrderID         string `json:"order_id"`
	ShippingAddress string `json:"shipping_address"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderFailedPayload struct {
	OrderID    string `json:"order_id"`
	Reason     string `json:"reason"`
	FailedStep string `json:"failed_step"`
}

type InventoryReserveRequestedPayload struct {
	OrderID string `json:"order_id"`
	Items   []Item `json:"items"`
}

type InventoryReservedPayload struct {
	OrderID       string `json:"order_id"`
	ReservationID string `json:"reservation_id"`
	Items         []Item `json:"items"`
}

type InventoryReserveFailedPayload struct {
	OrderID          string            `json:"order_id"`
	Reason           string            `json:"reason"`
	UnavailableItems []UnavailableItem `json:"unavailable_items"`
}

type InventoryReleasedPayload struct {
	OrderID       string `json:"order_id"`
	ReservationID string `json:"reservation_id"`
}

type PaymentRequestedPayload struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type PaymentProcessedPayload struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

type PaymentFailedPayload struct {
	OrderID   string `json:"order_id"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"error_code,omitempty"`
}

type PaymentRefundedPayload struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	RefundID      string `json:"refund_id"`
	Amount        int64  `json:"amount"`
}

type ShippingScheduledPayload struct {
	OrderID           string    `json:"order_id"`
	ShippingID        string    `json:"shipping_id"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	ShippingAddress   string    `json:"shipping_address"`
}

type ShippingDispatchedPayload struct {
	OrderID        string `json:"order_id"`
	ShippingID     string `json:"shipping_id"`
	TrackingNumber string `json:"tracking_number"`
}

type ShippingDeliveredPayload struct {
	OrderID     string    `json:"order_id"`
	ShippingID  string    `json:"shipping_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type ShippingFailedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// New builds an Envelope, marshaling payload into Envelope.Payload. causationID
// is empty for the saga-initiating order.placed event and for events emitted
// by background workers (saga timeout, payment sweep) that have no triggering
// event.
func New(eventType Type, aggregateID, correlationID, causationID string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", eventType, err)
	}
	return &Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		Timestamp:     time.Now().UTC(),
		Version:       1,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Payload:       raw,
	}, nil
}

// Decode unmarshals the envelope's Payload into dst, which must be a pointer
// to the typed payload struct matching env.EventType.
func (e *Envelope) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// Marshal сериализует конверт в JSON для шины событий/outbox.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal десериализует конверт из JSON, полученного с шины/из outbox.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}
