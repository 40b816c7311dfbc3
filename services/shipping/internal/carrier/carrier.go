// Package carrier симулирует внешнюю службу генерации транспортных
// накладных: симулированная задержка, генерация трек-номера и отказ по
// невалидному адресу доставки или маркеру FAIL_SHIPMENT в идентификаторе
// заказа.
package carrier

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/config"
)

// ErrCodeShippingFailed — стабильный код ошибки для shipping.failed.
const ErrCodeShippingFailed = "SHIPPING_FAILED"

// Response — результат обращения к симулятору перевозчика.
type Response struct {
	Scheduled      bool
	TrackingNumber string // присваивается только при Scheduled
	Reason         string // причина отказа, только при !Scheduled
}

// Client генерирует трек-номер и срок доставки через симулятор внешней
// службы перевозки.
type Client interface {
	Schedule(ctx context.Context, orderID, shippingAddress string) (Response, error)
	// EstimatedDelivery возвращает срок доставки от текущего момента.
	EstimatedDelivery() time.Time
}

type simulatedClient struct {
	cfg config.ShippingConfig
	rng *rand.Rand
}

// New создаёт симулятор службы доставки.
func New(cfg config.ShippingConfig) Client {
	return &simulatedClient{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Schedule симулирует планирование отгрузки: задержка
// ShippingConfig.SimulatedLatency, затем отказ для явно невалидного адреса
// или, реже, по ShippingConfig.SimulatedFailRate (по умолчанию 0 —
// планирование отклоняется только по невалидному адресу).
func (c *simulatedClient) Schedule(ctx context.Context, orderID, shippingAddress string) (Response, error) {
	select {
	case <-time.After(c.cfg.SimulatedLatency):
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	if strings.TrimSpace(shippingAddress) == "" || strings.EqualFold(shippingAddress, "Invalid Address") {
		return Response{Scheduled: false, Reason: "invalid shipping address"}, nil
	}
	if strings.Contains(orderID, "FAIL_SHIPMENT") {
		return Response{Scheduled: false, Reason: "simulated external shipping failure: logistic error"}, nil
	}
	if c.cfg.SimulatedFailRate > 0 && c.rng.Float64() < c.cfg.SimulatedFailRate {
		return Response{Scheduled: false, Reason: "carrier unavailable"}, nil
	}

	return Response{Scheduled: true, TrackingNumber: trackingNumber()}, nil
}

func (c *simulatedClient) EstimatedDelivery() time.Time {
	days := c.cfg.EstimatedDeliveryDays
	if days <= 0 {
		days = 4
	}
	return time.Now().Add(time.Duration(days) * 24 * time.Hour)
}

// trackingNumber генерирует трек-номер вида TRK<12 hex>.
func trackingNumber() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TRK" + strings.ToUpper(hex[:12])
}
