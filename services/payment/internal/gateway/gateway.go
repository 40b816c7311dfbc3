// Package gateway симулирует внешний платёжный шлюз: фиксированная задержка и
// случайный отказ. Вызовы защищены Circuit
// Breaker (pkg/circuitbreaker), чтобы устойчивая недоступность шлюза не
// блокировала каждый обработчик payment.requested на полную задержку.
package gateway

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/circuitbreaker"
	"github.com/sagacore/order-saga/pkg/config"
)

// Стабильные причины отказа шлюза — пул, из которого симулятор выбирает
// случайную при отказе.
var declineReasons = []string{
	"Insufficient funds",
	"Card declined",
	"Payment gateway timeout",
	"Invalid payment method",
}

// ErrCodePaymentFailed — стабильный код ошибки для payment.failed:
// недоступность шлюза сводится к payment.failed(error_code=PAYMENT_FAILED).
const ErrCodePaymentFailed = "PAYMENT_FAILED"

// Response — результат обращения к шлюзу.
type Response struct {
	Approved  bool
	Reference string // внешний gateway transaction id, только при Approved
	Reason    string // причина отказа, только при !Approved
}

// Client выполняет списания/возвраты через симулятор внешнего шлюза.
type Client interface {
	Charge(ctx context.Context, idempotencyKey string, amountMinorUnits int64, currency string) (Response, error)
	Refund(ctx context.Context, transactionID string, amountMinorUnits int64) (Response, error)
}

type simulatedClient struct {
	cfg     config.GatewayConfig
	breaker *circuitbreaker.Breaker
	rng     *rand.Rand
}

// New создаёт симулятор шлюза, защищённый Circuit Breaker. Breaker никогда
// не видит бизнес-отказов (карта отклонена и т.п.) как сбои — только
// собственно недоступность эмулируемого транспорта (errTransport) открывает
// его: участники не бросают доменные отказы как ошибки, а публикуют их
// как события.
func New(cfg config.GatewayConfig) Client {
	breaker := circuitbreaker.NewWithSettings("payment-gateway", circuitbreaker.Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      cfg.BreakerTimeout,
		FailureRatio: cfg.BreakerFailureRatio,
		MinRequests:  cfg.BreakerMinRequests,
	}, isTransportFailure)

	return &simulatedClient{cfg: cfg, breaker: breaker, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// errTransport помечает сбои симулятора самого транспорта (а не бизнес-отказ
// карты) — единственная ошибка, которая должна учитываться Circuit Breaker.
var errTransport = errors.New("gateway: transport unavailable")

func isTransportFailure(err error) bool {
	return errors.Is(err, errTransport)
}

// Charge симулирует списание: задержка GatewayConfig.SimulatedLatency и
// отказ с вероятностью SimulatedFailRate (по умолчанию 500ms / 20%).
// idempotencyKey не меняет поведение
// симулятора — настоящий шлюз использовал бы его для возврата того же
// результата на повтор; здесь идемпотентность обеспечивается до вызова
// шлюза на уровне строки транзакции (row-level idempotency boundary).
func (c *simulatedClient) Charge(ctx context.Context, idempotencyKey string, amountMinorUnits int64, currency string) (Response, error) {
	return circuitbreaker.Execute(c.breaker, func() (Response, error) {
		select {
		case <-time.After(c.cfg.SimulatedLatency):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}

		if c.rng.Float64() < c.cfg.SimulatedFailRate {
			return Response{Approved: false, Reason: declineReasons[c.rng.Intn(len(declineReasons))]}, nil
		}

		return Response{Approved: true, Reference: "gw_" + uuid.New().String()}, nil
	})
}

// Refund симулирует возврат. Шлюз-симулятор не отклоняет возвраты —
// результат всегда completed.
func (c *simulatedClient) Refund(ctx context.Context, transactionID string, amountMinorUnits int64) (Response, error) {
	return circuitbreaker.Execute(c.breaker, func() (Response, error) {
		select {
		case <-time.After(c.cfg.SimulatedLatency):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
		return Response{Approved: true, Reference: "gwrefund_" + uuid.New().String()}, nil
	})
}
