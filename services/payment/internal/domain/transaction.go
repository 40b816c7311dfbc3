// Package domain содержит бизнес-сущности Payment Service: Transaction
// (списание по заказу) и Refund (возврат по завершённой транзакции) —
// разделённые сущности с собственными жизненными циклами.
package domain

import "time"

// TransactionStatus — статус транзакции списания.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

// IsTerminal возвращает true для статусов, из которых транзакция больше не меняется
// шлюзом (refunded достигается отдельным потоком возврата, а не шлюзом).
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusFailed || s == TransactionStatusRefunded
}

// IdempotencyKeyForOrder возвращает ключ идемпотентности транзакции по заказу.
func IdempotencyKeyForOrder(orderID string) string {
	return "payment_" + orderID
}

// Transaction — списание средств по заказу. Один заказ — ровно одна транзакция
// (order_id уникален), идентифицируемая также по idempotency_key при повторной
// доставке события payment.requested.
type Transaction struct {
	ID               string
	OrderID          string
	CorrelationID    string // correlation_id саги, для ответных событий вне контекста входящей команды
	IdempotencyKey   string
	Amount           int64
	Currency         string
	Status           TransactionStatus
	GatewayReference string // внешний reference, присваивается симулятором шлюза при успехе
	ErrorCode        string // стабильный код ошибки для payment.failed (см. gateway.ErrCodePaymentFailed)
	ErrorMessage     string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	UpdatedAt        time.Time
}

// NewTransaction создаёт транзакцию в статусе processing — первый шаг двухфазной
// схемы списания: бизнес-строка создаётся ДО вызова шлюза.
func NewTransaction(orderID string, amount int64, currency string) *Transaction {
	now := time.Now()
	return &Transaction{
		OrderID:        orderID,
		IdempotencyKey: IdempotencyKeyForOrder(orderID),
		Amount:         amount,
		Currency:       currency,
		Status:         TransactionStatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Complete переводит транзакцию в completed с указанием gateway reference.
func (t *Transaction) Complete(gatewayReference string) {
	now := time.Now()
	t.Status = TransactionStatusCompleted
	t.GatewayReference = gatewayReference
	t.ProcessedAt = &now
	t.UpdatedAt = now
}

// Fail переводит транзакцию в failed с кодом и текстом ошибки шлюза.
func (t *Transaction) Fail(errorCode, errorMessage string) {
	now := time.Now()
	t.Status = TransactionStatusFailed
	t.ErrorCode = errorCode
	t.ErrorMessage = errorMessage
	t.ProcessedAt = &now
	t.UpdatedAt = now
}

// MarkRefunded переводит завершённую транзакцию в refunded. Вызывается только
// после успешного создания компенсирующей записи Refund.
func (t *Transaction) MarkRefunded() error {
	if t.Status != TransactionStatusCompleted {
		return ErrTransactionNotCompleted
	}
	t.Status = TransactionStatusRefunded
	t.UpdatedAt = time.Now()
	return nil
}

// Validate проверяет корректность полей перед созданием транзакции.
func (t *Transaction) Validate() error {
	if t.OrderID == "" {
		return ErrInvalidOrderID
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if t.Currency == "" {
		return ErrInvalidCurrency
	}
	return nil
}
