package domain

import "time"

// RefundStatus — статус возврата. Шлюз-симулятор не отклоняет возвраты, поэтому
// единственный достигаемый статус — completed; pending
// существует для единообразия со статусной моделью Transaction.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
)

// Refund — компенсирующий возврат по завершённой транзакции.
type Refund struct {
	ID            string
	TransactionID string
	OrderID       string
	Amount        int64
	Reason        string
	Status        RefundStatus
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// NewCompletedRefund создаёт возврат сразу в статусе completed — шлюз-симулятор
// возвраты не отклоняет.
func NewCompletedRefund(transactionID, orderID string, amount int64, reason string) *Refund {
	now := time.Now()
	return &Refund{
		TransactionID: transactionID,
		OrderID:       orderID,
		Amount:        amount,
		Reason:        reason,
		Status:        RefundStatusCompleted,
		CreatedAt:     now,
		ProcessedAt:   &now,
	}
}

// Validate проверяет корректность полей перед созданием возврата.
func (r *Refund) Validate() error {
	if r.TransactionID == "" {
		return ErrInvalidTransactionID
	}
	if r.OrderID == "" {
		return ErrInvalidOrderID
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
