package domain

import "time"

// SagaLogStatus — состояние записи в append-only журнале саги.
type SagaLogStatus string

const (
	SagaLogStarted     SagaLogStatus = "started"
	SagaLogCompleted   SagaLogStatus = "completed"
	SagaLogFailed      SagaLogStatus = "failed"
	SagaLogCompensated SagaLogStatus = "compensated"
)

// SagaLog — одна запись о переходе шага саги. Append-only: для каждого
// заказа записи образуют полностью упорядоченную причинную историю, у
// каждого started есть не более одного соответствующего completed/failed.
type SagaLog struct {
	ID            string
	OrderID       string
	CorrelationID string
	Step          SagaStep
	EventType     string
	EventID       string
	Status        SagaLogStatus
	Error         *string
	CreatedAt     time.Time
}
