package domain

import "time"

// ReservationStatus — статус резервирования.
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusReleased ReservationStatus = "released"
	ReservationStatusExpired  ReservationStatus = "expired"
)

// ReservationItem — позиция резервирования; копия запрошенных товара и
// количества на момент резервирования, не зависит от последующих изменений
// в каталоге.
type ReservationItem struct {
	ProductID string
	Quantity  int32
}

// Reservation — резервирование склада по заказу. Не более одного активного
// резервирования на order_id; освобождение идемпотентно.
type Reservation struct {
	ID            string
	OrderID       string
	CorrelationID string
	Status        ReservationStatus
	Items         []ReservationItem
	CreatedAt     time.Time
	ReleasedAt    *time.Time
}

// NewActiveReservation создаёт новое активное резервирование. Вызывающий
// код отвечает за присвоение ID.
func NewActiveReservation(orderID, correlationID string, items []ReservationItem) *Reservation {
	return &Reservation{
		OrderID:       orderID,
		CorrelationID: correlationID,
		Status:        ReservationStatusActive,
		Items:         items,
		CreatedAt:     time.Now(),
	}
}

// Release переводит резервирование в released; идемпотентно — повторный
// вызов на уже released резервировании не ошибка.
func (r *Reservation) Release() {
	if r.Status == ReservationStatusReleased {
		return
	}
	now := time.Now()
	r.Status = ReservationStatusReleased
	r.ReleasedAt = &now
}
