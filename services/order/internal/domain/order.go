// Package domain содержит бизнес-сущности и доменные ошибки Order Service —
// владельца саги, управляющей заказом от размещения до подтверждения/отказа.
package domain

import (
	"strings"
	"time"
)

// OrderStatus — статус заказа в системе. Ровно те значения, которых касается
// саговая машина состояний; терминальные — confirmed, cancelled, failed.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusInventoryReserved  OrderStatus = "inventory_reserved"
	OrderStatusPaymentProcessing  OrderStatus = "payment_processing"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusFailed             OrderStatus = "failed"
)

// IsTerminal возвращает true для статусов, из которых саги больше не продолжаются.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled || s == OrderStatusFailed
}

// SagaStep — текущий шаг саги заказа, используется в SagaLog и для выбора
// следующей команды, которую должен отправить оркестратор.
type SagaStep string

const (
	SagaStepOrderPlaced          SagaStep = "order_placed"
	SagaStepInventoryReservation SagaStep = "inventory_reservation"
	SagaStepPaymentProcessing    SagaStep = "payment_processing"
	SagaStepOrderConfirmation    SagaStep = "order_confirmation"
)

// Money — денежная сумма с валютой.
// Хранит сумму в минимальных единицах (копейки, центы) для избежания проблем с плавающей точкой.
type Money struct {
	Currency string
	Amount   int64
}

// Multiply умножает сумму на количество.
func (m Money) Multiply(quantity int32) Money {
	return Money{Currency: m.Currency, Amount: m.Amount * int64(quantity)}
}

// Order — заказ в системе и агрегат, которым управляет Saga Orchestrator.
// Доменная сущность без зависимостей от инфраструктуры (GORM, HTTP).
type Order struct {
	ID              string
	CustomerID      string
	Items           []OrderItem
	TotalAmount     Money
	ShippingAddress string
	Status          OrderStatus
	CurrentStep     SagaStep
	CorrelationID   string // уникален и неизменен на весь срок саги
	ReservationID   *string
	TransactionID   *string
	ShippingID      *string
	ErrorMessage    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate проверяет корректность полей заказа перед запуском саги.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return ErrInvalidCustomerID
	}
	if strings.TrimSpace(o.ShippingAddress) == "" {
		return ErrInvalidShippingAddress
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CalculateTotal пересчитывает общую сумму заказа из позиций: total_amount
// равна сумме price*quantity в момент создания. Валюта берётся из первой позиции.
func (o *Order) CalculateTotal() {
	if len(o.Items) == 0 {
		o.TotalAmount = Money{Amount: 0}
		return
	}

	currency := o.Items[0].UnitPrice.Currency
	var total int64
	for i := range o.Items {
		total += o.Items[i].Total().Amount
	}
	o.TotalAmount = Money{Currency: currency, Amount: total}
}

// CanTransition сообщает, разрешён ли переход из текущего статуса в newStatus.
// Соответствует happy-path и путям компенсации саги:
// pending → inventory_reserved → confirmed, с выходом в failed из любого
// нетерминального состояния; в cancelled — только из pending.
func (o *Order) CanTransition(newStatus OrderStatus) bool {
	if o.Status.IsTerminal() {
		return false
	}
	switch o.Status {
	case OrderStatusPending:
		return newStatus == OrderStatusInventoryReserved || newStatus == OrderStatusFailed || newStatus == OrderStatusCancelled
	case OrderStatusInventoryReserved:
		return newStatus == OrderStatusPaymentProcessing || newStatus == OrderStatusConfirmed || newStatus == OrderStatusFailed
	case OrderStatusPaymentProcessing:
		return newStatus == OrderStatusConfirmed || newStatus == OrderStatusFailed
	default:
		return false
	}
}

// ReserveInventory переводит заказ в inventory_reserved после успешного
// резервирования склада; сохраняет reservation_id (инвариант iii).
func (o *Order) ReserveInventory(reservationID string) error {
	if o.Status != OrderStatusPending {
		return ErrOrderInvalidTransition
	}
	o.Status = OrderStatusInventoryReserved
	o.CurrentStep = SagaStepPaymentProcessing
	o.ReservationID = &reservationID
	o.UpdatedAt = time.Now()
	return nil
}

// StartPaymentProcessing отмечает, что команда payment.requested отправлена;
// статус остаётся inventory_reserved до ответа платёжного участника, только
// current_step продвигается, чтобы SagaLog отражал, какая команда в полёте.
func (o *Order) StartPaymentProcessing() {
	o.CurrentStep = SagaStepPaymentProcessing
	o.UpdatedAt = time.Now()
}

// Confirm подтверждает заказ после успешного платежа (инвариант iv:
// transaction_id не равен nil в confirmed).
func (o *Order) Confirm(transactionID string) error {
	if o.Status != OrderStatusInventoryReserved {
		return ErrOrderInvalidTransition
	}
	o.Status = OrderStatusConfirmed
	o.CurrentStep = SagaStepOrderConfirmation
	o.TransactionID = &transactionID
	o.UpdatedAt = time.Now()
	return nil
}

// FailAt помечает заказ как неудачный на указанном шаге саги с причиной;
// допустимо из любого нетерминального статуса (компенсация может прийти
// как из inventory reservation, так и из payment processing).
func (o *Order) FailAt(step SagaStep, reason string) error {
	if o.Status.IsTerminal() {
		return ErrOrderInvalidTransition
	}
	o.Status = OrderStatusFailed
	o.CurrentStep = step
	o.ErrorMessage = &reason
	o.UpdatedAt = time.Now()
	return nil
}

// CanCancel сообщает, можно ли отменить заказ по запросу клиента — только
// пока ни один шаг саги ещё не начал необратимые побочные эффекты.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}

// Cancel отменяет заказ по запросу клиента.
func (o *Order) Cancel() error {
	if !o.CanCancel() {
		return ErrOrderCannotCancel
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// OrderItem — позиция заказа.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int32
	UnitPrice   Money
}

// Validate проверяет корректность полей позиции заказа.
func (oi *OrderItem) Validate() error {
	if strings.TrimSpace(oi.ProductID) == "" {
		return ErrInvalidProductID
	}
	if oi.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if oi.UnitPrice.Amount < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Total возвращает общую стоимость позиции (количество * цена за единицу).
func (oi *OrderItem) Total() Money {
	return oi.UnitPrice.Multiply(oi.Quantity)
}
