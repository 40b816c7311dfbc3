package domain

import "errors"

// Доменные ошибки Order Service.
var (
	ErrOrderNotFound          = errors.New("заказ не найден")
	ErrEmptyOrderItems        = errors.New("заказ должен содержать хотя бы одну позицию")
	ErrInvalidCustomerID      = errors.New("некорректный идентификатор покупателя")
	ErrInvalidShippingAddress = errors.New("адрес доставки не может быть пустым")
	ErrInvalidProductID       = errors.New("некорректный идентификатор товара")
	ErrInvalidQuantity        = errors.New("количество должно быть больше нуля")
	ErrInvalidPrice           = errors.New("цена не может быть отрицательной")
	ErrOrderCannotCancel      = errors.New("заказ нельзя отменить в текущем статусе")
	ErrOrderInvalidTransition = errors.New("недопустимый переход статуса заказа")
	ErrOrderSagaActive        = errors.New("сага заказа активна, отмена невозможна")
	ErrDuplicateCorrelationID = errors.New("заказ с таким correlation_id уже существует")
)
