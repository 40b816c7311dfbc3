// Package domain содержит бизнес-сущность Shipping Service.
package domain

import "errors"

// Доменные ошибки Shipping Service.
var (
	// ErrShipmentNotFound — отгрузка не найдена.
	ErrShipmentNotFound = errors.New("отгрузка не найдена")

	// ErrInvalidOrderID — пустой идентификатор заказа.
	ErrInvalidOrderID = errors.New("order_id обязателен")

	// ErrInvalidShippingAddress — пустой адрес доставки.
	ErrInvalidShippingAddress = errors.New("адрес доставки не может быть пустым")

	// ErrDuplicateShipment — отгрузка по этому order_id уже существует и
	// обрабатывается конкурентно (гонка между двумя обработчиками
	// order.confirmed).
	ErrDuplicateShipment = errors.New("отгрузка по этому заказу уже существует")
)
