package domain

import "errors"

// Доменные ошибки Inventory Service.
var (
	ErrProductNotFound     = errors.New("товар не найден")
	ErrInvalidProductName  = errors.New("название товара не может быть пустым")
	ErrInvalidPrice        = errors.New("цена должна быть больше нуля")
	ErrInvalidQuantity     = errors.New("количество не может быть отрицательным")
	ErrReservationNotFound = errors.New("резервирование не найдено")
)
