// Package domain содержит бизнес-сущности Payment Service.
package domain

import "errors"

// Доменные ошибки Payment Service.
var (
	// ErrTransactionNotFound — транзакция не найдена.
	ErrTransactionNotFound = errors.New("транзакция не найдена")

	// ErrTransactionNotCompleted — возврат возможен только для завершённой транзакции.
	ErrTransactionNotCompleted = errors.New("транзакция не находится в статусе completed")

	// ErrRefundAlreadyExists — по транзакции уже выполнен возврат.
	ErrRefundAlreadyExists = errors.New("возврат по транзакции уже выполнен")

	// ErrInvalidAmount — некорректная сумма.
	ErrInvalidAmount = errors.New("сумма не может быть отрицательной")

	// ErrInvalidOrderID — пустой идентификатор заказа.
	ErrInvalidOrderID = errors.New("order_id обязателен")

	// ErrInvalidTransactionID — пустой идентификатор транзакции.
	ErrInvalidTransactionID = errors.New("transaction_id обязателен")

	// ErrInvalidCurrency — не указана валюта.
	ErrInvalidCurrency = errors.New("currency обязательна")

	// ErrDuplicateTransaction — транзакция с таким idempotency_key уже существует
	// и обрабатывается конкурентно (гонка между двумя обработчиками payment.requested).
	ErrDuplicateTransaction = errors.New("транзакция с таким ключом идемпотентности уже существует")
)
