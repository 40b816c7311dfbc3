// Package domain содержит бизнес-сущности и доменные ошибки Inventory
// Service — участника саги, отвечающего за идемпотентное резервирование и
// освобождение складских позиций.
package domain

import (
	"strings"
	"time"
)

// Product — позиция каталога. available_quantity и reserved_quantity
// никогда не уходят в отрицательные значения;
// version используется для CAS-обновления при конкурентном резервировании.
type Product struct {
	ID               string
	Name             string
	Description      string
	PriceMinorUnits  int64
	Currency         string
	AvailableQty     int32
	ReservedQty      int32
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate проверяет поля товара перед созданием.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProductName
	}
	if p.PriceMinorUnits <= 0 {
		return ErrInvalidPrice
	}
	if p.AvailableQty < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// CanReserve сообщает, хватает ли свободного остатка на запрошенное количество.
func (p *Product) CanReserve(quantity int32) bool {
	return p.AvailableQty >= quantity
}
