// Package service содержит бизнес-логику Payment Service поверх
// TransactionRepository. Само списание и возврат выполняются асинхронно
// обработчиками saga (см. services/payment/internal/saga/handler.go) по
// событиям payment.requested/payment.refunded; этот слой обслуживает только
// HTTP-наблюдение за результатом — read-only поверхность над transactions,
// не участвующая в самой саге.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/repository"
)

// PaymentService определяет интерфейс чтения состояния платежей.
type PaymentService interface {
	// GetTransactionByOrderID возвращает транзакцию списания по заказу.
	GetTransactionByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)

	// GetTransaction возвращает транзакцию по ID.
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// paymentService — реализация PaymentService.
type paymentService struct {
	transactions repository.TransactionRepository
}

// NewPaymentService создаёт сервис чтения состояния платежей.
func NewPaymentService(transactions repository.TransactionRepository) PaymentService {
	return &paymentService{transactions: transactions}
}

func (s *paymentService) GetTransactionByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}
	return tx, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}
	return tx, nil
}
