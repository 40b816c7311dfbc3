// Package service содержит бизнес-логику Order Service поверх Saga Orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/order/internal/domain"
	"github.com/sagacore/order-saga/services/order/internal/repository"
	"github.com/sagacore/order-saga/services/order/internal/saga"
)

// Константы для валидации пагинации.
const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	minPageSize     = 1
)

// OrderService определяет интерфейс бизнес-логики заказов.
type OrderService interface {
	// CreateOrder запускает сагу обработки заказа. Идемпотентность — по
	// correlationKey: если заказ с таким ключом уже существует, возвращается
	// существующий заказ вместо повторного запуска саги.
	CreateOrder(ctx context.Context, customerID, shippingAddress, correlationKey string, items []domain.OrderItem) (*domain.Order, error)

	// GetOrder возвращает заказ по ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders возвращает заказы покупателя с пагинацией.
	ListOrders(ctx context.Context, customerID string, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int64, error)

	// ListSagaLogs возвращает журнал саги заказа в хронологическом порядке.
	ListSagaLogs(ctx context.Context, orderID string) ([]*domain.SagaLog, error)

	// CancelOrder отменяет заказ, пока ни один шаг саги ещё не начался.
	CancelOrder(ctx context.Context, orderID string) error
}

// orderService — реализация OrderService.
type orderService struct {
	repo         repository.OrderRepository
	orchestrator saga.Orchestrator
	sagaRepo     saga.OrchestratorRepository
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(repo repository.OrderRepository, orchestrator saga.Orchestrator, sagaRepo saga.OrchestratorRepository) OrderService {
	return &orderService{repo: repo, orchestrator: orchestrator, sagaRepo: sagaRepo}
}

// CreateOrder валидирует вход, строит доменный заказ и делегирует
// Orchestrator.CreateOrder, который атомарно пишет заказ + стартовый
// SagaLog + команду inventory.reserve.requested в outbox.
func (s *orderService) CreateOrder(ctx context.Context, customerID, shippingAddress, correlationKey string, items []domain.OrderItem) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	if correlationKey != "" {
		existing, err := s.repo.GetByCorrelationID(ctx, correlationKey)
		if err == nil && existing != nil {
			log.Info().Str("order_id", existing.ID).Str("correlation_id", correlationKey).
				Msg("возвращён существующий заказ по correlation_id")
			return existing, nil
		}
		if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, fmt.Errorf("ошибка проверки идемпотентности: %w", err)
		}
	}

	order := &domain.Order{
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		CorrelationID:   correlationKey,
		Items:           items,
	}

	if err := s.orchestrator.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicateCorrelationID) {
			existing, getErr := s.repo.GetByCorrelationID(ctx, order.CorrelationID)
			if getErr == nil {
				return existing, nil
			}
		}
		log.Error().Err(err).Str("customer_id", customerID).Msg("ошибка создания заказа")
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("customer_id", customerID).
		Int64("total_amount", order.TotalAmount.Amount).
		Str("currency", order.TotalAmount.Currency).
		Int("items_count", len(order.Items)).
		Msg("заказ создан, сага запущена")

	return order, nil
}

// GetOrder возвращает заказ по ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения заказа: %w", err)
	}
	return order, nil
}

// ListOrders возвращает заказы покупателя с пагинацией.
func (s *orderService) ListOrders(ctx context.Context, customerID string, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int64, error) {
	page = normalizePage(page)
	pageSize = normalizePageSize(pageSize)
	offset := (page - 1) * pageSize

	orders, total, err := s.repo.ListByCustomerID(ctx, customerID, status, offset, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка заказов: %w", err)
	}
	return orders, total, nil
}

// ListSagaLogs возвращает журнал саги заказа.
func (s *orderService) ListSagaLogs(ctx context.Context, orderID string) ([]*domain.SagaLog, error) {
	logs, err := s.sagaRepo.ListSagaLogs(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала саги: %w", err)
	}
	return logs, nil
}

// CancelOrder отменяет заказ по запросу клиента — только пока сага ещё не
// начала необратимые побочные эффекты (order.CanCancel требует status=pending).
func (s *orderService) CancelOrder(ctx context.Context, orderID string) error {
	log := logger.FromContext(ctx)

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}
		return fmt.Errorf("ошибка получения заказа: %w", err)
	}

	expectedStatus := order.Status
	if err := order.Cancel(); err != nil {
		log.Warn().Str("order_id", orderID).Str("status", string(order.Status)).Msg("попытка отменить заказ в неподходящем статусе")
		return err
	}

	if err := s.repo.UpdateStatus(ctx, orderID, expectedStatus, order.Status); err != nil {
		return fmt.Errorf("ошибка сохранения отмены заказа: %w", err)
	}

	log.Info().Str("order_id", orderID).Msg("заказ отменён")
	return nil
}

// normalizePage нормализует номер страницы. Возвращает минимум 1.
func normalizePage(page int) int {
	if page < 1 {
		return defaultPage
	}
	return page
}

// normalizePageSize нормализует размер страницы в диапазоне [minPageSize, maxPageSize].
func normalizePageSize(pageSize int) int {
	if pageSize < minPageSize {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}
