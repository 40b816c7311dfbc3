package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/gateway"
	"github.com/sagacore/order-saga/services/payment/internal/repository"
)

const aggregateType = "payment"

// Handler обрабатывает команды payment.requested/payment.refunded,
// приходящие с шины событий, и публикует в outbox соответствующий ответ
// (payment.processed/payment.failed/payment.refunded), как
// Order Service.Orchestrator — только без собственного saga log, потому что
// Payment Service участник, а не владелец саги.
type Handler interface {
	// HandlePaymentRequested списывает средства по заказу.
	// Идемпотентен по IdempotencyKeyForOrder(order_id): повторная доставка
	// того же payment.requested не списывает деньги дважды, а переотправляет
	// тот же результат.
	HandlePaymentRequested(ctx context.Context, env *event.Envelope) error

	// HandlePaymentRefunded выполняет компенсирующий возврат по завершённой
	// транзакции (компенсация платёжного шага).
	HandlePaymentRefunded(ctx context.Context, env *event.Envelope) error
}

type handler struct {
	transactions repository.TransactionRepository
	repo         CommandRepository
	gw           gateway.Client
}

// NewHandler создаёт обработчик команд Payment Service.
func NewHandler(transactions repository.TransactionRepository, repo CommandRepository, gw gateway.Client) Handler {
	return &handler{transactions: transactions, repo: repo, gw: gw}
}

func (h *handler) HandlePaymentRequested(ctx context.Context, env *event.Envelope) error {
	var payload event.PaymentRequestedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode payment.requested: %w", err)
	}

	log := logger.FromContext(ctx)
	key := domain.IdempotencyKeyForOrder(payload.OrderID)

	existing, err := h.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return err
	}
	if existing != nil {
		log.Warn().Str("order_id", payload.OrderID).Str("status", string(existing.Status)).
			Msg("payment.requested: транзакция уже существует, переотправляем прошлый результат")
		return h.republish(ctx, env, existing)
	}

	tx := domain.NewTransaction(payload.OrderID, payload.Amount, payload.Currency)
	tx.ID = uuid.New().String()
	tx.CorrelationID = env.CorrelationID
	if err := tx.Validate(); err != nil {
		return err
	}

	if err := h.repo.CreateProcessing(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			log.Warn().Str("order_id", payload.OrderID).Msg("payment.requested: гонка на создании транзакции, перечитываем")
			existing, getErr := h.transactions.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return getErr
			}
			return h.republish(ctx, env, existing)
		}
		return err
	}

	resp, chargeErr := h.gw.Charge(ctx, key, tx.Amount, tx.Currency)
	if chargeErr != nil {
		tx.Fail(gateway.ErrCodePaymentFailed, chargeErr.Error())
	} else if resp.Approved {
		tx.Complete(resp.Reference)
	} else {
		tx.Fail(gateway.ErrCodePaymentFailed, resp.Reason)
	}

	reply, err := h.replyEnvelope(env, tx)
	if err != nil {
		return err
	}
	replyOutbox, err := toOutbox(reply)
	if err != nil {
		return err
	}

	if err := h.repo.Finalize(ctx, tx, replyOutbox); err != nil {
		return err
	}

	log.Info().Str("order_id", tx.OrderID).Str("transaction_id", tx.ID).Str("status", string(tx.Status)).Msg("платёж обработан")
	return nil
}

// republish пересобирает ответное событие из уже сохранённой транзакции и
// кладёт его в outbox без повторного обращения к шлюзу — путь идемпотентного
// повтора payment.requested.
func (h *handler) republish(ctx context.Context, env *event.Envelope, tx *domain.Transaction) error {
	switch tx.Status {
	case domain.TransactionStatusCompleted, domain.TransactionStatusRefunded:
		reply, err := event.New(event.TypePaymentProcessed, tx.OrderID, env.CorrelationID, env.EventID, event.PaymentProcessedPayload{
			OrderID:       tx.OrderID,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
		})
		if err != nil {
			return fmt.Errorf("build payment.processed: %w", err)
		}
		ob, err := toOutbox(reply)
		if err != nil {
			return err
		}
		return h.repo.EmitOnly(ctx, ob)
	case domain.TransactionStatusFailed:
		reply, err := event.New(event.TypePaymentFailed, tx.OrderID, env.CorrelationID, env.EventID, event.PaymentFailedPayload{
			OrderID:   tx.OrderID,
			Reason:    tx.ErrorMessage,
			ErrorCode: tx.ErrorCode,
		})
		if err != nil {
			return fmt.Errorf("build payment.failed: %w", err)
		}
		ob, err := toOutbox(reply)
		if err != nil {
			return err
		}
		return h.repo.EmitOnly(ctx, ob)
	default:
		// processing: предыдущая попытка не успела завершиться (упала между
		// CreateProcessing и Finalize) — sweep-воркер переведёт её в failed;
		// здесь просто пропускаем доставку, не имея результата шлюза.
		log := logger.FromContext(ctx)
		log.Warn().Str("order_id", tx.OrderID).Msg("payment.requested: транзакция всё ещё processing, ожидаем sweep")
		return nil
	}
}

func (h *handler) replyEnvelope(env *event.Envelope, tx *domain.Transaction) (*event.Envelope, error) {
	if tx.Status == domain.TransactionStatusCompleted {
		return event.New(event.TypePaymentProcessed, tx.OrderID, env.CorrelationID, env.EventID, event.PaymentProcessedPayload{
			OrderID:       tx.OrderID,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
		})
	}
	return event.New(event.TypePaymentFailed, tx.OrderID, env.CorrelationID, env.EventID, event.PaymentFailedPayload{
		OrderID:   tx.OrderID,
		Reason:    tx.ErrorMessage,
		ErrorCode: tx.ErrorCode,
	})
}

// HandlePaymentRefunded обрабатывает команду возврата payment.refunded.
// В текущей топологии саги ни один шаг Orchestrator не публикует эту
// команду автоматически — возврат
// инициируется внешним по отношению к саге актором (например, ручной
// отменой уже подтверждённого заказа), поэтому Payment Service лишь
// подписан на неё и остаётся готов её обработать.
func (h *handler) HandlePaymentRefunded(ctx context.Context, env *event.Envelope) error {
	var payload event.PaymentRefundedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("decode payment.refunded command: %w", err)
	}

	log := logger.FromContext(ctx)
	tx, err := h.transactions.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			log.Warn().Str("order_id", payload.OrderID).Msg("payment.refunded: транзакция не найдена, возврат невозможен (платёж не проводился)")
			return nil
		}
		return err
	}

	if tx.Status == domain.TransactionStatusRefunded {
		log.Warn().Str("order_id", payload.OrderID).Msg("payment.refunded: транзакция уже возвращена, игнорируем (дубликат компенсации)")
		return nil
	}
	if tx.Status != domain.TransactionStatusCompleted {
		log.Warn().Str("order_id", payload.OrderID).Str("status", string(tx.Status)).
			Msg("payment.refunded: транзакция не в статусе completed, возврат невозможен")
		return nil
	}

	existingRefund, err := h.transactions.GetCompletedRefundByTransactionID(ctx, tx.ID)
	if err != nil {
		return err
	}
	if existingRefund != nil {
		log.Warn().Str("order_id", payload.OrderID).Msg("payment.refunded: возврат уже выполнен, игнорируем")
		return nil
	}

	resp, err := h.gw.Refund(ctx, tx.ID, tx.Amount)
	if err != nil {
		return fmt.Errorf("gateway refund: %w", err)
	}
	_ = resp

	refund := domain.NewCompletedRefund(tx.ID, tx.OrderID, tx.Amount, "order cancellation")
	refund.ID = payload.RefundID
	if refund.ID == "" {
		refund.ID = uuid.New().String()
	}
	if err := refund.Validate(); err != nil {
		return err
	}

	// Возврат не публикует ответное событие — компенсация применяется
	// молча, поэтому здесь нет записи в outbox (иначе payment.refunded
	// вернулся бы на ту же очередь, на которую подписан этот обработчик).
	if err := h.transactions.CreateRefund(ctx, refund, tx); err != nil {
		if errors.Is(err, domain.ErrTransactionNotCompleted) {
			log.Warn().Str("order_id", payload.OrderID).Msg("payment.refunded: гонка на переходе транзакции, пропускаем")
			return nil
		}
		return err
	}

	log.Info().Str("order_id", tx.OrderID).Str("refund_id", refund.ID).Msg("платёж возвращён")
	return nil
}

// toOutbox сериализует конверт события в запись outbox с routing key, равным
// типу события.
func toOutbox(env *event.Envelope) (*outboxpkg.Outbox, error) {
	body, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", env.EventType, err)
	}
	return &outboxpkg.Outbox{
		ID:            env.EventID,
		AggregateType: aggregateType,
		AggregateID:   env.AggregateID,
		EventType:     string(env.EventType),
		RoutingKey:    string(env.EventType),
		Payload:       body,
		Status:        outboxpkg.StatusPending,
	}, nil
}
