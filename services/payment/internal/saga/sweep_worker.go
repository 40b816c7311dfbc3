package saga

import (
	"context"
	"time"

	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
	"github.com/sagacore/order-saga/services/payment/internal/gateway"
	"github.com/sagacore/order-saga/services/payment/internal/repository"
)

// SweepWorkerConfig задаёт параметры поиска зависших транзакций.
type SweepWorkerConfig struct {
	// PollInterval — периодичность опроса GetStuckProcessing.
	PollInterval time.Duration
	// StuckAfter — транзакция считается зависшей, если создана раньше
	// этого срока и всё ещё в processing.
	StuckAfter time.Duration
	// BatchSize — сколько зависших транзакций закрывать за один проход.
	BatchSize int
}

// DefaultSweepWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultSweepWorkerConfig() SweepWorkerConfig {
	return SweepWorkerConfig{
		PollInterval: 30 * time.Second,
		StuckAfter:   2 * time.Minute,
		BatchSize:    50,
	}
}

// SweepWorker периодически ищет транзакции, застрявшие в processing
// (процесс упал между CreateProcessing и Finalize — результат шлюза
// потерян), переводит их в failed и кладёт payment.failed в outbox, чтобы
// сага заказа не ждала ответ вечно.
type SweepWorker struct {
	transactions repository.TransactionRepository
	repo         CommandRepository
	cfg          SweepWorkerConfig
}

// NewSweepWorker создаёт воркер зависших транзакций Payment Service.
func NewSweepWorker(transactions repository.TransactionRepository, repo CommandRepository, cfg SweepWorkerConfig) *SweepWorker {
	return &SweepWorker{transactions: transactions, repo: repo, cfg: cfg}
}

// Run запускает воркер и блокирует выполнение до отмены контекста.
func (w *SweepWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Dur("poll_interval", w.cfg.PollInterval).Dur("stuck_after", w.cfg.StuckAfter).Msg("запуск payment sweep worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("остановка payment sweep worker")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	stuck, err := w.transactions.GetStuckProcessing(ctx, w.cfg.StuckAfter, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("ошибка поиска зависших транзакций")
		return
	}
	if len(stuck) == 0 {
		return
	}

	log.Warn().Int("count", len(stuck)).Msg("найдены зависшие транзакции, закрываем как failed")

	for _, tx := range stuck {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.fail(ctx, tx); err != nil {
			log.Error().Err(err).Str("transaction_id", tx.ID).Msg("ошибка закрытия зависшей транзакции")
		}
	}
}

// fail переводит транзакцию в failed и атомарно кладёт payment.failed в
// outbox. causation_id пуст: команда, вызвавшая списание, утрачена вместе с
// упавшим обработчиком.
func (w *SweepWorker) fail(ctx context.Context, tx *domain.Transaction) error {
	tx.Fail(gateway.ErrCodePaymentFailed, "payment processing timed out")

	reply, err := event.New(event.TypePaymentFailed, tx.OrderID, tx.CorrelationID, "", event.PaymentFailedPayload{
		OrderID:   tx.OrderID,
		Reason:    tx.ErrorMessage,
		ErrorCode: tx.ErrorCode,
	})
	if err != nil {
		return err
	}
	ob, err := toOutbox(reply)
	if err != nil {
		return err
	}

	if err := w.repo.Finalize(ctx, tx, ob); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Warn().
		Str("order_id", tx.OrderID).
		Str("transaction_id", tx.ID).
		Msg("зависшая транзакция закрыта как failed, отправлен payment.failed")
	return nil
}
