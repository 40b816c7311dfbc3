package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/sagacore/order-saga/pkg/logger"
)

// TimeoutWorkerConfig задаёт параметры периодического поиска зависших саг.
type TimeoutWorkerConfig struct {
	// PollInterval — периодичность опроса GetStuckOrders.
	PollInterval time.Duration
	// StuckAfter — заказ считается зависшим, если не обновлялся дольше этого.
	StuckAfter time.Duration
	// BatchSize — сколько зависших заказов компенсировать за один проход.
	BatchSize int
}

// DefaultTimeoutWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultTimeoutWorkerConfig() TimeoutWorkerConfig {
	return TimeoutWorkerConfig{
		PollInterval: 30 * time.Second,
		StuckAfter:   2 * time.Minute,
		BatchSize:    50,
	}
}

// TimeoutWorker периодически ищет заказы, застрявшие в нетерминальном
// статусе дольше StuckAfter (команда участнику потерялась, участник упал
// между commit и publish, и т.п.), и компенсирует их через Orchestrator —
// страхует сагу от бесконечного ожидания ответа, который никогда не придёт.
type TimeoutWorker struct {
	repo         OrchestratorRepository
	orchestrator Orchestrator
	cfg          TimeoutWorkerConfig
}

// NewTimeoutWorker создаёт таймаут-воркер саги.
func NewTimeoutWorker(repo OrchestratorRepository, orchestrator Orchestrator, cfg TimeoutWorkerConfig) *TimeoutWorker {
	return &TimeoutWorker{repo: repo, orchestrator: orchestrator, cfg: cfg}
}

// Run запускает воркер и блокирует выполнение до отмены контекста.
func (w *TimeoutWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Dur("poll_interval", w.cfg.PollInterval).Dur("stuck_after", w.cfg.StuckAfter).Msg("запуск saga timeout worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("остановка saga timeout worker")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TimeoutWorker) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	stuckSince := time.Now().Add(-w.cfg.StuckAfter)

	orders, err := w.repo.GetStuckOrders(ctx, stuckSince, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("ошибка поиска зависших заказов")
		return
	}
	if len(orders) == 0 {
		return
	}

	log.Warn().Int("count", len(orders)).Msg("найдены зависшие саги, компенсируем")

	reason := fmt.Sprintf("saga timeout: no progress for %s", w.cfg.StuckAfter)
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.orchestrator.CompensateStuckOrder(ctx, order, reason); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("ошибка компенсации зависшей саги")
		}
	}
}
