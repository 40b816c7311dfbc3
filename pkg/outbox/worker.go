package outbox

import (
	"context"
	"time"

	"github.com/sagacore/order-saga/pkg/distlock"
	"github.com/sagacore/order-saga/pkg/event"
	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/pkg/metrics"
)

// Publisher — интерфейс публикации конверта на шину событий.
// Позволяет замокать eventbus.Bus в unit-тестах (Dependency Inversion).
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope, routingKey string) error
}

// WorkerConfig — настройки Outbox Worker.
type WorkerConfig struct {
	// PollInterval — интервал между опросами таблицы outbox.
	PollInterval time.Duration

	// BatchSize — количество записей за один запрос.
	BatchSize int

	// MaxRetries — максимальное количество попыток отправки, после
	// которого запись переводится в status=failed (см. MarkFailed).
	MaxRetries int

	// CleanupInterval — периодичность удаления опубликованных записей.
	CleanupInterval time.Duration

	// CleanupRetain — срок хранения опубликованных записей перед удалением.
	CleanupRetain time.Duration
}

// DefaultWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:    1 * time.Second,
		BatchSize:       100,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupRetain:   168 * time.Hour,
	}
}

// OutboxWorker читает записи из outbox и публикует их на шину событий.
// Реализует гарантию "at-least-once" доставки. Запускается только на
// экземпляре, владеющем распределённым локом (см. pkg/distlock), чтобы
// несколько реплик сервиса не публиковали одну и ту же запись дважды.
type OutboxWorker struct {
	repo      OutboxRepository
	publisher Publisher
	cfg       WorkerConfig
	name      string // Имя для идентификации в логах (order / inventory / payment / shipping)
}

// NewOutboxWorker создаёт новый Outbox Worker.
// name — имя сервиса для логов (например, "order" или "payment").
func NewOutboxWorker(repo OutboxRepository, publisher Publisher, cfg WorkerConfig, name string) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		name:      name,
	}
}

// Run запускает Worker и блокирует выполнение до отмены контекста.
// Предполагается, что вызывающий код уже удерживает distlock.Lock для
// этого сервиса (через RunWhileHeld) — сам Worker лок не захватывает.
func (w *OutboxWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("name", w.name).
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("запуск outbox worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("name", w.name).Msg("остановка outbox worker")
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanupPublished(ctx)
		}
	}
}

// RunWithLock оборачивает Run в distlock.Lock.RunWhileHeld: Worker активен
// только пока этот экземпляр удерживает лидерство "outbox-<name>".
func (w *OutboxWorker) RunWithLock(ctx context.Context, lock *distlock.Lock, retryInterval time.Duration) {
	lock.RunWhileHeld(ctx, retryInterval, w.Run)
}

// cleanupPublished удаляет опубликованные записи outbox старше CleanupRetain.
func (w *OutboxWorker) cleanupPublished(ctx context.Context) {
	log := logger.FromContext(ctx)

	before := time.Now().Add(-w.cfg.CleanupRetain)
	deleted, err := w.repo.DeleteProcessedBefore(ctx, before)
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("ошибка очистки outbox")
		return
	}

	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Str("name", w.name).Msg("очистка опубликованных записей outbox")
	}
}

// processOutbox обрабатывает пачку записей в статусе pending.
func (w *OutboxWorker) processOutbox(ctx context.Context) {
	log := logger.FromContext(ctx)

	records, err := w.repo.GetPending(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("name", w.name).Msg("ошибка чтения outbox")
		return
	}

	if len(records) == 0 {
		return
	}

	log.Debug().Int("count", len(records)).Str("name", w.name).Msg("обработка записей outbox")

	for _, record := range records {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.publish(ctx, record)
	}
}

// publish декодирует payload записи в конверт события и публикует его на шину.
func (w *OutboxWorker) publish(ctx context.Context, record *Outbox) {
	log := logger.FromContext(ctx)

	env, err := event.Unmarshal(record.Payload)
	if err != nil {
		// Повреждённый payload — ретраи не помогут, сразу в failed.
		log.Error().Err(err).Str("outbox_id", record.ID).Msg("повреждённый payload outbox, пропуск")
		_ = w.repo.MarkFailed(ctx, record.ID, err, 0)
		return
	}

	if err := w.publisher.Publish(ctx, env, record.RoutingKey); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Str("routing_key", record.RoutingKey).
			Msg("ошибка публикации на шину событий")

		metrics.OutboxFailedTotal.WithLabelValues(w.name, record.EventType).Inc()
		if markErr := w.repo.MarkFailed(ctx, record.ID, err, w.cfg.MaxRetries); markErr != nil {
			log.Error().Err(markErr).Str("outbox_id", record.ID).Msg("ошибка пометки outbox как failed")
		}
		return
	}

	metrics.OutboxPublishedTotal.WithLabelValues(w.name, record.EventType).Inc()

	if err := w.repo.MarkPublished(ctx, record.ID); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Msg("ошибка пометки outbox как опубликованной")
		return
	}

	log.Debug().
		Str("outbox_id", record.ID).
		Str("routing_key", record.RoutingKey).
		Str("event_type", record.EventType).
		Msg("событие опубликовано на шину")
}

// ProcessSingle обрабатывает одну запись outbox синхронно (используется в тестах).
func (w *OutboxWorker) ProcessSingle(ctx context.Context, record *Outbox) error {
	env, err := event.Unmarshal(record.Payload)
	if err != nil {
		_ = w.repo.MarkFailed(ctx, record.ID, err, 0)
		return err
	}

	if err := w.publisher.Publish(ctx, env, record.RoutingKey); err != nil {
		_ = w.repo.MarkFailed(ctx, record.ID, err, w.cfg.MaxRetries)
		return err
	}

	return w.repo.MarkPublished(ctx, record.ID)
}
