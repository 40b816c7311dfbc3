package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sagacore/order-saga/pkg/event"
)

// =============================================================================
// Моки для тестов Outbox Worker
// =============================================================================

// mockOutboxRepository — мок OutboxRepository.
type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, o *Outbox) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOutboxRepository) CreateTx(tx *gorm.DB, o *Outbox) error {
	args := m.Called(tx, o)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Outbox), args.Error(1)
}

func (m *mockOutboxRepository) MarkPublished(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, recordErr error, maxRetries int) error {
	args := m.Called(ctx, id, recordErr, maxRetries)
	return args.Error(0)
}

func (m *mockOutboxRepository) RetryFailed(ctx context.Context, limit int) (int64, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// mockPublisher — мок Publisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, env *event.Envelope, routingKey string) error {
	args := m.Called(ctx, env, routingKey)
	return args.Error(0)
}

// =============================================================================
// Тесты OutboxWorker
// =============================================================================

func newTestEnvelopePayload(t *testing.T) []byte {
	t.Helper()
	env, err := event.New(event.TypeOrderConfirmed, "order-456", "corr-1", "", event.OrderConfirmedPayload{OrderID: "order-456"})
	require.NoError(t, err)
	body, err := env.Marshal()
	require.NoError(t, err)
	return body
}

func TestOutboxWorker_ProcessSingle_Success(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	worker := NewOutboxWorker(outboxRepo, publisher, DefaultWorkerConfig(), "test")

	record := &Outbox{
		ID:         "outbox-123",
		EventType:  string(event.TypeOrderConfirmed),
		RoutingKey: string(event.TypeOrderConfirmed),
		Payload:    newTestEnvelopePayload(t),
	}

	publisher.On("Publish", ctx, mock.AnythingOfType("*event.Envelope"), record.RoutingKey).Return(nil)
	outboxRepo.On("MarkPublished", ctx, "outbox-123").Return(nil)

	err := worker.ProcessSingle(ctx, record)

	require.NoError(t, err)
	publisher.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
}

func TestOutboxWorker_ProcessSingle_PublishError(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	cfg := DefaultWorkerConfig()
	worker := NewOutboxWorker(outboxRepo, publisher, cfg, "test")

	record := &Outbox{
		ID:         "outbox-123",
		EventType:  string(event.TypeOrderConfirmed),
		RoutingKey: string(event.TypeOrderConfirmed),
		Payload:    newTestEnvelopePayload(t),
	}

	sendErr := errors.New("event bus unavailable")
	publisher.On("Publish", ctx, mock.AnythingOfType("*event.Envelope"), record.RoutingKey).Return(sendErr)
	outboxRepo.On("MarkFailed", ctx, "outbox-123", sendErr, cfg.MaxRetries).Return(nil)

	err := worker.ProcessSingle(ctx, record)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event bus unavailable")
	publisher.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
	outboxRepo.AssertNotCalled(t, "MarkPublished")
}

func TestOutboxWorker_ProcessOutbox_BatchProcessing(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	cfg := WorkerConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: 5}
	worker := NewOutboxWorker(outboxRepo, publisher, cfg, "test")

	records := []*Outbox{
		{ID: "outbox-1", RoutingKey: "order.confirmed", Payload: newTestEnvelopePayload(t)},
		{ID: "outbox-2", RoutingKey: "order.confirmed", Payload: newTestEnvelopePayload(t)},
	}

	outboxRepo.On("GetPending", ctx, cfg.BatchSize).Return(records, nil)
	publisher.On("Publish", ctx, mock.AnythingOfType("*event.Envelope"), "order.confirmed").Return(nil).Times(2)
	outboxRepo.On("MarkPublished", ctx, "outbox-1").Return(nil)
	outboxRepo.On("MarkPublished", ctx, "outbox-2").Return(nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxWorker_ProcessOutbox_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	cfg := DefaultWorkerConfig()
	worker := NewOutboxWorker(outboxRepo, publisher, cfg, "test")

	bad := &Outbox{ID: "outbox-bad", RoutingKey: "order.confirmed", Payload: []byte("not json")}

	outboxRepo.On("GetPending", ctx, cfg.BatchSize).Return([]*Outbox{bad}, nil)
	outboxRepo.On("MarkFailed", ctx, "outbox-bad", mock.Anything, 0).Return(nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish")
}

func TestOutboxWorker_ProcessOutbox_Empty(t *testing.T) {
	ctx := context.Background()
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	worker := NewOutboxWorker(outboxRepo, publisher, DefaultWorkerConfig(), "test")

	outboxRepo.On("GetPending", ctx, mock.AnythingOfType("int")).Return([]*Outbox{}, nil)

	worker.processOutbox(ctx)

	outboxRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish")
}

func TestOutboxWorker_Run_ContextCancel(t *testing.T) {
	outboxRepo := new(mockOutboxRepository)
	publisher := new(mockPublisher)

	cfg := WorkerConfig{PollInterval: 50 * time.Millisecond, BatchSize: 10, MaxRetries: 5, CleanupInterval: time.Hour, CleanupRetain: 168 * time.Hour}
	worker := NewOutboxWorker(outboxRepo, publisher, cfg, "test")

	ctx, cancel := context.WithCancel(context.Background())

	outboxRepo.On("GetPending", mock.Anything, cfg.BatchSize).Return([]*Outbox{}, nil)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker не остановился после отмены context")
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()

	assert.Equal(t, 1*time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
}
