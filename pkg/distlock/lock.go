// Package distlock предоставляет распределённую блокировку лидера на базе
// Redis SETNX. Outbox Worker без claim-семантики на строках опубликовал бы
// каждую запись дважды при двух репликах сервиса, поэтому вместо
// `SELECT ... FOR UPDATE SKIP LOCKED` используется
// один держатель лока на ключ "distlock:outbox-<service>", который переизбирается
// при потере соединения/истечении TTL, так что в любой момент только один
// экземпляр воркера опрашивает outbox конкретного сервиса.
package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sagacore/order-saga/pkg/logger"
)

// ErrNotHeld возвращается, если releasing/renewing лока, который больше не
// принадлежит этому держателю (истёк TTL и его перехватил кто-то другой).
var ErrNotHeld = errors.New("distlock: lock not held by this holder")

// Lock — держатель одной именованной блокировки.
type Lock struct {
	client   *redis.Client
	key      string
	holderID string
	ttl      time.Duration
}

// New создаёт держателя блокировки с уникальным holderID (не захватывает лок).
func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:   client,
		key:      "distlock:" + key,
		holderID: uuid.New().String(),
		ttl:      ttl,
	}
}

// TryAcquire пытается захватить лок атомарно через SET NX PX. Возвращает
// false без ошибки, если лок уже удерживается кем-то другим.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holderID, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Renew продлевает TTL лока, если он всё ещё принадлежит этому держателю.
// Использует Lua-скрипт для атомарной проверки владельца + EXPIRE.
func (l *Lock) Renew(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
	res, err := script.Run(ctx, l.client, []string{l.key}, l.holderID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release отпускает лок, только если его всё ещё держит этот holderID.
func (l *Lock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.holderID).Int()
	return err
}

// RunWhileHeld blocks running fn as long as the lock stays acquired,
// retrying acquisition on a fixed interval when it is held elsewhere, and
// renewing at half the TTL while it holds the lock. fn is expected to itself
// respect ctx cancellation (e.g. the outbox poll loop); RunWhileHeld returns
// when ctx is cancelled.
func (l *Lock) RunWhileHeld(ctx context.Context, retryInterval time.Duration, fn func(ctx context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}

		acquired, err := l.TryAcquire(ctx)
		if err != nil {
			logger.Error().Err(err).Str("key", l.key).Msg("distlock: acquire failed")
			sleep(ctx, retryInterval)
			continue
		}
		if !acquired {
			sleep(ctx, retryInterval)
			continue
		}

		logger.Info().Str("key", l.key).Str("holder", l.holderID).Msg("distlock: acquired leadership")
		runCtx, cancel := context.WithCancel(ctx)
		renewDone := make(chan struct{})

		go l.renewLoop(runCtx, cancel, renewDone)

		fn(runCtx)

		cancel()
		<-renewDone
		_ = l.Release(context.Background())

		if ctx.Err() != nil {
			return
		}
	}
}

func (l *Lock) renewLoop(ctx context.Context, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Renew(ctx); err != nil {
				logger.Warn().Err(err).Str("key", l.key).Msg("distlock: lost leadership")
				cancel()
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
