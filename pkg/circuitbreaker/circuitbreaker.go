// Package circuitbreaker предоставляет Circuit Breaker для защиты от каскадных сбоев.
// Используется клиентами внешних коллабораторов (симулятор платёжного шлюза и т.п.)
// для быстрого отказа, когда коллаборатор стабильно недоступен.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, вызовы проходят
//   - Open: коллаборатор недоступен, вызовы отклоняются мгновенно (без ожидания timeout)
//   - Half-Open: пробный период, пропускаем часть вызовов для проверки восстановления
//
// Использование:
//
//	cb := circuitbreaker.New("payment-gateway")
//	resp, err := circuitbreaker.Execute(cb, func() (*gateway.Response, error) {
//	    return gateway.Charge(ctx, req)
//	})
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sagacore/order-saga/pkg/logger"
)

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // Макс. запросов в Half-Open состоянии (по умолчанию 1)
	Interval     time.Duration // Интервал сброса счётчика в Closed (по умолчанию 60s)
	Timeout      time.Duration // Время в Open до перехода в Half-Open (по умолчанию 30s)
	FailureRatio float64       // Доля ошибок для перехода в Open (по умолчанию 0.5)
	MinRequests  uint32        // Мин. запросов для расчёта ratio (по умолчанию 5)
}

// DefaultSettings возвращает настройки по умолчанию.
// Оптимизированы для коллабораторов с быстрым восстановлением (платёжный шлюз).
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrOpen возвращается вместо обёрнутой ошибки, когда breaker находится в состоянии Open.
var ErrOpen = gobreaker.ErrOpenState

// ErrTooManyRequests возвращается, когда в Half-Open уже выполняется MaxRequests пробных вызовов.
var ErrTooManyRequests = gobreaker.ErrTooManyRequests

// Classifier решает, должна ли ошибка учитываться как сбой Circuit Breaker.
// Бизнес-отказы (спец. ошибка домена, например карта отклонена) НЕ должны открывать
// breaker — только транзитные инфраструктурные сбои (таймаут, недоступность шлюза).
type Classifier func(err error) bool

// Breaker — обёртка над gobreaker с логированием и generic-исполнением.
type Breaker struct {
	cb         *gobreaker.CircuitBreaker[any]
	name       string
	classifier Classifier
}

// New создаёт новый Circuit Breaker с настройками и классификатором по умолчанию.
// По умолчанию любая ненулевая ошибка считается сбоем — используйте
// NewWithSettings с собственным классификатором, если нужно отличать
// бизнес-ошибки от инфраструктурных.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings(), AlwaysFailure)
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками и классификатором.
func NewWithSettings(name string, s Settings, classifier Classifier) *Breaker {
	if classifier == nil {
		classifier = AlwaysFailure
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ")
			}
		},
	})

	return &Breaker{cb: cb, name: name, classifier: classifier}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// AlwaysFailure — классификатор по умолчанию: любая ошибка — сбой.
func AlwaysFailure(error) bool { return true }

// Execute выполняет fn через Circuit Breaker. Если breaker открыт, fn не вызывается
// и возвращается ErrOpen. Ошибки, для которых classifier(err) == false, не учитываются
// в статистике breaker (не приближают его к открытию), но всё равно возвращаются вызывающему.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var businessErr error

	result, cbErr := b.cb.Execute(func() (any, error) {
		val, err := fn()
		if err != nil && !b.classifier(err) {
			// Бизнес-ошибка: не учитываем в breaker, но прокидываем вызывающему.
			businessErr = err
			return val, nil
		}
		return val, err
	})

	if businessErr != nil {
		var zero T
		if v, ok := result.(T); ok {
			return v, businessErr
		}
		return zero, businessErr
	}

	if cbErr != nil {
		var zero T
		return zero, cbErr
	}

	v, _ := result.(T)
	return v, nil
}

// IsOpen сообщает, был ли вызов отклонён из-за открытого breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
