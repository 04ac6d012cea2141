// Package circuitbreaker защищает исходящие вызовы внешних API
// (платежный шлюз, провайдер сообщений) от каскадных сбоев.
//
//	b := circuitbreaker.New("razorpay")
//	err := b.Execute(ctx, func(ctx context.Context) error { return call(ctx) })
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/vendor-marketplace/pkg/logger"
)

// ErrOpen возвращается без вызова, пока breaker открыт.
var ErrOpen = errors.New("внешний сервис временно недоступен (circuit breaker open)")

// Settings - настройки breaker.
type Settings struct {
	MaxRequests  uint32        // запросов в Half-Open
	Interval     time.Duration // период сброса счетчиков в Closed
	Timeout      time.Duration // время в Open до Half-Open
	FailureRatio float64       // доля ошибок для открытия
	MinRequests  uint32        // минимум запросов для расчета доли
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker оборачивает gobreaker и решает, какие ошибки считать сбоем.
type Breaker struct {
	cb        *gobreaker.CircuitBreaker[struct{}]
	name      string
	isFailure func(error) bool
}

// New создаёт breaker с настройками по умолчанию.
// Любая ошибка, кроме отмены контекста вызывающим, считается сбоем.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings(), nil)
}

// NewWithSettings создаёт breaker. isFailure решает, учитывать ли ошибку;
// ошибки бизнес-уровня (например 4xx шлюза) не должны открывать breaker.
func NewWithSettings(name string, s Settings, isFailure func(error) bool) *Breaker {
	if isFailure == nil {
		isFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logger.With().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Logger()
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

	return &Breaker{cb: cb, name: name, isFailure: isFailure}
}

// Execute выполняет fn через breaker. Ошибка fn возвращается как есть;
// при открытом breaker возвращается ErrOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var callErr error
	_, cbErr := b.cb.Execute(func() (struct{}, error) {
		callErr = fn(ctx)
		if callErr != nil && b.isFailure(callErr) {
			return struct{}{}, callErr
		}
		return struct{}{}, nil
	})

	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return callErr
}

// State возвращает текущее состояние.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}
