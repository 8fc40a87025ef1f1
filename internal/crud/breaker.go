package crud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker wrapped around a Model.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open
	MaxRequests uint32

	// Interval over which failure counts are accumulated while closed
	Interval time.Duration

	// Timeout before an open breaker transitions to half-open
	Timeout time.Duration

	// MinRequests before the failure ratio is considered
	MinRequests uint32

	// Ratio of failures that trips the breaker
	Ratio float64
}

// DefaultBreakerConfig matches the webhook mediator defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		MinRequests: 10,
		Ratio:       0.6,
	}
}

// breakerModel decorates a Model with a circuit breaker so a struggling
// store sheds load fast instead of queueing every request onto it.
type breakerModel struct {
	next    Model
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps model in a circuit breaker. While the breaker is open
// every operation fails immediately with gobreaker.ErrOpenState, which the
// router surfaces as a 500 without touching the store.
func WithBreaker(entity string, model Model, cfg BreakerConfig) Model {
	return &breakerModel{
		next: model,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        entity,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cfg.Ratio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				slog.Info("Store circuit breaker state changed",
					"entity", name,
					"from", from.String(),
					"to", to.String())
			},
		}),
	}
}

// isCallerError reports whether err is the caller's fault rather than a
// store failure. Such errors must not count toward the breaker's failure
// ratio, or a burst of bad requests would trip it.
func isCallerError(err error) bool {
	return errors.Is(err, ErrMalformedFilter) || errors.Is(err, ErrConstraintViolation)
}

func execute[T any](b *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var callerErr error
	result, err := b.Execute(func() (any, error) {
		value, err := fn()
		if err != nil && isCallerError(err) {
			callerErr = err
			return nil, nil
		}
		return value, err
	})
	if err == nil {
		err = callerErr
	}
	if err != nil {
		var zero T
		return zero, err
	}
	if result == nil {
		var zero T
		return zero, nil
	}
	return result.(T), nil
}

func (m *breakerModel) GetAll(ctx context.Context, opts Options) ([]Entity, error) {
	return execute(m.breaker, func() ([]Entity, error) {
		return m.next.GetAll(ctx, opts)
	})
}

func (m *breakerModel) GetOne(ctx context.Context, filter Filter, projection Projection) (Entity, error) {
	return execute(m.breaker, func() (Entity, error) {
		return m.next.GetOne(ctx, filter, projection)
	})
}

func (m *breakerModel) Count(ctx context.Context, filter Filter) (int64, error) {
	return execute(m.breaker, func() (int64, error) {
		return m.next.Count(ctx, filter)
	})
}

func (m *breakerModel) AddOne(ctx context.Context, payload Entity) (Entity, error) {
	return execute(m.breaker, func() (Entity, error) {
		return m.next.AddOne(ctx, payload)
	})
}

func (m *breakerModel) UpdateOne(ctx context.Context, filter Filter, payload Entity) (Entity, error) {
	return execute(m.breaker, func() (Entity, error) {
		return m.next.UpdateOne(ctx, filter, payload)
	})
}

func (m *breakerModel) DeleteOne(ctx context.Context, filter Filter) (Entity, error) {
	return execute(m.breaker, func() (Entity, error) {
		return m.next.DeleteOne(ctx, filter)
	})
}
