package crud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.crudcast.dev/internal/common/metrics"
)

// SlowOperationThreshold defines when a store operation is considered slow
const SlowOperationThreshold = 100 * time.Millisecond

// instrumentedModel decorates a Model with prometheus metrics and slow-query
// logging.
type instrumentedModel struct {
	entity string
	next   Model
}

// Instrumented wraps model so every operation records duration, result
// counts, and logs operations slower than SlowOperationThreshold.
func Instrumented(entity string, model Model) Model {
	return &instrumentedModel{entity: entity, next: model}
}

func instrument[T any](ctx context.Context, entity, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()

	result, err := fn()

	duration := time.Since(start)
	metrics.ModelOperationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())

	if err != nil {
		metrics.ModelOperationTotal.WithLabelValues(entity, operation, classifyError(err)).Inc()
		slog.Error("Store operation failed",
			"entity", entity,
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	} else {
		metrics.ModelOperationTotal.WithLabelValues(entity, operation, "success").Inc()
		if duration > SlowOperationThreshold {
			slog.Warn("Slow store operation",
				"entity", entity,
				"operation", operation,
				"duration_ms", duration.Milliseconds())
		}
	}

	return result, err
}

// classifyError returns a label-safe error type for metrics
func classifyError(err error) string {
	if errors.Is(err, ErrConstraintViolation) {
		return "constraint_violation"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "internal"
}

func (m *instrumentedModel) GetAll(ctx context.Context, opts Options) ([]Entity, error) {
	return instrument(ctx, m.entity, "getAll", func() ([]Entity, error) {
		return m.next.GetAll(ctx, opts)
	})
}

func (m *instrumentedModel) GetOne(ctx context.Context, filter Filter, projection Projection) (Entity, error) {
	return instrument(ctx, m.entity, "getOne", func() (Entity, error) {
		return m.next.GetOne(ctx, filter, projection)
	})
}

func (m *instrumentedModel) Count(ctx context.Context, filter Filter) (int64, error) {
	return instrument(ctx, m.entity, "count", func() (int64, error) {
		return m.next.Count(ctx, filter)
	})
}

func (m *instrumentedModel) AddOne(ctx context.Context, payload Entity) (Entity, error) {
	return instrument(ctx, m.entity, "addOne", func() (Entity, error) {
		return m.next.AddOne(ctx, payload)
	})
}

func (m *instrumentedModel) UpdateOne(ctx context.Context, filter Filter, payload Entity) (Entity, error) {
	return instrument(ctx, m.entity, "updateOne", func() (Entity, error) {
		return m.next.UpdateOne(ctx, filter, payload)
	})
}

func (m *instrumentedModel) DeleteOne(ctx context.Context, filter Filter) (Entity, error) {
	return instrument(ctx, m.entity, "deleteOne", func() (Entity, error) {
		return m.next.DeleteOne(ctx, filter)
	})
}
