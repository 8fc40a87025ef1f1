// Package changefeed publishes entity change events for successful CRUD
// writes. Publishers exist for NATS JetStream (external or embedded) and
// AWS SQS; publishing is best-effort and never fails the originating
// request.
package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go.crudcast.dev/internal/common/metrics"
	"go.crudcast.dev/internal/crud"
)

// Event describes one committed write.
type Event struct {
	ID         string      `json:"id"`
	Entity     string      `json:"entity"`
	Operation  string      `json:"operation"` // create, update, delete
	EntityID   string      `json:"entityId"`
	Data       crud.Entity `json:"data,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Subject returns the event's routing subject, "crudcast.<entity>.<op>".
func (e Event) Subject() string {
	return "crudcast." + e.Entity + "." + e.Operation
}

// Publisher delivers change events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Hook adapts a publisher into a crud.WriteHook for one entity type.
// Publishing runs in its own goroutine so the HTTP response never waits on
// the broker; failures are counted and logged, never surfaced, since the
// write already committed.
func Hook(publisher Publisher, entity string) crud.WriteHook {
	return func(ctx context.Context, op crud.Operation, id string, data crud.Entity) {
		event := Event{
			ID:         uuid.NewString(),
			Entity:     entity,
			Operation:  string(op),
			EntityID:   id,
			Data:       data,
			OccurredAt: time.Now().UTC(),
		}

		// The request context may be cancelled the moment the response is
		// written; the event still has to go out.
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)

		go func() {
			defer cancel()
			if err := publisher.Publish(publishCtx, event); err != nil {
				metrics.ChangeEventsPublished.WithLabelValues(entity, event.Operation, "failed").Inc()
				slog.Error("Change event publish failed",
					"entity", entity,
					"operation", event.Operation,
					"entityId", id,
					"error", err)
				return
			}
			metrics.ChangeEventsPublished.WithLabelValues(entity, event.Operation, "success").Inc()
		}()
	}
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
