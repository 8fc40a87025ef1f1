package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.crudcast.dev/internal/crud"
)

// capturingPublisher records published events. Hooks publish from their own
// goroutine, so tests wait on the published channel before asserting.
type capturingPublisher struct {
	mu        sync.Mutex
	events    []Event
	err       error
	published chan struct{}
}

func newCapturingPublisher(err error) *capturingPublisher {
	return &capturingPublisher{err: err, published: make(chan struct{}, 8)}
}

func (p *capturingPublisher) Publish(ctx context.Context, event Event) error {
	defer func() { p.published <- struct{}{} }()
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) await(t *testing.T) []Event {
	t.Helper()
	select {
	case <-p.published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not complete")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func TestEventSubject(t *testing.T) {
	event := Event{Entity: "users", Operation: "create"}
	if got := event.Subject(); got != "crudcast.users.create" {
		t.Errorf("Subject = %q", got)
	}
}

func TestHookPublishesEvent(t *testing.T) {
	publisher := newCapturingPublisher(nil)
	hook := Hook(publisher, "users")

	data := crud.Entity{"id": "7", "firstName": "Bill"}
	hook(context.Background(), crud.OpCreate, "7", data)

	events := publisher.await(t)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	event := events[0]
	if event.Entity != "users" || event.Operation != "create" || event.EntityID != "7" {
		t.Errorf("event = %+v", event)
	}
	if event.ID == "" {
		t.Error("event id missing")
	}
	if event.OccurredAt.IsZero() {
		t.Error("occurredAt missing")
	}
	if event.Data["firstName"] != "Bill" {
		t.Errorf("data = %v", event.Data)
	}
}

func TestHookDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	publisher := &blockedPublisher{release: release, done: make(chan struct{})}
	hook := Hook(publisher, "users")

	returned := make(chan struct{})
	go func() {
		hook(context.Background(), crud.OpCreate, "7", nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("hook waited on the publisher")
	}

	close(release)
	select {
	case <-publisher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish never happened")
	}
}

type blockedPublisher struct {
	release <-chan struct{}
	done    chan struct{}
}

func (p *blockedPublisher) Publish(ctx context.Context, event Event) error {
	<-p.release
	close(p.done)
	return nil
}

func (p *blockedPublisher) Close() error { return nil }

func TestHookSurvivesCancelledRequestContext(t *testing.T) {
	publisher := newCapturingPublisher(nil)
	hook := Hook(publisher, "users")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hook(ctx, crud.OpDelete, "7", nil)

	events := publisher.await(t)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Operation != "delete" {
		t.Errorf("operation = %q", events[0].Operation)
	}
}

func TestHookSwallowsPublishFailure(t *testing.T) {
	publisher := newCapturingPublisher(errors.New("broker down"))
	hook := Hook(publisher, "users")

	// Must not panic or propagate; the write already committed.
	hook(context.Background(), crud.OpUpdate, "7", crud.Entity{"id": "7"})
	publisher.await(t)
}

func TestEventEncoding(t *testing.T) {
	event := Event{
		ID:         "evt-1",
		Entity:     "users",
		Operation:  "update",
		EntityID:   "7",
		Data:       crud.Entity{"firstName": "Bill"},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := encode(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["entityId"] != "7" || decoded["operation"] != "update" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestEventEncodingOmitsNilData(t *testing.T) {
	data, err := encode(Event{ID: "evt-1", Entity: "users", Operation: "delete"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["data"]; present {
		t.Errorf("data field must be omitted: %v", decoded)
	}
}

func TestNewDisabledFeed(t *testing.T) {
	publisher, err := New(context.Background(), Config{Type: FeedTypeNone})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if publisher != nil {
		t.Errorf("publisher = %v, want nil", publisher)
	}
}

func TestNewUnknownFeedType(t *testing.T) {
	if _, err := New(context.Background(), Config{Type: "kafka"}); err == nil {
		t.Error("unknown feed type must fail")
	}
}
