package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bdos/pkg/circuitbreaker"
	"bdos/pkg/trace"
)

type mockStore struct {
	pending    []*Event
	failed     []*Event
	byID       map[int64]*Event
	sent       []int64
	dead       []int64
	failCalls  []int64
	failStatus string
	listErr    error
}

func (m *mockStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.pending, nil
}

func (m *mockStore) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	return m.failed, nil
}

func (m *mockStore) GetEventByID(ctx context.Context, eventID int64) (*Event, error) {
	e, ok := m.byID[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	return e, nil
}

func (m *mockStore) MarkAsSent(ctx context.Context, eventID int64) error {
	m.sent = append(m.sent, eventID)
	return nil
}

func (m *mockStore) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) (string, error) {
	m.failCalls = append(m.failCalls, eventID)
	if m.failStatus == "" {
		return StatusPending, nil
	}
	return m.failStatus, nil
}

func (m *mockStore) MarkAsDead(ctx context.Context, eventID int64) error {
	m.dead = append(m.dead, eventID)
	return nil
}

type mockPublisher struct {
	err       error
	published []string
	traceIDs  []string
	dlq       []string
}

func (m *mockPublisher) PublishWithContext(ctx context.Context, routingKey string, body json.RawMessage) error {
	m.traceIDs = append(m.traceIDs, trace.FromContext(ctx))
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, routingKey)
	return nil
}

func (m *mockPublisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error {
	m.dlq = append(m.dlq, routingKey)
	return nil
}

func event(id int64, key, payload string) *Event {
	return &Event{ID: id, RoutingKey: key, Payload: json.RawMessage(payload), Status: StatusPending}
}

func TestNextAttempt(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		wantStatus string
		wantDelay  time.Duration
	}{
		{"first failure", 1, 5, StatusPending, 5 * time.Second},
		{"third failure", 3, 5, StatusPending, 15 * time.Second},
		{"exhausted", 5, 5, StatusFailed, 0},
		{"beyond max", 7, 5, StatusFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, next := NextAttempt(tt.retryCount, tt.maxRetries, now)
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if tt.wantStatus == StatusFailed {
				if next != nil {
					t.Errorf("next = %v, want nil", next)
				}
				return
			}
			if next == nil || next.Sub(now) != tt.wantDelay {
				t.Errorf("next = %v, want now+%v", next, tt.wantDelay)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"invalid payload", fmt.Errorf("event 1: %w", errInvalidPayload), false, "invalid_payload"},
		{"circuit open", circuitbreaker.ErrCircuitBreakerOpen, true, "circuit_open"},
		{"closed connection", amqp091.ErrClosed, true, "connection_closed"},
		{"unrecoverable amqp", &amqp091.Error{Code: 403, Recover: false}, false, "amqp_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"unknown", errors.New("boom"), true, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			if retryable != tt.retryable || errType != tt.errType {
				t.Errorf("IsRetryableError() = (%v, %q), want (%v, %q)", retryable, errType, tt.retryable, tt.errType)
			}
		})
	}
}

func TestDispatcherPublishesPendingEvents(t *testing.T) {
	store := &mockStore{pending: []*Event{
		event(1, "project.created", `{"trace_id":"abc","project_id":1}`),
		event(2, "stage.decided", `{"project_id":1}`),
	}}
	pub := &mockPublisher{}
	d := NewDispatcher(store, pub, nil, zap.NewNop())

	if got := d.ProcessPendingEvents(context.Background()); got != 2 {
		t.Fatalf("ProcessPendingEvents() = %d, want 2", got)
	}
	if len(store.sent) != 2 {
		t.Errorf("sent = %v, want both events", store.sent)
	}
	if pub.traceIDs[0] != "abc" {
		t.Errorf("trace id = %q, want %q", pub.traceIDs[0], "abc")
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	store := &mockStore{pending: []*Event{event(1, "stage.decided", `{}`)}}
	pub := &mockPublisher{err: amqp091.ErrClosed}
	d := NewDispatcher(store, pub, nil, zap.NewNop())

	if got := d.ProcessPendingEvents(context.Background()); got != 0 {
		t.Fatalf("ProcessPendingEvents() = %d, want 0", got)
	}
	if len(store.failCalls) != 1 {
		t.Errorf("MarkAsFailed calls = %d, want 1", len(store.failCalls))
	}
	if len(pub.dlq) != 0 {
		t.Errorf("dlq = %v, want empty while retries remain", pub.dlq)
	}
}

func TestDispatcherDeadLettersExhaustedEvent(t *testing.T) {
	store := &mockStore{pending: []*Event{event(1, "stage.decided", `{}`)}, failStatus: StatusFailed}
	pub := &mockPublisher{err: amqp091.ErrClosed}
	d := NewDispatcher(store, pub, nil, zap.NewNop())

	d.ProcessPendingEvents(context.Background())
	if len(pub.dlq) != 1 {
		t.Errorf("dlq = %v, want one event", pub.dlq)
	}
}

func TestDispatcherInvalidPayloadIsDead(t *testing.T) {
	store := &mockStore{pending: []*Event{event(7, "deliverable.updated", `{not json`)}}
	pub := &mockPublisher{}
	d := NewDispatcher(store, pub, nil, zap.NewNop())

	d.ProcessPendingEvents(context.Background())
	if len(store.dead) != 1 || store.dead[0] != 7 {
		t.Errorf("dead = %v, want [7]", store.dead)
	}
	if len(store.failCalls) != 0 {
		t.Errorf("MarkAsFailed calls = %d, want 0", len(store.failCalls))
	}
	if len(pub.dlq) != 1 {
		t.Errorf("dlq = %v, want one event", pub.dlq)
	}
}

func TestReplayFailedEvents(t *testing.T) {
	ok := event(1, "project.created", `{}`)
	missing := event(2, "project.created", `{}`)
	store := &mockStore{
		failed: []*Event{ok, missing},
		byID:   map[int64]*Event{1: ok},
	}
	svc := NewReplayService(store, &mockPublisher{}, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReplayFailedEvents() error = %v", err)
	}
	if n != 1 {
		t.Errorf("replayed = %d, want 1", n)
	}

	if err := svc.ReplayEvent(context.Background(), 2); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("ReplayEvent(2) error = %v, want ErrEventNotFound", err)
	}
}

// gatedStore blocks the first GetPendingEvents call until release is closed.
type gatedStore struct {
	*mockStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return nil, nil
}

func TestDispatcherRunWaitsForInFlightBatch(t *testing.T) {
	store := &gatedStore{mockStore: &mockStore{}, entered: make(chan struct{}, 1), release: make(chan struct{})}
	d := NewDispatcher(store, &mockPublisher{}, nil, zap.NewNop()).WithInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := d.Run(ctx)

	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("dispatcher never polled the store")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Run() finished while a batch was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not finish after the batch completed")
	}
}
