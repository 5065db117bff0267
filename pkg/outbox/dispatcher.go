package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bdos/pkg/circuitbreaker"
	"bdos/pkg/metrics"
	"bdos/pkg/trace"
)

// Store is the part of Repository the dispatcher and replay service need.
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) (string, error)
	MarkAsDead(ctx context.Context, eventID int64) error
}

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, body json.RawMessage) error
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	store      Store
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(store Store, publisher Publisher, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Dispatcher {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		breaker:    breaker,
		logger:     logger,
		maxRetries: 5,
		interval:   1 * time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start 启动 Dispatcher，阻塞直到 ctx 结束
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessPendingEvents(ctx)
		}
	}
}

// Run starts the dispatcher in its own goroutine. The returned channel closes
// once Start has returned, after any in-flight batch finishes.
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()
	return done
}

// ProcessPendingEvents 处理一批待发送的事件，返回成功发送的数量
func (d *Dispatcher) ProcessPendingEvents(ctx context.Context) int {
	events, err := d.store.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		if err := d.publishEvent(ctx, event); err != nil {
			d.handleFailure(ctx, event, err)
			continue
		}

		if err := d.store.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.IncrementOutbox(event.RoutingKey, StatusSent)
		sent++
	}
	return sent
}

func (d *Dispatcher) handleFailure(ctx context.Context, event *Event, err error) {
	retryable, errType := IsRetryableError(err)
	log := d.logger.With(
		zap.Int64("event_id", event.ID),
		zap.String("routing_key", event.RoutingKey),
		zap.String("error_type", errType),
		zap.Error(err),
	)

	status := StatusFailed
	if retryable {
		var markErr error
		status, markErr = d.store.MarkAsFailed(ctx, event.ID, d.maxRetries)
		if markErr != nil {
			log.Error("Failed to record publish failure", zap.NamedError("mark_error", markErr))
			return
		}
	} else if markErr := d.store.MarkAsDead(ctx, event.ID); markErr != nil {
		log.Error("Failed to mark event as dead", zap.NamedError("mark_error", markErr))
		return
	}

	if status != StatusFailed {
		log.Warn("Failed to publish event, will retry")
		metrics.IncrementOutbox(event.RoutingKey, "retry")
		return
	}

	log.Error("Event exhausted retries, parking in DLQ")
	metrics.IncrementOutbox(event.RoutingKey, StatusFailed)
	if dlqErr := d.publisher.PublishToDLQ(ctx, event.RoutingKey, event.Payload, err.Error()); dlqErr != nil {
		log.Error("Failed to publish event to DLQ", zap.NamedError("dlq_error", dlqErr))
	}
}

// publishEvent 通过熔断器发布单个事件
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	if !json.Valid(event.Payload) {
		return fmt.Errorf("event %d: %w", event.ID, errInvalidPayload)
	}

	ctx = extractTraceIDFromPayload(ctx, event.Payload)
	return d.breaker.Execute(func() error {
		return d.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload)
	})
}

// extractTraceIDFromPayload 从 payload 中提取 trace_id（如果存在）
func extractTraceIDFromPayload(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ctx
	}
	if envelope.TraceID != "" {
		ctx = trace.WithContext(ctx, envelope.TraceID)
	}
	return ctx
}
