package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 工作流事务延迟（秒）
	WorkflowTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_tx_duration_seconds",
			Help:    "Duration of workflow transactions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "outcome"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"command"},
	)

	ProjectsInstantiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_projects_instantiated_total",
			Help: "Projects whose stages were materialized from the catalog",
		},
	)

	StageDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_stage_decisions_total",
			Help: "Approval decisions recorded against project stages",
		},
		[]string{"decision"}, // approve, reject
	)

	ChecklistToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_checklist_toggles_total",
			Help: "Checklist entries toggled",
		},
		[]string{"done"},
	)

	DeliverableUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_deliverable_updates_total",
			Help: "Deliverable content updates by resulting status",
		},
		[]string{"status"},
	)

	// Outbox 事件发布计数
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events by publish result",
		},
		[]string{"routing_key", "result"}, // result: sent, retry, failed
	)

	// 0 closed, 1 open, 2 half-open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordWorkflowTx 记录工作流事务耗时
func RecordWorkflowTx(operation string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	WorkflowTxDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(command string) {
	SlowQueryCount.WithLabelValues(command).Inc()
}

func IncrementStageDecision(decision string) {
	StageDecisions.WithLabelValues(decision).Inc()
}

func IncrementChecklistToggle(done bool) {
	label := "false"
	if done {
		label = "true"
	}
	ChecklistToggles.WithLabelValues(label).Inc()
}

func IncrementDeliverableUpdate(status string) {
	DeliverableUpdates.WithLabelValues(status).Inc()
}

func IncrementOutbox(routingKey, result string) {
	OutboxPublished.WithLabelValues(routingKey, result).Inc()
}

func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}
