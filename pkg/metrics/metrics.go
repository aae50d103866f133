package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 模型调用延迟（毫秒）
	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_latency_ms",
			Help:    "Language model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"model", "status"},
	)

	// 模型熔断器状态变化
	ModelBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_breaker_transitions_total",
			Help: "Circuit breaker state transitions for the model backend",
		},
		[]string{"from", "to"},
	)

	// 节点执行耗时（秒）
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_node_duration_seconds",
			Help:    "Graph node execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
		},
		[]string{"node", "outcome"},
	)

	// 运行结束计数
	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_runs_total",
			Help: "Triage runs by final status and route",
		},
		[]string{"status", "route"},
	)

	// 运行失败原因
	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_run_failures_total",
			Help: "Failed triage runs by error kind",
		},
		[]string{"kind"},
	)

	// 草稿校验结果
	GuardrailVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_verdicts_total",
			Help: "Guardrail verdicts by draft kind and result",
		},
		[]string{"kind", "status"},
	)

	// 草稿违规项
	GuardrailViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_violations_total",
			Help: "Guardrail violations by rule",
		},
		[]string{"rule"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordModelCallLatency 记录模型调用延迟
func RecordModelCallLatency(model, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(model, status).Observe(float64(duration.Milliseconds()))
}

// RecordBreakerTransition 记录熔断器状态变化
func RecordBreakerTransition(from, to string) {
	ModelBreakerTransitions.WithLabelValues(from, to).Inc()
}

// RecordNodeDuration 记录节点执行耗时
func RecordNodeDuration(node, outcome string, duration time.Duration) {
	NodeDuration.WithLabelValues(node, outcome).Observe(duration.Seconds())
}

// IncrementRunFinished 运行进入终态或等待人工时计数
func IncrementRunFinished(status, route string) {
	RunsFinished.WithLabelValues(status, route).Inc()
}

// IncrementRunFailure 记录失败原因
func IncrementRunFailure(kind string) {
	RunFailures.WithLabelValues(kind).Inc()
}

// IncrementGuardrailVerdict 记录草稿校验结果
func IncrementGuardrailVerdict(kind, status string) {
	GuardrailVerdicts.WithLabelValues(kind, status).Inc()
}

// IncrementGuardrailViolation 记录违规规则
func IncrementGuardrailViolation(rule string) {
	GuardrailViolations.WithLabelValues(rule).Inc()
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery() {
	SlowQueries.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
