// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// Provider 调用指标
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	retryAttemptsTotal   *prometheus.CounterVec

	// 执行与回退指标
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	fallbacksTotal    *prometheus.CounterVec

	// 熔断器指标
	breakerTransitions *prometheus.CounterVec
	breakerRejections  *prometheus.CounterVec

	// 快照轮询指标
	snapshotPollsTotal *prometheus.CounterVec
	snapshotsInflight  prometheus.Gauge

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// Provider 调用指标
	c.providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of provider calls",
		},
		[]string{"collector", "provider", "outcome"},
	)

	c.providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 600},
		},
		[]string{"collector", "provider"},
	)

	c.retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"collector", "provider"},
	)

	// 执行与回退指标
	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of collector executions",
		},
		[]string{"collector", "status"},
	)

	c.executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Collector execution duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"collector"},
	)

	c.fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of provider fallbacks",
		},
		[]string{"collector"},
	)

	// 熔断器指标
	c.breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"key", "state"},
	)

	c.breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_rejections_total",
			Help:      "Total number of requests rejected by an open circuit",
		},
		[]string{"key"},
	)

	// 快照轮询指标
	c.snapshotPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_polls_total",
			Help:      "Total number of snapshot poll cycles",
		},
		[]string{"provider", "outcome"},
	)

	c.snapshotsInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshots_inflight",
			Help:      "Number of snapshots currently awaiting background polling",
		},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔌 Provider 指标记录
// =============================================================================

// RecordProviderCall 记录一次 provider 调用
func (c *Collector) RecordProviderCall(collector, provider, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.providerCallsTotal.WithLabelValues(collector, provider, outcome).Inc()
	c.providerCallDuration.WithLabelValues(collector, provider).Observe(duration.Seconds())
}

// RecordRetryAttempt 记录一次重试
func (c *Collector) RecordRetryAttempt(collector, provider string) {
	if c == nil {
		return
	}
	c.retryAttemptsTotal.WithLabelValues(collector, provider).Inc()
}

// =============================================================================
// 🎯 执行指标记录
// =============================================================================

// RecordExecution 记录一次 collector 执行
func (c *Collector) RecordExecution(collector, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(collector, status).Inc()
	c.executionDuration.WithLabelValues(collector).Observe(duration.Seconds())
}

// RecordFallback 记录一次 provider 回退
func (c *Collector) RecordFallback(collector string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(collector).Inc()
}

// =============================================================================
// ⚡ 熔断器指标记录
// =============================================================================

// RecordBreakerTransition 记录熔断器状态转换
func (c *Collector) RecordBreakerTransition(key, state string) {
	if c == nil {
		return
	}
	c.breakerTransitions.WithLabelValues(key, state).Inc()
}

// RecordBreakerRejection 记录被打开的熔断器拒绝的请求
func (c *Collector) RecordBreakerRejection(key string) {
	if c == nil {
		return
	}
	c.breakerRejections.WithLabelValues(key).Inc()
}

// =============================================================================
// 📷 快照指标记录
// =============================================================================

// RecordSnapshotPoll 记录一次快照轮询
func (c *Collector) RecordSnapshotPoll(provider, outcome string) {
	if c == nil {
		return
	}
	c.snapshotPollsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetSnapshotsInflight 更新在途快照数
func (c *Collector) SetSnapshotsInflight(n int) {
	if c == nil {
		return
	}
	c.snapshotsInflight.Set(float64(n))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
