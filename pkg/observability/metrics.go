// Package observability exposes Prometheus metrics and the metrics/health
// HTTP endpoints for the planner service.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyago_turns_total",
			Help: "Total number of processed conversation turns",
		},
		[]string{"intent"},
	)

	oracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyago_oracle_calls_total",
			Help: "Total number of oracle invocations",
		},
		[]string{"oracle", "worker", "status"},
	)

	oracleCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyago_oracle_call_duration_seconds",
			Help:    "Oracle invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"oracle"},
	)

	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voyago_query_result_rows",
			Help:    "Row counts of executed listing queries",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voyago_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)
)

var metricsOnce sync.Once

// InitMetrics registers all metrics with the default registry. Safe to call
// more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			oracleCallsTotal,
			oracleCallDuration,
			queryResultRows,
			activeSessions,
		)
	})
}

// RecordTurn counts one processed turn by intent.
func RecordTurn(intent string) {
	turnsTotal.WithLabelValues(intent).Inc()
}

// RecordOracleCall counts one oracle invocation and its latency.
func RecordOracleCall(oracle, worker, status string, d time.Duration) {
	oracleCallsTotal.WithLabelValues(oracle, worker, status).Inc()
	oracleCallDuration.WithLabelValues(oracle).Observe(d.Seconds())
}

// ObserveResultRows records the size of an executed query's result.
func ObserveResultRows(n int) {
	queryResultRows.Observe(float64(n))
}

// SessionOpened and SessionClosed track the live session gauge.
func SessionOpened() { activeSessions.Inc() }

// SessionClosed decrements the live session gauge.
func SessionClosed() { activeSessions.Dec() }
