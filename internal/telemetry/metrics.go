package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "octane_bridge"

// Metrics — Prometheus метрики bridge.
//
// Все методы безопасны для nil receiver: компоненты, созданные без метрик
// (например, в тестах), просто ничего не записывают.
type Metrics struct {
	OpenConnections prometheus.Gauge
	PollAttempts    *prometheus.CounterVec
	TasksDispatched prometheus.Counter
	TaskResults     *prometheus.CounterVec
	TaskDuration    prometheus.Histogram
	BatchParseFails prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Long-poll connections currently open to the Octane server",
		}),
		PollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Completed poll attempts by outcome",
		}, []string{"outcome"}),
		TasksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dispatched_total",
			Help:      "Tasks submitted to the worker pool",
		}),
		TaskResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Finished tasks by status",
		}, []string{"status"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task processing duration",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchParseFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_parse_failures_total",
			Help:      "Task batches that could not be parsed",
		}),
	}

	reg.MustRegister(
		m.OpenConnections,
		m.PollAttempts,
		m.TasksDispatched,
		m.TaskResults,
		m.TaskDuration,
		m.BatchParseFails,
	)

	return m
}

// SetOpenConnections фиксирует текущее количество открытых long-poll.
func (m *Metrics) SetOpenConnections(n int) {
	if m == nil {
		return
	}
	m.OpenConnections.Set(float64(n))
}

// ObservePoll учитывает завершённую попытку poll.
// outcome: "tasks", "empty", "authentication", "unavailable", "transport".
func (m *Metrics) ObservePoll(outcome string) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(outcome).Inc()
}

// ObserveDispatched учитывает задачи, отправленные в пул.
func (m *Metrics) ObserveDispatched(n int) {
	if m == nil {
		return
	}
	m.TasksDispatched.Add(float64(n))
}

// ObserveTask учитывает завершённую задачу.
func (m *Metrics) ObserveTask(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.TaskResults.WithLabelValues(status).Inc()
	m.TaskDuration.Observe(d.Seconds())
}

// ObserveParseFailure учитывает неразобранный batch.
func (m *Metrics) ObserveParseFailure() {
	if m == nil {
		return
	}
	m.BatchParseFails.Inc()
}
