package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics of a Scheduler.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "bind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "scheduler").
	Subsystem string

	// Registry is the Prometheus registry to use.
	// Default: a private registry per scheduler.
	Registry prometheus.Registerer
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "bind",
		Subsystem: "scheduler",
	}
}

type schedulerMetrics struct {
	queued    *prometheus.CounterVec
	executed  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	passes    prometheus.Counter
	duration  *prometheus.HistogramVec
	depth     *prometheus.GaugeVec
}

func newSchedulerMetrics(config MetricsConfig) *schedulerMetrics {
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &schedulerMetrics{
		queued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "tasks_queued_total",
			Help:      "Total number of tasks queued",
		}, []string{"lane"}),

		executed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "tasks_executed_total",
			Help:      "Total number of tasks executed",
		}, []string{"lane"}),

		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "task_errors_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}, []string{"lane"}),

		cancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "tasks_cancelled_total",
			Help:      "Total number of tasks cancelled before running",
		}, []string{"lane"}),

		passes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "flush_passes_total",
			Help:      "Total number of passes over the lanes",
		}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"lane"}),

		depth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "queue_depth",
			Help:      "Number of ready tasks waiting in each lane",
		}, []string{"lane"}),
	}
}
