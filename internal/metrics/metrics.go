package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	MetricValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hawkmon_metric_value",
			Help: "Last evaluated value per metric key (percent or MB per interval)",
		},
		[]string{"key"},
	)

	AlertState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hawkmon_alert_state",
			Help: "Alert state per metric key (1 alerting, 0 normal)",
		},
		[]string{"key"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkmon_transitions_total",
			Help: "Total number of alert transitions",
		},
		[]string{"type", "transition"}, // transition: raised, cleared
	)

	EvaluationPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hawkmon_evaluation_panics_total",
			Help: "Total number of panics recovered while evaluating a metric",
		},
	)

	// Scheduler metrics
	PassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hawkmon_passes_total",
			Help: "Total number of completed sampling and evaluation passes",
		},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hawkmon_pass_duration_seconds",
			Help:    "Time taken by one sampling and evaluation pass",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	TicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hawkmon_ticks_skipped_total",
			Help: "Total number of ticks dropped because the previous pass was still running",
		},
	)

	// Sampler metrics
	SampleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkmon_sample_errors_total",
			Help: "Total number of failed sampler sub-queries",
		},
		[]string{"source"}, // source: cpu, memory, disk, network, containers
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkmon_notifications_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)
)
