package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EntitiesTotal outcome: completed/skipped/failed
	EntitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datahouse",
			Name:      "recorder_entities_total",
			Help:      "Entities processed by recorder, by outcome.",
		},
		[]string{"provider", "schema", "outcome"},
	)

	RowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datahouse",
			Name:      "recorder_rows_written_total",
			Help:      "Rows actually written to the store.",
		},
		[]string{"provider", "schema"},
	)

	// StepDuration step: window/record/format/persist
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datahouse",
			Name:      "recorder_step_duration_seconds",
			Help:      "Latency of a single lifecycle step.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms ~ 32s
		},
		[]string{"provider", "step"},
	)

	RetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datahouse",
			Name:      "recorder_retry_total",
			Help:      "Transient failures re-run within the same run.",
		},
		[]string{"provider"},
	)

	// RunProgress kind: processed/total
	RunProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "datahouse",
			Name:      "recorder_run_progress",
			Help:      "Progress of the current run.",
		},
		[]string{"recorder", "kind"},
	)

	ProgressPublishErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datahouse",
			Name:      "recorder_progress_publish_errors_total",
			Help:      "Progress events that failed to publish.",
		},
		[]string{"topic"},
	)

	RateLimitWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datahouse",
			Name:      "fetch_ratelimit_wait_seconds",
			Help:      "Time spent waiting on provider rate limit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"provider"},
	)

	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datahouse",
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"provider"},
	)
)

func MustRegister() {
	MustRegisterTo(prometheus.DefaultRegisterer)
}

// MustRegisterTo 测试里可传入独立的 Registry
func MustRegisterTo(r prometheus.Registerer) {
	r.MustRegister(
		EntitiesTotal,
		RowsWrittenTotal,
		StepDuration,
		RetryTotal,
		RunProgress,
		ProgressPublishErrors,
		RateLimitWaitSeconds,
		CBRejectTotal,
	)
}

func ObserveRunProgress(recorder string, processed, total int) {
	RunProgress.WithLabelValues(recorder, "processed").Set(float64(processed))
	RunProgress.WithLabelValues(recorder, "total").Set(float64(total))
}
