package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsGenerator is what the SDK reports into. Pass nil to any component
// that takes one to disable metrics.
type MetricsGenerator interface {
	ObserveStage(stage string, elapsed time.Duration)
	IncStageFailure(stage string)

	IncUserOpBuilt(accountKind string)
	IncUserOpSubmitted(status string)
}

// SDKMetrics contains instrumented metrics that the middleware pipeline and
// the client update.
type SDKMetrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec

	userOpsBuilt     *prometheus.CounterVec
	userOpsSubmitted *prometheus.CounterVec
}

const apNamespace = "ap_aa"

func NewSDKMetrics(reg prometheus.Registerer) *SDKMetrics {
	return &SDKMetrics{
		stageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: apNamespace,
				Name:      "middleware_stage_duration_seconds",
				Help:      "Time spent in each middleware stage while building a user operation",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			}, []string{"stage"}),

		stageFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "middleware_stage_failures_total",
				Help:      "The number of middleware stage failures. Each failure aborts the build.",
			}, []string{"stage"}),

		userOpsBuilt: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "userops_built_total",
				Help:      "The number of user operations built",
			}, []string{"account"}),

		userOpsSubmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "userops_submitted_total",
				Help:      "The number of user operations sent to the bundler, by outcome",
			}, []string{"status"}),
	}
}

func (m *SDKMetrics) ObserveStage(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *SDKMetrics) IncStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *SDKMetrics) IncUserOpBuilt(accountKind string) {
	m.userOpsBuilt.WithLabelValues(accountKind).Inc()
}

func (m *SDKMetrics) IncUserOpSubmitted(status string) {
	m.userOpsSubmitted.WithLabelValues(status).Inc()
}

type noopMetrics struct{}

func (noopMetrics) ObserveStage(string, time.Duration) {}
func (noopMetrics) IncStageFailure(string)             {}
func (noopMetrics) IncUserOpBuilt(string)              {}
func (noopMetrics) IncUserOpSubmitted(string)          {}

// EnsureMetrics returns m, or a generator that drops everything when m is nil.
func EnsureMetrics(m MetricsGenerator) MetricsGenerator {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
