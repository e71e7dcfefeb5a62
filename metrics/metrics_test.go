package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSDKMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSDKMetrics(reg)

	m.IncStageFailure("feeDataGetter")
	m.IncStageFailure("feeDataGetter")
	m.IncUserOpSubmitted("accepted")
	m.IncUserOpBuilt("simple")
	m.ObserveStage("gasEstimator", 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.stageFailures.WithLabelValues("feeDataGetter")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.userOpsSubmitted.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.userOpsBuilt.WithLabelValues("simple")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestEnsureMetrics(t *testing.T) {
	m := EnsureMetrics(nil)
	assert.NotPanics(t, func() {
		m.IncStageFailure("x")
		m.ObserveStage("x", time.Second)
	})
}
