package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDurationIncreases(t *testing.T) {
	timer := NewTimer()

	time.Sleep(10 * time.Millisecond)
	first := timer.Duration()
	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()

	assert.GreaterOrEqual(t, first, 10*time.Millisecond)
	assert.Greater(t, second, first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_resolve_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_step_seconds",
			Help:    "Test histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"from"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "pacemaker-2.10")
	timer.ObserveDurationVec(histogramVec, "pacemaker-3.0")

	assert.Equal(t, 2, testutil.CollectAndCount(histogramVec))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(RuleEvaluationErrors)
	RuleEvaluationErrors.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RuleEvaluationErrors))

	ValidationsTotal.WithLabelValues("pacemaker-3.0", "ok").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ValidationsTotal.WithLabelValues("pacemaker-3.0", "ok")), 1.0)
}
