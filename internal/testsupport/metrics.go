package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue returns the value of a metric in the default registry, summed
// over every series whose labels include labelFilter. Histograms contribute
// their sample count. An unknown metric reads as 0.
func GetMetricValue(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "failed to gather metrics")

	var total float64
	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, labelFilter) {
				total += sampleValue(m)
			}
		}
	}
	return total
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}

func hasLabels(m *dto.Metric, filter map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := filter[lp.GetName()]; ok {
			if want != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(filter)
}

// AssertMetricDelta asserts that fn moves the metric by exactly expectedDelta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaAsync is AssertMetricDelta for effects that land in
// background goroutines, such as the worker loop. It polls for two seconds.
func AssertMetricDeltaAsync(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels)-before == expectedDelta
	}, 2*time.Second, 25*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, expectedDelta)
}

// AssertHistogramRecorded asserts that a histogram holds at least one sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string) {
	t.Helper()

	assert.Positive(t, GetMetricValue(t, metricName, labels), "histogram %s%v should have recorded samples", metricName, labels)
}
