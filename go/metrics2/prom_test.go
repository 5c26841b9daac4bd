package metrics2

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "perdiff_compare_a_b", clean("perdiff-compare.a b"))
}

func TestGetCounter_SameNameAndTags_SharesValue(t *testing.T) {
	c := newPromClientWithRegisterer(prometheus.NewRegistry())
	c1 := c.GetCounter("perdiff_test_counter", map[string]string{"kind": "a"})
	c2 := c.GetCounter("perdiff_test_counter", map[string]string{"kind": "a"})
	other := c.GetCounter("perdiff_test_counter", map[string]string{"kind": "b"})

	c1.Inc(3)
	c2.Inc(2)
	other.Inc(1)
	assert.Equal(t, int64(5), c1.Get())
	assert.Equal(t, int64(1), other.Get())

	c2.Dec(1)
	assert.Equal(t, int64(4), c1.Get())
	c1.Reset()
	assert.Equal(t, int64(0), c2.Get())
}

func TestGetCounter_ExportsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newPromClientWithRegisterer(reg)
	c.GetCounter("perdiff_exported").Inc(7)

	got, err := testutil.GatherAndCount(reg, "perdiff_exported")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, float64(7), testutil.ToFloat64(c.int64GaugeVecs["perdiff_exported []"]))
}

func TestGetFloat64SummaryMetric_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newPromClientWithRegisterer(reg)
	s := c.GetFloat64SummaryMetric("perdiff_latency", map[string]string{"op": "compare"})
	s.Observe(0.5)
	assert.Same(t, s, c.GetFloat64SummaryMetric("perdiff_latency", map[string]string{"op": "compare"}))

	n, err := testutil.GatherAndCount(reg, "perdiff_latency")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTimer_Stop_ReturnsElapsed(t *testing.T) {
	timer := NewTimer("metrics2_test_timer")
	assert.GreaterOrEqual(t, int64(timer.Stop()), int64(0))
}
