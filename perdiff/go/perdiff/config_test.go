package perdiff

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils/unittest"
)

func TestNewConfig_Defaults(t *testing.T) {
	unittest.SmallTest(t)
	c, err := NewConfig(DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 2*math.Tan(22.5*math.Pi/180)*180/math.Pi, c.NumOneDegreePixels(), 1e-12)
	assert.Equal(t, 6, c.AdaptationLevel())
	assert.Equal(t, 0.0, c.LUT(0))
	assert.Equal(t, 1.0, c.LUT(255))
	assert.InDelta(t, math.Pow(128.0/255.0, 2.2), c.LUT(128), 1e-15)
	assert.Equal(t, DefaultOptions(), c.Options())
}

func TestNewConfig_AdaptationLevel(t *testing.T) {
	unittest.SmallTest(t)
	for _, tc := range []struct {
		fov  float64
		want int
	}{
		{fov: 1, want: 1},
		{fov: 27, want: 5},
		{fov: 45, want: 6},
		{fov: 90, want: 7},
		// Capped at MaxLevels-1.
		{fov: 170, want: MaxLevels - 1},
	} {
		o := DefaultOptions()
		o.FieldOfView = tc.fov
		c := MustNewConfig(o)
		assert.Equal(t, tc.want, c.AdaptationLevel(), "fov %g", tc.fov)
		assert.GreaterOrEqual(t, c.AdaptationLevel(), 0)
		assert.Less(t, c.AdaptationLevel(), MaxLevels)
	}
}

func TestNewConfig_InvalidOptions_ReturnsError(t *testing.T) {
	unittest.SmallTest(t)
	for name, mutate := range map[string]func(o *Options){
		"zero fov":           func(o *Options) { o.FieldOfView = 0 },
		"negative fov":       func(o *Options) { o.FieldOfView = -10 },
		"fov too wide":       func(o *Options) { o.FieldOfView = 180 },
		"nan fov":            func(o *Options) { o.FieldOfView = math.NaN() },
		"zero gamma":         func(o *Options) { o.Gamma = 0 },
		"zero luminance":     func(o *Options) { o.Luminance = 0 },
		"negative color":     func(o *Options) { o.ColorFactor = -1 },
		"negative threshold": func(o *Options) { o.ThresholdPixels = -1 },
	} {
		o := DefaultOptions()
		mutate(&o)
		_, err := NewConfig(o)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidOptions), name)
		assert.Panics(t, func() { MustNewConfig(o) }, name)
	}
}

func TestCrawlerOptions(t *testing.T) {
	unittest.SmallTest(t)
	o := CrawlerOptions()
	assert.Equal(t, 0.0, o.ColorFactor)
	assert.Equal(t, 27.0, o.FieldOfView)
	assert.Equal(t, 4.2, o.Gamma)
	assert.Equal(t, 20.0, o.Luminance)
	assert.False(t, o.LuminanceOnly)
	require.NoError(t, o.Validate())
}

func TestThresholdFromPercent(t *testing.T) {
	unittest.SmallTest(t)
	assert.Equal(t, 150, ThresholdFromPercent(100, 100, 1.5))
	assert.Equal(t, 0, ThresholdFromPercent(10, 10, 0))
	assert.Equal(t, 19200, ThresholdFromPercent(640, 480, 6.25))
}

func TestWeights(t *testing.T) {
	unittest.SmallTest(t)
	c := MustNewConfig(DefaultOptions())
	m := newModel(false)

	var want PerceptualWeights
	want.CyclesPerDegree[0] = 0.5 * 640 / c.NumOneDegreePixels()
	for i := 1; i < MaxLevels; i++ {
		want.CyclesPerDegree[i] = want.CyclesPerDegree[i-1] / 2
	}
	for i := 0; i < MaxLevels-2; i++ {
		want.FrequencyWeight[i] = m.csf(3.248, 100) / m.csf(want.CyclesPerDegree[i], 100)
	}

	got := c.Weights(640)
	assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateApprox(1e-12, 0)))
}

func TestNewConfig_FastPow_ApproximatesLUT(t *testing.T) {
	unittest.SmallTest(t)
	o := DefaultOptions()
	o.FastPow = true
	fast := MustNewConfig(o)
	exact := MustNewConfig(DefaultOptions())
	for _, v := range []uint8{32, 128, 200, 255} {
		assert.InEpsilon(t, exact.LUT(v), fast.LUT(v), 0.1, "lut[%d]", v)
	}
}
