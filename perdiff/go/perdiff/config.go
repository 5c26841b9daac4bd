package perdiff

import (
	"math"

	"go.crawlkit.dev/infra/go/skerr"
)

const (
	// MaxLevels is the number of levels in each luminance pyramid.
	MaxLevels = 8

	// ColorPass and ColorFail are the packed ARGB values written to the
	// difference map.
	ColorPass uint32 = 0xff000000
	ColorFail uint32 = 0xffffffff
)

// Config is a validated, immutable Options plus the values derived from it.
// It is safe for concurrent use and is meant to be reused across many
// comparisons.
type Config struct {
	opts Options

	lut                [256]float64
	numOneDegreePixels float64
	adaptationLevel    int
	model              model
}

// NewConfig validates opts and precomputes the gamma lookup table and the
// adaptation level.
func NewConfig(opts Options) (*Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	c := &Config{
		opts:  opts,
		model: newModel(opts.FastPow),
	}
	c.numOneDegreePixels = 2 * math.Tan(opts.FieldOfView*0.5*math.Pi/180) * 180 / math.Pi

	numPixels := 1.0
	level := 0
	for i := 0; i < MaxLevels; i++ {
		level = i
		if numPixels > c.numOneDegreePixels {
			break
		}
		numPixels *= 2
	}
	c.adaptationLevel = level

	for i := range c.lut {
		c.lut[i] = c.model.pow(float64(i)/255.0, opts.Gamma)
	}
	return c, nil
}

// MustNewConfig is like NewConfig but panics on invalid options.
func MustNewConfig(opts Options) *Config {
	c, err := NewConfig(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Options returns a copy of the options this Config was built from.
func (c *Config) Options() Options {
	return c.opts
}

// NumOneDegreePixels is the number of pixels subtending one degree of the
// field of view.
func (c *Config) NumOneDegreePixels() float64 {
	return c.numOneDegreePixels
}

// AdaptationLevel is the pyramid level used as the adaptation luminance.
func (c *Config) AdaptationLevel() int {
	return c.adaptationLevel
}

// LUT returns the gamma lookup table value for an 8-bit channel value.
func (c *Config) LUT(v uint8) float64 {
	return c.lut[v]
}

// PerceptualWeights are the per-level values which depend on the image width.
type PerceptualWeights struct {
	// CyclesPerDegree is the spatial frequency at each pyramid level.
	CyclesPerDegree [MaxLevels]float64
	// FrequencyWeight normalizes each band by peak contrast sensitivity.
	FrequencyWeight [MaxLevels - 2]float64
}

// Weights computes the PerceptualWeights for images of the given width.
func (c *Config) Weights(width int) PerceptualWeights {
	var w PerceptualWeights
	pixelsPerDegree := float64(width) / c.numOneDegreePixels
	w.CyclesPerDegree[0] = 0.5 * pixelsPerDegree
	for i := 1; i < MaxLevels; i++ {
		w.CyclesPerDegree[i] = 0.5 * w.CyclesPerDegree[i-1]
	}
	csfMax := c.model.csf(3.248, 100.0)
	for i := 0; i < MaxLevels-2; i++ {
		w.FrequencyWeight[i] = csfMax / c.model.csf(w.CyclesPerDegree[i], 100.0)
	}
	return w
}
