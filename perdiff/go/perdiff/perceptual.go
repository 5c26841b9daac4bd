package perdiff

import (
	"math"
)

// model holds the psychophysical functions. pow is either math.Pow or fastPow.
type model struct {
	pow func(a, b float64) float64
}

func newModel(fast bool) model {
	if fast {
		return model{pow: fastPow}
	}
	return model{pow: math.Pow}
}

// csf is the contrast sensitivity function from Barten (SPIE 1989) for the
// given cycles per degree and luminance.
func (m model) csf(cpd, lum float64) float64 {
	a := 440.0 * m.pow(1.0+0.7/lum, -0.2)
	b := 0.3 * m.pow(1.0+100.0/lum, 0.15)
	return a * cpd * math.Exp(-b*cpd) * math.Sqrt(1.0+0.06*math.Exp(b*cpd))
}

// tvi returns the threshold of visibility in cd/m^2 for the given adaptation
// luminance (Ward Larson, Siggraph 1997).
func (m model) tvi(adaptationLuminance float64) float64 {
	logA := math.Log10(adaptationLuminance)
	var r float64
	switch {
	case logA < -3.94:
		r = -2.86
	case logA < -1.44:
		r = m.pow(0.405*logA+1.6, 2.18) - 2.86
	case logA < -0.0184:
		r = logA - 0.395
	case logA < 1.9:
		r = m.pow(0.249*logA+0.65, 2.7) - 0.72
	default:
		r = logA - 1.255
	}
	return m.pow(10.0, r)
}

// mask is the visual masking function from Daly 1993.
func (m model) mask(contrast float64) float64 {
	a := m.pow(392.498*contrast, 0.7)
	b := m.pow(0.0153*a, 4.0)
	return m.pow(1.0+b, 0.25)
}

// fastPowMagic is the IEEE 754 bit pattern the approximation pivots around,
// slightly below that of 1.0.
const fastPowMagic = 4606921280493453312

// fastPow approximates a^b. The integer part of the exponent is computed
// exactly by squaring, the fractional part with an IEEE 754 bit trick. The
// result is only accurate to a few percent.
func fastPow(a, b float64) float64 {
	negative := b < 0
	if negative {
		b = -b
	}
	r := 1.0
	base := a
	for exp := int64(b); exp != 0; exp >>= 1 {
		if exp&1 != 0 {
			r *= base
		}
		base *= base
	}
	result := r
	if frac := b - float64(int64(b)); frac != 0 {
		bits := int64(math.Float64bits(a))
		result *= math.Float64frombits(uint64(int64(frac*float64(bits-fastPowMagic)) + fastPowMagic))
	}
	if negative {
		return 1.0 / result
	}
	return result
}
