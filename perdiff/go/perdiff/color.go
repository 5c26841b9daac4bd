package perdiff

// Adobe RGB (1998) with reference white D65, from http://www.brucelindbloom.com/
const (
	xR, xG, xB = 0.5767309, 0.1855540, 0.1881852
	yR, yG, yB = 0.2973769, 0.6273491, 0.0752741
	zR, zG, zB = 0.0270343, 0.0706872, 0.9911085

	// Reference white.
	whiteX = xR + xG + xB
	whiteY = yR + yG + yB
	whiteZ = zR + zG + zB

	labEpsilon = 216.0 / 24389.0
	labKappa   = 24389.0 / 27.0
)

func labF(t float64, pow func(a, b float64) float64) float64 {
	if t > labEpsilon {
		return pow(t, 1.0/3.0)
	}
	return (labKappa*t + 16.0) / 116.0
}

// convert fills the chroma channels a and b and the luminance lum from the
// packed ARGB pixels. All slices must have the same length.
func (c *Config) convert(pix []uint32, a, b, lum []float32) {
	if len(a) != len(pix) || len(b) != len(pix) || len(lum) != len(pix) {
		panic("perdiff: convert called with mismatched buffer lengths")
	}
	pow := c.model.pow
	for i, p := range pix {
		red := c.lut[(p>>16)&0xff]
		grn := c.lut[(p>>8)&0xff]
		blu := c.lut[p&0xff]

		x := red*xR + grn*xG + blu*xB
		y := red*yR + grn*yG + blu*yB
		z := red*zR + grn*zG + blu*zB

		fx := labF(x/whiteX, pow)
		fy := labF(y/whiteY, pow)
		fz := labF(z/whiteZ, pow)

		a[i] = float32(500.0 * (fx - fy))
		b[i] = float32(200.0 * (fy - fz))
		lum[i] = float32(y * c.opts.Luminance)
	}
}

// Lab returns the A and B chroma and the scaled luminance of a single packed
// ARGB pixel.
func (c *Config) Lab(p uint32) (a, b, lum float64) {
	var av, bv, lv [1]float32
	c.convert([]uint32{p}, av[:], bv[:], lv[:])
	return float64(av[0]), float64(bv[0]), float64(lv[0])
}
