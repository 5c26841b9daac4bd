package perdiff

// kernel is the 1D filter applied in both directions between pyramid levels.
var kernel = [5]float32{0.05, 0.25, 0.4, 0.25, 0.05}

// Pyramid holds the chroma channels of an image and MaxLevels successively
// blurred copies of its luminance. Every level has Width*Height entries.
type Pyramid struct {
	Width  int
	Height int

	// Levels[0] is the luminance, Levels[k] is Levels[k-1] blurred.
	Levels [MaxLevels][]float32

	// A and B are the CIE L*a*b* chroma channels.
	A []float32
	B []float32
}

// NewPyramid converts r into chroma and luminance and builds the blur stack.
func (c *Config) NewPyramid(r *Raster) *Pyramid {
	n := r.Width * r.Height
	p := &Pyramid{
		Width:  r.Width,
		Height: r.Height,
		A:      make([]float32, n),
		B:      make([]float32, n),
	}
	for i := range p.Levels {
		p.Levels[i] = make([]float32, n)
	}
	c.convert(r.Pix, p.A, p.B, p.Levels[0])
	construct(&p.Levels, r.Width, r.Height)
	return p
}

// construct fills levels[1:] by blurring the previous level horizontally and
// then vertically.
func construct(levels *[MaxLevels][]float32, width, height int) {
	tmp := make([]float32, width*height) // transposed
	for i := 1; i < len(levels); i++ {
		convolveAndTranspose(levels[i-1], tmp, width, height)
		convolveAndTranspose(tmp, levels[i], height, width)
	}
}

// reflect maps an out of range index back into [0, n).
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 1 - i
		}
	}
	return i
}

// convolveAndTranspose convolves each row of src (width x height) with the
// kernel and writes the result transposed into dst (height x width).
func convolveAndTranspose(src, dst []float32, width, height int) {
	if len(src) != width*height || len(dst) != width*height {
		panic("perdiff: convolveAndTranspose called with mismatched buffer lengths")
	}
	for y, offset := 0, 0; y < height; y, offset = y+1, offset+width {
		for x, index := 0, y; x < width; x, index = x+1, index+height {
			var f float32
			for k := -2; k <= 2; k++ {
				f += kernel[k+2] * src[offset+reflect(x+k, width)]
			}
			dst[index] = f
		}
	}
}
