package fuzzy

import (
	"context"

	"go.crawlkit.dev/infra/go/util"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// Matcher is a cheap pixel-wise image matching algorithm, useful as a first
// pass before the perceptual engine.
//
// It considers two images to be equal if the following conditions are met:
//
//   - Both images are of equal size.
//   - The total number of different pixels is at most MaxDifferentPixels.
//   - There are no pixels such that dR + dG + dB + dA > PixelDeltaThreshold,
//     where d{R,G,B,A} are the per-channel deltas.
//
// Valid PixelDeltaThreshold values are 0 to 1020 inclusive.
type Matcher struct {
	MaxDifferentPixels  int
	PixelDeltaThreshold int
}

// Stats describes the differences between two images of equal size.
type Stats struct {
	NumDifferentPixels int
	MaxPixelDelta      int
}

// Match implements the imgmatching.Matcher interface.
func (m *Matcher) Match(_ context.Context, expected, actual *perdiff.Raster) (bool, error) {
	if expected == nil || actual == nil {
		return false, nil
	}
	if expected.Width != actual.Width || expected.Height != actual.Height || len(expected.Pix) != len(actual.Pix) {
		return false, nil
	}
	s := Compare(expected, actual)
	return s.NumDifferentPixels <= m.MaxDifferentPixels && s.MaxPixelDelta <= m.PixelDeltaThreshold, nil
}

// Compare returns the pixel statistics of two images of equal size. b.Pix
// must be at least as long as a.Pix.
func Compare(a, b *perdiff.Raster) Stats {
	var s Stats
	for i, p1 := range a.Pix {
		p2 := b.Pix[i]
		if p1 == p2 {
			continue
		}
		s.NumDifferentPixels++
		delta := 0
		for shift := 0; shift < 32; shift += 8 {
			delta += util.AbsInt(int((p1>>shift)&0xff) - int((p2>>shift)&0xff))
		}
		if delta > s.MaxPixelDelta {
			s.MaxPixelDelta = delta
		}
	}
	return s
}
