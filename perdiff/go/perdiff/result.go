package perdiff

import (
	"fmt"
	"image"
)

// Reason describes how a comparison reached its verdict.
type Reason int

const (
	// ReasonIndistinguishable means fewer than ThresholdPixels pixels failed.
	ReasonIndistinguishable Reason = iota
	// ReasonBinaryIdentical means the pixel buffers were equal.
	ReasonBinaryIdentical
	// ReasonAlphaMismatch means at least one pixel had a different alpha.
	ReasonAlphaMismatch
	// ReasonVisiblyDifferent means ThresholdPixels or more pixels failed.
	ReasonVisiblyDifferent
)

func (r Reason) String() string {
	switch r {
	case ReasonIndistinguishable:
		return "perceptually indistinguishable"
	case ReasonBinaryIdentical:
		return "binary identical"
	case ReasonAlphaMismatch:
		return "alpha mismatch"
	case ReasonVisiblyDifferent:
		return "visibly different"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Result is the outcome of comparing two images.
type Result struct {
	// Passed is true if the images are considered the same.
	Passed bool
	// FailedPixels is the number of pixels which failed the test. When
	// Complete is false it is a lower bound.
	FailedPixels int
	Reason       Reason
	// Complete is false if fail-fast stopped the comparison early.
	Complete bool

	Width  int
	Height int

	// DiffMap has one entry per pixel, ColorPass or ColorFail, and is only
	// populated when requested. Pixels never examined because of fail-fast
	// are left as 0.
	DiffMap []uint32
}

// String returns a short human readable summary.
func (r *Result) String() string {
	s := fmt.Sprintf("%d pixels are different", r.FailedPixels)
	if !r.Complete {
		s = "At least " + s
	}
	return s
}

// Distance returns the fraction of pixels which failed, in [0, 1].
func (r *Result) Distance() float64 {
	n := r.Width * r.Height
	if n == 0 {
		return 0
	}
	return float64(r.FailedPixels) / float64(n)
}

// DiffImage returns the difference map as an image, or nil if no map was
// requested.
func (r *Result) DiffImage() *image.NRGBA {
	if r.DiffMap == nil {
		return nil
	}
	return (&Raster{Width: r.Width, Height: r.Height, Pix: r.DiffMap}).ToNRGBA()
}
