package perdiff

import (
	"errors"
	"math"

	"go.crawlkit.dev/infra/go/skerr"
)

var (
	// ErrDimensionMismatch is returned when the two images do not have the same
	// width and height.
	ErrDimensionMismatch = errors.New("image dimensions do not match")

	// ErrEmptyImage is returned for images with zero width or height.
	ErrEmptyImage = errors.New("image has no pixels")

	// ErrInvalidRaster is returned when a Raster's pixel buffer does not hold
	// Width*Height entries.
	ErrInvalidRaster = errors.New("invalid raster")

	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("invalid options")
)

// Options is the user-editable configuration of a comparison. The zero value
// is not useful; start from DefaultOptions or CrawlerOptions.
type Options struct {
	// FieldOfView is the horizontal field of view of the observer, in degrees.
	FieldOfView float64 `json:"field_of_view"`

	// Gamma converts 8-bit channel values into linear space.
	Gamma float64 `json:"gamma"`

	// Luminance is the white luminance of the display in cd/m^2.
	Luminance float64 `json:"luminance"`

	// LuminanceOnly disables the chroma test.
	LuminanceOnly bool `json:"luminance_only"`

	// ColorFactor scales the chroma test. Zero disables it.
	ColorFactor float64 `json:"color_factor"`

	// ThresholdPixels is the number of failed pixels at which the images are
	// considered visibly different.
	ThresholdPixels int `json:"threshold_pixels"`

	// FailFast stops the comparison as soon as ThresholdPixels failures have
	// been seen. FailedPixels is then only a lower bound.
	FailFast bool `json:"fail_fast"`

	// FastPow replaces math.Pow in the model with a cheaper approximation.
	FastPow bool `json:"fast_pow"`
}

// DefaultOptions returns the standard pdiff settings.
func DefaultOptions() Options {
	return Options{
		FieldOfView:     45.0,
		Gamma:           2.2,
		Luminance:       100.0,
		LuminanceOnly:   false,
		ColorFactor:     1.0,
		ThresholdPixels: 100,
		FailFast:        false,
	}
}

// CrawlerOptions returns the settings used to decide whether two screenshots
// of a web application show the same state. The chroma test is off and the
// observer is assumed to sit close to a dim screen. ThresholdPixels keeps the
// default; callers usually derive it from the image size with
// ThresholdFromPercent.
func CrawlerOptions() Options {
	o := DefaultOptions()
	o.ColorFactor = 0
	o.FieldOfView = 27
	o.Gamma = 4.2
	o.Luminance = 20
	o.LuminanceOnly = false
	return o
}

// ThresholdFromPercent converts a percentage of the total image area into a
// pixel threshold.
func ThresholdFromPercent(width, height int, percent float64) int {
	return int(float64(width*height) * percent / 100)
}

// Validate returns an error wrapping ErrInvalidOptions if any field is out of
// range.
func (o Options) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return skerr.Wrapf(ErrInvalidOptions, format, args...)
	}
	switch {
	case math.IsNaN(o.FieldOfView) || o.FieldOfView <= 0 || o.FieldOfView >= 180:
		return bad("field of view must be in (0, 180) degrees, got %g", o.FieldOfView)
	case math.IsNaN(o.Gamma) || o.Gamma <= 0:
		return bad("gamma must be positive, got %g", o.Gamma)
	case math.IsNaN(o.Luminance) || o.Luminance <= 0:
		return bad("luminance must be positive, got %g", o.Luminance)
	case math.IsNaN(o.ColorFactor) || o.ColorFactor < 0:
		return bad("color factor must not be negative, got %g", o.ColorFactor)
	case o.ThresholdPixels < 0:
		return bad("threshold must not be negative, got %d", o.ThresholdPixels)
	}
	return nil
}
