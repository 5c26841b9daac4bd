// Package imgmatching decides whether a new screenshot matches a known one,
// using one of several algorithms selected through string keys.
package imgmatching

import (
	"context"
	"slices"

	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// AlgorithmName is the name of an image matching algorithm.
type AlgorithmName string

const (
	ExactMatching      AlgorithmName = "exact"
	FuzzyMatching      AlgorithmName = "fuzzy"
	PerceptualMatching AlgorithmName = "perceptual"
)

// AlgorithmNameOptKey is the key that selects the algorithm.
const AlgorithmNameOptKey = "image_matching_algorithm"

// AlgorithmParamOptKey is the key of an algorithm parameter.
type AlgorithmParamOptKey string

const (
	// Fuzzy matching parameters.
	MaxDifferentPixels  AlgorithmParamOptKey = "fuzzy_max_different_pixels"
	PixelDeltaThreshold AlgorithmParamOptKey = "fuzzy_pixel_delta_threshold"

	// Perceptual matching parameters.
	PerceptualFieldOfView        AlgorithmParamOptKey = "perceptual_fov"
	PerceptualGamma              AlgorithmParamOptKey = "perceptual_gamma"
	PerceptualLuminance          AlgorithmParamOptKey = "perceptual_luminance"
	PerceptualColorFactor        AlgorithmParamOptKey = "perceptual_color_factor"
	PerceptualMaxDifferentPixels AlgorithmParamOptKey = "perceptual_max_different_pixels"
	PerceptualLuminanceOnly      AlgorithmParamOptKey = "perceptual_luminance_only"
)

// Matcher compares an expected and an actual screenshot.
type Matcher interface {
	// Match returns true if actual should be considered the same as expected.
	Match(ctx context.Context, expected, actual *perdiff.Raster) (bool, error)
}

// exactMatcher matches byte identical images only.
type exactMatcher struct{}

func (exactMatcher) Match(_ context.Context, expected, actual *perdiff.Raster) (bool, error) {
	if expected == nil || actual == nil {
		return false, nil
	}
	if expected.Width != actual.Width || expected.Height != actual.Height {
		return false, nil
	}
	return slices.Equal(expected.Pix, actual.Pix), nil
}
