package imgmatching

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/perdiff/go/imgmatching/fuzzy"
	"go.crawlkit.dev/infra/perdiff/go/imgmatching/perceptual"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// MakeMatcher takes a map of optional keys and returns the specified image matching algorithm
// name, and the corresponding Matcher instance.
//
// It returns a non-nil error if the specified image matching algorithm is invalid, or if any
// required parameters are not found, or if the parameter values are not valid.
//
// A perceptual Matcher owns a worker pool; callers which are done with it should Close it if it
// implements io.Closer.
func MakeMatcher(optionalKeys map[string]string) (AlgorithmName, Matcher, error) {
	algorithmNameStr, ok := optionalKeys[AlgorithmNameOptKey]
	algorithmName := AlgorithmName(algorithmNameStr)

	// Exact matching by default.
	if !ok {
		algorithmName = ExactMatching
	}

	switch algorithmName {
	case ExactMatching:
		return ExactMatching, exactMatcher{}, nil

	case FuzzyMatching:
		matcher, err := makeFuzzyMatcher(optionalKeys)
		if err != nil {
			return "", nil, skerr.Wrap(err)
		}
		return FuzzyMatching, matcher, nil

	case PerceptualMatching:
		matcher, err := makePerceptualMatcher(optionalKeys)
		if err != nil {
			return "", nil, skerr.Wrap(err)
		}
		return PerceptualMatching, matcher, nil

	default:
		return "", nil, skerr.Fmt("unrecognized image matching algorithm: %q", algorithmName)
	}
}

// makeFuzzyMatcher returns a fuzzy.Matcher instance set up with the parameter values in the
// given optional keys map.
func makeFuzzyMatcher(optionalKeys map[string]string) (*fuzzy.Matcher, error) {
	maxDifferentPixels, err := getAndValidateIntParameter(MaxDifferentPixels, 0, math.MaxInt32, true /* =required */, optionalKeys)
	if err != nil {
		return nil, skerr.Wrap(err)
	}

	// Four 8-bit channels, so the largest possible per-pixel delta sum is 255*4.
	pixelDeltaThreshold, err := getAndValidateIntParameter(PixelDeltaThreshold, 0, 1020, true /* =required */, optionalKeys)
	if err != nil {
		return nil, skerr.Wrap(err)
	}

	return &fuzzy.Matcher{
		MaxDifferentPixels:  maxDifferentPixels,
		PixelDeltaThreshold: pixelDeltaThreshold,
	}, nil
}

// makePerceptualMatcher returns a perceptual.Matcher built from the crawler options, with any
// perceptual_* keys overriding them.
func makePerceptualMatcher(optionalKeys map[string]string) (*perceptual.Matcher, error) {
	opts := perdiff.CrawlerOptions()

	floats := []struct {
		key      AlgorithmParamOptKey
		min, max float64
		dst      *float64
	}{
		{key: PerceptualFieldOfView, min: 0, max: 180, dst: &opts.FieldOfView},
		{key: PerceptualGamma, min: 0, max: math.MaxFloat32, dst: &opts.Gamma},
		{key: PerceptualLuminance, min: 0, max: math.MaxFloat32, dst: &opts.Luminance},
		// Zero is a valid color factor; NewConfig rejects negative values.
		{key: PerceptualColorFactor, min: math.Inf(-1), max: math.Inf(1), dst: &opts.ColorFactor},
	}
	for _, f := range floats {
		v, ok, err := getAndValidateFloatParameter(f.key, f.min, f.max, optionalKeys)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		if ok {
			*f.dst = v
		}
	}

	if _, ok := optionalKeys[string(PerceptualMaxDifferentPixels)]; ok {
		maxDifferentPixels, err := getAndValidateIntParameter(PerceptualMaxDifferentPixels, 0, math.MaxInt32, true /* =required */, optionalKeys)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		// The engine fails at ThresholdPixels, the matcher tolerates up to max.
		opts.ThresholdPixels = maxDifferentPixels + 1
	}

	if s, ok := optionalKeys[string(PerceptualLuminanceOnly)]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, skerr.Fmt("parsing boolean value for image matching parameter %q: %q", PerceptualLuminanceOnly, err.Error())
		}
		opts.LuminanceOnly = b
	}

	cfg, err := perdiff.NewConfig(opts)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return perceptual.New(cfg), nil
}

// getAndValidateIntParameter extracts and validates the given required integer parameter from the
// given map of optional keys.
//
// Minimum and maximum value validation can be disabled by setting parameters min and max to
// math.MinInt32 and math.MaxInt32, respectively.
//
// If required is false and the parameter is not present in the map of optional keys, a value of 0
// will be returned.
func getAndValidateIntParameter(name AlgorithmParamOptKey, min, max int, required bool, optionalKeys map[string]string) (int, error) {
	if min >= max {
		// This is almost surely a programming error.
		panic(fmt.Sprintf("min must be strictly less than max, min was %d, max was %d", min, max))
	}

	stringVal, ok := optionalKeys[string(name)]
	if !ok {
		if required {
			return 0, skerr.Fmt("required image matching parameter not found: %q", name)
		}
		return 0, nil
	}

	if strings.TrimSpace(stringVal) == "" {
		return 0, skerr.Fmt("image matching parameter %q cannot be empty", name)
	}

	// Parse as a 32-bit int so that results do not depend on the platform's int size.
	int64Val, err := strconv.ParseInt(stringVal, 0, 32)
	if err != nil {
		return 0, skerr.Fmt("parsing integer value for image matching parameter %q: %q", name, err.Error())
	}
	intVal := int(int64Val)

	if intVal < min || intVal > max {
		if min == math.MinInt32 {
			return 0, skerr.Fmt("image matching parameter %q must be at most %d, was: %d", name, max, int64Val)
		}
		if max == math.MaxInt32 {
			return 0, skerr.Fmt("image matching parameter %q must be at least %d, was: %d", name, min, int64Val)
		}
		return 0, skerr.Fmt("image matching parameter %q must be between %d and %d, was: %d", name, min, max, int64Val)
	}

	return intVal, nil
}

// getAndValidateFloatParameter extracts an optional float parameter which must lie in the open
// interval (min, max). The second return value is false if the key is absent.
func getAndValidateFloatParameter(name AlgorithmParamOptKey, min, max float64, optionalKeys map[string]string) (float64, bool, error) {
	stringVal, ok := optionalKeys[string(name)]
	if !ok {
		return 0, false, nil
	}
	if strings.TrimSpace(stringVal) == "" {
		return 0, false, skerr.Fmt("image matching parameter %q cannot be empty", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(stringVal), 64)
	if err != nil {
		return 0, false, skerr.Fmt("parsing float value for image matching parameter %q: %q", name, err.Error())
	}
	if math.IsNaN(v) || v <= min || v >= max {
		return 0, false, skerr.Fmt("image matching parameter %q must be between %g and %g (exclusive), was: %g", name, min, max, v)
	}
	return v, true, nil
}
