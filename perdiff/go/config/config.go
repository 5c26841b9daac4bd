// Package config loads comparison settings from JSON5 files.
package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/flynn/json5"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/util"
	"go.crawlkit.dev/infra/perdiff/go/imgutil"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// Size modes accepted in the size_mode field.
const (
	SizeModeStrict = "strict"
	SizeModeCrop   = "crop"
	SizeModeResize = "resize"
)

// Config is the on-disk configuration of the perdiff tool. Fields which are
// missing from a file keep their previous value, so several files can be
// layered on top of the defaults.
type Config struct {
	perdiff.Options

	// Workers is the size of the comparison worker pool. Zero means one per
	// CPU.
	Workers int `json:"workers"`

	// SizeMode is one of "strict", "crop" or "resize" and controls what
	// happens when two screenshots differ in size.
	SizeMode string `json:"size_mode"`

	// ThresholdPercent, if positive, replaces threshold_pixels with this
	// percentage of the image area.
	ThresholdPercent float64 `json:"threshold_percent"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Options:  perdiff.DefaultOptions(),
		SizeMode: SizeModeStrict,
	}
}

// Crawler returns the configuration used to compare application states.
func Crawler() *Config {
	return &Config{
		Options:  perdiff.CrawlerOptions(),
		SizeMode: SizeModeStrict,
	}
}

// LoadFromJSON5 reads each path in order on top of base and validates the
// result. Unknown keys are an error.
func LoadFromJSON5(base *Config, paths ...string) (*Config, error) {
	cfg := *base
	for _, path := range paths {
		err := util.WithReadFile(path, func(r io.Reader) error {
			return decode(r, &cfg)
		})
		if err != nil {
			return nil, skerr.Wrapf(err, "reading config at %s", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	return &cfg, nil
}

// Load decodes a single JSON5 document on top of base.
func Load(r io.Reader, base *Config) (*Config, error) {
	cfg := *base
	if err := decode(r, &cfg); err != nil {
		return nil, skerr.Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return skerr.Wrap(err)
	}
	var raw map[string]interface{}
	if err := json5.Unmarshal(b, &raw); err != nil {
		return skerr.Wrapf(err, "parsing JSON5")
	}
	known := jsonKeys(reflect.TypeOf(*cfg))
	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return skerr.Fmt("unknown config keys: %s", strings.Join(unknown, ", "))
	}
	if err := json5.NewDecoder(bytes.NewReader(b)).Decode(cfg); err != nil {
		return skerr.Wrapf(err, "decoding JSON5")
	}
	return nil
}

// jsonKeys returns the json tag names of t's fields, descending into embedded
// structs.
func jsonKeys(t reflect.Type) map[string]bool {
	ret := map[string]bool{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			for k := range jsonKeys(field.Type) {
				ret[k] = true
			}
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			ret[name] = true
		}
	}
	return ret
}

// Validate checks the options and the fields specific to the tool.
func (c *Config) Validate() error {
	if err := c.Options.Validate(); err != nil {
		return skerr.Wrap(err)
	}
	if c.Workers < 0 {
		return skerr.Fmt("workers must not be negative, got %d", c.Workers)
	}
	if c.ThresholdPercent < 0 || c.ThresholdPercent > 100 {
		return skerr.Fmt("threshold_percent must be in [0, 100], got %g", c.ThresholdPercent)
	}
	if _, err := c.Mode(); err != nil {
		return skerr.Wrap(err)
	}
	return nil
}

// Mode returns the SizeMode named by c.SizeMode.
func (c *Config) Mode() (imgutil.SizeMode, error) {
	switch c.SizeMode {
	case "", SizeModeStrict:
		return imgutil.SizeStrict, nil
	case SizeModeCrop:
		return imgutil.SizeCrop, nil
	case SizeModeResize:
		return imgutil.SizeResize, nil
	}
	return imgutil.SizeStrict, skerr.Fmt("unknown size_mode %q", c.SizeMode)
}

// OptionsFor returns the engine options for images of the given size, with
// ThresholdPercent applied.
func (c *Config) OptionsFor(width, height int) perdiff.Options {
	o := c.Options
	if c.ThresholdPercent > 0 {
		o.ThresholdPixels = perdiff.ThresholdFromPercent(width, height, c.ThresholdPercent)
	}
	return o
}

// Dump writes a human readable description of the configuration.
func Dump(w io.Writer, c *Config) error {
	lines := []string{
		fmt.Sprintf("Field of view is %g degrees", c.FieldOfView),
	}
	if c.ThresholdPercent > 0 {
		lines = append(lines, fmt.Sprintf("Threshold is %g%% of the image", c.ThresholdPercent))
	} else {
		lines = append(lines, fmt.Sprintf("Threshold is %d pixels", c.ThresholdPixels))
	}
	lines = append(lines,
		fmt.Sprintf("Gamma is %g", c.Gamma),
		fmt.Sprintf("The display's Luminance is %g candelas per meter squared", c.Luminance),
		fmt.Sprintf("Color factor is %g", c.ColorFactor),
		fmt.Sprintf("Luminance only is %t", c.LuminanceOnly),
		fmt.Sprintf("Fail fast is %t", c.FailFast),
		fmt.Sprintf("Size mode is %s", c.SizeMode),
	)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return skerr.Wrap(err)
		}
	}
	return nil
}
