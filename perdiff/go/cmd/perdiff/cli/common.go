// Package cli implements the subcommands of the perdiff tool.
package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
	"go.crawlkit.dev/infra/go/sklog/sklogimpl"
	"go.crawlkit.dev/infra/go/sklog/stdlogging"
	"go.crawlkit.dev/infra/go/urfavecli"
	"go.crawlkit.dev/infra/perdiff/go/config"
	"go.crawlkit.dev/infra/perdiff/go/imgutil"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// flag names
const (
	configFlagName           = "config"
	crawlerFlagName          = "crawler"
	fovFlagName              = "fov"
	gammaFlagName            = "gamma"
	luminanceFlagName        = "luminance"
	luminanceOnlyFlagName    = "luminance-only"
	colorFactorFlagName      = "color-factor"
	thresholdFlagName        = "threshold"
	thresholdPercentFlagName = "threshold-percent"
	failFastFlagName         = "fail-fast"
	fastPowFlagName          = "fast-pow"
	resizeFlagName           = "resize"
	cropFlagName             = "crop"
	workersFlagName          = "workers"
	verboseFlagName          = "verbose"
)

// commonCmd holds the flags shared by every subcommand. Flags which are set
// on the command line override the values read from config files.
type commonCmd struct {
	configPaths      cli.StringSlice
	crawler          bool
	fov              float64
	gamma            float64
	luminance        float64
	luminanceOnly    bool
	colorFactor      float64
	threshold        int
	thresholdPercent float64
	failFast         bool
	fastPow          bool
	resize           bool
	crop             bool
	workers          int
	verbose          bool
}

func (cmd *commonCmd) flags() []cli.Flag {
	def := perdiff.DefaultOptions()
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        configFlagName,
			Usage:       "JSON5 config file; may be repeated, later files override earlier ones",
			Destination: &cmd.configPaths,
		}, &cli.BoolFlag{
			Name:        crawlerFlagName,
			Usage:       "start from the settings used to compare crawler states instead of the defaults",
			Destination: &cmd.crawler,
		}, &cli.Float64Flag{
			Name:        fovFlagName,
			Value:       def.FieldOfView,
			Usage:       "field of view in degrees, in (0, 180)",
			Destination: &cmd.fov,
		}, &cli.Float64Flag{
			Name:        gammaFlagName,
			Value:       def.Gamma,
			Usage:       "display gamma",
			Destination: &cmd.gamma,
		}, &cli.Float64Flag{
			Name:        luminanceFlagName,
			Value:       def.Luminance,
			Usage:       "white luminance of the display in candelas per square meter",
			Destination: &cmd.luminance,
		}, &cli.BoolFlag{
			Name:        luminanceOnlyFlagName,
			Usage:       "only compare luminance; ignore color",
			Destination: &cmd.luminanceOnly,
		}, &cli.Float64Flag{
			Name:        colorFactorFlagName,
			Value:       def.ColorFactor,
			Usage:       "how much of color to use, 0.0 to 1.0",
			Destination: &cmd.colorFactor,
		}, &cli.IntFlag{
			Name:        thresholdFlagName,
			Value:       def.ThresholdPixels,
			Usage:       "number of different pixels at which the images are considered different",
			Destination: &cmd.threshold,
		}, &cli.Float64Flag{
			Name:        thresholdPercentFlagName,
			Usage:       "threshold as a percentage of the image area; overrides --threshold",
			Destination: &cmd.thresholdPercent,
		}, &cli.BoolFlag{
			Name:        failFastFlagName,
			Usage:       "stop as soon as the threshold is reached",
			Destination: &cmd.failFast,
		}, &cli.BoolFlag{
			Name:        fastPowFlagName,
			Usage:       "use a faster, approximate power function",
			Destination: &cmd.fastPow,
		}, &cli.BoolFlag{
			Name:        resizeFlagName,
			Usage:       "scale the second image to the size of the first",
			Destination: &cmd.resize,
		}, &cli.BoolFlag{
			Name:        cropFlagName,
			Usage:       "crop both images to their common area",
			Destination: &cmd.crop,
		}, &cli.IntFlag{
			Name:        workersFlagName,
			Usage:       "number of comparison workers; 0 means one per CPU",
			Destination: &cmd.workers,
		}, &cli.BoolFlag{
			Name:        verboseFlagName,
			Usage:       "log debug output and flag values",
			Destination: &cmd.verbose,
		},
	}
}

// setupLogging drops debug lines unless --verbose is given.
func (cmd *commonCmd) setupLogging(c *cli.Context) {
	level := sklogimpl.Info
	if cmd.verbose {
		level = sklogimpl.Debug
	}
	sklog.SetLogger(stdlogging.NewAtLevel(os.Stderr, level))
	if cmd.verbose {
		urfavecli.LogFlags(c)
	}
}

// config returns the effective configuration: the defaults, then each config
// file, then any flag given on the command line.
func (cmd *commonCmd) config(c *cli.Context) (*config.Config, error) {
	base := config.Default()
	if cmd.crawler {
		base = config.Crawler()
	}
	cfg, err := config.LoadFromJSON5(base, cmd.configPaths.Value()...)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if c.IsSet(fovFlagName) {
		cfg.FieldOfView = cmd.fov
	}
	if c.IsSet(gammaFlagName) {
		cfg.Gamma = cmd.gamma
	}
	if c.IsSet(luminanceFlagName) {
		cfg.Luminance = cmd.luminance
	}
	if c.IsSet(luminanceOnlyFlagName) {
		cfg.LuminanceOnly = cmd.luminanceOnly
	}
	if c.IsSet(colorFactorFlagName) {
		cfg.ColorFactor = cmd.colorFactor
	}
	if c.IsSet(thresholdFlagName) {
		cfg.ThresholdPixels = cmd.threshold
		cfg.ThresholdPercent = 0
	}
	if c.IsSet(thresholdPercentFlagName) {
		cfg.ThresholdPercent = cmd.thresholdPercent
	}
	if c.IsSet(failFastFlagName) {
		cfg.FailFast = cmd.failFast
	}
	if c.IsSet(fastPowFlagName) {
		cfg.FastPow = cmd.fastPow
	}
	if c.IsSet(workersFlagName) {
		cfg.Workers = cmd.workers
	}
	if cmd.resize && cmd.crop {
		return nil, skerr.Fmt("--%s and --%s are mutually exclusive", resizeFlagName, cropFlagName)
	}
	if cmd.resize {
		cfg.SizeMode = config.SizeModeResize
	}
	if cmd.crop {
		cfg.SizeMode = config.SizeModeCrop
	}
	if err := cfg.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	return cfg, nil
}

// imagePair returns the two images named on the command line, brought to a
// common size according to cfg.
func (cmd *commonCmd) imagePair(c *cli.Context, cfg *config.Config) (*perdiff.Raster, *perdiff.Raster, error) {
	if c.NArg() != 2 {
		return nil, nil, skerr.Fmt("expected two image files, got %d arguments", c.NArg())
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, nil, skerr.Wrap(err)
	}
	imgA, err := imgutil.DecodeFile(c.Args().Get(0))
	if err != nil {
		return nil, nil, skerr.Wrap(err)
	}
	imgB, err := imgutil.DecodeFile(c.Args().Get(1))
	if err != nil {
		return nil, nil, skerr.Wrap(err)
	}
	imgA, imgB = imgutil.Normalize(imgA, imgB, mode)
	return perdiff.FromImage(imgA), perdiff.FromImage(imgB), nil
}

// engine returns an Engine configured for images of the given size. The
// caller must Close it.
func (cmd *commonCmd) engine(cfg *config.Config, width, height int) (*perdiff.Engine, error) {
	pcfg, err := perdiff.NewConfig(cfg.OptionsFor(width, height))
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return perdiff.NewEngine(pcfg, cfg.Workers), nil
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
