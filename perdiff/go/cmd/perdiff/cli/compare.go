package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
	"go.crawlkit.dev/infra/perdiff/go/imgutil"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// ExitDifferent is the exit code of the compare command when the images are
// visibly different.
const ExitDifferent = 1

const diffFlagName = "diff"

// compareCmd compares two images and exits with ExitDifferent if they are
// visibly different.
type compareCmd struct {
	commonCmd
	diffPath string
}

// CompareCommand returns a [*cli.Command] which compares two image files.
func CompareCommand() *cli.Command {
	cmd := &compareCmd{}
	return &cli.Command{
		Name:        "compare",
		Description: "compare tells whether two images are perceptually different.",
		Usage:       "perdiff compare [--diff out.png] <image_a> <image_b>",
		ArgsUsage:   "<image_a> <image_b>",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *compareCmd) flags() []cli.Flag {
	fl := []cli.Flag{
		&cli.StringFlag{
			Name:        diffFlagName,
			Usage:       "write the difference map as a PNG to this path",
			Destination: &cmd.diffPath,
		},
	}
	return append(fl, cmd.commonCmd.flags()...)
}

func (cmd *compareCmd) action(c *cli.Context) error {
	cmd.setupLogging(c)
	cfg, err := cmd.config(c)
	if err != nil {
		return err
	}
	a, b, err := cmd.imagePair(c, cfg)
	if err != nil {
		return err
	}
	engine, err := cmd.engine(cfg, a.Width, a.Height)
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.Compare(contextOf(c), a, b, cmd.diffPath != "")
	if err != nil {
		return skerr.Wrapf(err, "comparing %s and %s", c.Args().Get(0), c.Args().Get(1))
	}
	if img := res.DiffImage(); img != nil {
		if err := imgutil.WritePNGFile(cmd.diffPath, img); err != nil {
			return err
		}
		sklog.Infof("Wrote difference map to %s", cmd.diffPath)
	}

	w := c.App.Writer
	if res.Passed {
		color.New(color.FgGreen).Fprintln(w, "PASS: Images are perceptually indistinguishable")
	} else {
		color.New(color.FgRed).Fprintln(w, "FAIL: Images are visibly different")
	}
	if res.Reason == perdiff.ReasonVisiblyDifferent || res.Reason == perdiff.ReasonAlphaMismatch {
		fmt.Fprintf(w, "%s (%s of %s pixels, threshold %s)\n",
			res, humanize.Comma(int64(res.FailedPixels)), humanize.Comma(int64(res.Width*res.Height)),
			humanize.Comma(int64(engine.Config().Options().ThresholdPixels)))
	} else {
		fmt.Fprintf(w, "%s\n", res.Reason)
	}
	if !res.Passed {
		return cli.Exit("", ExitDifferent)
	}
	return nil
}
