package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.crawlkit.dev/infra/go/skerr"
)

// distanceCmd prints the fraction of pixels which differ between two images,
// using the crawler settings unless told otherwise.
type distanceCmd struct {
	commonCmd
}

// DistanceCommand returns a [*cli.Command] which prints the perceptual
// distance between two image files.
func DistanceCommand() *cli.Command {
	cmd := &distanceCmd{}
	return &cli.Command{
		Name:        "distance",
		Description: "distance prints the fraction, in [0, 1], of pixels which are visibly different.",
		Usage:       "perdiff distance <image_a> <image_b>",
		ArgsUsage:   "<image_a> <image_b>",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *distanceCmd) flags() []cli.Flag {
	fl := cmd.commonCmd.flags()
	for _, f := range fl {
		if bf, ok := f.(*cli.BoolFlag); ok && bf.Name == crawlerFlagName {
			bf.Value = true
			bf.Usage = "use the settings used to compare crawler states"
		}
	}
	return fl
}

func (cmd *distanceCmd) action(c *cli.Context) error {
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

	d, err := engine.Distance(contextOf(c), a, b)
	if err != nil {
		return skerr.Wrapf(err, "comparing %s and %s", c.Args().Get(0), c.Args().Get(1))
	}
	_, err = fmt.Fprintf(c.App.Writer, "%g\n", d)
	return skerr.Wrap(err)
}
