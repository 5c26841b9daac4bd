package cli

import (
	"github.com/urfave/cli/v2"
	"go.crawlkit.dev/infra/perdiff/go/config"
)

type configCmd struct {
	commonCmd
}

// ConfigCommand returns a [*cli.Command] which prints the configuration that
// compare would use given the same flags.
func ConfigCommand() *cli.Command {
	cmd := &configCmd{}
	return &cli.Command{
		Name:        "config",
		Description: "config prints the effective configuration.",
		Usage:       "perdiff config [--config f.json5]",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *configCmd) action(c *cli.Context) error {
	cmd.setupLogging(c)
	cfg, err := cmd.config(c)
	if err != nil {
		return err
	}
	return config.Dump(c.App.Writer, cfg)
}
