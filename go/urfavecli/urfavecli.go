// Package urfavecli contains utility functions for working with
// https://github.com/urfave/cli.
package urfavecli

import (
	"github.com/urfave/cli/v2"
	"go.crawlkit.dev/infra/go/sklog"
)

// LogFlags logs the value of every flag of the running command, followed by
// the flags of the app itself. The help flag is skipped.
func LogFlags(cliContext *cli.Context) {
	var flags []cli.Flag
	if cliContext.Command != nil {
		flags = append(flags, cliContext.Command.Flags...)
	}
	if cliContext.App != nil {
		flags = append(flags, cliContext.App.Flags...)
	}
	for _, f := range flags {
		name := f.Names()[0]
		if name == cli.HelpFlag.Names()[0] {
			continue
		}
		sklog.Infof("Flags: --%s=%v", name, cliContext.Value(name))
	}
}
