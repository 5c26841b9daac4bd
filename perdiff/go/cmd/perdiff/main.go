// Package main is the perdiff command line tool. It compares two images
// using a model of human visual perception.
package main

import (
	"github.com/urfave/cli/v2"
	perdiffcli "go.crawlkit.dev/infra/perdiff/go/cmd/perdiff/cli"
)

func main() {
	app := &cli.App{
		Name:  "perdiff",
		Usage: "perdiff tells whether two images are perceptually different.",
		Commands: []*cli.Command{
			perdiffcli.CompareCommand(),
			perdiffcli.DistanceCommand(),
			perdiffcli.ConfigCommand(),
		},
	}
	app.RunAndExitOnError()
}
