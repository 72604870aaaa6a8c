package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "vanads",
		Usage: "School van advertising campaigns and photo check-ins",
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			seedCommand,
			accessCodeCommand,
			progressCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
