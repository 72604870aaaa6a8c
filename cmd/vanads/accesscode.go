package main

import (
	"fmt"

	"vanads/internal/utils"

	"github.com/urfave/cli/v2"
)

var accessCodeCommand = &cli.Command{
	Name:  "accesscode",
	Usage: "Generate campaign access codes",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of codes to generate",
			Value:   1,
		},
	},
	Action: func(c *cli.Context) error {
		count := c.Int("count")
		for range count {
			fmt.Println(utils.AccessCode())
		}
		return nil
	},
}
