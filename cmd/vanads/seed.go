package main

import (
	"context"
	"fmt"

	"vanads/internal/seed"
	"vanads/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the active database with the demo campaign",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()
		logger := logrus.StandardLogger()

		manager, err := openManager(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer manager.Close()

		logger.WithField("store", manager.State().String()).Info("seeding demo campaign")

		link, err := seed.Demo(
			ctx,
			store.NewCampaignRepository(manager),
			store.NewVanRepository(manager),
			store.NewLinkRepository(manager),
		)
		if err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"access_code": seed.DemoAccessCode,
			"plate":       seed.DemoPlate,
			"link_id":     link.ID,
		}).Info("demo campaign seeded")

		return nil
	},
}
