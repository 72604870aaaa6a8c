package main

import (
	"context"
	"fmt"

	"vanads/internal/db"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the schema to the primary database",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout*3)
		defer cancel()

		if err := db.Migrate(ctx, cfg); err != nil {
			return fmt.Errorf("failed to migrate primary database: %w", err)
		}

		logrus.WithField("schema", cfg.DBSchema).Info("schema applied")

		return nil
	},
}
