package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vanads/internal/checkin"
	"vanads/internal/storage"
	"vanads/internal/store"
	"vanads/internal/utils"
	"vanads/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var progressCommand = &cli.Command{
	Name:      "progress",
	Usage:     "Print the check-in progress of every van in a campaign",
	ArgsUsage: "<access-code>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "dump the van records instead of the table",
		},
	},
	Action: func(c *cli.Context) error {
		code := c.Args().First()
		if code == "" {
			return fmt.Errorf("access code is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		// Keep the table readable
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)

		manager, err := openManager(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer manager.Close()

		service := checkin.NewService(
			logger,
			store.NewCampaignRepository(manager),
			store.NewLinkRepository(manager),
			store.NewPhotoRepository(manager),
			storage.NewLocalStorage(cfg.UploadRoot),
		)

		vans, err := service.VansByAccessCode(ctx, code)
		if err != nil {
			return err
		}

		if c.Bool("raw") {
			pp.Println(vans)
			return nil
		}

		fmt.Println(renderProgress(code, vans))

		return nil
	},
}

func renderProgress(code string, vans []*types.LinkedVan) string {
	headers := []string{"Link", "Plate", "Model", "Driver", "Initial", "Sticker", "Final", "Progress"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}

	rows := make([][]string, 0, len(vans))
	for _, van := range vans {
		present := make(map[types.Stage]bool, len(types.Stages))
		row := []string{
			strconv.FormatInt(van.CampaignVanID, 10),
			van.Plate,
			van.Model,
			utils.PtrString(van.DriverName),
		}

		for _, stage := range types.Stages {
			photo := van.Photos[stage]
			if photo == nil {
				row = append(row, "-")
				continue
			}
			present[stage] = true
			row = append(row, photo.UploadedAt.Local().Format("2006-01-02 15:04"))
		}

		percent, status := checkin.ProgressFor(present)
		row = append(row, fmt.Sprintf("%s %d%%", status, percent))

		rows = append(rows, row)
	}

	return renderTable("Campaign "+strings.ToUpper(code), headers, rows, aligns)
}
