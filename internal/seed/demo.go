package seed

import (
	"context"
	"errors"
	"fmt"

	"vanads/internal/store"
	"vanads/internal/utils"
	"vanads/pkg/types"
)

const (
	DemoAccessCode = "AB12CD34"
	DemoPlate      = "ABC1234"
)

// Demo makes sure the demo campaign, its van and the link between them
// exist, creating whatever is missing. It is safe to run repeatedly.
func Demo(ctx context.Context, campaigns *store.CampaignRepository, vans *store.VanRepository, links *store.LinkRepository) (*types.CampaignVan, error) {
	campaign, err := campaigns.CampaignByAccessCode(ctx, DemoAccessCode)
	if errors.Is(err, types.ErrCampaignNotFound) {
		campaign, err = campaigns.CreateCampaign(ctx, &types.CampaignInput{
			AccessCode:  utils.StringPtr(DemoAccessCode),
			Name:        utils.StringPtr("Back to School"),
			Client:      utils.StringPtr("Demo Client"),
			Description: utils.StringPtr("Demo campaign for the photo check-in"),
			PlannedVans: utils.IntPtr(1),
			Municipalities: &[]types.MunicipalityInput{
				{City: "Campinas", State: "SP", PlannedVans: 1},
			},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo campaign: %w", err)
	}

	van, err := vanByPlate(ctx, vans, DemoPlate)
	if err != nil {
		return nil, err
	}
	if van == nil {
		van, err = vans.CreateVan(ctx, &types.VanInput{
			Plate: utils.StringPtr(DemoPlate),
			Model: utils.StringPtr("Sprinter"),
			Year:  utils.IntPtr(2020),
			City:  utils.StringPtr("Campinas"),
			State: utils.StringPtr("SP"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed demo van: %w", err)
		}
	}

	linked, err := links.AssociateVans(ctx, campaign.ID, []int64{van.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to link demo van: %w", err)
	}

	return linked[0], nil
}

func vanByPlate(ctx context.Context, vans *store.VanRepository, plate string) (*types.Van, error) {
	found, _, err := vans.Vans(ctx, types.VanFilter{Plate: plate, PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to look up van %s: %w", plate, err)
	}

	for _, van := range found {
		if van.Plate == plate {
			return van, nil
		}
	}

	return nil, nil
}
