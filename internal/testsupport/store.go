package testsupport

import (
	"context"
	"testing"

	"vanads/internal/db"
	"vanads/internal/store"
	"vanads/internal/utils"
	"vanads/pkg/types"
)

// MustOpenManager initializes a manager for tests and registers cleanup.
// With a config from NewConfig the manager runs on the fallback store.
func MustOpenManager(t testing.TB, cfg *types.Config) *db.Manager {
	t.Helper()

	manager := db.NewManager(cfg, Logger())
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("manager.Initialize: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})
	return manager
}

// NewCampaign creates an active campaign with the given access code.
func NewCampaign(t testing.TB, manager *db.Manager, name, accessCode string) *types.Campaign {
	t.Helper()

	campaign, err := store.NewCampaignRepository(manager).CreateCampaign(context.Background(), &types.CampaignInput{
		AccessCode: utils.StringPtr(accessCode),
		Name:       utils.StringPtr(name),
		Client:     utils.StringPtr("Test Client"),
	})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return campaign
}

func NewVan(t testing.TB, manager *db.Manager, plate string) *types.Van {
	t.Helper()

	van, err := store.NewVanRepository(manager).CreateVan(context.Background(), &types.VanInput{
		Plate: utils.StringPtr(plate),
		Model: utils.StringPtr("Sprinter"),
		City:  utils.StringPtr("Campinas"),
		State: utils.StringPtr("SP"),
	})
	if err != nil {
		t.Fatalf("CreateVan: %v", err)
	}
	return van
}

// NewLink associates the van with the campaign and returns the link.
func NewLink(t testing.TB, manager *db.Manager, campaignID, vanID int64) *types.CampaignVan {
	t.Helper()

	links, err := store.NewLinkRepository(manager).AssociateVans(context.Background(), campaignID, []int64{vanID})
	if err != nil {
		t.Fatalf("AssociateVans: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("AssociateVans returned %d links, want 1", len(links))
	}
	return links[0]
}
