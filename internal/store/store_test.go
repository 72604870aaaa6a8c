package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vanads/internal/db"
	"vanads/internal/store"
	"vanads/internal/testsupport"
	"vanads/internal/utils"
	"vanads/pkg/types"
)

func TestCreateCampaignGeneratesAccessCode(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewCampaignRepository(manager)

	campaign, err := repo.CreateCampaign(context.Background(), &types.CampaignInput{
		Name:   utils.StringPtr("Back to School"),
		Client: utils.StringPtr("Acme"),
		Municipalities: &[]types.MunicipalityInput{
			{City: "Campinas", State: "SP", PlannedVans: 3},
			{City: "Sumaré", State: "SP"},
		},
	})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	if len(campaign.AccessCode) != utils.AccessCodeSize {
		t.Fatalf("access code %q has length %d, want %d", campaign.AccessCode, len(campaign.AccessCode), utils.AccessCodeSize)
	}
	if strings.Trim(campaign.AccessCode, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789") != "" {
		t.Fatalf("access code %q has characters outside A-Z0-9", campaign.AccessCode)
	}
	if campaign.Status != types.CampaignStatusActive {
		t.Fatalf("status = %q, want %q", campaign.Status, types.CampaignStatusActive)
	}
	if len(campaign.Municipalities) != 2 {
		t.Fatalf("municipalities = %d, want 2", len(campaign.Municipalities))
	}
	if campaign.Municipalities[1].PlannedVans != 1 {
		t.Fatalf("default planned vans = %d, want 1", campaign.Municipalities[1].PlannedVans)
	}

	found, err := repo.CampaignByAccessCode(context.Background(), campaign.AccessCode)
	if err != nil {
		t.Fatalf("CampaignByAccessCode: %v", err)
	}
	if found.ID != campaign.ID {
		t.Fatalf("found campaign %d, want %d", found.ID, campaign.ID)
	}
}

func TestCreateCampaignRejectsDuplicateAccessCode(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	testsupport.NewCampaign(t, manager, "First", "AB12CD34")

	_, err := store.NewCampaignRepository(manager).CreateCampaign(context.Background(), &types.CampaignInput{
		AccessCode: utils.StringPtr("ab12cd34"),
		Name:       utils.StringPtr("Second"),
		Client:     utils.StringPtr("Acme"),
	})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCreateCampaignRequiresNameAndClient(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))

	_, err := store.NewCampaignRepository(manager).CreateCampaign(context.Background(), &types.CampaignInput{
		Name: utils.StringPtr("No client"),
	})
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCampaignNotFound(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewCampaignRepository(manager)

	if _, err := repo.Campaign(context.Background(), 42); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("Campaign: expected ErrCampaignNotFound, got %v", err)
	}
	if _, err := repo.CampaignByAccessCode(context.Background(), "NOPE0000"); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("CampaignByAccessCode: expected ErrCampaignNotFound, got %v", err)
	}
	if err := repo.DeleteCampaign(context.Background(), 42); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("DeleteCampaign: expected ErrCampaignNotFound, got %v", err)
	}
	if _, err := repo.UpdateCampaign(context.Background(), 42, &types.CampaignInput{Name: utils.StringPtr("x")}); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("UpdateCampaign: expected ErrCampaignNotFound, got %v", err)
	}
}

func TestCampaignsFiltersAndPaginates(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewCampaignRepository(manager)

	testsupport.NewCampaign(t, manager, "Summer Vans", "SUMMER01")
	testsupport.NewCampaign(t, manager, "Summer Schools", "SUMMER02")
	testsupport.NewCampaign(t, manager, "Winter", "WINTER01")

	campaigns, page, err := repo.Campaigns(context.Background(), types.CampaignFilter{Name: "summer", PerPage: 1})
	if err != nil {
		t.Fatalf("Campaigns: %v", err)
	}
	if page.Total != 2 || page.TotalPages != 2 || page.Page != 1 {
		t.Fatalf("unexpected pagination %+v", page)
	}
	if len(campaigns) != 1 {
		t.Fatalf("campaigns = %d, want 1", len(campaigns))
	}

	campaigns, page, err = repo.Campaigns(context.Background(), types.CampaignFilter{Name: "summer", Page: 2, PerPage: 1})
	if err != nil {
		t.Fatalf("Campaigns page 2: %v", err)
	}
	if len(campaigns) != 1 || page.Page != 2 {
		t.Fatalf("page 2 returned %d campaigns, pagination %+v", len(campaigns), page)
	}

	campaigns, page, err = repo.Campaigns(context.Background(), types.CampaignFilter{})
	if err != nil {
		t.Fatalf("Campaigns unfiltered: %v", err)
	}
	if page.PerPage != 10 || page.Total != 3 || len(campaigns) != 3 {
		t.Fatalf("unfiltered returned %d campaigns, pagination %+v", len(campaigns), page)
	}
}

func TestUpdateCampaignReplacesMunicipalities(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewCampaignRepository(manager)

	campaign, err := repo.CreateCampaign(context.Background(), &types.CampaignInput{
		Name:           utils.StringPtr("Launch"),
		Client:         utils.StringPtr("Acme"),
		Municipalities: &[]types.MunicipalityInput{{City: "Campinas", State: "SP"}},
	})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	updated, err := repo.UpdateCampaign(context.Background(), campaign.ID, &types.CampaignInput{
		Status:         utils.StringPtr("encerrada"),
		Municipalities: &[]types.MunicipalityInput{{City: "Valinhos", State: "SP"}, {City: "Vinhedo", State: "SP"}},
	})
	if err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}

	if updated.Name != "Launch" {
		t.Fatalf("name changed to %q", updated.Name)
	}
	if updated.Status != "encerrada" {
		t.Fatalf("status = %q, want encerrada", updated.Status)
	}
	if len(updated.Municipalities) != 2 || updated.Municipalities[0].City != "Valinhos" {
		t.Fatalf("unexpected municipalities %+v", updated.Municipalities)
	}
}

func TestDeleteCampaignRemovesLinksAndPhotos(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	campaign := testsupport.NewCampaign(t, manager, "Doomed", "DOOMED01")
	van := testsupport.NewVan(t, manager, "ABC1234")
	link := testsupport.NewLink(t, manager, campaign.ID, van.ID)

	photos := store.NewPhotoRepository(manager)
	if err := photos.UpsertPhoto(context.Background(), &types.PhotoCheckin{
		CampaignVanID: link.ID,
		Stage:         types.StageInitial,
		FileRef:       "uploads/x.png",
		UploadedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("UpsertPhoto: %v", err)
	}

	if err := store.NewCampaignRepository(manager).DeleteCampaign(context.Background(), campaign.ID); err != nil {
		t.Fatalf("DeleteCampaign: %v", err)
	}

	detail, err := store.NewLinkRepository(manager).LinkDetail(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("LinkDetail: %v", err)
	}
	if detail != nil {
		t.Fatalf("link %d survived campaign deletion", link.ID)
	}

	remaining, err := photos.PhotosByLink(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("PhotosByLink: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("photos = %d after campaign deletion, want 0", len(remaining))
	}

	if _, err := store.NewVanRepository(manager).Van(context.Background(), van.ID); err != nil {
		t.Fatalf("van should survive campaign deletion: %v", err)
	}
}

func TestAssociateVansSkipsExistingLinks(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	campaign := testsupport.NewCampaign(t, manager, "Links", "LINKS001")
	first := testsupport.NewVan(t, manager, "AAA1111")
	second := testsupport.NewVan(t, manager, "BBB2222")
	repo := store.NewLinkRepository(manager)

	existing := testsupport.NewLink(t, manager, campaign.ID, first.ID)

	links, err := repo.AssociateVans(context.Background(), campaign.ID, []int64{first.ID, second.ID})
	if err != nil {
		t.Fatalf("AssociateVans: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
	if links[0].ID != existing.ID {
		t.Fatalf("existing link replaced: got %d, want %d", links[0].ID, existing.ID)
	}

	refreshed, err := store.NewCampaignRepository(manager).Campaign(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("Campaign: %v", err)
	}
	if refreshed.VanCount != 2 {
		t.Fatalf("van count = %d, want 2", refreshed.VanCount)
	}

	if _, err := repo.AssociateVans(context.Background(), campaign.ID, []int64{999}); !errors.Is(err, types.ErrVanNotFound) {
		t.Fatalf("expected ErrVanNotFound, got %v", err)
	}
	if _, err := repo.AssociateVans(context.Background(), 999, []int64{first.ID}); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}

	if err := repo.DissociateVan(context.Background(), campaign.ID, second.ID); err != nil {
		t.Fatalf("DissociateVan: %v", err)
	}
	if err := repo.DissociateVan(context.Background(), campaign.ID, second.ID); !errors.Is(err, types.ErrVanNotFound) {
		t.Fatalf("second DissociateVan: expected ErrVanNotFound, got %v", err)
	}
}

func TestLinkDetailAndLinkedVans(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	campaign := testsupport.NewCampaign(t, manager, "Detail", "DETAIL01")
	van := testsupport.NewVan(t, manager, "ABC1234")
	link := testsupport.NewLink(t, manager, campaign.ID, van.ID)

	err := manager.InTx(context.Background(), func(tx db.Tx) error {
		if _, err := tx.Exec(context.Background(), "INSERT INTO drivers (id, name) VALUES (7, 'Maria')"); err != nil {
			return err
		}
		_, err := tx.Exec(context.Background(), "UPDATE vans SET driver_id = 7 WHERE id = ?", van.ID)
		return err
	})
	if err != nil {
		t.Fatalf("attach driver: %v", err)
	}

	repo := store.NewLinkRepository(manager)

	detail, err := repo.LinkDetail(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("LinkDetail: %v", err)
	}
	if detail == nil {
		t.Fatal("LinkDetail returned nil for an existing link")
	}
	if detail.CampaignName != "Detail" || detail.VanPlate != "ABC1234" || detail.CampaignStatus != types.CampaignStatusActive {
		t.Fatalf("unexpected detail %+v", detail)
	}

	missing, err := repo.LinkDetail(context.Background(), link.ID+100)
	if err != nil {
		t.Fatalf("LinkDetail missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil detail for a missing link, got %+v", missing)
	}

	vans, err := repo.LinkedVans(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("LinkedVans: %v", err)
	}
	if len(vans) != 1 {
		t.Fatalf("linked vans = %d, want 1", len(vans))
	}
	if vans[0].CampaignVanID != link.ID || utils.PtrString(vans[0].DriverName) != "Maria" {
		t.Fatalf("unexpected linked van %+v", vans[0])
	}
}

func TestUpsertPhotoKeepsOneRowPerStage(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	campaign := testsupport.NewCampaign(t, manager, "Photos", "PHOTOS01")
	van := testsupport.NewVan(t, manager, "ABC1234")
	link := testsupport.NewLink(t, manager, campaign.ID, van.ID)
	repo := store.NewPhotoRepository(manager)

	first := &types.PhotoCheckin{
		CampaignVanID: link.ID,
		Stage:         types.StageInitial,
		FileRef:       "uploads/first.png",
		UploadedAt:    time.Now().UTC().Add(-time.Minute),
	}
	if err := repo.UpsertPhoto(context.Background(), first); err != nil {
		t.Fatalf("first UpsertPhoto: %v", err)
	}

	second := &types.PhotoCheckin{
		CampaignVanID: link.ID,
		Stage:         types.StageInitial,
		FileRef:       "uploads/second.png",
		UploadedAt:    time.Now().UTC(),
	}
	if err := repo.UpsertPhoto(context.Background(), second); err != nil {
		t.Fatalf("second UpsertPhoto: %v", err)
	}

	if first.ID == 0 || second.ID != first.ID {
		t.Fatalf("upsert ids = %d and %d, want the same non-zero id", first.ID, second.ID)
	}

	photos, err := repo.PhotosByLink(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("PhotosByLink: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("photos = %d, want 1", len(photos))
	}
	if photos[0].FileRef != "uploads/second.png" || photos[0].Stage != types.StageInitial {
		t.Fatalf("unexpected photo %+v", photos[0])
	}
}

func TestVanLifecycle(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewVanRepository(manager)

	van, err := repo.CreateVan(context.Background(), &types.VanInput{
		Plate: utils.StringPtr(" abc1234 "),
		State: utils.StringPtr("sp"),
		Year:  utils.IntPtr(2019),
	})
	if err != nil {
		t.Fatalf("CreateVan: %v", err)
	}
	if van.Plate != "ABC1234" || van.State != "SP" {
		t.Fatalf("plate and state not normalized: %+v", van)
	}

	if _, err := repo.CreateVan(context.Background(), &types.VanInput{}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a van without plate, got %v", err)
	}

	updated, err := repo.UpdateVan(context.Background(), van.ID, &types.VanInput{City: utils.StringPtr("Campinas")})
	if err != nil {
		t.Fatalf("UpdateVan: %v", err)
	}
	if updated.City != "Campinas" || updated.Plate != "ABC1234" || utils.PtrInt(updated.Year) != 2019 {
		t.Fatalf("unexpected van after update %+v", updated)
	}

	vans, page, err := repo.Vans(context.Background(), types.VanFilter{City: "camp"})
	if err != nil {
		t.Fatalf("Vans: %v", err)
	}
	if len(vans) != 1 || page.Total != 1 {
		t.Fatalf("Vans returned %d vans, pagination %+v", len(vans), page)
	}

	if err := repo.DeleteVan(context.Background(), van.ID); err != nil {
		t.Fatalf("DeleteVan: %v", err)
	}
	if _, err := repo.Van(context.Background(), van.ID); !errors.Is(err, types.ErrVanNotFound) {
		t.Fatalf("expected ErrVanNotFound after delete, got %v", err)
	}
	if err := repo.DeleteVan(context.Background(), van.ID); !errors.Is(err, types.ErrVanNotFound) {
		t.Fatalf("second DeleteVan: expected ErrVanNotFound, got %v", err)
	}
}

func TestVansUnlinkedFromCampaign(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewVanRepository(manager)

	campaign := testsupport.NewCampaign(t, manager, "Assign", "ASSIGN01")
	linked := testsupport.NewVan(t, manager, "AAA1111")
	free := testsupport.NewVan(t, manager, "BBB2222")
	testsupport.NewLink(t, manager, campaign.ID, linked.ID)

	if _, err := repo.CreateVan(context.Background(), &types.VanInput{
		Plate: utils.StringPtr("CCC3333"),
		City:  utils.StringPtr("Sorocaba"),
		State: utils.StringPtr("SP"),
	}); err != nil {
		t.Fatalf("CreateVan: %v", err)
	}

	vans, page, err := repo.Vans(context.Background(), types.VanFilter{
		City:       "Campinas",
		State:      "sp",
		Status:     types.VanStatusActive,
		CampaignID: campaign.ID,
		Unlinked:   true,
	})
	if err != nil {
		t.Fatalf("Vans unlinked: %v", err)
	}
	if len(vans) != 1 || vans[0].ID != free.ID || page.Total != 1 {
		t.Fatalf("unlinked vans = %+v, pagination %+v, want only %d", vans, page, free.ID)
	}

	vans, _, err = repo.Vans(context.Background(), types.VanFilter{CampaignID: campaign.ID})
	if err != nil {
		t.Fatalf("Vans linked: %v", err)
	}
	if len(vans) != 1 || vans[0].ID != linked.ID {
		t.Fatalf("linked vans = %+v, want only %d", vans, linked.ID)
	}
}

func TestAvailabilityPerMunicipality(t *testing.T) {
	manager := testsupport.MustOpenManager(t, testsupport.NewConfig(t))
	repo := store.NewVanRepository(manager)

	campaign := testsupport.NewCampaign(t, manager, "Assign", "ASSIGN01")
	linked := testsupport.NewVan(t, manager, "AAA1111")
	testsupport.NewVan(t, manager, "BBB2222")
	testsupport.NewLink(t, manager, campaign.ID, linked.ID)

	if _, err := repo.CreateVan(context.Background(), &types.VanInput{
		Plate:  utils.StringPtr("CCC3333"),
		City:   utils.StringPtr("Campinas"),
		State:  utils.StringPtr("SP"),
		Status: utils.StringPtr("inativa"),
	}); err != nil {
		t.Fatalf("CreateVan: %v", err)
	}

	municipalities := []types.MunicipalityInput{
		{City: "Campinas", State: "SP", PlannedVans: 3},
		{City: "Sorocaba", State: "sp", PlannedVans: 1},
		{City: "", State: "SP", PlannedVans: 5},
	}

	results, err := repo.Availability(context.Background(), campaign.ID, municipalities)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Availability returned %d results, want 2 (incomplete municipality skipped)", len(results))
	}
	if got := results[0]; got.City != "Campinas" || got.AvailableVans != 1 || got.PlannedVans != 3 {
		t.Fatalf("unexpected Campinas availability %+v", got)
	}
	if got := results[1]; got.State != "SP" || got.AvailableVans != 0 || got.PlannedVans != 1 {
		t.Fatalf("unexpected Sorocaba availability %+v", got)
	}

	results, err = repo.Availability(context.Background(), 0, municipalities[:1])
	if err != nil {
		t.Fatalf("Availability without campaign: %v", err)
	}
	if results[0].AvailableVans != 2 {
		t.Fatalf("available without campaign = %d, want 2", results[0].AvailableVans)
	}
}
