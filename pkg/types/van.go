package types

import (
	"errors"
	"time"
)

var ErrVanNotFound = errors.New("van not found")

const VanStatusActive = "ativa"

type Van struct {
	ID        int64    `db:"id" json:"id"`
	Plate     string   `db:"plate" json:"plate"`
	Model     string   `db:"model" json:"model"`
	Year      *int     `db:"year" json:"year"`
	City      string   `db:"city" json:"city"`
	State     string   `db:"state" json:"state"`
	Latitude  *float64 `db:"latitude" json:"latitude"`
	Longitude *float64 `db:"longitude" json:"longitude"`
	Status    string   `db:"status" json:"status"`
	DriverID  *int64   `db:"driver_id" json:"driverId"`
}

type VanInput struct {
	Plate     *string  `json:"plate"`
	Model     *string  `json:"model"`
	Year      *int     `json:"year"`
	City      *string  `json:"city"`
	State     *string  `json:"state"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Status    *string  `json:"status"`
	DriverID  *int64   `json:"driverId"`
}

type VanFilter struct {
	Plate   string `form:"plate"`
	City    string `form:"city"`
	State   string `form:"state"`
	Status  string `form:"status"`
	Page    uint64 `form:"page"`
	PerPage uint64 `form:"per_page"`

	// CampaignID limits the list to vans linked to the campaign, or with
	// Unlinked set, to vans not linked to it.
	CampaignID int64 `form:"campaign_id"`
	Unlinked   bool  `form:"unlinked"`
}

// MunicipalityAvailability compares the vans still assignable in a
// municipality with the number a campaign plans there.
type MunicipalityAvailability struct {
	City          string `json:"city"`
	State         string `json:"state"`
	AvailableVans uint64 `json:"availableVans"`
	PlannedVans   int    `json:"plannedVans"`
}

// CampaignVan is the association between one campaign and one van. Photo
// check-ins attach to its ID.
type CampaignVan struct {
	ID         int64     `db:"id" json:"id"`
	CampaignID int64     `db:"campaign_id" json:"campaignId"`
	VanID      int64     `db:"van_id" json:"vanId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// LinkDetail is a campaign-van link joined with its campaign and van.
type LinkDetail struct {
	ID             int64  `db:"id"`
	CampaignID     int64  `db:"campaign_id"`
	VanID          int64  `db:"van_id"`
	CampaignName   string `db:"campaign_name"`
	CampaignStatus string `db:"campaign_status"`
	VanPlate       string `db:"van_plate"`
}

// LinkedVan is a van as listed for a campaign's access code.
type LinkedVan struct {
	CampaignVanID int64   `db:"campaign_van_id" json:"campaignVanId"`
	VanID         int64   `db:"van_id" json:"vanId"`
	Plate         string  `db:"plate" json:"plate"`
	Model         string  `db:"model" json:"model"`
	DriverName    *string `db:"driver_name" json:"driverName"`
	City          string  `db:"city" json:"city"`
	State         string  `db:"state" json:"state"`

	Photos map[Stage]*PhotoRef `db:"-" json:"photos"`
}
