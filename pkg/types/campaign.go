package types

import (
	"errors"
	"time"
)

var ErrCampaignNotFound = errors.New("campaign not found")

// CampaignStatusActive is the stored status of a campaign accepting check-ins.
const CampaignStatusActive = "ativa"

const DefaultCampaignType = "local"

type Campaign struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Client       string     `db:"client" json:"client"`
	Description  string     `db:"description" json:"description"`
	StartDate    *time.Time `db:"start_date" json:"startDate"`
	EndDate      *time.Time `db:"end_date" json:"endDate"`
	PlannedVans  int        `db:"planned_vans" json:"plannedVans"`
	AccessCode   string     `db:"access_code" json:"accessCode"`
	Status       string     `db:"status" json:"status"`
	CampaignType string     `db:"campaign_type" json:"campaignType"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`

	VanCount       int            `db:"-" json:"vanCount"`
	Municipalities []Municipality `db:"-" json:"municipalities"`
}

type Municipality struct {
	ID          int64  `db:"id" json:"id"`
	CampaignID  int64  `db:"campaign_id" json:"campaignId"`
	City        string `db:"city" json:"city"`
	State       string `db:"state" json:"state"`
	PlannedVans int    `db:"planned_vans" json:"plannedVans"`
}

// CampaignInput carries a create or partial update. Nil fields are left
// untouched on update. A non-nil Municipalities replaces the existing set.
// AccessCode is only honoured on create; a code is generated when it is nil.
type CampaignInput struct {
	AccessCode     *string             `json:"accessCode"`
	Name           *string             `json:"name"`
	Client         *string             `json:"client"`
	Description    *string             `json:"description"`
	StartDate      *time.Time          `json:"startDate"`
	EndDate        *time.Time          `json:"endDate"`
	PlannedVans    *int                `json:"plannedVans"`
	Status         *string             `json:"status"`
	CampaignType   *string             `json:"campaignType"`
	Municipalities *[]MunicipalityInput `json:"municipalities"`
}

type MunicipalityInput struct {
	City        string `json:"city"`
	State       string `json:"state"`
	PlannedVans int    `json:"plannedVans"`
}

type CampaignFilter struct {
	Status    string     `form:"status"`
	Client    string     `form:"client"`
	Name      string     `form:"name"`
	StartFrom *time.Time `form:"start_from"`
	EndUntil  *time.Time `form:"end_until"`
	Page      uint64     `form:"page"`
	PerPage   uint64     `form:"per_page"`
}

type Pagination struct {
	Page       uint64 `json:"page"`
	PerPage    uint64 `json:"perPage"`
	Total      uint64 `json:"total"`
	TotalPages uint64 `json:"totalPages"`
}

// Normalize applies the default page (1) and page size (10).
func (p *Pagination) Normalize() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = 10
	}
}

func (p Pagination) Offset() uint64 {
	return (p.Page - 1) * p.PerPage
}

func (p *Pagination) SetTotal(total uint64) {
	p.Total = total
	p.TotalPages = (total + p.PerPage - 1) / p.PerPage
}
