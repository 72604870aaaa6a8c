package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument marks errors the caller can correct (4xx).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidLink covers both a missing link and a link whose campaign
	// is not active.
	ErrInvalidLink = fmt.Errorf("%w: campaign-van link not found or inactive", ErrInvalidArgument)
)

type Stage string

const (
	StageInitial Stage = "initial"
	StageSticker Stage = "sticker"
	StageFinal   Stage = "final"
)

var Stages = []Stage{StageInitial, StageSticker, StageFinal}

func (s Stage) Valid() bool {
	for _, v := range Stages {
		if s == v {
			return true
		}
	}
	return false
}

type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressStarted    ProgressStatus = "started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressDone       ProgressStatus = "done"
)

// PhotoCheckin is the stored photo for one stage of a campaign-van link.
// There is at most one per (CampaignVanID, Stage).
type PhotoCheckin struct {
	ID            int64     `db:"id" json:"id"`
	CampaignVanID int64     `db:"campaign_van_id" json:"campaignVanId"`
	Stage         Stage     `db:"stage" json:"stage"`
	FileRef       string    `db:"file_ref" json:"fileRef"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploadedAt"`
}

type PhotoRef struct {
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type CampaignSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type VanSummary struct {
	ID    int64  `json:"id"`
	Plate string `json:"plate"`
}

type Progress struct {
	CampaignVanID int64           `json:"campaignVanId"`
	Campaign      CampaignSummary `json:"campaign"`
	Van           VanSummary      `json:"van"`
	Stages        map[Stage]bool  `json:"stages"`
	Percent       int             `json:"percent"`
	Status        ProgressStatus  `json:"status"`
}
