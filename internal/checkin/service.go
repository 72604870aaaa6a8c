package checkin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"vanads/internal/storage"
	"vanads/internal/store"
	"vanads/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var allowedExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// Upload is a photo as received from a field agent.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Service runs the photo check-in of campaign-van links: submission,
// link validation and progress.
type Service struct {
	logger *logrus.Logger

	campaigns *store.CampaignRepository
	links     *store.LinkRepository
	photos    *store.PhotoRepository
	files     storage.FileStore

	now func() time.Time
}

func NewService(
	logger *logrus.Logger,
	campaigns *store.CampaignRepository,
	links *store.LinkRepository,
	photos *store.PhotoRepository,
	files storage.FileStore,
) *Service {
	return &Service{
		logger:    logger,
		campaigns: campaigns,
		links:     links,
		photos:    photos,
		files:     files,
		now:       time.Now,
	}
}

// ValidateLink returns the link only when it exists and its campaign is
// active. A missing link and an inactive one both give types.ErrInvalidLink.
func (s *Service) ValidateLink(ctx context.Context, linkID int64) (*types.LinkDetail, error) {
	detail, err := s.links.LinkDetail(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load link %d: %w", linkID, err)
	}

	if detail == nil || detail.CampaignStatus != types.CampaignStatusActive {
		return nil, types.ErrInvalidLink
	}

	return detail, nil
}

// SubmitPhoto stores the photo for one stage of a link, replacing any
// earlier photo for that stage. Nothing is written unless the stage, the
// link and the file extension are all valid.
func (s *Service) SubmitPhoto(ctx context.Context, linkID int64, stage types.Stage, upload Upload) (*types.PhotoCheckin, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: unknown stage %q", types.ErrInvalidArgument, stage)
	}

	link, err := s.ValidateLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if upload.Body == nil {
		return nil, fmt.Errorf("%w: photo is required", types.ErrInvalidArgument)
	}

	ext, ok := photoExtension(upload.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: file %q must be one of png, jpg or jpeg", types.ErrInvalidArgument, upload.Filename)
	}

	now := s.now().UTC()
	name := fmt.Sprintf("%s_%d_%s.%s", stage, now.Unix(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8], ext)
	path := fmt.Sprintf("uploads/campaign_%d/van_%d/%s", link.CampaignID, link.VanID, name)

	entry := s.logger.WithFields(logrus.Fields{
		"link_id": linkID,
		"stage":   stage,
		"path":    path,
	})

	if err := s.files.Put(ctx, path, upload.Body, allowedExtensions[ext]); err != nil {
		entry.WithError(err).Error("failed to store photo")
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	photo := &types.PhotoCheckin{
		CampaignVanID: linkID,
		Stage:         stage,
		FileRef:       path,
		UploadedAt:    now,
	}

	if err := s.photos.UpsertPhoto(ctx, photo); err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			entry.WithError(delErr).Warn("failed to remove photo after failed upsert")
		}
		return nil, err
	}

	entry.WithField("photo_id", photo.ID).Info("photo check-in recorded")

	return photo, nil
}

// Progress reports which stages of a link have a photo. Status follows the
// furthest stage present, so a final photo alone means done.
func (s *Service) Progress(ctx context.Context, linkID int64) (*types.Progress, error) {
	link, err := s.ValidateLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	photos, err := s.photos.PhotosByLink(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos for link %d: %w", linkID, err)
	}

	stages := make(map[types.Stage]bool, len(types.Stages))
	for _, stage := range types.Stages {
		stages[stage] = false
	}
	for _, photo := range photos {
		stages[photo.Stage] = true
	}

	progress := &types.Progress{
		CampaignVanID: link.ID,
		Campaign:      types.CampaignSummary{ID: link.CampaignID, Name: link.CampaignName},
		Van:           types.VanSummary{ID: link.VanID, Plate: link.VanPlate},
		Stages:        stages,
	}
	progress.Percent, progress.Status = ProgressFor(stages)

	return progress, nil
}

// ProgressFor maps the set of submitted stages to a percentage and status.
func ProgressFor(stages map[types.Stage]bool) (int, types.ProgressStatus) {
	switch {
	case stages[types.StageFinal]:
		return 100, types.ProgressDone
	case stages[types.StageSticker]:
		return 50, types.ProgressInProgress
	case stages[types.StageInitial]:
		return 25, types.ProgressStarted
	default:
		return 0, types.ProgressPending
	}
}

// VansByAccessCode lists the vans of the campaign behind code, each with
// the photo submitted for every stage or nil when none has been.
func (s *Service) VansByAccessCode(ctx context.Context, code string) ([]*types.LinkedVan, error) {
	campaign, err := s.campaigns.CampaignByAccessCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}

	vans, err := s.links.LinkedVans(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	linkIDs := make([]int64, 0, len(vans))
	byLink := make(map[int64]*types.LinkedVan, len(vans))
	for _, van := range vans {
		van.Photos = make(map[types.Stage]*types.PhotoRef, len(types.Stages))
		for _, stage := range types.Stages {
			van.Photos[stage] = nil
		}
		linkIDs = append(linkIDs, van.CampaignVanID)
		byLink[van.CampaignVanID] = van
	}

	photos, err := s.photos.PhotosByLinks(ctx, linkIDs)
	if err != nil {
		return nil, err
	}

	for _, photo := range photos {
		van, ok := byLink[photo.CampaignVanID]
		if !ok {
			continue
		}
		van.Photos[photo.Stage] = &types.PhotoRef{
			URL:        s.files.URL(photo.FileRef),
			UploadedAt: photo.UploadedAt,
		}
	}

	return vans, nil
}

func photoExtension(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", false
	}

	ext := strings.ToLower(filename[idx+1:])
	if _, ok := allowedExtensions[ext]; !ok {
		return "", false
	}

	return ext, true
}
