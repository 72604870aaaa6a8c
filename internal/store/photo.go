package store

import (
	"context"
	"fmt"

	"vanads/internal/db"
	"vanads/internal/utils"
	"vanads/pkg/types"

	sq "github.com/Masterminds/squirrel"
)

const photoTableName = "photo_checkins"

var photoColumns = utils.StructTagValues(types.PhotoCheckin{})

type PhotoRepository struct {
	manager *db.Manager
}

func NewPhotoRepository(manager *db.Manager) *PhotoRepository {
	return &PhotoRepository{manager: manager}
}

// UpsertPhoto records the photo for a link and stage, replacing the file
// reference and upload time of an earlier submission. The insert and the
// replacement are a single statement so concurrent submissions for the
// same stage still leave one row. photo.ID is set from the stored row.
func (r *PhotoRepository) UpsertPhoto(ctx context.Context, photo *types.PhotoCheckin) error {
	return r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Insert(photoTableName).
			Columns("campaign_van_id", "stage", "file_ref", "uploaded_at").
			Values(photo.CampaignVanID, string(photo.Stage), photo.FileRef, photo.UploadedAt).
			Suffix("ON CONFLICT (campaign_van_id, stage) DO UPDATE SET file_ref = EXCLUDED.file_ref, uploaded_at = EXCLUDED.uploaded_at RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate upsert photo query: %w", err)
		}

		if err := tx.Get(ctx, &photo.ID, query, args...); err != nil {
			return fmt.Errorf("failed to upsert photo: %w", err)
		}

		return nil
	})
}

func (r *PhotoRepository) PhotosByLink(ctx context.Context, linkID int64) ([]*types.PhotoCheckin, error) {
	return r.PhotosByLinks(ctx, []int64{linkID})
}

func (r *PhotoRepository) PhotosByLinks(ctx context.Context, linkIDs []int64) ([]*types.PhotoCheckin, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}

	var photos []*types.PhotoCheckin
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Select(photoColumns...).
			From(photoTableName).
			Where(sq.Eq{"campaign_van_id": linkIDs}).
			OrderBy("campaign_van_id ASC", "id ASC").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate photos query: %w", err)
		}

		return utils.ErrorWrapOrNil(tx.Select(ctx, &photos, query, args...), "failed to fetch photos")
	})
	if err != nil {
		return nil, err
	}

	return photos, nil
}
