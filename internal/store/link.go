package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vanads/internal/db"
	"vanads/internal/utils"
	"vanads/pkg/types"

	sq "github.com/Masterminds/squirrel"
)

const campaignVanTableName = "campaign_vans"

var campaignVanColumns = utils.StructTagValues(types.CampaignVan{})

// LinkRepository manages the campaign_vans association that photo
// check-ins hang off.
type LinkRepository struct {
	manager *db.Manager
}

func NewLinkRepository(manager *db.Manager) *LinkRepository {
	return &LinkRepository{manager: manager}
}

// LinkDetail loads a link together with its campaign and van. A link that
// does not exist yields nil and no error.
func (r *LinkRepository) LinkDetail(ctx context.Context, linkID int64) (*types.LinkDetail, error) {
	var detail = new(types.LinkDetail)
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Select(
				"cv.id AS id",
				"cv.campaign_id AS campaign_id",
				"cv.van_id AS van_id",
				"c.name AS campaign_name",
				"c.status AS campaign_status",
				"v.plate AS van_plate",
			).
			From(campaignVanTableName + " cv").
			Join(campaignTableName + " c ON c.id = cv.campaign_id").
			Join(vanTableName + " v ON v.id = cv.van_id").
			Where(sq.Eq{"cv.id": linkID}).
			Limit(1).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate link query: %w", err)
		}

		return tx.Get(ctx, detail, query, args...)
	})
	if errors.Is(err, db.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// LinkedVans lists the vans linked to a campaign, ordered by plate.
func (r *LinkRepository) LinkedVans(ctx context.Context, campaignID int64) ([]*types.LinkedVan, error) {
	var vans []*types.LinkedVan
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Select(
				"cv.id AS campaign_van_id",
				"v.id AS van_id",
				"v.plate AS plate",
				"v.model AS model",
				"d.name AS driver_name",
				"v.city AS city",
				"v.state AS state",
			).
			From(campaignVanTableName + " cv").
			Join(vanTableName + " v ON v.id = cv.van_id").
			LeftJoin("drivers d ON d.id = v.driver_id").
			Where(sq.Eq{"cv.campaign_id": campaignID}).
			OrderBy("v.plate ASC", "cv.id ASC").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate linked vans query: %w", err)
		}

		return utils.ErrorWrapOrNil(tx.Select(ctx, &vans, query, args...), "failed to fetch linked vans")
	})
	if err != nil {
		return nil, err
	}

	return vans, nil
}

// AssociateVans links each van to the campaign unless it is linked
// already, and returns the links for every requested van.
func (r *LinkRepository) AssociateVans(ctx context.Context, campaignID int64, vanIDs []int64) ([]*types.CampaignVan, error) {
	var links []*types.CampaignVan
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		if err := requireRow(ctx, tx, campaignTableName, campaignID, types.ErrCampaignNotFound); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, vanID := range vanIDs {
			if err := requireRow(ctx, tx, vanTableName, vanID, types.ErrVanNotFound); err != nil {
				return err
			}

			query, args, err := tx.Builder().
				Select(campaignVanColumns...).
				From(campaignVanTableName).
				Where(sq.Eq{"campaign_id": campaignID, "van_id": vanID}).
				OrderBy("id ASC").
				Limit(1).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate link query: %w", err)
			}

			var link = new(types.CampaignVan)
			err = tx.Get(ctx, link, query, args...)
			if err == nil {
				links = append(links, link)
				continue
			}
			if !errors.Is(err, db.ErrNoRows) {
				return fmt.Errorf("failed to fetch link: %w", err)
			}

			link = &types.CampaignVan{CampaignID: campaignID, VanID: vanID, CreatedAt: now}
			query, args, err = tx.Builder().
				Insert(campaignVanTableName).
				Columns("campaign_id", "van_id", "created_at").
				Values(link.CampaignID, link.VanID, link.CreatedAt).
				Suffix("RETURNING id").
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate insert link query: %w", err)
			}

			if err := tx.Get(ctx, &link.ID, query, args...); err != nil {
				return fmt.Errorf("failed to insert link: %w", err)
			}
			links = append(links, link)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}

// DissociateVan removes the van from the campaign along with the photos
// submitted under that link.
func (r *LinkRepository) DissociateVan(ctx context.Context, campaignID, vanID int64) error {
	return r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Delete(campaignVanTableName).
			Where(sq.Eq{"campaign_id": campaignID, "van_id": vanID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate delete link query: %w", err)
		}

		affected, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}
		if affected == 0 {
			return types.ErrVanNotFound
		}
		return nil
	})
}

func requireRow(ctx context.Context, tx db.Tx, table string, id int64, notFound error) error {
	query, args, err := tx.Builder().Select("COUNT(*)").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate %s lookup query: %w", table, err)
	}

	var count int
	if err := tx.Get(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("failed to look up %s: %w", table, err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}
