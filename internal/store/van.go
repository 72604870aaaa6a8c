package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vanads/internal/db"
	"vanads/internal/utils"
	"vanads/pkg/types"

	sq "github.com/Masterminds/squirrel"
)

const vanTableName = "vans"

var (
	vanColumns          = utils.StructTagValues(types.Van{})
	qualifiedVanColumns = qualify("v", vanColumns)
)

type VanRepository struct {
	manager *db.Manager
}

func NewVanRepository(manager *db.Manager) *VanRepository {
	return &VanRepository{manager: manager}
}

func (r *VanRepository) Van(ctx context.Context, vanID int64) (*types.Van, error) {
	var van = new(types.Van)
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().
			Select(vanColumns...).
			From(vanTableName).
			Where(sq.Eq{"id": vanID}).
			Limit(1).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate van query: %w", err)
		}

		return tx.Get(ctx, van, query, args...)
	})
	if errors.Is(err, db.ErrNoRows) {
		return nil, types.ErrVanNotFound
	}
	if err != nil {
		return nil, err
	}

	return van, nil
}

func (r *VanRepository) Vans(ctx context.Context, filter types.VanFilter) ([]*types.Van, types.Pagination, error) {
	page := types.Pagination{Page: filter.Page, PerPage: filter.PerPage}
	page.Normalize()

	var vans []*types.Van
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := vanQuery(tx.Builder().Select("COUNT(*)"), filter).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate van count query: %w", err)
		}

		var total uint64
		if err := tx.Get(ctx, &total, query, args...); err != nil {
			return fmt.Errorf("failed to count vans: %w", err)
		}
		page.SetTotal(total)

		query, args, err = vanQuery(tx.Builder().Select(qualifiedVanColumns...), filter).
			OrderBy("v.plate ASC").
			Limit(page.PerPage).
			Offset(page.Offset()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate vans query: %w", err)
		}

		return utils.ErrorWrapOrNil(tx.Select(ctx, &vans, query, args...), "failed to fetch vans")
	})
	if err != nil {
		return nil, page, err
	}

	return vans, page, nil
}

// Availability counts, per municipality, the active vans that could still
// be assigned. With a campaign ID, vans already linked to that campaign are
// left out.
func (r *VanRepository) Availability(ctx context.Context, campaignID int64, municipalities []types.MunicipalityInput) ([]*types.MunicipalityAvailability, error) {
	results := make([]*types.MunicipalityAvailability, 0, len(municipalities))

	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		for _, m := range municipalities {
			if strings.TrimSpace(m.City) == "" || strings.TrimSpace(m.State) == "" {
				continue
			}

			filter := types.VanFilter{
				City:       m.City,
				State:      m.State,
				Status:     types.VanStatusActive,
				CampaignID: campaignID,
				Unlinked:   campaignID > 0,
			}

			query, args, err := vanQuery(tx.Builder().Select("COUNT(*)"), filter).ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate availability query: %w", err)
			}

			var available uint64
			if err := tx.Get(ctx, &available, query, args...); err != nil {
				return fmt.Errorf("failed to count vans in %s/%s: %w", m.City, m.State, err)
			}

			results = append(results, &types.MunicipalityAvailability{
				City:          m.City,
				State:         strings.ToUpper(m.State),
				AvailableVans: available,
				PlannedVans:   m.PlannedVans,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// vanQuery applies filter to a select over vans aliased as v. A campaign ID
// restricts the result to vans linked to that campaign, or with Unlinked to
// vans not linked to it yet.
func vanQuery(b sq.SelectBuilder, filter types.VanFilter) sq.SelectBuilder {
	b = b.From(vanTableName + " v")

	where := sq.And{}
	if filter.Plate != "" {
		where = append(where, containsFold("v.plate", filter.Plate))
	}
	if filter.City != "" {
		where = append(where, containsFold("v.city", filter.City))
	}
	if filter.State != "" {
		where = append(where, sq.Eq{"v.state": strings.ToUpper(filter.State)})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"v.status": filter.Status})
	}

	if filter.CampaignID > 0 {
		if filter.Unlinked {
			b = b.LeftJoin(campaignVanTableName+" cv ON cv.van_id = v.id AND cv.campaign_id = ?", filter.CampaignID)
			where = append(where, sq.Eq{"cv.id": nil})
		} else {
			b = b.Join(campaignVanTableName+" cv ON cv.van_id = v.id AND cv.campaign_id = ?", filter.CampaignID)
		}
	}

	return b.Where(where)
}

func (r *VanRepository) CreateVan(ctx context.Context, input *types.VanInput) (*types.Van, error) {
	if input.Plate == nil || strings.TrimSpace(*input.Plate) == "" {
		return nil, fmt.Errorf("%w: plate is required", types.ErrInvalidArgument)
	}

	van := &types.Van{
		Plate:     normalizePlate(*input.Plate),
		Model:     utils.PtrString(input.Model),
		Year:      input.Year,
		City:      utils.PtrString(input.City),
		State:     strings.ToUpper(utils.PtrString(input.State)),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Status:    types.VanStatusActive,
		DriverID:  input.DriverID,
	}
	if input.Status != nil {
		van.Status = *input.Status
	}

	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		values := utils.StructToMap(van)
		delete(values, "id")

		query, args, err := tx.Builder().
			Insert(vanTableName).
			SetMap(values).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate insert van query: %w", err)
		}

		return utils.ErrorWrapOrNil(tx.Get(ctx, &van.ID, query, args...), "failed to insert van")
	})
	if err != nil {
		return nil, err
	}

	return van, nil
}

func (r *VanRepository) UpdateVan(ctx context.Context, vanID int64, input *types.VanInput) (*types.Van, error) {
	values := map[string]any{}
	if input.Plate != nil {
		values["plate"] = normalizePlate(*input.Plate)
	}
	if input.Model != nil {
		values["model"] = *input.Model
	}
	if input.Year != nil {
		values["year"] = *input.Year
	}
	if input.City != nil {
		values["city"] = *input.City
	}
	if input.State != nil {
		values["state"] = strings.ToUpper(*input.State)
	}
	if input.Latitude != nil {
		values["latitude"] = *input.Latitude
	}
	if input.Longitude != nil {
		values["longitude"] = *input.Longitude
	}
	if input.Status != nil {
		values["status"] = *input.Status
	}
	if input.DriverID != nil {
		values["driver_id"] = *input.DriverID
	}

	if len(values) > 0 {
		err := r.manager.InTx(ctx, func(tx db.Tx) error {
			query, args, err := tx.Builder().
				Update(vanTableName).
				SetMap(values).
				Where(sq.Eq{"id": vanID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate update van query for van %d: %w", vanID, err)
			}

			affected, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to update van: %w", err)
			}
			if affected == 0 {
				return db.ErrNoRows
			}
			return nil
		})
		if errors.Is(err, db.ErrNoRows) {
			return nil, types.ErrVanNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	return r.Van(ctx, vanID)
}

func (r *VanRepository) DeleteVan(ctx context.Context, vanID int64) error {
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().Delete(vanTableName).Where(sq.Eq{"id": vanID}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate delete van query for van %d: %w", vanID, err)
		}

		affected, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete van: %w", err)
		}
		if affected == 0 {
			return db.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, db.ErrNoRows) {
		return types.ErrVanNotFound
	}

	return err
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
