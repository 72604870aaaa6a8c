package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vanads/internal/db"
	"vanads/internal/utils"
	"vanads/pkg/types"

	sq "github.com/Masterminds/squirrel"
)

const (
	campaignTableName     = "campaigns"
	municipalityTableName = "campaign_municipalities"

	accessCodeAttempts = 10
)

var (
	campaignColumns     = utils.StructTagValues(types.Campaign{})
	municipalityColumns = utils.StructTagValues(types.Municipality{})
)

type CampaignRepository struct {
	manager *db.Manager
}

func NewCampaignRepository(manager *db.Manager) *CampaignRepository {
	return &CampaignRepository{manager: manager}
}

func (r *CampaignRepository) Campaign(ctx context.Context, campaignID int64) (*types.Campaign, error) {
	var campaign *types.Campaign
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		var err error
		campaign, err = campaignWhere(ctx, tx, sq.Eq{"id": campaignID})
		return err
	})
	if errors.Is(err, db.ErrNoRows) {
		return nil, types.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	return campaign, nil
}

// CampaignByAccessCode resolves the campaign a field agent's access code
// grants access to.
func (r *CampaignRepository) CampaignByAccessCode(ctx context.Context, code string) (*types.Campaign, error) {
	var campaign *types.Campaign
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		var err error
		campaign, err = campaignWhere(ctx, tx, sq.Eq{"access_code": code})
		return err
	})
	if errors.Is(err, db.ErrNoRows) {
		return nil, types.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	return campaign, nil
}

func (r *CampaignRepository) Campaigns(ctx context.Context, filter types.CampaignFilter) ([]*types.Campaign, types.Pagination, error) {
	page := types.Pagination{Page: filter.Page, PerPage: filter.PerPage}
	page.Normalize()

	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.Client != "" {
		where = append(where, containsFold("client", filter.Client))
	}
	if filter.Name != "" {
		where = append(where, containsFold("name", filter.Name))
	}
	if filter.StartFrom != nil {
		where = append(where, sq.GtOrEq{"start_date": *filter.StartFrom})
	}
	if filter.EndUntil != nil {
		where = append(where, sq.LtOrEq{"end_date": *filter.EndUntil})
	}

	var campaigns []*types.Campaign
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().Select("COUNT(*)").From(campaignTableName).Where(where).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate campaign count query: %w", err)
		}

		var total uint64
		if err := tx.Get(ctx, &total, query, args...); err != nil {
			return fmt.Errorf("failed to count campaigns: %w", err)
		}
		page.SetTotal(total)

		query, args, err = tx.Builder().
			Select(campaignColumns...).
			From(campaignTableName).
			Where(where).
			OrderBy("created_at DESC", "id DESC").
			Limit(page.PerPage).
			Offset(page.Offset()).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate campaigns query: %w", err)
		}

		if err := tx.Select(ctx, &campaigns, query, args...); err != nil {
			return fmt.Errorf("failed to fetch campaigns: %w", err)
		}

		for _, campaign := range campaigns {
			if err := loadCampaignChildren(ctx, tx, campaign); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, page, err
	}

	return campaigns, page, nil
}

// CreateCampaign inserts a campaign with a freshly generated access code
// and its municipality targets.
func (r *CampaignRepository) CreateCampaign(ctx context.Context, input *types.CampaignInput) (*types.Campaign, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" || input.Client == nil || strings.TrimSpace(*input.Client) == "" {
		return nil, fmt.Errorf("%w: name and client are required", types.ErrInvalidArgument)
	}

	campaign := &types.Campaign{
		Name:         *input.Name,
		Client:       *input.Client,
		Description:  utils.PtrString(input.Description),
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		PlannedVans:  utils.PtrInt(input.PlannedVans),
		Status:       types.CampaignStatusActive,
		CampaignType: types.DefaultCampaignType,
		CreatedAt:    time.Now().UTC(),
	}
	if input.Status != nil {
		campaign.Status = *input.Status
	}
	if input.CampaignType != nil {
		campaign.CampaignType = *input.CampaignType
	}

	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		if input.AccessCode != nil {
			campaign.AccessCode = strings.ToUpper(strings.TrimSpace(*input.AccessCode))
			taken, err := accessCodeTaken(ctx, tx, campaign.AccessCode)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: access code %s is already in use", types.ErrInvalidArgument, campaign.AccessCode)
			}
		} else {
			code, err := uniqueAccessCode(ctx, tx)
			if err != nil {
				return err
			}
			campaign.AccessCode = code
		}

		values := utils.StructToMap(campaign)
		delete(values, "id")

		query, args, err := tx.Builder().
			Insert(campaignTableName).
			SetMap(values).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate insert campaign query: %w", err)
		}

		if err := tx.Get(ctx, &campaign.ID, query, args...); err != nil {
			return fmt.Errorf("failed to insert campaign: %w", err)
		}

		if input.Municipalities != nil {
			if err := insertMunicipalities(ctx, tx, campaign.ID, *input.Municipalities); err != nil {
				return err
			}
		}

		return loadCampaignChildren(ctx, tx, campaign)
	})
	if err != nil {
		return nil, err
	}

	return campaign, nil
}

// UpdateCampaign applies the non-nil fields of input. Municipalities, when
// given, replace the campaign's existing targets.
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, campaignID int64, input *types.CampaignInput) (*types.Campaign, error) {
	values := map[string]any{}
	if input.Name != nil {
		values["name"] = *input.Name
	}
	if input.Client != nil {
		values["client"] = *input.Client
	}
	if input.Description != nil {
		values["description"] = *input.Description
	}
	if input.StartDate != nil {
		values["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		values["end_date"] = *input.EndDate
	}
	if input.PlannedVans != nil {
		values["planned_vans"] = *input.PlannedVans
	}
	if input.Status != nil {
		values["status"] = *input.Status
	}
	if input.CampaignType != nil {
		values["campaign_type"] = *input.CampaignType
	}

	var campaign *types.Campaign
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		if len(values) > 0 {
			query, args, err := tx.Builder().
				Update(campaignTableName).
				SetMap(values).
				Where(sq.Eq{"id": campaignID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate update campaign query for campaign %d: %w", campaignID, err)
			}

			affected, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to update campaign: %w", err)
			}
			if affected == 0 {
				return db.ErrNoRows
			}
		}

		if input.Municipalities != nil {
			query, args, err := tx.Builder().
				Delete(municipalityTableName).
				Where(sq.Eq{"campaign_id": campaignID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to generate delete municipalities query: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to delete municipalities: %w", err)
			}
		}

		var err error
		campaign, err = campaignWhere(ctx, tx, sq.Eq{"id": campaignID})
		if err != nil {
			return err
		}

		if input.Municipalities != nil {
			if err := insertMunicipalities(ctx, tx, campaignID, *input.Municipalities); err != nil {
				return err
			}
			return loadCampaignChildren(ctx, tx, campaign)
		}

		return nil
	})
	if errors.Is(err, db.ErrNoRows) {
		return nil, types.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	return campaign, nil
}

// DeleteCampaign removes a campaign. Municipality targets, van links and
// their photo check-ins go with it.
func (r *CampaignRepository) DeleteCampaign(ctx context.Context, campaignID int64) error {
	err := r.manager.InTx(ctx, func(tx db.Tx) error {
		query, args, err := tx.Builder().Delete(campaignTableName).Where(sq.Eq{"id": campaignID}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate delete campaign query for campaign %d: %w", campaignID, err)
		}

		affected, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		if affected == 0 {
			return db.ErrNoRows
		}
		return nil
	})
	if errors.Is(err, db.ErrNoRows) {
		return types.ErrCampaignNotFound
	}

	return err
}

func campaignWhere(ctx context.Context, tx db.Tx, where sq.Sqlizer) (*types.Campaign, error) {
	query, args, err := tx.Builder().
		Select(campaignColumns...).
		From(campaignTableName).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate campaign query: %w", err)
	}

	var campaign = new(types.Campaign)
	if err := tx.Get(ctx, campaign, query, args...); err != nil {
		return nil, err
	}

	if err := loadCampaignChildren(ctx, tx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

func loadCampaignChildren(ctx context.Context, tx db.Tx, campaign *types.Campaign) error {
	query, args, err := tx.Builder().
		Select(municipalityColumns...).
		From(municipalityTableName).
		Where(sq.Eq{"campaign_id": campaign.ID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate municipalities query: %w", err)
	}

	campaign.Municipalities = make([]types.Municipality, 0)
	if err := tx.Select(ctx, &campaign.Municipalities, query, args...); err != nil {
		return fmt.Errorf("failed to fetch municipalities: %w", err)
	}

	query, args, err = tx.Builder().
		Select("COUNT(DISTINCT van_id)").
		From(campaignVanTableName).
		Where(sq.Eq{"campaign_id": campaign.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate van count query: %w", err)
	}

	if err := tx.Get(ctx, &campaign.VanCount, query, args...); err != nil {
		return fmt.Errorf("failed to count campaign vans: %w", err)
	}

	return nil
}

func insertMunicipalities(ctx context.Context, tx db.Tx, campaignID int64, municipalities []types.MunicipalityInput) error {
	if len(municipalities) == 0 {
		return nil
	}

	insert := tx.Builder().
		Insert(municipalityTableName).
		Columns("campaign_id", "city", "state", "planned_vans")
	for _, m := range municipalities {
		planned := m.PlannedVans
		if planned == 0 {
			planned = 1
		}
		insert = insert.Values(campaignID, m.City, m.State, planned)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert municipalities query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert municipalities: %w", err)
	}

	return nil
}

func uniqueAccessCode(ctx context.Context, tx db.Tx) (string, error) {
	for range accessCodeAttempts {
		code := utils.AccessCode()

		taken, err := accessCodeTaken(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("no free access code after %d attempts", accessCodeAttempts)
}

func accessCodeTaken(ctx context.Context, tx db.Tx, code string) (bool, error) {
	query, args, err := tx.Builder().
		Select("COUNT(*)").
		From(campaignTableName).
		Where(sq.Eq{"access_code": code}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate access code query: %w", err)
	}

	var count int
	if err := tx.Get(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check access code: %w", err)
	}

	return count > 0, nil
}

func qualify(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, column := range columns {
		out[i] = alias + "." + column
	}
	return out
}

func containsFold(column, value string) sq.Sqlizer {
	return sq.Expr("LOWER("+column+") LIKE ?", "%"+strings.ToLower(value)+"%")
}
