package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

type stubRepo struct {
	opps       []models.Opportunity
	rows       []models.RevenueDistribution
	activities []models.ActivityLog
	settings   map[string]*models.SystemSetting

	listCalls int
}

func newStubRepo() *stubRepo {
	return &stubRepo{settings: map[string]*models.SystemSetting{}}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }
func (s *stubRepo) InsertOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	return nil
}
func (s *stubRepo) SaveOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	return nil
}
func (s *stubRepo) DeleteOpportunityTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	return nil
}
func (s *stubRepo) ReplaceRevenueDistributionTx(ctx context.Context, tx *gorm.DB, opportunityID uint64, items []models.RevenueDistribution) error {
	return nil
}

func (s *stubRepo) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	for i := range s.opps {
		if s.opps[i].ID == id {
			out := s.opps[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	s.listCalls++
	var matched []models.Opportunity
	for _, o := range s.opps {
		if params.OwnerID != nil && o.OwnerID != *params.OwnerID {
			continue
		}
		if params.TeamID != nil && (o.TeamID == nil || *o.TeamID != *params.TeamID) {
			continue
		}
		matched = append(matched, o)
	}
	if params.Offset >= len(matched) {
		return nil, nil
	}
	end := params.Offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[params.Offset:end], nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	return int64(len(s.opps)), nil
}

func (s *stubRepo) ListRevenueDistribution(ctx context.Context, opportunityID uint64) ([]models.RevenueDistribution, error) {
	var out []models.RevenueDistribution
	for _, r := range s.rows {
		if r.OpportunityID == opportunityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRepo) ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error) {
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.RevenueDistribution
	for _, r := range s.rows {
		if !want[r.OpportunityID] {
			continue
		}
		if fromYear != nil && r.Year < *fromYear {
			continue
		}
		if toYear != nil && r.Year > *toYear {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubRepo) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]models.ActivityLog, error) {
	var out []models.ActivityLog
	for _, a := range s.activities {
		if params.OpportunityID != nil && a.OpportunityID != *params.OpportunityID {
			continue
		}
		if params.UserID != nil && a.UserID != *params.UserID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	copied := *item
	s.settings[item.Key] = &copied
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	var out []models.SystemSetting
	for key, item := range s.settings {
		if params.Prefix != nil && !strings.HasPrefix(key, *params.Prefix) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func u64(v uint64) *uint64 {
	return &v
}

func at(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
