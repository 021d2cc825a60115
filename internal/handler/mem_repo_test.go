package handler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

var errStorage = errors.New("connection reset by peer")

type memRepo struct {
	nextID     uint64
	opps       map[uint64]models.Opportunity
	dist       map[uint64][]models.RevenueDistribution
	activities []models.ActivityLog
	coeffs     []models.Coefficient
	settings   map[string]models.SystemSetting

	failList error
}

func newMemRepo() *memRepo {
	return &memRepo{
		opps:     map[uint64]models.Opportunity{},
		dist:     map[uint64][]models.RevenueDistribution{},
		coeffs:   models.DefaultCoefficients(),
		settings: map[string]models.SystemSetting{},
	}
}

func (m *memRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (m *memRepo) InsertOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = time.Now().UTC()
	stored := *item
	stored.RevenueDistribution = nil
	m.opps[item.ID] = stored
	return nil
}

func (m *memRepo) SaveOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	stored := *item
	stored.RevenueDistribution = nil
	m.opps[item.ID] = stored
	return nil
}

func (m *memRepo) DeleteOpportunityTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	delete(m.opps, id)
	delete(m.dist, id)
	return nil
}

func (m *memRepo) ReplaceRevenueDistributionTx(ctx context.Context, tx *gorm.DB, opportunityID uint64, items []models.RevenueDistribution) error {
	for i := range items {
		items[i].OpportunityID = opportunityID
	}
	m.dist[opportunityID] = append([]models.RevenueDistribution(nil), items...)
	return nil
}

func (m *memRepo) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	opp, ok := m.opps[id]
	if !ok {
		return nil, nil
	}
	opp.RevenueDistribution = append([]models.RevenueDistribution(nil), m.dist[id]...)
	return &opp, nil
}

func (m *memRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.Opportunity
	for _, o := range m.opps {
		if params.Status != nil && string(o.Status) != *params.Status {
			continue
		}
		if params.OwnerID != nil && o.OwnerID != *params.OwnerID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	items, err := m.ListOpportunities(ctx, params)
	return int64(len(items)), err
}

func (m *memRepo) ListRevenueDistribution(ctx context.Context, opportunityID uint64) ([]models.RevenueDistribution, error) {
	return m.dist[opportunityID], nil
}

func (m *memRepo) ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error) {
	var out []models.RevenueDistribution
	for _, id := range ids {
		for _, row := range m.dist[id] {
			if fromYear != nil && row.Year < *fromYear {
				continue
			}
			if toYear != nil && row.Year > *toYear {
				continue
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRepo) InsertActivity(ctx context.Context, item *models.ActivityLog) error {
	item.ID = uint64(len(m.activities) + 1)
	item.CreatedAt = time.Now().UTC()
	m.activities = append(m.activities, *item)
	return nil
}

func (m *memRepo) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]models.ActivityLog, error) {
	var out []models.ActivityLog
	for i := len(m.activities) - 1; i >= 0; i-- {
		a := m.activities[i]
		if params.OpportunityID != nil && a.OpportunityID != *params.OpportunityID {
			continue
		}
		if params.UserID != nil && a.UserID != *params.UserID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memRepo) CountActivities(ctx context.Context, params repository.ListActivitiesParams) (int64, error) {
	items, _ := m.ListActivities(ctx, params)
	return int64(len(items)), nil
}

func (m *memRepo) ListActiveCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	var out []models.Coefficient
	for _, c := range m.coeffs {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) ListCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	return append([]models.Coefficient(nil), m.coeffs...), nil
}

func (m *memRepo) UpsertCoefficient(ctx context.Context, item *models.Coefficient) error {
	for i := range m.coeffs {
		if m.coeffs[i].FactorType == item.FactorType && m.coeffs[i].FactorValue == item.FactorValue {
			m.coeffs[i].Weight = item.Weight
			m.coeffs[i].Active = item.Active
			return nil
		}
	}
	m.coeffs = append(m.coeffs, *item)
	return nil
}

func (m *memRepo) SetCoefficientActive(ctx context.Context, factor models.FactorType, value string, active bool) (bool, error) {
	for i := range m.coeffs {
		if m.coeffs[i].FactorType == factor && m.coeffs[i].FactorValue == value {
			m.coeffs[i].Active = active
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	m.settings[item.Key] = *item
	return nil
}

func (m *memRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	item, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	var out []models.SystemSetting
	for key, item := range m.settings {
		if params.Prefix != nil && !strings.HasPrefix(key, *params.Prefix) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

var _ repository.Repository = (*memRepo)(nil)
