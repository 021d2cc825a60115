package gormrepository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

func (s *Store) InsertOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOrDB(ctx, tx).Omit(clause.Associations).Create(item).Error
}

// SaveOpportunityTx writes every column of item. Associations are handled by
// ReplaceRevenueDistributionTx and the activity log.
func (s *Store) SaveOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOrDB(ctx, tx).Omit(clause.Associations).Save(item).Error
}

func (s *Store) DeleteOpportunityTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	db := s.txOrDB(ctx, tx)
	if err := db.Where("opportunity_id = ?", id).Delete(&models.RevenueDistribution{}).Error; err != nil {
		return err
	}
	if err := db.Where("opportunity_id = ?", id).Delete(&models.ActivityLog{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Opportunity{}).Error
}

// ReplaceRevenueDistributionTx deletes every month of the opportunity and
// inserts items in its place.
func (s *Store) ReplaceRevenueDistributionTx(ctx context.Context, tx *gorm.DB, opportunityID uint64, items []models.RevenueDistribution) error {
	if s == nil || s.db == nil || opportunityID == 0 {
		return nil
	}
	db := s.txOrDB(ctx, tx)
	if err := db.Where("opportunity_id = ?", opportunityID).Delete(&models.RevenueDistribution{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ID = 0
		items[i].OpportunityID = opportunityID
	}
	return createInBatches(db, items, 120)
}

func (s *Store) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Opportunity
	err := s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Preload("RevenueDistribution", func(db *gorm.DB) *gorm.DB {
			return db.Order("year asc").Order("month asc")
		}).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := opportunityFilters(s.db.WithContext(ctx).Model(&models.Opportunity{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Opportunity
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := opportunityFilters(s.db.WithContext(ctx).Model(&models.Opportunity{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func opportunityFilters(query *gorm.DB, params repository.ListOpportunitiesParams) *gorm.DB {
	if len(params.IDs) > 0 {
		query = query.Where("id IN ?", params.IDs)
	}
	if v, ok := trimmed(params.Status); ok {
		query = query.Where("status = ?", v)
	}
	if v, ok := trimmed(params.Stage); ok {
		query = query.Where("stage = ?", v)
	}
	if v, ok := trimmed(params.ServiceType); ok {
		query = query.Where("service_type = ?", v)
	}
	if v, ok := trimmed(params.SectorType); ok {
		query = query.Where("sector_type = ?", v)
	}
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.TeamID != nil {
		query = query.Where("team_id = ?", *params.TeamID)
	}
	if params.MinAmount != nil {
		query = query.Where("original_amount >= ?", *params.MinAmount)
	}
	if params.MaxAmount != nil {
		query = query.Where("original_amount <= ?", *params.MaxAmount)
	}
	return query
}

func (s *Store) ListRevenueDistribution(ctx context.Context, opportunityID uint64) ([]models.RevenueDistribution, error) {
	if s == nil || s.db == nil || opportunityID == 0 {
		return nil, nil
	}
	var items []models.RevenueDistribution
	err := s.db.WithContext(ctx).
		Model(&models.RevenueDistribution{}).
		Where("opportunity_id = ?", opportunityID).
		Order("year asc").
		Order("month asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.RevenueDistribution{}).
		Where("opportunity_id IN ?", ids)
	if fromYear != nil {
		query = query.Where("year >= ?", *fromYear)
	}
	if toYear != nil {
		query = query.Where("year <= ?", *toYear)
	}
	var items []models.RevenueDistribution
	if err := query.Order("year asc").Order("month asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
