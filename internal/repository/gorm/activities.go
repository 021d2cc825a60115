package gormrepository

import (
	"context"

	"gorm.io/gorm"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

func (s *Store) InsertActivity(ctx context.Context, item *models.ActivityLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]models.ActivityLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := activityFilters(s.db.WithContext(ctx).Model(&models.ActivityLog{}), params)
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.ActivityLog
	if err := query.Order("created_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountActivities(ctx context.Context, params repository.ListActivitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := activityFilters(s.db.WithContext(ctx).Model(&models.ActivityLog{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func activityFilters(query *gorm.DB, params repository.ListActivitiesParams) *gorm.DB {
	if params.OpportunityID != nil {
		query = query.Where("opportunity_id = ?", *params.OpportunityID)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	return query
}
