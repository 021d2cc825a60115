package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm/clause"

	"bdpipeline/internal/models"
)

func (s *Store) ListActiveCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Coefficient
	err := s.db.WithContext(ctx).
		Model(&models.Coefficient{}).
		Where("active = ?", true).
		Order("factor_type asc").
		Order("factor_value asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Coefficient
	err := s.db.WithContext(ctx).
		Model(&models.Coefficient{}).
		Order("factor_type asc").
		Order("factor_value asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertCoefficient(ctx context.Context, item *models.Coefficient) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.FactorValue = strings.TrimSpace(item.FactorValue)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "factor_type"}, {Name: "factor_value"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"weight",
			"active",
			"updated_at",
		}),
	}).Create(item).Error
}

// SetCoefficientActive reports whether a matching row existed.
func (s *Store) SetCoefficientActive(ctx context.Context, factor models.FactorType, value string, active bool) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Coefficient{}).
		Where("factor_type = ? AND factor_value = ?", string(factor), strings.TrimSpace(value)).
		Update("active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
