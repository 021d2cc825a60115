package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bdpipeline/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Coefficient{},
		&models.Opportunity{},
		&models.RevenueDistribution{},
		&models.ActivityLog{},
		&models.SystemSetting{},
	)
}

// SeedCoefficients inserts the default coefficient table when none exists.
// Existing rows are left alone so admin edits survive restarts.
func SeedCoefficients(ctx context.Context, db *DB) (int, error) {
	if db == nil || db.Gorm == nil {
		return 0, nil
	}
	inserted := 0
	err := db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Coefficient{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		items := models.DefaultCoefficients()
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error; err != nil {
			return err
		}
		inserted = len(items)
		return nil
	})
	return inserted, err
}
