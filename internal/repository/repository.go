package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bdpipeline/internal/models"
)

// CoefficientRepository is the source of truth behind the coefficient cache.
type CoefficientRepository interface {
	ListActiveCoefficients(ctx context.Context) ([]models.Coefficient, error)
	ListCoefficients(ctx context.Context) ([]models.Coefficient, error)
	UpsertCoefficient(ctx context.Context, item *models.Coefficient) error
	SetCoefficientActive(ctx context.Context, factor models.FactorType, value string, active bool) (bool, error)
}

// OpportunityRepository persists opportunities together with their owned
// revenue distribution. The *Tx variants must be called inside InTx.
type OpportunityRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	InsertOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error
	SaveOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error
	DeleteOpportunityTx(ctx context.Context, tx *gorm.DB, id uint64) error
	ReplaceRevenueDistributionTx(ctx context.Context, tx *gorm.DB, opportunityID uint64, items []models.RevenueDistribution) error

	GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.Opportunity, error)
	CountOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)
	ListRevenueDistribution(ctx context.Context, opportunityID uint64) ([]models.RevenueDistribution, error)
	ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error)
}

type ActivityRepository interface {
	InsertActivity(ctx context.Context, item *models.ActivityLog) error
	ListActivities(ctx context.Context, params ListActivitiesParams) ([]models.ActivityLog, error)
	CountActivities(ctx context.Context, params ListActivitiesParams) (int64, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is the unified store used by services and handlers.
type Repository interface {
	CoefficientRepository
	OpportunityRepository
	ActivityRepository
	SettingsRepository
}

type ListOpportunitiesParams struct {
	Limit  int
	Offset int

	IDs         []uint64
	Status      *string
	Stage       *string
	OwnerID     *uint64
	TeamID      *uint64
	ServiceType *string
	SectorType  *string
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal

	OrderBy string
	Asc     *bool
}

type ListActivitiesParams struct {
	Limit         int
	Offset        int
	OpportunityID *uint64
	UserID        *uint64
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
