package models

import (
	"github.com/shopspring/decimal"
)

// RevenueDistribution is one forecast month of an opportunity.
type RevenueDistribution struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OpportunityID uint64 `gorm:"not null;uniqueIndex:uq_revenue_month" json:"opportunity_id"`
	Year          int    `gorm:"not null;uniqueIndex:uq_revenue_month" json:"year"`
	Month         int    `gorm:"not null;uniqueIndex:uq_revenue_month" json:"month"`

	SalesAmount  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"sales_amount"`
	MarginAmount decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"gross_margin_amount"`
	Forecast     bool            `gorm:"not null;default:true" json:"is_forecast"`
}

func (RevenueDistribution) TableName() string {
	return "revenue_distribution"
}
