package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactorType is one categorical input dimension of the probability score.
type FactorType string

const (
	FactorProjectType          FactorType = "project_type"
	FactorProjectMaturity      FactorType = "project_maturity"
	FactorClientType           FactorType = "client_type"
	FactorClientRelationship   FactorType = "client_relationship"
	FactorConservativeApproach FactorType = "conservative_approach"
)

func (f FactorType) Valid() bool {
	switch f {
	case FactorProjectType, FactorProjectMaturity, FactorClientType, FactorClientRelationship, FactorConservativeApproach:
		return true
	default:
		return false
	}
}

// ConservativeYes is the factor value looked up when the conservative flag is set.
const ConservativeYes = "Yes"

// Coefficient is one multiplicative weight of the coefficient table.
// Rows are deactivated, never deleted.
type Coefficient struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	FactorType  FactorType      `gorm:"type:varchar(40);not null;uniqueIndex:uq_coefficient_factor" json:"factor_type"`
	FactorValue string          `gorm:"type:varchar(120);not null;uniqueIndex:uq_coefficient_factor" json:"factor_value"`
	Weight      decimal.Decimal `gorm:"type:numeric(5,4);not null" json:"coefficient"`
	Active      bool            `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Coefficient) TableName() string {
	return "probability_coefficients"
}

// DefaultCoefficients is the seed table inserted into an empty database.
func DefaultCoefficients() []Coefficient {
	row := func(f FactorType, value, weight string) Coefficient {
		return Coefficient{FactorType: f, FactorValue: value, Weight: decimal.RequireFromString(weight), Active: true}
	}
	return []Coefficient{
		row(FactorProjectType, "Integrated services to Business", "0.9"),
		row(FactorProjectType, "One-time service", "1.0"),

		row(FactorProjectMaturity, string(MaturityProspection), "0.15"),
		row(FactorProjectMaturity, string(MaturityRFI), "0.25"),
		row(FactorProjectMaturity, string(MaturityRFQ), "0.45"),
		row(FactorProjectMaturity, string(MaturityNegotiation), "0.75"),
		row(FactorProjectMaturity, string(MaturityContractSigned), "1.0"),

		row(FactorClientType, string(ClientTypeNew), "0.9"),
		row(FactorClientType, string(ClientTypeExisting), "1.05"),

		row(FactorClientRelationship, string(RelationshipLow), "0.85"),
		row(FactorClientRelationship, string(RelationshipMedium), "0.9"),
		row(FactorClientRelationship, string(RelationshipGood), "1.0"),
		row(FactorClientRelationship, string(RelationshipHigh), "1.05"),
		row(FactorClientRelationship, string(RelationshipExcellent), "1.10"),

		row(FactorConservativeApproach, ConservativeYes, "0.9"),
		row(FactorConservativeApproach, "No", "1.0"),
	}
}
