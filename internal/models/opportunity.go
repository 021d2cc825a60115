package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceType string

const (
	ServiceIFM             ServiceType = "IFM"
	ServiceIFMHard         ServiceType = "IFM Hard"
	ServiceCivilFitout     ServiceType = "Civil Fitout works"
	ServiceSpecialProjects ServiceType = "special projects"
)

func (v ServiceType) Valid() bool {
	switch v {
	case ServiceIFM, ServiceIFMHard, ServiceCivilFitout, ServiceSpecialProjects:
		return true
	}
	return false
}

type SectorType string

const (
	SectorDataCenter     SectorType = "Data Center"
	SectorIndustrial     SectorType = "Industrial"
	SectorCommercial     SectorType = "Commercial"
	SectorSpecialProject SectorType = "Special project"
)

func (v SectorType) Valid() bool {
	switch v {
	case SectorDataCenter, SectorIndustrial, SectorCommercial, SectorSpecialProject:
		return true
	}
	return false
}

type ProjectMaturity string

const (
	MaturityProspection    ProjectMaturity = "Prospection"
	MaturityRFI            ProjectMaturity = "RFI"
	MaturityRFQ            ProjectMaturity = "RFQ"
	MaturityNegotiation    ProjectMaturity = "Negotiation"
	MaturityContractSigned ProjectMaturity = "Contract Signed"
)

func (v ProjectMaturity) Valid() bool {
	switch v {
	case MaturityProspection, MaturityRFI, MaturityRFQ, MaturityNegotiation, MaturityContractSigned:
		return true
	}
	return false
}

type ClientType string

const (
	ClientTypeNew      ClientType = "New"
	ClientTypeExisting ClientType = "Existing"
)

func (v ClientType) Valid() bool {
	return v == ClientTypeNew || v == ClientTypeExisting
}

type ClientRelationship string

const (
	RelationshipLow       ClientRelationship = "1 - Low"
	RelationshipMedium    ClientRelationship = "2 - Medium"
	RelationshipGood      ClientRelationship = "3 - Good"
	RelationshipHigh      ClientRelationship = "4 - High"
	RelationshipExcellent ClientRelationship = "5 - Excellent"
)

func (v ClientRelationship) Valid() bool {
	switch v {
	case RelationshipLow, RelationshipMedium, RelationshipGood, RelationshipHigh, RelationshipExcellent:
		return true
	}
	return false
}

type OpportunityStatus string

const (
	StatusActive    OpportunityStatus = "Active"
	StatusWon       OpportunityStatus = "Won"
	StatusLost      OpportunityStatus = "Lost"
	StatusOnHold    OpportunityStatus = "On Hold"
	StatusCancelled OpportunityStatus = "Cancelled"
)

func (v OpportunityStatus) Valid() bool {
	switch v {
	case StatusActive, StatusWon, StatusLost, StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

type OpportunityStage string

const (
	StageProspection   OpportunityStage = "Prospection"
	StageQualification OpportunityStage = "Qualification"
	StageProposal      OpportunityStage = "Proposal"
	StageNegotiation   OpportunityStage = "Negotiation"
	StageClosed        OpportunityStage = "Closed"
)

func (v OpportunityStage) Valid() bool {
	switch v {
	case StageProspection, StageQualification, StageProposal, StageNegotiation, StageClosed:
		return true
	}
	return false
}

// StageForMaturity is the initial pipeline stage for a deal at the given maturity.
func StageForMaturity(m ProjectMaturity) OpportunityStage {
	switch m {
	case MaturityRFI:
		return StageQualification
	case MaturityRFQ:
		return StageProposal
	case MaturityNegotiation:
		return StageNegotiation
	case MaturityContractSigned:
		return StageClosed
	default:
		return StageProspection
	}
}

// Opportunity is a sales deal. ProbabilityScore, WeightedAmount, MarginAmount
// and DurationMonths are derived from the inputs and are only written by the
// lifecycle manager.
type Opportunity struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"type:varchar(255);not null;index" json:"project_name"`
	Notes string `gorm:"type:text" json:"update_notes"`

	ServiceType ServiceType `gorm:"type:varchar(40);not null" json:"service_type"`
	SectorType  SectorType  `gorm:"type:varchar(40);not null" json:"sector_type"`

	OriginalAmount   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"original_amount"`
	MarginPercentage decimal.Decimal `gorm:"type:numeric(5,4);not null;default:0.13" json:"gross_margin_percentage"`

	// Scoring factors.
	ProjectType          *string            `gorm:"type:varchar(120)" json:"project_type,omitempty"`
	ProjectMaturity      ProjectMaturity    `gorm:"type:varchar(40);not null" json:"project_maturity"`
	ClientType           ClientType         `gorm:"type:varchar(20);not null" json:"client_type"`
	ClientRelationship   ClientRelationship `gorm:"type:varchar(20);not null" json:"client_relationship"`
	ConservativeApproach bool               `gorm:"not null;default:false" json:"conservative_approach"`
	ProbabilityOverride  *decimal.Decimal   `gorm:"type:numeric(5,4)" json:"win_probability_override,omitempty"`

	// Derived.
	ProbabilityScore decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"probability_score"`
	WeightedAmount   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"weighted_amount"`
	MarginAmount     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"gross_margin_amount"`
	DurationMonths   int             `gorm:"not null" json:"duration_months"`

	StartingDate time.Time `gorm:"type:date;not null;index" json:"starting_date"`
	ClosingDate  time.Time `gorm:"type:date;not null;index" json:"closing_date"`

	Status OpportunityStatus `gorm:"type:varchar(20);not null;index;default:'Active'" json:"status"`
	Stage  OpportunityStage  `gorm:"type:varchar(20);not null;index" json:"stage"`

	OwnerID          uint64  `gorm:"not null;index" json:"owner_id"`
	TeamID           *uint64 `gorm:"index" json:"team_id,omitempty"`
	ClientID         *uint64 `gorm:"index" json:"client_id,omitempty"`
	CreatedByID      uint64  `gorm:"not null" json:"created_by_id"`
	LastModifiedByID uint64  `gorm:"not null" json:"last_modified_by_id"`

	RevenueDistribution []RevenueDistribution `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE" json:"revenue_distribution,omitempty"`
	Activities          []ActivityLog         `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}
