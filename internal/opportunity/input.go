package opportunity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bdpipeline/internal/models"
)

// DefaultMarginPercentage applies when a create request carries no margin.
var DefaultMarginPercentage = decimal.RequireFromString("0.13")

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID uint64
	TeamID *uint64
}

type CreateInput struct {
	Name                 string
	Notes                string
	ServiceType          models.ServiceType
	SectorType           models.SectorType
	OriginalAmount       decimal.Decimal
	MarginPercentage     *decimal.Decimal
	ProjectType          *string
	ProjectMaturity      models.ProjectMaturity
	ClientType           models.ClientType
	ClientRelationship   models.ClientRelationship
	ConservativeApproach bool
	ProbabilityOverride  *decimal.Decimal
	StartingDate         time.Time
	ClosingDate          time.Time
	Status               *models.OpportunityStatus
	Stage                *models.OpportunityStage
	OwnerID              *uint64
	TeamID               *uint64
	ClientID             *uint64
}

// Patch is a partial update. Nil fields are left alone. An empty ProjectType
// and a zero TeamID or ClientID clear the stored value.
type Patch struct {
	Name                     *string
	Notes                    *string
	ServiceType              *models.ServiceType
	SectorType               *models.SectorType
	OriginalAmount           *decimal.Decimal
	MarginPercentage         *decimal.Decimal
	ProjectType              *string
	ProjectMaturity          *models.ProjectMaturity
	ClientType               *models.ClientType
	ClientRelationship       *models.ClientRelationship
	ConservativeApproach     *bool
	ProbabilityOverride      *decimal.Decimal
	ClearProbabilityOverride bool
	StartingDate             *time.Time
	ClosingDate              *time.Time
	Status                   *models.OpportunityStatus
	Stage                    *models.OpportunityStage
	OwnerID                  *uint64
	TeamID                   *uint64
	ClientID                 *uint64
}

func (in CreateInput) build(actor Actor) (*models.Opportunity, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("project_name", "is required")
	}
	if len(name) > 255 {
		return nil, invalid("project_name", "must be at most 255 characters")
	}
	if !in.ServiceType.Valid() {
		return nil, invalid("service_type", "unknown value "+quote(string(in.ServiceType)))
	}
	if !in.SectorType.Valid() {
		return nil, invalid("sector_type", "unknown value "+quote(string(in.SectorType)))
	}
	if err := checkFactors(in.ProjectMaturity, in.ClientType, in.ClientRelationship); err != nil {
		return nil, err
	}
	if err := checkAmount(in.OriginalAmount); err != nil {
		return nil, err
	}
	margin := DefaultMarginPercentage
	if in.MarginPercentage != nil {
		margin = *in.MarginPercentage
	}
	if err := checkUnit("gross_margin_percentage", margin); err != nil {
		return nil, err
	}
	if in.ProbabilityOverride != nil {
		if err := checkUnit("win_probability_override", *in.ProbabilityOverride); err != nil {
			return nil, err
		}
	}
	if in.StartingDate.IsZero() {
		return nil, invalid("starting_date", "is required")
	}
	if in.ClosingDate.IsZero() {
		return nil, invalid("closing_date", "is required")
	}
	start, end := dateOnly(in.StartingDate), dateOnly(in.ClosingDate)
	if err := checkDates(start, end); err != nil {
		return nil, err
	}

	status := models.StatusActive
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid("status", "unknown value "+quote(string(*in.Status)))
		}
		status = *in.Status
	}
	stage := models.StageForMaturity(in.ProjectMaturity)
	if in.Stage != nil {
		if !in.Stage.Valid() {
			return nil, invalid("stage", "unknown value "+quote(string(*in.Stage)))
		}
		stage = *in.Stage
	}
	owner := actor.UserID
	if in.OwnerID != nil && *in.OwnerID != 0 {
		owner = *in.OwnerID
	}
	team := in.TeamID
	if team == nil || *team == 0 {
		team = actor.TeamID
	}

	return &models.Opportunity{
		Name:                 name,
		Notes:                in.Notes,
		ServiceType:          in.ServiceType,
		SectorType:           in.SectorType,
		OriginalAmount:       in.OriginalAmount,
		MarginPercentage:     margin,
		ProjectType:          cleanProjectType(in.ProjectType),
		ProjectMaturity:      in.ProjectMaturity,
		ClientType:           in.ClientType,
		ClientRelationship:   in.ClientRelationship,
		ConservativeApproach: in.ConservativeApproach,
		ProbabilityOverride:  copyDecimal(in.ProbabilityOverride),
		StartingDate:         start,
		ClosingDate:          end,
		Status:               status,
		Stage:                stage,
		OwnerID:              owner,
		TeamID:               copyID(team),
		ClientID:             copyID(in.ClientID),
		CreatedByID:          actor.UserID,
		LastModifiedByID:     actor.UserID,
	}, nil
}

// apply writes the patch onto o. Dates are checked by the caller once both
// ends are known.
func (p Patch) apply(o *models.Opportunity) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return invalid("project_name", "must not be empty")
		}
		if len(name) > 255 {
			return invalid("project_name", "must be at most 255 characters")
		}
		o.Name = name
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.ServiceType != nil {
		if !p.ServiceType.Valid() {
			return invalid("service_type", "unknown value "+quote(string(*p.ServiceType)))
		}
		o.ServiceType = *p.ServiceType
	}
	if p.SectorType != nil {
		if !p.SectorType.Valid() {
			return invalid("sector_type", "unknown value "+quote(string(*p.SectorType)))
		}
		o.SectorType = *p.SectorType
	}
	if p.OriginalAmount != nil {
		if err := checkAmount(*p.OriginalAmount); err != nil {
			return err
		}
		o.OriginalAmount = *p.OriginalAmount
	}
	if p.MarginPercentage != nil {
		if err := checkUnit("gross_margin_percentage", *p.MarginPercentage); err != nil {
			return err
		}
		o.MarginPercentage = *p.MarginPercentage
	}
	if p.ProjectType != nil {
		o.ProjectType = cleanProjectType(p.ProjectType)
	}
	if p.ProjectMaturity != nil {
		if !p.ProjectMaturity.Valid() {
			return invalid("project_maturity", "unknown value "+quote(string(*p.ProjectMaturity)))
		}
		o.ProjectMaturity = *p.ProjectMaturity
	}
	if p.ClientType != nil {
		if !p.ClientType.Valid() {
			return invalid("client_type", "unknown value "+quote(string(*p.ClientType)))
		}
		o.ClientType = *p.ClientType
	}
	if p.ClientRelationship != nil {
		if !p.ClientRelationship.Valid() {
			return invalid("client_relationship", "unknown value "+quote(string(*p.ClientRelationship)))
		}
		o.ClientRelationship = *p.ClientRelationship
	}
	if p.ConservativeApproach != nil {
		o.ConservativeApproach = *p.ConservativeApproach
	}
	switch {
	case p.ClearProbabilityOverride:
		o.ProbabilityOverride = nil
	case p.ProbabilityOverride != nil:
		if err := checkUnit("win_probability_override", *p.ProbabilityOverride); err != nil {
			return err
		}
		o.ProbabilityOverride = copyDecimal(p.ProbabilityOverride)
	}
	if p.StartingDate != nil {
		if p.StartingDate.IsZero() {
			return invalid("starting_date", "must not be empty")
		}
		o.StartingDate = dateOnly(*p.StartingDate)
	}
	if p.ClosingDate != nil {
		if p.ClosingDate.IsZero() {
			return invalid("closing_date", "must not be empty")
		}
		o.ClosingDate = dateOnly(*p.ClosingDate)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return invalid("status", "unknown value "+quote(string(*p.Status)))
		}
		o.Status = *p.Status
	}
	if p.Stage != nil {
		if !p.Stage.Valid() {
			return invalid("stage", "unknown value "+quote(string(*p.Stage)))
		}
		o.Stage = *p.Stage
	}
	if p.OwnerID != nil {
		if *p.OwnerID == 0 {
			return invalid("owner_id", "must not be empty")
		}
		o.OwnerID = *p.OwnerID
	}
	if p.TeamID != nil {
		o.TeamID = copyID(p.TeamID)
	}
	if p.ClientID != nil {
		o.ClientID = copyID(p.ClientID)
	}
	return nil
}

func checkFactors(m models.ProjectMaturity, ct models.ClientType, rel models.ClientRelationship) error {
	if !m.Valid() {
		return invalid("project_maturity", "unknown value "+quote(string(m)))
	}
	if !ct.Valid() {
		return invalid("client_type", "unknown value "+quote(string(ct)))
	}
	if !rel.Valid() {
		return invalid("client_relationship", "unknown value "+quote(string(rel)))
	}
	return nil
}

func checkAmount(v decimal.Decimal) error {
	if v.IsNegative() {
		return invalid("original_amount", "must not be negative")
	}
	return nil
}

func checkUnit(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(1)) {
		return invalid(field, "must be between 0 and 1")
	}
	return nil
}

func checkDates(start, end time.Time) error {
	if !end.After(start) {
		return invalid("closing_date", "must be after starting_date")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func cleanProjectType(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func copyDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyID(v *uint64) *uint64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}

func quote(s string) string {
	return `"` + s + `"`
}
