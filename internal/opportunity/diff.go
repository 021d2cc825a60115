package opportunity

import (
	"github.com/shopspring/decimal"

	"bdpipeline/internal/models"
)

// FieldChange is one tracked field whose value differs between two versions
// of an opportunity. Old and New hold JSON-friendly scalars or nil.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

type trackedField struct {
	name string
	// recalc marks inputs of the probability, the derived amounts or the
	// revenue distribution.
	recalc bool
	value  func(o *models.Opportunity) any
}

var trackedFields = []trackedField{
	{"name", false, func(o *models.Opportunity) any { return o.Name }},
	{"notes", false, func(o *models.Opportunity) any { return o.Notes }},
	{"service_type", false, func(o *models.Opportunity) any { return string(o.ServiceType) }},
	{"sector_type", false, func(o *models.Opportunity) any { return string(o.SectorType) }},
	{"original_amount", true, func(o *models.Opportunity) any { return fixed(o.OriginalAmount, 2) }},
	{"gross_margin_percentage", true, func(o *models.Opportunity) any { return fixed(o.MarginPercentage, 4) }},
	{"project_type", true, func(o *models.Opportunity) any { return optString(o.ProjectType) }},
	{"project_maturity", true, func(o *models.Opportunity) any { return string(o.ProjectMaturity) }},
	{"client_type", true, func(o *models.Opportunity) any { return string(o.ClientType) }},
	{"client_relationship", true, func(o *models.Opportunity) any { return string(o.ClientRelationship) }},
	{"conservative_approach", true, func(o *models.Opportunity) any { return o.ConservativeApproach }},
	{"starting_date", true, func(o *models.Opportunity) any { return o.StartingDate.Format(dateLayout) }},
	{"closing_date", true, func(o *models.Opportunity) any { return o.ClosingDate.Format(dateLayout) }},
	{"win_probability_override", true, func(o *models.Opportunity) any { return optFixed(o.ProbabilityOverride, 4) }},
	{"status", false, func(o *models.Opportunity) any { return string(o.Status) }},
	{"stage", false, func(o *models.Opportunity) any { return string(o.Stage) }},
	{"owner_id", false, func(o *models.Opportunity) any { return o.OwnerID }},
	{"team_id", false, func(o *models.Opportunity) any { return optID(o.TeamID) }},
	{"client_id", false, func(o *models.Opportunity) any { return optID(o.ClientID) }},
}

const dateLayout = "2006-01-02"

// Diff lists the tracked fields that differ between before and after, in a
// stable order.
func Diff(before, after *models.Opportunity) []FieldChange {
	var out []FieldChange
	for _, f := range trackedFields {
		oldV, newV := f.value(before), f.value(after)
		if oldV != newV {
			out = append(out, FieldChange{Field: f.name, Old: oldV, New: newV})
		}
	}
	return out
}

// NeedsRecalculation reports whether any change touches a derived value.
func NeedsRecalculation(changes []FieldChange) bool {
	for _, c := range changes {
		for _, f := range trackedFields {
			if f.name == c.Field && f.recalc {
				return true
			}
		}
	}
	return false
}

func changed(changes []FieldChange, field string) (FieldChange, bool) {
	for _, c := range changes {
		if c.Field == field {
			return c, true
		}
	}
	return FieldChange{}, false
}

func changeMaps(changes []FieldChange) (map[string]any, map[string]any) {
	oldValues := make(map[string]any, len(changes))
	newValues := make(map[string]any, len(changes))
	for _, c := range changes {
		oldValues[c.Field] = c.Old
		newValues[c.Field] = c.New
	}
	return oldValues, newValues
}

func fixed(d decimal.Decimal, places int32) any {
	return d.StringFixed(places)
}

func optFixed(d *decimal.Decimal, places int32) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(places)
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}
