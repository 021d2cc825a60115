package probability

import (
	"strings"

	"github.com/shopspring/decimal"

	"bdpipeline/internal/models"
)

// Factors are the categorical inputs of a score. ProjectType is optional;
// Conservative applies the "Yes" weight of the conservative_approach factor.
type Factors struct {
	ProjectType        *string                   `json:"project_type,omitempty"`
	ProjectMaturity    models.ProjectMaturity    `json:"project_maturity"`
	ClientType         models.ClientType         `json:"client_type"`
	ClientRelationship models.ClientRelationship `json:"client_relationship"`
	Conservative       bool                      `json:"conservative_approach"`
}

// FactorsOf extracts the scoring inputs stored on an opportunity.
func FactorsOf(o *models.Opportunity) Factors {
	if o == nil {
		return Factors{}
	}
	return Factors{
		ProjectType:        o.ProjectType,
		ProjectMaturity:    o.ProjectMaturity,
		ClientType:         o.ClientType,
		ClientRelationship: o.ClientRelationship,
		Conservative:       o.ConservativeApproach,
	}
}

// Table maps factor type and value to a weight. The zero Table is empty and
// every lookup misses.
type Table struct {
	Weights map[models.FactorType]map[string]decimal.Decimal `json:"weights"`
}

// NewTable indexes active rows. Inactive rows are skipped; for duplicate
// pairs the last row wins.
func NewTable(rows []models.Coefficient) Table {
	t := Table{Weights: map[models.FactorType]map[string]decimal.Decimal{}}
	for _, row := range rows {
		if !row.Active {
			continue
		}
		value := strings.TrimSpace(row.FactorValue)
		if value == "" {
			continue
		}
		byValue, ok := t.Weights[row.FactorType]
		if !ok {
			byValue = map[string]decimal.Decimal{}
			t.Weights[row.FactorType] = byValue
		}
		byValue[value] = row.Weight
	}
	return t
}

func (t Table) Lookup(factor models.FactorType, value string) (decimal.Decimal, bool) {
	byValue, ok := t.Weights[factor]
	if !ok {
		return decimal.Decimal{}, false
	}
	w, ok := byValue[strings.TrimSpace(value)]
	return w, ok
}

func (t Table) Len() int {
	n := 0
	for _, byValue := range t.Weights {
		n += len(byValue)
	}
	return n
}
