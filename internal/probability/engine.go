package probability

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bdpipeline/internal/metrics"
	"bdpipeline/internal/models"
)

// Places is the precision of a probability score.
const Places = 4

// Breakdown lists the weight applied for each factor. ProjectType and
// Conservative are nil when the factor did not take part in the product.
type Breakdown struct {
	Base         decimal.Decimal  `json:"base"`
	ProjectType  *decimal.Decimal `json:"project_type,omitempty"`
	Maturity     decimal.Decimal  `json:"project_maturity"`
	ClientType   decimal.Decimal  `json:"client_type"`
	Relationship decimal.Decimal  `json:"client_relationship"`
	Conservative *decimal.Decimal `json:"conservative_approach,omitempty"`
	Final        decimal.Decimal  `json:"final_probability"`
	Missing      []string         `json:"missing,omitempty"`
}

// Engine multiplies the coefficient of each factor, in a fixed order,
// starting from 1.0. It never fails: an unknown factor value weighs 1.0 and an
// unavailable table scores every factor as unknown.
type Engine struct {
	Coefficients CoefficientProvider
	Logger       *zap.Logger
	Metrics      *metrics.Registry
}

func (e *Engine) Score(ctx context.Context, f Factors) decimal.Decimal {
	return e.ScoreWithBreakdown(ctx, f).Final
}

func (e *Engine) ScoreWithBreakdown(ctx context.Context, f Factors) Breakdown {
	table := e.table(ctx)
	one := decimal.NewFromInt(1)
	b := Breakdown{Base: one}
	p := one

	weigh := func(factor models.FactorType, value string) decimal.Decimal {
		w, ok := table.Lookup(factor, value)
		if ok {
			return w
		}
		b.Missing = append(b.Missing, string(factor)+"="+value)
		e.Metrics.ObserveMissingCoefficient(string(factor))
		e.logger().Warn("coefficient not found, using neutral weight",
			zap.String("factor_type", string(factor)),
			zap.String("factor_value", value),
		)
		return one
	}

	if f.ProjectType != nil && strings.TrimSpace(*f.ProjectType) != "" {
		w := weigh(models.FactorProjectType, *f.ProjectType)
		b.ProjectType = &w
		p = p.Mul(w)
	}
	b.Maturity = weigh(models.FactorProjectMaturity, string(f.ProjectMaturity))
	p = p.Mul(b.Maturity)
	b.ClientType = weigh(models.FactorClientType, string(f.ClientType))
	p = p.Mul(b.ClientType)
	b.Relationship = weigh(models.FactorClientRelationship, string(f.ClientRelationship))
	p = p.Mul(b.Relationship)
	if f.Conservative {
		w := weigh(models.FactorConservativeApproach, models.ConservativeYes)
		b.Conservative = &w
		p = p.Mul(w)
	}

	b.Final = p.Round(Places)
	e.Metrics.ObserveScore("engine")
	return b
}

func (e *Engine) table(ctx context.Context) Table {
	if e.Coefficients == nil {
		return Table{}
	}
	t, err := e.Coefficients.Get(ctx)
	if err != nil {
		e.logger().Error("coefficient table unavailable, scoring with neutral weights", zap.Error(err))
		return Table{}
	}
	return t
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
