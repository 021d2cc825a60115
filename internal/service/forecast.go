package service

import (
	"context"
	"errors"

	"bdpipeline/internal/models"
	"bdpipeline/internal/opportunity"
	"bdpipeline/internal/repository"
	"bdpipeline/internal/revenue"
)

type ForecastService struct {
	Repo repository.OpportunityRepository
}

// OpportunityForecast is the stored distribution of one opportunity with its
// yearly summary.
type OpportunityForecast struct {
	OpportunityID uint64                       `json:"opportunity_id"`
	Entries       []models.RevenueDistribution `json:"entries"`
	ByYear        []revenue.YearTotal          `json:"by_year"`
}

func (s *ForecastService) Opportunity(ctx context.Context, id uint64) (*OpportunityForecast, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("forecast service not configured")
	}
	opp, err := s.Repo.GetOpportunityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, opportunity.ErrNotFound
	}
	rows := opp.RevenueDistribution
	if rows == nil {
		rows, err = s.Repo.ListRevenueDistribution(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if rows == nil {
		rows = []models.RevenueDistribution{}
	}
	return &OpportunityForecast{
		OpportunityID: id,
		Entries:       rows,
		ByYear:        revenue.Summarize(entriesOf(rows)),
	}, nil
}

// Aggregate sums the stored distribution of the given opportunities.
// Unknown ids contribute nothing.
func (s *ForecastService) Aggregate(ctx context.Context, ids []uint64, years revenue.YearRange) (revenue.Rollup, error) {
	if s == nil || s.Repo == nil {
		return revenue.Rollup{}, errors.New("forecast service not configured")
	}
	if years.From != nil && years.To != nil && *years.From > *years.To {
		return revenue.Rollup{}, &opportunity.ValidationError{Field: "year_from", Message: "must not be after year_to"}
	}
	rows, err := s.Repo.ListRevenueDistributionByOpportunityIDs(ctx, uniqueIDs(ids), years.From, years.To)
	if err != nil {
		return revenue.Rollup{}, err
	}
	return revenue.Aggregate(entriesOf(rows), years), nil
}

func entriesOf(rows []models.RevenueDistribution) []revenue.Entry {
	out := make([]revenue.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, revenue.Entry{
			Year:         row.Year,
			Month:        row.Month,
			SalesAmount:  row.SalesAmount,
			MarginAmount: row.MarginAmount,
			Forecast:     row.Forecast,
		})
	}
	return out
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
