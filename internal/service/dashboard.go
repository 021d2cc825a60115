package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
	"bdpipeline/internal/revenue"
)

const (
	dashboardPageSize       = 500
	dashboardForecastMonths = 12
	dashboardRecentActivity = 10
)

type DashboardRepository interface {
	ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error)
	ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error)
	ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]models.ActivityLog, error)
}

type Scope string

const (
	ScopeOwner  Scope = "owner"
	ScopeTeam   Scope = "team"
	ScopeGlobal Scope = "global"
)

// DashboardFilter restricts the summary. OwnerID applies to ScopeOwner and
// TeamID to ScopeTeam.
type DashboardFilter struct {
	Scope   Scope
	OwnerID uint64
	TeamID  *uint64
}

type Bucket struct {
	Name       string          `json:"name"`
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type Dashboard struct {
	Scope Scope `json:"scope"`

	Total  int `json:"total_opportunities"`
	Active int `json:"active_opportunities"`
	Won    int `json:"won_opportunities"`
	Lost   int `json:"lost_opportunities"`

	PipelineValue         decimal.Decimal `json:"pipeline_value"`
	WeightedPipelineValue decimal.Decimal `json:"weighted_pipeline_value"`
	WonValue              decimal.Decimal `json:"won_value"`
	WinRate               decimal.Decimal `json:"win_rate"`
	AverageDealSize       decimal.Decimal `json:"average_deal_size"`

	ByStage         []Bucket             `json:"by_stage"`
	ByStatus        []Bucket             `json:"by_status"`
	MonthlyForecast []revenue.MonthTotal `json:"monthly_forecast"`
	RecentActivity  []models.ActivityLog `json:"recent_activities"`
}

type DashboardService struct {
	Repo   DashboardRepository
	Flags  *SystemSettingsService
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *DashboardService) Summary(ctx context.Context, filter DashboardFilter) (*Dashboard, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("dashboard service not configured")
	}
	params := repository.ListOpportunitiesParams{OrderBy: "id", Asc: boolPtr(true)}
	switch filter.Scope {
	case ScopeOwner:
		owner := filter.OwnerID
		params.OwnerID = &owner
	case ScopeTeam:
		if filter.TeamID == nil {
			return nil, errors.New("team scope requires a team")
		}
		team := *filter.TeamID
		params.TeamID = &team
	case ScopeGlobal:
	default:
		return nil, errors.New("unknown dashboard scope")
	}

	opps, err := s.loadAll(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &Dashboard{
		Scope:                 filter.Scope,
		Total:                 len(opps),
		PipelineValue:         decimal.Zero,
		WeightedPipelineValue: decimal.Zero,
		WonValue:              decimal.Zero,
		WinRate:               decimal.Zero,
		AverageDealSize:       decimal.Zero,
		RecentActivity:        []models.ActivityLog{},
	}
	stages := map[string]*Bucket{}
	statuses := map[string]*Bucket{}
	activeIDs := make([]uint64, 0, len(opps))
	for i := range opps {
		o := &opps[i]
		addBucket(statuses, string(o.Status), o.OriginalAmount)
		switch o.Status {
		case models.StatusActive:
			out.Active++
			out.PipelineValue = out.PipelineValue.Add(o.OriginalAmount)
			out.WeightedPipelineValue = out.WeightedPipelineValue.Add(o.WeightedAmount)
			addBucket(stages, string(o.Stage), o.OriginalAmount)
			activeIDs = append(activeIDs, o.ID)
		case models.StatusWon:
			out.Won++
			out.WonValue = out.WonValue.Add(o.OriginalAmount)
		case models.StatusLost:
			out.Lost++
		}
	}
	if closed := out.Won + out.Lost; closed > 0 {
		out.WinRate = decimal.NewFromInt(int64(out.Won)).
			Div(decimal.NewFromInt(int64(closed))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if out.Won > 0 {
		out.AverageDealSize = out.WonValue.Div(decimal.NewFromInt(int64(out.Won))).Round(revenue.MoneyPlaces)
	}
	out.ByStage = sortedBuckets(stages)
	out.ByStatus = sortedBuckets(statuses)

	out.MonthlyForecast, err = s.forecast(ctx, activeIDs)
	if err != nil {
		return nil, err
	}

	if s.Flags == nil || s.Flags.IsEnabled(ctx, FeatureDashboardActivity, true) {
		recent, err := s.recent(ctx, filter.Scope, params, opps)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("dashboard recent activity failed", zap.Error(err))
			}
		} else {
			out.RecentActivity = recent
		}
	}
	return out, nil
}

func (s *DashboardService) loadAll(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	var out []models.Opportunity
	params.Limit = dashboardPageSize
	for offset := 0; ; offset += dashboardPageSize {
		params.Offset = offset
		page, err := s.Repo.ListOpportunities(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < dashboardPageSize {
			return out, nil
		}
	}
}

// forecast returns the next twelve months, starting with the current one.
func (s *DashboardService) forecast(ctx context.Context, ids []uint64) ([]revenue.MonthTotal, error) {
	out := []revenue.MonthTotal{}
	if len(ids) == 0 {
		return out, nil
	}
	start := revenue.FirstOfMonth(s.now())
	end := start.AddDate(0, dashboardForecastMonths-1, 0)
	from, to := start.Year(), end.Year()
	rows, err := s.Repo.ListRevenueDistributionByOpportunityIDs(ctx, ids, &from, &to)
	if err != nil {
		return nil, err
	}
	rollup := revenue.Aggregate(entriesOf(rows), revenue.YearRange{From: &from, To: &to})
	for _, mt := range rollup.ByMonth {
		month := time.Date(mt.Year, time.Month(mt.Month), 1, 0, 0, 0, 0, time.UTC)
		if month.Before(start) || month.After(end) {
			continue
		}
		out = append(out, mt)
	}
	return out, nil
}

func (s *DashboardService) recent(ctx context.Context, scope Scope, params repository.ListOpportunitiesParams, opps []models.Opportunity) ([]models.ActivityLog, error) {
	if scope == ScopeGlobal {
		return s.Repo.ListActivities(ctx, repository.ListActivitiesParams{Limit: dashboardRecentActivity})
	}
	if scope == ScopeOwner {
		return s.Repo.ListActivities(ctx, repository.ListActivitiesParams{Limit: dashboardRecentActivity, UserID: params.OwnerID})
	}
	// Team scope: merge the newest entries of each opportunity in the team.
	var merged []models.ActivityLog
	for i := range opps {
		id := opps[i].ID
		items, err := s.Repo.ListActivities(ctx, repository.ListActivitiesParams{Limit: dashboardRecentActivity, OpportunityID: &id})
		if err != nil {
			return nil, err
		}
		merged = append(merged, items...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CreatedAt.After(merged[j].CreatedAt) })
	if len(merged) > dashboardRecentActivity {
		merged = merged[:dashboardRecentActivity]
	}
	if merged == nil {
		merged = []models.ActivityLog{}
	}
	return merged, nil
}

func (s *DashboardService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func addBucket(buckets map[string]*Bucket, name string, value decimal.Decimal) {
	b, ok := buckets[name]
	if !ok {
		b = &Bucket{Name: name, TotalValue: decimal.Zero}
		buckets[name] = b
	}
	b.Count++
	b.TotalValue = b.TotalValue.Add(value)
}

func sortedBuckets(buckets map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
