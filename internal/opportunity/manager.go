package opportunity

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bdpipeline/internal/activity"
	"bdpipeline/internal/metrics"
	"bdpipeline/internal/models"
	"bdpipeline/internal/probability"
	"bdpipeline/internal/repository"
	"bdpipeline/internal/revenue"
)

type Scorer interface {
	Score(ctx context.Context, f probability.Factors) decimal.Decimal
	ScoreWithBreakdown(ctx context.Context, f probability.Factors) probability.Breakdown
}

// Manager owns every write to an opportunity. It keeps the derived fields and
// the revenue distribution consistent with the inputs and persists both in a
// single transaction.
type Manager struct {
	Repo     repository.OpportunityRepository
	Scorer   Scorer
	Activity activity.Sink
	Logger   *zap.Logger
	Metrics  *metrics.Registry
}

func (m *Manager) Get(ctx context.Context, id uint64) (*models.Opportunity, error) {
	opp, err := m.Repo.GetOpportunityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load opportunity %d: %w", id, err)
	}
	if opp == nil {
		return nil, ErrNotFound
	}
	return opp, nil
}

func (m *Manager) Create(ctx context.Context, actor Actor, in CreateInput) (*models.Opportunity, error) {
	opp, err := in.build(actor)
	if err != nil {
		return nil, err
	}
	entries := m.derive(ctx, opp)

	err = m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := m.Repo.InsertOpportunityTx(ctx, tx, opp); err != nil {
			return err
		}
		return m.Repo.ReplaceRevenueDistributionTx(ctx, tx, opp.ID, entries)
	})
	if err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}
	opp.RevenueDistribution = entries
	m.Metrics.ObserveWrite("create", true)

	m.record(ctx, activity.Record{
		OpportunityID: opp.ID,
		ActorID:       actor.UserID,
		Kind:          models.ActivityCreated,
		Description:   fmt.Sprintf("Opportunity %q created", opp.Name),
	})
	return opp, nil
}

// Update applies p and returns the stored result with the list of fields that
// actually changed. A patch that changes nothing writes nothing.
func (m *Manager) Update(ctx context.Context, actor Actor, id uint64, p Patch) (*models.Opportunity, []FieldChange, error) {
	before, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	after := *before
	after.RevenueDistribution = nil
	after.Activities = nil
	if err := p.apply(&after); err != nil {
		return nil, nil, err
	}

	changes := Diff(before, &after)
	if len(changes) == 0 {
		return before, nil, nil
	}

	_, startChanged := changed(changes, "starting_date")
	_, endChanged := changed(changes, "closing_date")
	if startChanged || endChanged {
		if err := checkDates(after.StartingDate, after.ClosingDate); err != nil {
			return nil, nil, err
		}
	}

	recalc := NeedsRecalculation(changes)
	var entries []models.RevenueDistribution
	if recalc {
		entries = m.derive(ctx, &after)
	}
	after.LastModifiedByID = actor.UserID

	err = m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := m.Repo.SaveOpportunityTx(ctx, tx, &after); err != nil {
			return err
		}
		if !recalc {
			return nil
		}
		return m.Repo.ReplaceRevenueDistributionTx(ctx, tx, after.ID, entries)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update opportunity %d: %w", id, err)
	}
	m.Metrics.ObserveWrite("update", recalc)
	if recalc {
		after.RevenueDistribution = entries
	} else {
		after.RevenueDistribution = before.RevenueDistribution
	}

	oldValues, newValues := changeMaps(changes)
	m.record(ctx, activity.Record{
		OpportunityID: id,
		ActorID:       actor.UserID,
		Kind:          models.ActivityUpdated,
		Description:   "Opportunity updated",
		Old:           oldValues,
		New:           newValues,
	})
	return &after, changes, nil
}

// ChangeStatus moves an opportunity to status, and optionally stage. Any
// transition is accepted.
func (m *Manager) ChangeStatus(ctx context.Context, actor Actor, id uint64, status models.OpportunityStatus, stage *models.OpportunityStage, notes *string) (*models.Opportunity, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown value "+quote(string(status)))
	}
	p := Patch{Status: &status, Stage: stage}
	if notes != nil && strings.TrimSpace(*notes) != "" {
		p.Notes = notes
	}
	opp, changes, err := m.Update(ctx, actor, id, p)
	if err != nil {
		return nil, err
	}
	if c, ok := changed(changes, "status"); ok {
		m.record(ctx, activity.Record{
			OpportunityID: id,
			ActorID:       actor.UserID,
			Kind:          models.ActivityStatusChanged,
			Description:   fmt.Sprintf("Status changed to %s", c.New),
			Old:           map[string]any{"status": c.Old},
			New:           map[string]any{"status": c.New},
		})
	}
	if c, ok := changed(changes, "stage"); ok {
		m.record(ctx, activity.Record{
			OpportunityID: id,
			ActorID:       actor.UserID,
			Kind:          models.ActivityStageChanged,
			Description:   fmt.Sprintf("Stage changed to %s", c.New),
			Old:           map[string]any{"stage": c.Old},
			New:           map[string]any{"stage": c.New},
		})
	}
	return opp, nil
}

// Duplicate creates a new opportunity from the inputs of an existing one.
// Derived values are recomputed and the probability override is not carried.
func (m *Manager) Duplicate(ctx context.Context, actor Actor, id uint64, newName string) (*models.Opportunity, error) {
	src, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		name = src.Name + " (copy)"
	}
	margin := src.MarginPercentage
	return m.Create(ctx, actor, CreateInput{
		Name:                 name,
		Notes:                "Duplicated from: " + src.Name,
		ServiceType:          src.ServiceType,
		SectorType:           src.SectorType,
		OriginalAmount:       src.OriginalAmount,
		MarginPercentage:     &margin,
		ProjectType:          src.ProjectType,
		ProjectMaturity:      src.ProjectMaturity,
		ClientType:           src.ClientType,
		ClientRelationship:   src.ClientRelationship,
		ConservativeApproach: src.ConservativeApproach,
		StartingDate:         src.StartingDate,
		ClosingDate:          src.ClosingDate,
		TeamID:               src.TeamID,
		ClientID:             src.ClientID,
	})
}

type BulkResult struct {
	Updated int      `json:"updated_count"`
	Failed  []uint64 `json:"failed"`
}

// BulkUpdate applies p to every id independently. A failing id is reported
// and the rest of the batch still runs.
func (m *Manager) BulkUpdate(ctx context.Context, actor Actor, ids []uint64, p Patch) BulkResult {
	out := BulkResult{Failed: []uint64{}}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, _, err := m.Update(ctx, actor, id, p); err != nil {
			m.logger().Warn("bulk update item failed", zap.Uint64("opportunity_id", id), zap.Error(err))
			out.Failed = append(out.Failed, id)
			continue
		}
		out.Updated++
	}
	return out
}

func (m *Manager) Delete(ctx context.Context, actor Actor, id uint64) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return m.Repo.DeleteOpportunityTx(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("delete opportunity %d: %w", id, err)
	}
	m.logger().Info("opportunity deleted", zap.Uint64("opportunity_id", id), zap.Uint64("actor_id", actor.UserID))
	return nil
}

// Breakdown scores the stored factors of opp against the current table.
func (m *Manager) Breakdown(ctx context.Context, opp *models.Opportunity) probability.Breakdown {
	return m.Scorer.ScoreWithBreakdown(ctx, probability.FactorsOf(opp))
}

// AddActivity logs a manual interaction such as a call or a meeting.
func (m *Manager) AddActivity(ctx context.Context, actor Actor, id uint64, kind models.ActivityKind, description string) error {
	if !kind.Manual() {
		return invalid("activity_type", "unsupported value "+quote(string(kind)))
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return invalid("description", "is required")
	}
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	if m.Activity == nil {
		return nil
	}
	return m.Activity.Record(ctx, activity.Record{
		OpportunityID: id,
		ActorID:       actor.UserID,
		Kind:          kind,
		Description:   description,
	})
}

// derive fills the derived fields of o and returns its distribution. The
// distribution spreads the unrounded weighted amount.
func (m *Manager) derive(ctx context.Context, o *models.Opportunity) []models.RevenueDistribution {
	var p decimal.Decimal
	if o.ProbabilityOverride != nil {
		p = *o.ProbabilityOverride
		m.Metrics.ObserveScore("override")
	} else {
		p = m.Scorer.Score(ctx, probability.FactorsOf(o))
	}
	weighted := o.OriginalAmount.Mul(p)

	o.ProbabilityScore = p
	o.WeightedAmount = weighted.Round(revenue.MoneyPlaces)
	o.MarginAmount = o.OriginalAmount.Mul(o.MarginPercentage).Round(revenue.MoneyPlaces)
	o.DurationMonths = revenue.DurationMonths(o.StartingDate, o.ClosingDate)

	entries := revenue.Distribute(weighted, o.MarginPercentage, o.StartingDate, o.ClosingDate)
	out := make([]models.RevenueDistribution, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.RevenueDistribution{
			OpportunityID: o.ID,
			Year:          e.Year,
			Month:         e.Month,
			SalesAmount:   e.SalesAmount,
			MarginAmount:  e.MarginAmount,
			Forecast:      e.Forecast,
		})
	}
	return out
}

// record appends to the activity trail after the write has committed. A
// failure here is logged and does not undo the write.
func (m *Manager) record(ctx context.Context, rec activity.Record) {
	if m.Activity == nil {
		return
	}
	if err := m.Activity.Record(ctx, rec); err != nil {
		m.logger().Error("activity record failed",
			zap.Uint64("opportunity_id", rec.OpportunityID),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err),
		)
	}
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
