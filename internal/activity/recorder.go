package activity

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"bdpipeline/internal/metrics"
	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

// Record is one entry for the append-only activity trail.
type Record struct {
	OpportunityID uint64
	ActorID       uint64
	Kind          models.ActivityKind
	Description   string
	Old           map[string]any
	New           map[string]any
}

type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// Forwarder receives every persisted record. Implementations must not block
// for long and must swallow their own failures.
type Forwarder interface {
	Forward(ctx context.Context, item models.ActivityLog)
}

// Recorder persists records through the repository and then hands them to
// the optional forwarder.
type Recorder struct {
	Repo      repository.ActivityRepository
	Forwarder Forwarder
	Logger    *zap.Logger
	Metrics   *metrics.Registry
}

func (r *Recorder) Record(ctx context.Context, rec Record) error {
	item := models.ActivityLog{
		OpportunityID: rec.OpportunityID,
		UserID:        rec.ActorID,
		Kind:          rec.Kind,
		Description:   rec.Description,
		OldValue:      encode(rec.Old),
		NewValue:      encode(rec.New),
	}
	err := r.Repo.InsertActivity(ctx, &item)
	r.Metrics.ObserveActivity(string(rec.Kind), err)
	if err != nil {
		return err
	}
	if r.Logger != nil {
		r.Logger.Debug("activity recorded",
			zap.Uint64("opportunity_id", rec.OpportunityID),
			zap.String("kind", string(rec.Kind)),
		)
	}
	if r.Forwarder != nil {
		r.Forwarder.Forward(ctx, item)
	}
	return nil
}

type Page struct {
	Items []models.ActivityLog
	Total int64
}

func (r *Recorder) List(ctx context.Context, opportunityID uint64, limit, offset int) (Page, error) {
	params := repository.ListActivitiesParams{
		Limit:         limit,
		Offset:        offset,
		OpportunityID: &opportunityID,
	}
	items, err := r.Repo.ListActivities(ctx, params)
	if err != nil {
		return Page{}, err
	}
	total, err := r.Repo.CountActivities(ctx, params)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []models.ActivityLog{}
	}
	return Page{Items: items, Total: total}, nil
}

func encode(v map[string]any) datatypes.JSON {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
