package opportunity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bdpipeline/internal/activity"
	"bdpipeline/internal/models"
	"bdpipeline/internal/probability"
	"bdpipeline/internal/repository"
)

type stubRepo struct {
	nextID      uint64
	opps        map[uint64]models.Opportunity
	dist        map[uint64][]models.RevenueDistribution
	saves       int
	replaces    int
	failReplace error
	failGetByID error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		opps: map[uint64]models.Opportunity{},
		dist: map[uint64][]models.RevenueDistribution{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	oppSnap := make(map[uint64]models.Opportunity, len(s.opps))
	for k, v := range s.opps {
		oppSnap[k] = v
	}
	distSnap := make(map[uint64][]models.RevenueDistribution, len(s.dist))
	for k, v := range s.dist {
		distSnap[k] = append([]models.RevenueDistribution(nil), v...)
	}
	nextID := s.nextID
	if err := fn(nil); err != nil {
		s.opps, s.dist, s.nextID = oppSnap, distSnap, nextID
		return err
	}
	return nil
}

func (s *stubRepo) InsertOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	s.nextID++
	item.ID = s.nextID
	stored := *item
	stored.RevenueDistribution = nil
	s.opps[item.ID] = stored
	return nil
}

func (s *stubRepo) SaveOpportunityTx(ctx context.Context, tx *gorm.DB, item *models.Opportunity) error {
	s.saves++
	stored := *item
	stored.RevenueDistribution = nil
	s.opps[item.ID] = stored
	return nil
}

func (s *stubRepo) DeleteOpportunityTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	delete(s.opps, id)
	delete(s.dist, id)
	return nil
}

func (s *stubRepo) ReplaceRevenueDistributionTx(ctx context.Context, tx *gorm.DB, opportunityID uint64, items []models.RevenueDistribution) error {
	if s.failReplace != nil {
		return s.failReplace
	}
	s.replaces++
	for i := range items {
		items[i].OpportunityID = opportunityID
	}
	s.dist[opportunityID] = append([]models.RevenueDistribution(nil), items...)
	return nil
}

func (s *stubRepo) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	if s.failGetByID != nil {
		return nil, s.failGetByID
	}
	opp, ok := s.opps[id]
	if !ok {
		return nil, nil
	}
	opp.RevenueDistribution = append([]models.RevenueDistribution(nil), s.dist[id]...)
	return &opp, nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	var out []models.Opportunity
	for _, o := range s.opps {
		out = append(out, o)
	}
	return out, nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	return int64(len(s.opps)), nil
}

func (s *stubRepo) ListRevenueDistribution(ctx context.Context, opportunityID uint64) ([]models.RevenueDistribution, error) {
	return s.dist[opportunityID], nil
}

func (s *stubRepo) ListRevenueDistributionByOpportunityIDs(ctx context.Context, ids []uint64, fromYear, toYear *int) ([]models.RevenueDistribution, error) {
	var out []models.RevenueDistribution
	for _, id := range ids {
		out = append(out, s.dist[id]...)
	}
	return out, nil
}

type captureSink struct {
	records []activity.Record
}

func (c *captureSink) Record(ctx context.Context, rec activity.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) kinds() []models.ActivityKind {
	out := make([]models.ActivityKind, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Kind)
	}
	return out
}

type countingScorer struct {
	*probability.Engine
	calls int
}

func (c *countingScorer) Score(ctx context.Context, f probability.Factors) decimal.Decimal {
	c.calls++
	return c.Engine.Score(ctx, f)
}

type fixture struct {
	repo   *stubRepo
	sink   *captureSink
	table  *probability.StaticCoefficients
	scorer *countingScorer
	mgr    *Manager
	actor  Actor
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newStubRepo(),
		sink:  &captureSink{},
		table: probability.NewStaticCoefficients(models.DefaultCoefficients()),
		actor: Actor{UserID: 7},
	}
	f.scorer = &countingScorer{Engine: &probability.Engine{Coefficients: f.table}}
	f.mgr = &Manager{Repo: f.repo, Scorer: f.scorer, Activity: f.sink}
	return f
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func baseInput() CreateInput {
	return CreateInput{
		Name:               "Data hall fit-out",
		ServiceType:        models.ServiceIFM,
		SectorType:         models.SectorDataCenter,
		OriginalAmount:     d("100000"),
		ProjectMaturity:    models.MaturityRFQ,
		ClientType:         models.ClientTypeExisting,
		ClientRelationship: models.RelationshipGood,
		StartingDate:       day(2025, time.January, 15),
		ClosingDate:        day(2025, time.March, 20),
	}
}

func TestCreateDerivesEverything(t *testing.T) {
	f := newFixture()
	opp, err := f.mgr.Create(context.Background(), f.actor, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !opp.ProbabilityScore.Equal(d("0.4725")) {
		t.Fatalf("probability=%s want=0.4725", opp.ProbabilityScore)
	}
	if !opp.WeightedAmount.Equal(d("47250")) || !opp.MarginAmount.Equal(d("13000")) {
		t.Fatalf("weighted=%s margin=%s", opp.WeightedAmount, opp.MarginAmount)
	}
	if !opp.MarginPercentage.Equal(DefaultMarginPercentage) {
		t.Fatalf("margin pct=%s want default", opp.MarginPercentage)
	}
	if opp.DurationMonths != 3 {
		t.Fatalf("duration=%d want=3", opp.DurationMonths)
	}
	if opp.Status != models.StatusActive || opp.Stage != models.StageProposal {
		t.Fatalf("status=%s stage=%s", opp.Status, opp.Stage)
	}
	if opp.OwnerID != 7 || opp.CreatedByID != 7 || opp.LastModifiedByID != 7 {
		t.Fatalf("owner=%d created_by=%d modified_by=%d", opp.OwnerID, opp.CreatedByID, opp.LastModifiedByID)
	}

	stored := f.repo.dist[opp.ID]
	if len(stored) != 3 {
		t.Fatalf("stored entries=%d want=3", len(stored))
	}
	for _, e := range stored {
		if e.OpportunityID != opp.ID || !e.SalesAmount.Equal(d("15750")) || !e.MarginAmount.Equal(d("2047.50")) || !e.Forecast {
			t.Fatalf("entry=%+v", e)
		}
	}
	if kinds := f.sink.kinds(); len(kinds) != 1 || kinds[0] != models.ActivityCreated {
		t.Fatalf("activities=%v", kinds)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(in *CreateInput)
		field string
	}{
		{"closing before starting", func(in *CreateInput) { in.ClosingDate = day(2025, time.January, 1) }, "closing_date"},
		{"closing equals starting", func(in *CreateInput) { in.ClosingDate = in.StartingDate }, "closing_date"},
		{"missing name", func(in *CreateInput) { in.Name = "  " }, "project_name"},
		{"negative amount", func(in *CreateInput) { in.OriginalAmount = d("-1") }, "original_amount"},
		{"margin above one", func(in *CreateInput) { m := d("1.5"); in.MarginPercentage = &m }, "gross_margin_percentage"},
		{"bad maturity", func(in *CreateInput) { in.ProjectMaturity = "Dreaming" }, "project_maturity"},
		{"bad relationship", func(in *CreateInput) { in.ClientRelationship = "6 - Family" }, "client_relationship"},
		{"bad sector", func(in *CreateInput) { in.SectorType = "Space" }, "sector_type"},
		{"override above one", func(in *CreateInput) { o := d("1.2"); in.ProbabilityOverride = &o }, "win_probability_override"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			in := baseInput()
			tc.mut(&in)
			_, err := f.mgr.Create(context.Background(), f.actor, in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err=%v want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field=%s want=%s", ve.Field, tc.field)
			}
			if len(f.repo.opps) != 0 || len(f.sink.records) != 0 {
				t.Fatalf("invalid input was persisted")
			}
		})
	}
}

func TestCreateWithOverrideSkipsScoring(t *testing.T) {
	f := newFixture()
	in := baseInput()
	o := d("0.8")
	in.ProbabilityOverride = &o
	opp, err := f.mgr.Create(context.Background(), f.actor, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.scorer.calls != 0 {
		t.Fatalf("scorer calls=%d want=0", f.scorer.calls)
	}
	if !opp.ProbabilityScore.Equal(d("0.8")) || !opp.WeightedAmount.Equal(d("80000")) {
		t.Fatalf("probability=%s weighted=%s", opp.ProbabilityScore, opp.WeightedAmount)
	}

	zero := d("0")
	in.ProbabilityOverride = &zero
	opp, err = f.mgr.Create(context.Background(), f.actor, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !opp.WeightedAmount.IsZero() {
		t.Fatalf("zero override weighted=%s want=0", opp.WeightedAmount)
	}
}

func TestNotesOnlyUpdateDoesNotRecalculate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, err := f.mgr.Create(ctx, f.actor, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	replaces := f.repo.replaces

	// A different table would produce a different score if anything were recomputed.
	f.table.Table = probability.NewTable(nil)

	notes := "Client asked for a revised scope"
	updated, changes, err := f.mgr.Update(ctx, Actor{UserID: 8}, opp.ID, Patch{Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(changes) != 1 || changes[0].Field != "notes" {
		t.Fatalf("changes=%+v", changes)
	}
	if f.repo.replaces != replaces {
		t.Fatalf("distribution rewritten on a notes-only update")
	}
	if !updated.ProbabilityScore.Equal(d("0.4725")) || !updated.WeightedAmount.Equal(d("47250")) {
		t.Fatalf("probability=%s weighted=%s", updated.ProbabilityScore, updated.WeightedAmount)
	}
	if updated.LastModifiedByID != 8 {
		t.Fatalf("last modified by=%d want=8", updated.LastModifiedByID)
	}
	if len(updated.RevenueDistribution) != 3 {
		t.Fatalf("entries=%d want=3", len(updated.RevenueDistribution))
	}
	last := f.sink.records[len(f.sink.records)-1]
	if last.Kind != models.ActivityUpdated || last.New["notes"] != notes || last.Old["notes"] != "" {
		t.Fatalf("activity=%+v", last)
	}
}

func TestRelationshipChangeRegeneratesDistribution(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, err := f.mgr.Create(ctx, f.actor, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rel := models.RelationshipHigh
	updated, changes, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClientRelationship: &rel})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// 0.45 * 1.05 * 1.05 = 0.496125
	if !updated.ProbabilityScore.Equal(d("0.4961")) {
		t.Fatalf("probability=%s want=0.4961", updated.ProbabilityScore)
	}
	if !updated.WeightedAmount.Equal(d("49610")) {
		t.Fatalf("weighted=%s want=49610", updated.WeightedAmount)
	}
	stored := f.repo.dist[opp.ID]
	if len(stored) != 3 {
		t.Fatalf("entries=%d want=3", len(stored))
	}
	for _, e := range stored {
		if !e.SalesAmount.Equal(d("16536.67")) || !e.MarginAmount.Equal(d("2149.77")) {
			t.Fatalf("entry=%+v", e)
		}
	}
	if len(changes) != 1 || changes[0].Old != "3 - Good" || changes[0].New != "4 - High" {
		t.Fatalf("changes=%+v", changes)
	}
	last := f.sink.records[len(f.sink.records)-1]
	if last.Old["client_relationship"] != "3 - Good" || last.New["client_relationship"] != "4 - High" {
		t.Fatalf("activity old=%v new=%v", last.Old, last.New)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, _ := f.mgr.Create(ctx, f.actor, baseInput())
	rel := models.RelationshipHigh
	if _, _, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClientRelationship: &rel}); err != nil {
		t.Fatalf("update: %v", err)
	}
	saves, replaces, records := f.repo.saves, f.repo.replaces, len(f.sink.records)

	amount := d("100000.00")
	_, changes, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClientRelationship: &rel, OriginalAmount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("changes=%+v want none", changes)
	}
	if f.repo.saves != saves || f.repo.replaces != replaces || len(f.sink.records) != records {
		t.Fatalf("no-op update wrote something")
	}
}

func TestStoredOverrideSurvivesFactorChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	in := baseInput()
	o := d("0.6")
	in.ProbabilityOverride = &o
	opp, _ := f.mgr.Create(ctx, f.actor, in)

	m := models.MaturityNegotiation
	updated, _, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ProjectMaturity: &m})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.ProbabilityScore.Equal(d("0.6")) {
		t.Fatalf("probability=%s want stored override 0.6", updated.ProbabilityScore)
	}

	updated, _, err = f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClearProbabilityOverride: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// 0.75 * 1.05 * 1.0
	if !updated.ProbabilityScore.Equal(d("0.7875")) || updated.ProbabilityOverride != nil {
		t.Fatalf("probability=%s override=%v", updated.ProbabilityScore, updated.ProbabilityOverride)
	}
}

func TestUpdateDateChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, _ := f.mgr.Create(ctx, f.actor, baseInput())

	bad := day(2024, time.December, 1)
	if _, _, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClosingDate: &bad}); !IsValidation(err) {
		t.Fatalf("err=%v want ValidationError", err)
	}

	end := day(2025, time.June, 10)
	updated, _, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{ClosingDate: &end})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DurationMonths != 5 {
		t.Fatalf("duration=%d want=5", updated.DurationMonths)
	}
	if n := len(f.repo.dist[opp.ID]); n != 6 {
		t.Fatalf("entries=%d want=6", n)
	}
}

func TestUpdateRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, _ := f.mgr.Create(ctx, f.actor, baseInput())
	records := len(f.sink.records)

	f.repo.failReplace = errors.New("deadlock detected")
	amount := d("200000")
	_, _, err := f.mgr.Update(ctx, f.actor, opp.ID, Patch{OriginalAmount: &amount})
	if err == nil || IsValidation(err) {
		t.Fatalf("err=%v want persistence error", err)
	}
	stored := f.repo.opps[opp.ID]
	if !stored.OriginalAmount.Equal(d("100000")) || !stored.WeightedAmount.Equal(d("47250")) {
		t.Fatalf("opportunity changed after rollback: amount=%s weighted=%s", stored.OriginalAmount, stored.WeightedAmount)
	}
	if len(f.repo.dist[opp.ID]) != 3 || !f.repo.dist[opp.ID][0].SalesAmount.Equal(d("15750")) {
		t.Fatalf("distribution changed after rollback")
	}
	if len(f.sink.records) != records {
		t.Fatalf("activity recorded for a failed update")
	}
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture()
	notes := "x"
	if _, _, err := f.mgr.Update(context.Background(), f.actor, 404, Patch{Notes: &notes}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestChangeStatusRecordsTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, _ := f.mgr.Create(ctx, f.actor, baseInput())

	stage := models.StageClosed
	notes := "Signed on site"
	updated, err := f.mgr.ChangeStatus(ctx, f.actor, opp.ID, models.StatusWon, &stage, &notes)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if updated.Status != models.StatusWon || updated.Stage != models.StageClosed || updated.Notes != notes {
		t.Fatalf("status=%s stage=%s notes=%q", updated.Status, updated.Stage, updated.Notes)
	}
	kinds := f.sink.kinds()
	want := []models.ActivityKind{models.ActivityCreated, models.ActivityUpdated, models.ActivityStatusChanged, models.ActivityStageChanged}
	if len(kinds) != len(want) {
		t.Fatalf("activities=%v want=%v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("activities=%v want=%v", kinds, want)
		}
	}
	status := f.sink.records[2]
	if status.Old["status"] != "Active" || status.New["status"] != "Won" {
		t.Fatalf("status activity old=%v new=%v", status.Old, status.New)
	}

	// Any transition is allowed, including back to Active.
	if _, err := f.mgr.ChangeStatus(ctx, f.actor, opp.ID, models.StatusActive, nil, nil); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.mgr.ChangeStatus(ctx, f.actor, opp.ID, "Archived", nil, nil); !IsValidation(err) {
		t.Fatalf("err=%v want ValidationError", err)
	}
}

func TestDuplicateRecomputes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	in := baseInput()
	o := d("0.9")
	in.ProbabilityOverride = &o
	team := uint64(3)
	in.TeamID = &team
	src, _ := f.mgr.Create(ctx, f.actor, in)

	dup, err := f.mgr.Duplicate(ctx, Actor{UserID: 11}, src.ID, "Data hall fit-out phase 2")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID == src.ID {
		t.Fatalf("duplicate reused id %d", dup.ID)
	}
	if dup.Notes != "Duplicated from: Data hall fit-out" {
		t.Fatalf("notes=%q", dup.Notes)
	}
	if dup.ProbabilityOverride != nil || !dup.ProbabilityScore.Equal(d("0.4725")) {
		t.Fatalf("override=%v probability=%s", dup.ProbabilityOverride, dup.ProbabilityScore)
	}
	if dup.OwnerID != 11 || dup.TeamID == nil || *dup.TeamID != 3 {
		t.Fatalf("owner=%d team=%v", dup.OwnerID, dup.TeamID)
	}
	if len(f.repo.dist[dup.ID]) != 3 || len(f.repo.dist[src.ID]) != 3 {
		t.Fatalf("distribution src=%d dup=%d", len(f.repo.dist[src.ID]), len(f.repo.dist[dup.ID]))
	}

	if _, err := f.mgr.Duplicate(ctx, f.actor, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestBulkUpdateCollectsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, _ := f.mgr.Create(ctx, f.actor, baseInput())
	b, _ := f.mgr.Create(ctx, f.actor, baseInput())

	stage := models.StageNegotiation
	res := f.mgr.BulkUpdate(ctx, f.actor, []uint64{a.ID, 404, b.ID, a.ID}, Patch{Stage: &stage})
	if res.Updated != 2 {
		t.Fatalf("updated=%d want=2", res.Updated)
	}
	if len(res.Failed) != 1 || res.Failed[0] != 404 {
		t.Fatalf("failed=%v", res.Failed)
	}
	if f.repo.opps[b.ID].Stage != models.StageNegotiation {
		t.Fatalf("stage=%s", f.repo.opps[b.ID].Stage)
	}
}

func TestDeleteAndActivities(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	opp, _ := f.mgr.Create(ctx, f.actor, baseInput())

	if err := f.mgr.AddActivity(ctx, f.actor, opp.ID, models.ActivityStatusChanged, "sneaky"); !IsValidation(err) {
		t.Fatalf("err=%v want ValidationError", err)
	}
	if err := f.mgr.AddActivity(ctx, f.actor, opp.ID, models.ActivityCallMade, "  "); !IsValidation(err) {
		t.Fatalf("err=%v want ValidationError", err)
	}
	if err := f.mgr.AddActivity(ctx, f.actor, opp.ID, models.ActivityCallMade, "Intro call with facilities lead"); err != nil {
		t.Fatalf("add activity: %v", err)
	}

	if err := f.mgr.Delete(ctx, f.actor, opp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.mgr.Get(ctx, opp.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if len(f.repo.dist[opp.ID]) != 0 {
		t.Fatalf("distribution survived delete")
	}
	if err := f.mgr.Delete(ctx, f.actor, opp.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v want ErrNotFound", err)
	}
}

func TestBreakdownMatchesStoredScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	in := baseInput()
	in.ConservativeApproach = true
	opp, _ := f.mgr.Create(ctx, f.actor, in)
	b := f.mgr.Breakdown(ctx, opp)
	if !b.Final.Equal(opp.ProbabilityScore) || !b.Final.Equal(d("0.4253")) {
		t.Fatalf("breakdown=%s stored=%s", b.Final, opp.ProbabilityScore)
	}
}
