package probability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bdpipeline/internal/cache"
	"bdpipeline/internal/models"
)

type stubCoefficientRepo struct {
	rows      []models.Coefficient
	listCalls int
	err       error
}

func (s *stubCoefficientRepo) ListActiveCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Coefficient, 0, len(s.rows))
	for _, row := range s.rows {
		if row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubCoefficientRepo) ListCoefficients(ctx context.Context) ([]models.Coefficient, error) {
	return append([]models.Coefficient(nil), s.rows...), nil
}

func (s *stubCoefficientRepo) UpsertCoefficient(ctx context.Context, item *models.Coefficient) error {
	for i := range s.rows {
		if s.rows[i].FactorType == item.FactorType && s.rows[i].FactorValue == item.FactorValue {
			s.rows[i].Weight = item.Weight
			s.rows[i].Active = true
			return nil
		}
	}
	s.rows = append(s.rows, *item)
	return nil
}

func (s *stubCoefficientRepo) SetCoefficientActive(ctx context.Context, factor models.FactorType, value string, active bool) (bool, error) {
	for i := range s.rows {
		if s.rows[i].FactorType == factor && s.rows[i].FactorValue == value {
			s.rows[i].Active = active
			return true, nil
		}
	}
	return false, nil
}

type errStore struct{}

func (errStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, cache.ErrUnavailable
}

func (errStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return cache.ErrUnavailable
}

func (errStore) Delete(ctx context.Context, key string) error {
	return cache.ErrUnavailable
}

func TestCachedCoefficientsReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := &stubCoefficientRepo{rows: models.DefaultCoefficients()}
	c := &CachedCoefficients{Source: repo, Store: cache.NewMemoryStore(), TTL: time.Minute}

	first, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("source calls=%d want=1", repo.listCalls)
	}
	w1, _ := first.Lookup(models.FactorProjectMaturity, "RFQ")
	w2, _ := second.Lookup(models.FactorProjectMaturity, "RFQ")
	if !w1.Equal(w2) || !w2.Equal(d("0.45")) {
		t.Fatalf("cached weight=%s fresh=%s", w2, w1)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if repo.listCalls != 2 {
		t.Fatalf("source calls after invalidate=%d want=2", repo.listCalls)
	}
}

func TestCachedCoefficientsDegradesToSource(t *testing.T) {
	ctx := context.Background()
	repo := &stubCoefficientRepo{rows: models.DefaultCoefficients()}
	c := &CachedCoefficients{Source: repo, Store: errStore{}}

	tbl, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tbl.Len() != len(models.DefaultCoefficients()) {
		t.Fatalf("len=%d", tbl.Len())
	}
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if repo.listCalls != 2 {
		t.Fatalf("source calls=%d want=2", repo.listCalls)
	}
}

func TestCachedCoefficientsSourceError(t *testing.T) {
	repo := &stubCoefficientRepo{err: errors.New("db down")}
	c := &CachedCoefficients{Source: repo, Store: cache.NewMemoryStore()}
	if _, err := c.Get(context.Background()); err == nil {
		t.Fatalf("expected source error")
	}
}

func TestCoefficientUpdateVisibleAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := &stubCoefficientRepo{rows: models.DefaultCoefficients()}
	provider := &CachedCoefficients{Source: repo, Store: cache.NewMemoryStore(), TTL: time.Hour}
	svc := &CoefficientService{Repo: repo, Cache: provider}
	e := &Engine{Coefficients: provider}

	f := Factors{
		ProjectMaturity:    models.MaturityRFQ,
		ClientType:         models.ClientTypeExisting,
		ClientRelationship: models.RelationshipGood,
	}
	if got := e.Score(ctx, f); !got.Equal(d("0.4725")) {
		t.Fatalf("score=%s want=0.4725", got)
	}
	if _, err := svc.Upsert(ctx, models.FactorProjectMaturity, "RFQ", d("0.5")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// 0.5 * 1.05 * 1.0
	if got := e.Score(ctx, f); !got.Equal(d("0.525")) {
		t.Fatalf("score after update=%s want=0.525", got)
	}

	if err := svc.SetActive(ctx, models.FactorClientType, "Existing", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got := e.Score(ctx, f); !got.Equal(d("0.5")) {
		t.Fatalf("score after deactivate=%s want=0.5", got)
	}
}

func TestCoefficientServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := &CoefficientService{Repo: &stubCoefficientRepo{}}

	cases := []struct {
		factor models.FactorType
		value  string
		weight decimal.Decimal
	}{
		{"weather", "sunny", d("1")},
		{models.FactorClientType, " ", d("1")},
		{models.FactorClientType, "New", d("0")},
		{models.FactorClientType, "New", d("10")},
	}
	for _, tc := range cases {
		if _, err := svc.Upsert(ctx, tc.factor, tc.value, tc.weight); !errors.Is(err, ErrInvalidCoefficient) {
			t.Fatalf("upsert(%s,%q,%s) err=%v want ErrInvalidCoefficient", tc.factor, tc.value, tc.weight, err)
		}
	}
	if err := svc.SetActive(ctx, models.FactorClientType, "Nobody", false); !errors.Is(err, ErrCoefficientNotFound) {
		t.Fatalf("set active err=%v want ErrCoefficientNotFound", err)
	}
}

func TestCoefficientServiceListGroupsInScoringOrder(t *testing.T) {
	svc := &CoefficientService{Repo: &stubCoefficientRepo{rows: models.DefaultCoefficients()}}
	groups, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 5 || groups[0].FactorType != models.FactorProjectType || groups[4].FactorType != models.FactorConservativeApproach {
		t.Fatalf("groups=%v", groups)
	}
	if len(groups[1].Coefficients) != 5 {
		t.Fatalf("maturity rows=%d want=5", len(groups[1].Coefficients))
	}
}
