package probability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bdpipeline/internal/models"
)

var (
	ErrInvalidCoefficient  = errors.New("invalid coefficient")
	ErrCoefficientNotFound = errors.New("coefficient not found")
)

// maxWeight is the exclusive upper bound imposed by the numeric(5,4) column.
var maxWeight = decimal.NewFromInt(10)

type CoefficientStore interface {
	CoefficientSource
	ListCoefficients(ctx context.Context) ([]models.Coefficient, error)
	UpsertCoefficient(ctx context.Context, item *models.Coefficient) error
	SetCoefficientActive(ctx context.Context, factor models.FactorType, value string, active bool) (bool, error)
}

// CoefficientService is the admin surface of the coefficient table. Every
// write invalidates the cache so the next score sees it.
type CoefficientService struct {
	Repo   CoefficientStore
	Cache  CoefficientProvider
	Logger *zap.Logger
}

type FactorGroup struct {
	FactorType   models.FactorType    `json:"factor_type"`
	Coefficients []models.Coefficient `json:"coefficients"`
}

// List returns every row grouped by factor type, in scoring order.
func (s *CoefficientService) List(ctx context.Context, activeOnly bool) ([]FactorGroup, error) {
	var (
		rows []models.Coefficient
		err  error
	)
	if activeOnly {
		rows, err = s.Repo.ListActiveCoefficients(ctx)
	} else {
		rows, err = s.Repo.ListCoefficients(ctx)
	}
	if err != nil {
		return nil, err
	}
	byFactor := map[models.FactorType][]models.Coefficient{}
	for _, row := range rows {
		byFactor[row.FactorType] = append(byFactor[row.FactorType], row)
	}
	order := []models.FactorType{
		models.FactorProjectType,
		models.FactorProjectMaturity,
		models.FactorClientType,
		models.FactorClientRelationship,
		models.FactorConservativeApproach,
	}
	out := make([]FactorGroup, 0, len(order))
	for _, f := range order {
		items := byFactor[f]
		if items == nil {
			items = []models.Coefficient{}
		}
		out = append(out, FactorGroup{FactorType: f, Coefficients: items})
	}
	return out, nil
}

func (s *CoefficientService) Upsert(ctx context.Context, factor models.FactorType, value string, weight decimal.Decimal) (*models.Coefficient, error) {
	value = strings.TrimSpace(value)
	if !factor.Valid() {
		return nil, fmt.Errorf("%w: unknown factor_type %q", ErrInvalidCoefficient, factor)
	}
	if value == "" {
		return nil, fmt.Errorf("%w: factor_value is required", ErrInvalidCoefficient)
	}
	if !weight.IsPositive() || weight.GreaterThanOrEqual(maxWeight) {
		return nil, fmt.Errorf("%w: coefficient must be in (0, 10)", ErrInvalidCoefficient)
	}
	item := &models.Coefficient{
		FactorType:  factor,
		FactorValue: value,
		Weight:      weight.Round(Places),
		Active:      true,
	}
	if err := s.Repo.UpsertCoefficient(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *CoefficientService) SetActive(ctx context.Context, factor models.FactorType, value string, active bool) error {
	if !factor.Valid() {
		return fmt.Errorf("%w: unknown factor_type %q", ErrInvalidCoefficient, factor)
	}
	ok, err := s.Repo.SetCoefficientActive(ctx, factor, value, active)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCoefficientNotFound
	}
	s.invalidate(ctx)
	return nil
}

// Invalidate drops the cached table.
func (s *CoefficientService) Invalidate(ctx context.Context) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx)
}

// Warm reloads the table into the cache and returns it.
func (s *CoefficientService) Warm(ctx context.Context) (Table, error) {
	if s.Cache == nil {
		return Table{}, nil
	}
	s.invalidate(ctx)
	return s.Cache.Get(ctx)
}

func (s *CoefficientService) invalidate(ctx context.Context) {
	if err := s.Invalidate(ctx); err != nil && s.Logger != nil {
		s.Logger.Warn("coefficient cache invalidation failed", zap.Error(err))
	}
}
