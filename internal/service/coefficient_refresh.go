package service

import (
	"context"

	"go.uber.org/zap"

	"bdpipeline/internal/probability"
)

// CoefficientRefreshService reloads the coefficient cache on a schedule so
// edits made directly in the database are picked up before the TTL expires.
type CoefficientRefreshService struct {
	Coefficients *probability.CoefficientService
	Flags        *SystemSettingsService
	Logger       *zap.Logger
}

func (s *CoefficientRefreshService) RunOnce(ctx context.Context) error {
	if s == nil || s.Coefficients == nil {
		return nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureCoefficientRefresh, true) {
		return nil
	}
	table, err := s.Coefficients.Warm(ctx)
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Debug("coefficient cache refreshed", zap.Int("coefficients", table.Len()))
	}
	return nil
}
