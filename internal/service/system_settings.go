package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"bdpipeline/internal/models"
	"bdpipeline/internal/repository"
)

const (
	FeatureCoefficientRefresh = "feature.coefficient_refresh"
	FeatureAuditForward       = "feature.audit_forward"
	FeatureDashboardActivity  = "feature.dashboard_activity"
)

const featurePrefix = "feature."

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureCoefficientRefresh: true,
		FeatureAuditForward:       true,
		FeatureDashboardActivity:  true,
	}
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches writes every missing default. Stored values are
// never overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

type Switch struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Switches merges stored feature switches over the defaults.
func (s *SystemSettingsService) Switches(ctx context.Context) ([]Switch, error) {
	values := DefaultFeatureSwitches()
	if s != nil && s.Repo != nil {
		prefix := featurePrefix
		items, err := s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Prefix: &prefix})
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			var enabled bool
			if err := json.Unmarshal(item.Value, &enabled); err != nil {
				continue
			}
			values[item.Key] = enabled
		}
	}
	out := make([]Switch, 0, len(values))
	for name, enabled := range values {
		out = append(out, Switch{Name: name, Enabled: enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// KnownSwitch reports whether name is one of the built-in switches.
func KnownSwitch(name string) bool {
	_, ok := DefaultFeatureSwitches()[strings.TrimSpace(name)]
	return ok
}
