package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

const (
	// FeatureLedgerRejectOverdraft makes the ledger refuse deltas that would
	// leave a cash box negative. Off keeps the permissive behaviour.
	FeatureLedgerRejectOverdraft = "feature.ledger_reject_overdraft"
	FeatureReconciler            = "feature.reconciler"
	FeatureRemoteAudit           = "feature.remote_audit"
	FeatureSettlementWorker      = "feature.settlement_worker"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureLedgerRejectOverdraft: false,
		FeatureReconciler:            true,
		FeatureRemoteAudit:           true,
		FeatureSettlementWorker:      true,
	}
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

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

func (s *SystemSettingsService) List(ctx context.Context) ([]models.SystemSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListSystemSettings(ctx)
}

// RejectOverdraft is the ledger policy hook.
func (s *SystemSettingsService) RejectOverdraft(ctx context.Context) bool {
	return s.IsEnabled(ctx, FeatureLedgerRejectOverdraft, false)
}
