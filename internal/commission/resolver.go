package commission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kuberafi/internal/config"
	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

const (
	SourcePair    = "pair"
	SourceHouse   = "house"
	SourceDefault = "default"
)

// Resolver picks the commission config for an order: pair specific, then the
// house default, then the process default.
type Resolver struct {
	Repo     repository.CommissionRepository
	Defaults Config
}

func DefaultsFromConfig(cfg config.CommissionConfig) Config {
	out := Config{
		Model:          normalizeModel(cfg.DefaultModel),
		PercentageRate: decimal.NewFromFloat(cfg.DefaultRate),
		Source:         SourceDefault,
	}
	if cfg.DefaultSpreadWeight != 0 && cfg.DefaultSpreadWeight != 1 {
		w := decimal.NewFromFloat(cfg.DefaultSpreadWeight)
		out.SpreadWeight = &w
	}
	return out
}

func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, exchangeHouseID, currencyPairID uint64) (Config, error) {
	if r == nil || r.Repo == nil {
		return Config{Model: models.CommissionModelPercentage, PercentageRate: decimal.Zero, Source: SourceDefault}, nil
	}
	pairID := currencyPairID
	item, err := r.Repo.FindCommissionConfigTx(ctx, tx, exchangeHouseID, &pairID)
	if err != nil {
		return Config{}, fmt.Errorf("commission config for house %d pair %d: %w", exchangeHouseID, currencyPairID, err)
	}
	if item != nil {
		return fromModel(item, SourcePair), nil
	}
	item, err = r.Repo.FindCommissionConfigTx(ctx, tx, exchangeHouseID, nil)
	if err != nil {
		return Config{}, fmt.Errorf("commission config for house %d: %w", exchangeHouseID, err)
	}
	if item != nil {
		return fromModel(item, SourceHouse), nil
	}
	out := r.Defaults
	out.Model = normalizeModel(out.Model)
	out.Source = SourceDefault
	return out, nil
}

func fromModel(item *models.CommissionConfig, source string) Config {
	return Config{
		Model:          normalizeModel(item.Model),
		PercentageRate: item.PercentageRate,
		SpreadWeight:   item.SpreadWeight,
		Source:         source,
	}
}
