package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

func (s *Store) InsertCommissionTx(ctx context.Context, tx *gorm.DB, item *models.Commission) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) GetCommissionByOrderIDTx(ctx context.Context, tx *gorm.DB, orderID uint64) (*models.Commission, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if orderID == 0 {
		return nil, nil
	}
	var item models.Commission
	err := s.txOr(ctx, tx).Model(&models.Commission{}).Where("order_id = ?", orderID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCommissionByID(ctx context.Context, id uint64) (*models.Commission, error) {
	return s.getCommission(ctx, nil, id, false)
}

func (s *Store) LockCommissionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Commission, error) {
	return s.getCommission(ctx, tx, id, true)
}

func (s *Store) getCommission(ctx context.Context, tx *gorm.DB, id uint64, lock bool) (*models.Commission, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	query := s.txOr(ctx, tx).Model(&models.Commission{})
	if lock {
		query = forUpdate(query)
	}
	var item models.Commission
	err := query.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateCommissionTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 || len(updates) == 0 {
		return nil
	}
	next := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		next[k] = v
	}
	return s.txOr(ctx, tx).Model(&models.Commission{}).Where("id = ?", id).Updates(next).Error
}

func (s *Store) ListCommissions(ctx context.Context, params repository.ListCommissionsParams) ([]models.Commission, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := filterCommissions(s.db.WithContext(ctx).Model(&models.Commission{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Commission
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCommissions(ctx context.Context, params repository.ListCommissionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := filterCommissions(s.db.WithContext(ctx).Model(&models.Commission{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func filterCommissions(query *gorm.DB, params repository.ListCommissionsParams) *gorm.DB {
	if params.ExchangeHouseID != nil && *params.ExchangeHouseID > 0 {
		query = query.Where("exchange_house_id = ?", *params.ExchangeHouseID)
	}
	if params.OrderID != nil && *params.OrderID > 0 {
		query = query.Where("order_id = ?", *params.OrderID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Model != nil && strings.TrimSpace(*params.Model) != "" {
		query = query.Where("model = ?", strings.TrimSpace(*params.Model))
	}
	return query
}

func (s *Store) InsertCommissionConfig(ctx context.Context, item *models.CommissionConfig) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// FindCommissionConfigTx returns the newest active config for exactly this
// scope. A nil currencyPairID matches only the house-wide row.
func (s *Store) FindCommissionConfigTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currencyPairID *uint64) (*models.CommissionConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.txOr(ctx, tx).
		Model(&models.CommissionConfig{}).
		Where("exchange_house_id = ?", exchangeHouseID).
		Where("is_active = ?", true)
	if currencyPairID != nil {
		query = query.Where("currency_pair_id = ?", *currencyPairID)
	} else {
		query = query.Where("currency_pair_id IS NULL")
	}
	var item models.CommissionConfig
	err := query.Order("id desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
