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

func (s *Store) InsertOrder(ctx context.Context, item *models.Order) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Order
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LockOrderTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Order
	err := forUpdate(s.txOr(ctx, tx).Model(&models.Order{})).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateOrderTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error {
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
	return s.txOr(ctx, tx).Model(&models.Order{}).Where("id = ?", id).Updates(next).Error
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := filterOrders(s.db.WithContext(ctx).Model(&models.Order{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Order
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := filterOrders(s.db.WithContext(ctx).Model(&models.Order{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func filterOrders(query *gorm.DB, params repository.ListOrdersParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ExchangeHouseID != nil && *params.ExchangeHouseID > 0 {
		query = query.Where("exchange_house_id = ?", *params.ExchangeHouseID)
	}
	if params.OperatorID != nil && *params.OperatorID > 0 {
		query = query.Where("operator_id = ?", *params.OperatorID)
	}
	if params.UpdatedBefore != nil && !params.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", *params.UpdatedBefore)
	}
	return query
}

func (s *Store) InsertExchangeHouse(ctx context.Context, item *models.ExchangeHouse) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertCurrencyPair(ctx context.Context, item *models.CurrencyPair) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.BaseCurrency = normalizeCurrency(item.BaseCurrency)
	item.QuoteCurrency = normalizeCurrency(item.QuoteCurrency)
	if strings.TrimSpace(item.Symbol) == "" {
		item.Symbol = item.BaseCurrency + "/" + item.QuoteCurrency
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetCurrencyPairTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.CurrencyPair, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.CurrencyPair
	err := s.txOr(ctx, tx).Model(&models.CurrencyPair{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
