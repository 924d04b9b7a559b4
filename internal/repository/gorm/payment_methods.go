package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

func (s *Store) InsertPaymentMethod(ctx context.Context, item *models.PaymentMethod) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Currency = normalizeCurrency(item.Currency)
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPaymentMethodByID(ctx context.Context, id uint64) (*models.PaymentMethod, error) {
	return s.getPaymentMethod(ctx, nil, id, false)
}

func (s *Store) LockPaymentMethodTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.PaymentMethod, error) {
	return s.getPaymentMethod(ctx, tx, id, true)
}

func (s *Store) getPaymentMethod(ctx context.Context, tx *gorm.DB, id uint64, lock bool) (*models.PaymentMethod, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	query := s.txOr(ctx, tx).Model(&models.PaymentMethod{})
	if lock {
		query = forUpdate(query)
	}
	var item models.PaymentMethod
	err := query.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, params repository.ListPaymentMethodsParams) ([]models.PaymentMethod, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PaymentMethod{})
	if params.ExchangeHouseID != nil && *params.ExchangeHouseID > 0 {
		query = query.Where("exchange_house_id = ?", *params.ExchangeHouseID)
	}
	if params.Currency != nil && normalizeCurrency(*params.Currency) != "" {
		query = query.Where("currency = ?", normalizeCurrency(*params.Currency))
	}
	if params.Active != nil {
		query = query.Where("is_active = ?", *params.Active)
	}
	asc := true
	if params.Asc == nil {
		params.Asc = &asc
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PaymentMethod
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListRoutablePaymentMethodsTx returns the active methods of one house and
// currency that serve direction, default first and then by id.
func (s *Store) ListRoutablePaymentMethodsTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string, direction string) ([]models.PaymentMethod, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PaymentMethod
	err := s.txOr(ctx, tx).
		Model(&models.PaymentMethod{}).
		Where("exchange_house_id = ?", exchangeHouseID).
		Where("currency = ?", normalizeCurrency(currency)).
		Where("is_active = ?", true).
		Where("direction IN ?", []string{direction, models.DirectionBoth}).
		Order("is_default desc").
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePaymentMethodTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error {
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
	return s.txOr(ctx, tx).Model(&models.PaymentMethod{}).Where("id = ?", id).Updates(next).Error
}

func (s *Store) ClearDefaultPaymentMethodsTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string, direction string, exceptID uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.txOr(ctx, tx).
		Model(&models.PaymentMethod{}).
		Where("exchange_house_id = ?", exchangeHouseID).
		Where("currency = ?", normalizeCurrency(currency)).
		Where("direction = ?", direction).
		Where("is_default = ?", true).
		Where("id <> ?", exceptID).
		Updates(map[string]any{"is_default": false, "updated_at": time.Now().UTC()}).Error
}
