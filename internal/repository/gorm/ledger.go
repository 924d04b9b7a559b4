package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

// EnsureBalanceTx inserts a zero balance for key unless one already exists.
// Concurrent callers converge on the same row through the unique key.
func (s *Store) EnsureBalanceTx(ctx context.Context, tx *gorm.DB, key models.BalanceKey) error {
	if s == nil || s.db == nil {
		return nil
	}
	key = key.Normalize()
	item := models.OperatorCashBalance{
		OperatorID:      key.OperatorID,
		PaymentMethodID: key.PaymentMethodID,
		Currency:        key.Currency,
		Balance:         decimal.Zero,
	}
	return s.txOr(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "operator_id"},
			{Name: "payment_method_id"},
			{Name: "currency"},
		},
		DoNothing: true,
	}).Create(&item).Error
}

func (s *Store) LockBalanceTx(ctx context.Context, tx *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return s.findBalance(forUpdate(s.txOr(ctx, tx).Model(&models.OperatorCashBalance{})), key)
}

// CompareAndSwapBalanceTx writes balance only if the row still carries version.
// It reports false when another writer got there first.
func (s *Store) CompareAndSwapBalanceTx(ctx context.Context, tx *gorm.DB, id uint64, version uint64, balance decimal.Decimal, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.txOr(ctx, tx).
		Model(&models.OperatorCashBalance{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"balance":    balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) InsertLedgerEntryTx(ctx context.Context, tx *gorm.DB, item *models.CashLedgerEntry) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.txOr(ctx, tx).Create(item).Error
}

func (s *Store) GetBalance(ctx context.Context, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return s.findBalance(s.db.WithContext(ctx).Model(&models.OperatorCashBalance{}), key)
}

func (s *Store) findBalance(query *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	key = key.Normalize()
	var item models.OperatorCashBalance
	err := query.
		Where("operator_id = ?", key.OperatorID).
		Where("payment_method_id = ?", key.PaymentMethodID).
		Where("currency = ?", key.Currency).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetBalanceByID(ctx context.Context, id uint64) (*models.OperatorCashBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.OperatorCashBalance
	err := s.db.WithContext(ctx).Model(&models.OperatorCashBalance{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListBalancesByOperator(ctx context.Context, operatorID uint64) ([]models.OperatorCashBalance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.OperatorCashBalance
	if err := s.db.WithContext(ctx).
		Model(&models.OperatorCashBalance{}).
		Where("operator_id = ?", operatorID).
		Order("currency asc").
		Order("payment_method_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, params repository.ListLedgerEntriesParams) ([]models.CashLedgerEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := filterLedgerEntries(s.db.WithContext(ctx).Model(&models.CashLedgerEntry{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.CashLedgerEntry
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountLedgerEntries(ctx context.Context, params repository.ListLedgerEntriesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := filterLedgerEntries(s.db.WithContext(ctx).Model(&models.CashLedgerEntry{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func filterLedgerEntries(query *gorm.DB, params repository.ListLedgerEntriesParams) *gorm.DB {
	query = query.Where("operator_id = ?", params.OperatorID)
	if params.PaymentMethodID != nil && *params.PaymentMethodID > 0 {
		query = query.Where("payment_method_id = ?", *params.PaymentMethodID)
	}
	if params.Currency != nil && normalizeCurrency(*params.Currency) != "" {
		query = query.Where("currency = ?", normalizeCurrency(*params.Currency))
	}
	if params.ReferenceType != nil && strings.TrimSpace(*params.ReferenceType) != "" {
		query = query.Where("reference_type = ?", strings.TrimSpace(*params.ReferenceType))
	}
	if params.ReferenceID != nil && strings.TrimSpace(*params.ReferenceID) != "" {
		query = query.Where("reference_id = ?", strings.TrimSpace(*params.ReferenceID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("created_at < ?", *params.Until)
	}
	return query
}

// ListLedgerEntriesByBalanceID returns the full history of one balance in
// application order.
func (s *Store) ListLedgerEntriesByBalanceID(ctx context.Context, balanceID uint64) ([]models.CashLedgerEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.CashLedgerEntry
	if err := s.db.WithContext(ctx).
		Model(&models.CashLedgerEntry{}).
		Where("balance_id = ?", balanceID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
