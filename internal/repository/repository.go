package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kuberafi/internal/models"
)

// ErrNotFound is returned by services when a referenced row does not exist.
// Store getters themselves return (nil, nil) for missing rows.
var ErrNotFound = errors.New("not found")

type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OrderRepository interface {
	TxRunner
	InsertOrder(ctx context.Context, item *models.Order) error
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	LockOrderTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Order, error)
	UpdateOrderTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	CountOrders(ctx context.Context, params ListOrdersParams) (int64, error)

	InsertExchangeHouse(ctx context.Context, item *models.ExchangeHouse) error
	InsertCurrencyPair(ctx context.Context, item *models.CurrencyPair) error
	GetCurrencyPairTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.CurrencyPair, error)
}

type PaymentMethodRepository interface {
	TxRunner
	InsertPaymentMethod(ctx context.Context, item *models.PaymentMethod) error
	GetPaymentMethodByID(ctx context.Context, id uint64) (*models.PaymentMethod, error)
	LockPaymentMethodTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, params ListPaymentMethodsParams) ([]models.PaymentMethod, error)
	ListRoutablePaymentMethodsTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string, direction string) ([]models.PaymentMethod, error)
	UpdatePaymentMethodTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error
	ClearDefaultPaymentMethodsTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string, direction string, exceptID uint64) error
}

type LedgerRepository interface {
	TxRunner
	EnsureBalanceTx(ctx context.Context, tx *gorm.DB, key models.BalanceKey) error
	LockBalanceTx(ctx context.Context, tx *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error)
	CompareAndSwapBalanceTx(ctx context.Context, tx *gorm.DB, id uint64, version uint64, balance decimal.Decimal, now time.Time) (bool, error)
	InsertLedgerEntryTx(ctx context.Context, tx *gorm.DB, item *models.CashLedgerEntry) error

	GetBalance(ctx context.Context, key models.BalanceKey) (*models.OperatorCashBalance, error)
	GetBalanceByID(ctx context.Context, id uint64) (*models.OperatorCashBalance, error)
	ListBalancesByOperator(ctx context.Context, operatorID uint64) ([]models.OperatorCashBalance, error)
	ListLedgerEntries(ctx context.Context, params ListLedgerEntriesParams) ([]models.CashLedgerEntry, error)
	CountLedgerEntries(ctx context.Context, params ListLedgerEntriesParams) (int64, error)
	ListLedgerEntriesByBalanceID(ctx context.Context, balanceID uint64) ([]models.CashLedgerEntry, error)
}

type CommissionRepository interface {
	TxRunner
	InsertCommissionTx(ctx context.Context, tx *gorm.DB, item *models.Commission) error
	GetCommissionByOrderIDTx(ctx context.Context, tx *gorm.DB, orderID uint64) (*models.Commission, error)
	GetCommissionByID(ctx context.Context, id uint64) (*models.Commission, error)
	LockCommissionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Commission, error)
	UpdateCommissionTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error
	ListCommissions(ctx context.Context, params ListCommissionsParams) ([]models.Commission, error)
	CountCommissions(ctx context.Context, params ListCommissionsParams) (int64, error)

	InsertCommissionConfig(ctx context.Context, item *models.CommissionConfig) error
	FindCommissionConfigTx(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currencyPairID *uint64) (*models.CommissionConfig, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error)
}

// Repository is the full store used by cmd wiring; services depend on the
// narrower interfaces above.
type Repository interface {
	OrderRepository
	PaymentMethodRepository
	LedgerRepository
	CommissionRepository
	SettingsRepository
}

type ListOrdersParams struct {
	Limit           int
	Offset          int
	ExchangeHouseID *uint64
	OperatorID      *uint64
	Status          *string
	UpdatedBefore   *time.Time
	OrderBy         string
	Asc             *bool
}

type ListPaymentMethodsParams struct {
	Limit           int
	Offset          int
	ExchangeHouseID *uint64
	Currency        *string
	Active          *bool
	OrderBy         string
	Asc             *bool
}

type ListLedgerEntriesParams struct {
	Limit           int
	Offset          int
	OperatorID      uint64
	PaymentMethodID *uint64
	Currency        *string
	ReferenceType   *string
	ReferenceID     *string
	Since           *time.Time
	Until           *time.Time
	OrderBy         string
	Asc             *bool
}

type ListCommissionsParams struct {
	Limit           int
	Offset          int
	ExchangeHouseID *uint64
	OrderID         *uint64
	Status          *string
	Model           *string
	OrderBy         string
	Asc             *bool
}
