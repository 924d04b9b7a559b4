package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"kuberafi/internal/config"
	"kuberafi/internal/db"
	"kuberafi/internal/models"
	gormrepository "kuberafi/internal/repository/gorm"
)

// NewDB returns a migrated in-memory sqlite database. A single connection
// keeps the database alive and serializes transactions the way row locks do
// in Postgres.
func NewDB(t testing.TB) *db.DB {
	t.Helper()
	conn, err := db.OpenDialector(sqlite.Open(":memory:"), config.DBConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

// Fixture is a seeded exchange house with one USD/VES pair and an operator.
type Fixture struct {
	Store      *gormrepository.Store
	House      models.ExchangeHouse
	Pair       models.CurrencyPair
	OperatorID uint64
}

var orderSeq atomic.Uint64

func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	conn := NewDB(t)
	store := gormrepository.New(conn.Gorm)
	ctx := context.Background()

	house := models.ExchangeHouse{Name: "Casa Centro", IsActive: true}
	require.NoError(t, store.InsertExchangeHouse(ctx, &house))
	pair := models.CurrencyPair{BaseCurrency: "USD", QuoteCurrency: "VES", IsActive: true}
	require.NoError(t, store.InsertCurrencyPair(ctx, &pair))

	return &Fixture{Store: store, House: house, Pair: pair, OperatorID: 7}
}

func (f *Fixture) AddPaymentMethod(t testing.TB, currency, direction string, active, isDefault bool) models.PaymentMethod {
	t.Helper()
	item := models.PaymentMethod{
		ExchangeHouseID: f.House.ID,
		Currency:        currency,
		Name:            fmt.Sprintf("%s %s", currency, direction),
		Direction:       direction,
		IsActive:        active,
		IsDefault:       isDefault,
	}
	require.NoError(t, f.Store.InsertPaymentMethod(context.Background(), &item))
	return item
}

// AddOrder inserts a pending order for the fixture pair. Amounts are strings
// so test tables read like the numbers they assert.
func (f *Fixture) AddOrder(t testing.TB, base, quote, applied string, market *string) models.Order {
	t.Helper()
	item := models.Order{
		OrderNumber:     fmt.Sprintf("ORD-%06d", orderSeq.Add(1)),
		ExchangeHouseID: f.House.ID,
		CustomerID:      1,
		OperatorID:      f.OperatorID,
		CurrencyPairID:  f.Pair.ID,
		BaseAmount:      decimal.RequireFromString(base),
		QuoteAmount:     decimal.RequireFromString(quote),
		AppliedRate:     decimal.RequireFromString(applied),
		Status:          models.OrderStatusPending,
	}
	if market != nil {
		rate := decimal.RequireFromString(*market)
		item.MarketRate = &rate
	}
	require.NoError(t, f.Store.InsertOrder(context.Background(), &item))
	return item
}

func (f *Fixture) AddCommissionConfig(t testing.TB, model, rate string, pairScoped bool) models.CommissionConfig {
	t.Helper()
	item := models.CommissionConfig{
		ExchangeHouseID: f.House.ID,
		Model:           model,
		PercentageRate:  decimal.RequireFromString(rate),
		IsActive:        true,
	}
	if pairScoped {
		id := f.Pair.ID
		item.CurrencyPairID = &id
	}
	require.NoError(t, f.Store.InsertCommissionConfig(context.Background(), &item))
	return item
}

func Ptr[T any](v T) *T {
	return &v
}
