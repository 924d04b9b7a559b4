package db

import (
	"kuberafi/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.ExchangeHouse{},
		&models.CurrencyPair{},
		&models.Order{},
		&models.PaymentMethod{},
		&models.OperatorCashBalance{},
		&models.CashLedgerEntry{},
		&models.Commission{},
		&models.CommissionConfig{},
		&models.SystemSetting{},
	)
}
