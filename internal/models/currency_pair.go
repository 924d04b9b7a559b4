package models

import "time"

type CurrencyPair struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	BaseCurrency  string `gorm:"type:varchar(3);not null" json:"base_currency"`
	QuoteCurrency string `gorm:"type:varchar(3);not null" json:"quote_currency"`
	Symbol        string `gorm:"type:varchar(16);not null;uniqueIndex" json:"symbol"`
	IsActive      bool   `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CurrencyPair) TableName() string {
	return "currency_pairs"
}
