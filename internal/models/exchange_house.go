package models

import "time"

// ExchangeHouse is the tenant that owns customers, orders and payment methods.
type ExchangeHouse struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(120);not null" json:"name"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExchangeHouse) TableName() string {
	return "exchange_houses"
}
