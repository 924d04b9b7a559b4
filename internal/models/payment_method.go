package models

import "time"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionBoth     = "both"
)

type PaymentMethod struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ExchangeHouseID uint64 `gorm:"not null;index:idx_payment_methods_routing" json:"exchange_house_id"`
	Currency        string `gorm:"type:varchar(3);not null;index:idx_payment_methods_routing" json:"currency"`
	Name            string `gorm:"type:varchar(120);not null" json:"name"`
	Direction       string `gorm:"type:varchar(10);not null;default:'both'" json:"direction"`
	IsActive        bool   `gorm:"not null" json:"is_active"`
	IsDefault       bool   `gorm:"not null" json:"is_default"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}

// Serves reports whether the method can route money in the given direction.
func (p *PaymentMethod) Serves(direction string) bool {
	return p.Direction == DirectionBoth || p.Direction == direction
}
