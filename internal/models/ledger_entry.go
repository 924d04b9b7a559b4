package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReferenceOrderIn          = "order_in"
	ReferenceOrderOut         = "order_out"
	ReferenceManualDeposit    = "manual_deposit"
	ReferenceManualWithdrawal = "manual_withdrawal"
	ReferenceAdjustment       = "adjustment"
)

// CashLedgerEntry is append-only. Within one balance, ResultingBalance of an
// entry equals the previous entry's ResultingBalance plus Delta.
type CashLedgerEntry struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	BalanceID       uint64 `gorm:"not null;index" json:"balance_id"`
	OperatorID      uint64 `gorm:"not null;index" json:"operator_id"`
	PaymentMethodID uint64 `gorm:"not null" json:"payment_method_id"`
	Currency        string `gorm:"type:varchar(3);not null" json:"currency"`

	Delta            decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"delta"`
	PreviousBalance  decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"previous_balance"`
	ResultingBalance decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"resulting_balance"`

	Reason        string `gorm:"type:text" json:"reason"`
	ReferenceType string `gorm:"type:varchar(30);not null;index:idx_ledger_reference" json:"reference_type"`
	ReferenceID   string `gorm:"type:varchar(64);index:idx_ledger_reference" json:"reference_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CashLedgerEntry) TableName() string {
	return "cash_ledger_entries"
}
