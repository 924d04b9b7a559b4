package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

// racingRepo hands out a balance row whose version is always stale.
type racingRepo struct {
	repository.LedgerRepository
	inserted int
}

func (r *racingRepo) EnsureBalanceTx(context.Context, *gorm.DB, models.BalanceKey) error {
	return nil
}

func (r *racingRepo) LockBalanceTx(_ context.Context, _ *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	return &models.OperatorCashBalance{ID: 1, OperatorID: key.OperatorID, PaymentMethodID: key.PaymentMethodID, Currency: key.Currency, Balance: decimal.NewFromInt(5), Version: 3}, nil
}

func (r *racingRepo) CompareAndSwapBalanceTx(context.Context, *gorm.DB, uint64, uint64, decimal.Decimal, time.Time) (bool, error) {
	return false, nil
}

func (r *racingRepo) InsertLedgerEntryTx(context.Context, *gorm.DB, *models.CashLedgerEntry) error {
	r.inserted++
	return nil
}

func TestApplyDelta_StaleVersion(t *testing.T) {
	repo := &racingRepo{}
	store := &Store{Repo: repo}
	_, err := store.ApplyDelta(context.Background(), nil, Mutation{
		Key:           models.BalanceKey{OperatorID: 1, PaymentMethodID: 2, Currency: "usd"},
		Delta:         decimal.NewFromInt(1),
		ReferenceType: models.ReferenceAdjustment,
	}, Policy{})
	if !errors.Is(err, ErrConcurrentBalanceConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if repo.inserted != 0 {
		t.Fatalf("entry appended despite failed write")
	}
}

func TestApplyDelta_RejectsBadInput(t *testing.T) {
	store := &Store{Repo: &racingRepo{}}
	cases := []Mutation{
		{Key: models.BalanceKey{OperatorID: 1, PaymentMethodID: 2, Currency: "USD"}},
		{Key: models.BalanceKey{OperatorID: 0, PaymentMethodID: 2, Currency: "USD"}, ReferenceType: models.ReferenceAdjustment},
		{Key: models.BalanceKey{OperatorID: 1, PaymentMethodID: 2, Currency: "DOLLAR"}, ReferenceType: models.ReferenceAdjustment},
	}
	for i, m := range cases {
		if _, err := store.ApplyDelta(context.Background(), nil, m, Policy{}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestOverdraftRejectOnlyBlocksDebits(t *testing.T) {
	store := &Store{Repo: &racingRepo{}}
	// Balance 5, debit 6 under strict policy.
	_, err := store.ApplyDelta(context.Background(), nil, Mutation{
		Key:           models.BalanceKey{OperatorID: 1, PaymentMethodID: 2, Currency: "USD"},
		Delta:         decimal.NewFromInt(-6),
		ReferenceType: models.ReferenceManualWithdrawal,
	}, Policy{RejectOverdraft: true})
	if !errors.Is(err, ErrOverdraftRejected) {
		t.Fatalf("expected overdraft rejection, got %v", err)
	}
}
