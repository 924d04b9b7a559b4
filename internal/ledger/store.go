package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

var (
	// ErrConcurrentBalanceConflict means the balance row changed between the
	// locked read and the versioned write. Callers retry the whole transaction.
	ErrConcurrentBalanceConflict = errors.New("concurrent balance conflict")
	ErrOverdraftRejected         = errors.New("overdraft rejected")
)

// Mutation is one signed change to one cash box.
type Mutation struct {
	Key           models.BalanceKey
	Delta         decimal.Decimal
	Reason        string
	ReferenceType string
	ReferenceID   string
}

// Policy is evaluated before the transaction opens and passed in by value.
type Policy struct {
	RejectOverdraft bool
}

type ApplyResult struct {
	Balance models.OperatorCashBalance
	Entry   models.CashLedgerEntry
	// Overdraft is set when the resulting balance is below zero. It is a
	// warning, not an error, unless the policy rejects overdrafts.
	Overdraft bool
}

// Store performs balance mutations inside a caller-owned transaction.
type Store struct {
	Repo repository.LedgerRepository
	Now  func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetOrCreateBalance returns the locked balance row for key, inserting a zero
// row first when none exists.
func (s *Store) GetOrCreateBalance(ctx context.Context, tx *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("ledger store not configured")
	}
	key = key.Normalize()
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := s.Repo.EnsureBalanceTx(ctx, tx, key); err != nil {
		return nil, fmt.Errorf("ensure balance %s: %w", key, err)
	}
	bal, err := s.Repo.LockBalanceTx(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("lock balance %s: %w", key, err)
	}
	if bal == nil {
		return nil, fmt.Errorf("balance %s vanished after insert", key)
	}
	return bal, nil
}

// ApplyDelta locks the balance, writes the new value guarded by its version
// and appends exactly one ledger entry.
func (s *Store) ApplyDelta(ctx context.Context, tx *gorm.DB, m Mutation, policy Policy) (ApplyResult, error) {
	m.Key = m.Key.Normalize()
	if strings.TrimSpace(m.ReferenceType) == "" {
		return ApplyResult{}, errors.New("ledger mutation requires a reference type")
	}
	bal, err := s.GetOrCreateBalance(ctx, tx, m.Key)
	if err != nil {
		return ApplyResult{}, err
	}

	previous := bal.Balance
	resulting := previous.Add(m.Delta)
	overdraft := resulting.IsNegative()
	if overdraft && policy.RejectOverdraft && m.Delta.IsNegative() {
		return ApplyResult{}, fmt.Errorf("balance %s would become %s: %w", m.Key, resulting.String(), ErrOverdraftRejected)
	}

	now := s.now()
	ok, err := s.Repo.CompareAndSwapBalanceTx(ctx, tx, bal.ID, bal.Version, resulting, now)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("write balance %s: %w", m.Key, err)
	}
	if !ok {
		return ApplyResult{}, fmt.Errorf("balance %s version %d: %w", m.Key, bal.Version, ErrConcurrentBalanceConflict)
	}

	entry := models.CashLedgerEntry{
		BalanceID:        bal.ID,
		OperatorID:       m.Key.OperatorID,
		PaymentMethodID:  m.Key.PaymentMethodID,
		Currency:         m.Key.Currency,
		Delta:            m.Delta,
		PreviousBalance:  previous,
		ResultingBalance: resulting,
		Reason:           m.Reason,
		ReferenceType:    m.ReferenceType,
		ReferenceID:      m.ReferenceID,
		CreatedAt:        now,
	}
	if err := s.Repo.InsertLedgerEntryTx(ctx, tx, &entry); err != nil {
		return ApplyResult{}, fmt.Errorf("append ledger entry %s: %w", m.Key, err)
	}

	bal.Balance = resulting
	bal.Version++
	bal.UpdatedAt = now
	return ApplyResult{Balance: *bal, Entry: entry, Overdraft: overdraft}, nil
}

// ApplyAll applies mutations in balance key order so two transactions touching
// the same pair of cash boxes always lock them in the same sequence. Results
// are returned in the caller's order.
func (s *Store) ApplyAll(ctx context.Context, tx *gorm.DB, mutations []Mutation, policy Policy) ([]ApplyResult, error) {
	idx := make([]int, len(mutations))
	for i := range idx {
		idx[i] = i
		mutations[i].Key = mutations[i].Key.Normalize()
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return mutations[idx[a]].Key.Less(mutations[idx[b]].Key)
	})
	out := make([]ApplyResult, len(mutations))
	for _, i := range idx {
		res, err := s.ApplyDelta(ctx, tx, mutations[i], policy)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func validateKey(key models.BalanceKey) error {
	if key.OperatorID == 0 || key.PaymentMethodID == 0 {
		return fmt.Errorf("invalid balance key %s", key)
	}
	if len(key.Currency) != 3 {
		return fmt.Errorf("invalid currency in balance key %s", key)
	}
	return nil
}
