package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kuberafi/internal/audit"
	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

const (
	MovementDeposit    = "deposit"
	MovementWithdrawal = "withdrawal"
	MovementAdjustment = "adjustment"

	DefaultEntryLimit = 50
	MaxEntryLimit     = 500
)

var ErrInvalidMovement = errors.New("invalid manual movement")

// OverdraftPolicy is satisfied by service.SystemSettingsService.
type OverdraftPolicy interface {
	RejectOverdraft(ctx context.Context) bool
}

type PaymentMethodLookup interface {
	GetPaymentMethodByID(ctx context.Context, id uint64) (*models.PaymentMethod, error)
}

// Balance is the read view of one cash box. Unknown keys read as zero.
type Balance struct {
	ID              uint64          `json:"id,omitempty"`
	OperatorID      uint64          `json:"operator_id"`
	PaymentMethodID uint64          `json:"payment_method_id"`
	Currency        string          `json:"currency"`
	Balance         decimal.Decimal `json:"balance"`
	Version         uint64          `json:"version"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

func balanceView(item models.OperatorCashBalance) Balance {
	updated := item.UpdatedAt
	return Balance{
		ID:              item.ID,
		OperatorID:      item.OperatorID,
		PaymentMethodID: item.PaymentMethodID,
		Currency:        item.Currency,
		Balance:         item.Balance,
		Version:         item.Version,
		UpdatedAt:       &updated,
	}
}

type ManualMovementInput struct {
	OperatorID      uint64          `json:"operator_id" validate:"required"`
	PaymentMethodID uint64          `json:"payment_method_id" validate:"required"`
	Currency        string          `json:"currency" validate:"required,len=3,alpha"`
	Type            string          `json:"type" validate:"required,oneof=deposit withdrawal adjustment"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description" validate:"max=500"`
	ReferenceID     string          `json:"reference_id" validate:"max=64"`
}

type LedgerEntryFilter struct {
	PaymentMethodID *uint64
	Currency        *string
	ReferenceType   *string
	ReferenceID     *string
	Since           *time.Time
	Until           *time.Time
	Limit           int
	Offset          int
}

type Page struct {
	Items  []models.CashLedgerEntry `json:"items"`
	Total  int64                    `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

type Verification struct {
	BalanceID     uint64          `json:"balance_id"`
	Stored        decimal.Decimal `json:"stored"`
	EntrySum      decimal.Decimal `json:"entry_sum"`
	LastResulting decimal.Decimal `json:"last_resulting"`
	Entries       int             `json:"entries"`
	// BrokenAt is the first entry whose previous balance does not match the
	// entry before it, zero when the chain is intact.
	BrokenAt   uint64 `json:"broken_at,omitempty"`
	Consistent bool   `json:"consistent"`
}

type Service struct {
	Repo     repository.LedgerRepository
	Store    *Store
	Methods  PaymentMethodLookup
	Policy   OverdraftPolicy
	Audit    *audit.Recorder
	Logger   *zap.Logger
	Validate *validator.Validate
}

func NewService(repo repository.LedgerRepository, methods PaymentMethodLookup, policy OverdraftPolicy, rec *audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		Repo:     repo,
		Store:    &Store{Repo: repo},
		Methods:  methods,
		Policy:   policy,
		Audit:    rec,
		Logger:   logger,
		Validate: validator.New(),
	}
}

func (s *Service) PolicyFor(ctx context.Context) Policy {
	if s == nil || s.Policy == nil {
		return Policy{}
	}
	return Policy{RejectOverdraft: s.Policy.RejectOverdraft(ctx)}
}

func (s *Service) GetBalance(ctx context.Context, operatorID, paymentMethodID uint64, currency string) (Balance, error) {
	key := models.BalanceKey{OperatorID: operatorID, PaymentMethodID: paymentMethodID, Currency: currency}.Normalize()
	item, err := s.Repo.GetBalance(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	if item == nil {
		return Balance{
			OperatorID:      key.OperatorID,
			PaymentMethodID: key.PaymentMethodID,
			Currency:        key.Currency,
			Balance:         decimal.Zero,
		}, nil
	}
	return balanceView(*item), nil
}

func (s *Service) ListBalances(ctx context.Context, operatorID uint64) ([]Balance, error) {
	items, err := s.Repo.ListBalancesByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(items))
	for _, item := range items {
		out = append(out, balanceView(item))
	}
	return out, nil
}

// RecordManualMovement posts a deposit, withdrawal or signed adjustment
// outside of order settlement.
func (s *Service) RecordManualMovement(ctx context.Context, in ManualMovementInput) (ApplyResult, error) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if err := s.validator().Struct(in); err != nil {
		return ApplyResult{}, fmt.Errorf("%w: %v", ErrInvalidMovement, err)
	}
	if in.Amount.IsZero() {
		return ApplyResult{}, fmt.Errorf("%w: amount must be non-zero", ErrInvalidMovement)
	}

	var delta decimal.Decimal
	var refType string
	switch in.Type {
	case MovementDeposit:
		delta, refType = in.Amount.Abs(), models.ReferenceManualDeposit
	case MovementWithdrawal:
		delta, refType = in.Amount.Abs().Neg(), models.ReferenceManualWithdrawal
	default:
		delta, refType = in.Amount, models.ReferenceAdjustment
	}

	if s.Methods != nil {
		pm, err := s.Methods.GetPaymentMethodByID(ctx, in.PaymentMethodID)
		if err != nil {
			return ApplyResult{}, err
		}
		if pm == nil {
			return ApplyResult{}, fmt.Errorf("payment method %d: %w", in.PaymentMethodID, repository.ErrNotFound)
		}
		if pm.Currency != in.Currency {
			return ApplyResult{}, fmt.Errorf("%w: payment method %d holds %s, not %s", ErrInvalidMovement, pm.ID, pm.Currency, in.Currency)
		}
	}

	refID := strings.TrimSpace(in.ReferenceID)
	if refID == "" {
		refID = uuid.NewString()
	}
	reason := strings.TrimSpace(in.Description)
	if reason == "" {
		reason = "manual " + in.Type
	}

	policy := s.PolicyFor(ctx)
	var result ApplyResult
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		res, err := s.Store.ApplyDelta(ctx, tx, Mutation{
			Key:           models.BalanceKey{OperatorID: in.OperatorID, PaymentMethodID: in.PaymentMethodID, Currency: in.Currency},
			Delta:         delta,
			Reason:        reason,
			ReferenceType: refType,
			ReferenceID:   refID,
		}, policy)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	s.Report(result)
	s.Audit.ManualMovement(&result.Entry)
	return result, nil
}

// Report emits the post-commit signals for applied mutations.
func (s *Service) Report(results ...ApplyResult) {
	if s == nil {
		return
	}
	for i := range results {
		s.Audit.LedgerEntry(&results[i].Entry)
		if results[i].Overdraft {
			s.Audit.NegativeBalance(results[i].Balance.Key(), results[i].Entry.ResultingBalance, results[i].Entry.ReferenceType, results[i].Entry.ReferenceID)
		}
	}
}

// ListLedgerEntries returns an operator's entries newest first.
func (s *Service) ListLedgerEntries(ctx context.Context, operatorID uint64, f LedgerEntryFilter) (Page, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	if limit > MaxEntryLimit {
		limit = MaxEntryLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	params := repository.ListLedgerEntriesParams{
		Limit:           limit,
		Offset:          offset,
		OperatorID:      operatorID,
		PaymentMethodID: f.PaymentMethodID,
		Currency:        f.Currency,
		ReferenceType:   f.ReferenceType,
		ReferenceID:     f.ReferenceID,
		Since:           f.Since,
		Until:           f.Until,
		OrderBy:         "id",
	}
	items, err := s.Repo.ListLedgerEntries(ctx, params)
	if err != nil {
		return Page{}, err
	}
	total, err := s.Repo.CountLedgerEntries(ctx, params)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []models.CashLedgerEntry{}
	}
	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// VerifyBalance replays the entries of one balance and compares the outcome
// with the stored value.
func (s *Service) VerifyBalance(ctx context.Context, balanceID uint64) (Verification, error) {
	bal, err := s.Repo.GetBalanceByID(ctx, balanceID)
	if err != nil {
		return Verification{}, err
	}
	if bal == nil {
		return Verification{}, fmt.Errorf("balance %d: %w", balanceID, repository.ErrNotFound)
	}
	entries, err := s.Repo.ListLedgerEntriesByBalanceID(ctx, balanceID)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{BalanceID: bal.ID, Stored: bal.Balance, EntrySum: decimal.Zero, LastResulting: decimal.Zero, Entries: len(entries)}
	running := decimal.Zero
	for _, e := range entries {
		if v.BrokenAt == 0 && (!e.PreviousBalance.Equal(running) || !e.ResultingBalance.Equal(running.Add(e.Delta))) {
			v.BrokenAt = e.ID
		}
		running = running.Add(e.Delta)
		v.EntrySum = v.EntrySum.Add(e.Delta)
		v.LastResulting = e.ResultingBalance
	}
	v.Consistent = v.BrokenAt == 0 && v.EntrySum.Equal(v.Stored) && v.LastResulting.Equal(v.Stored)
	if !v.Consistent && s.Logger != nil {
		s.Logger.Warn("ledger verification mismatch",
			zap.Uint64("balance_id", bal.ID),
			zap.String("stored", v.Stored.String()),
			zap.String("entry_sum", v.EntrySum.String()),
			zap.Uint64("broken_at", v.BrokenAt),
		)
	}
	return v, nil
}

var defaultValidate = validator.New()

func (s *Service) validator() *validator.Validate {
	if s.Validate == nil {
		return defaultValidate
	}
	return s.Validate
}
