package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
	"kuberafi/internal/testutil"
)

type staticPolicy bool

func (p staticPolicy) RejectOverdraft(context.Context) bool { return bool(p) }

func newService(t *testing.T, reject bool) (*Service, *testutil.Fixture, models.PaymentMethod) {
	t.Helper()
	fx := testutil.NewFixture(t)
	pm := fx.AddPaymentMethod(t, "USD", models.DirectionBoth, true, true)
	svc := NewService(fx.Store, fx.Store, staticPolicy(reject), nil, nil)
	return svc, fx, pm
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGetBalance_UnknownKeyReadsZero(t *testing.T) {
	svc, fx, pm := newService(t, false)
	ctx := context.Background()

	bal, err := svc.GetBalance(ctx, fx.OperatorID, pm.ID, "usd")
	require.NoError(t, err)
	require.True(t, bal.Balance.IsZero())
	require.Equal(t, "USD", bal.Currency)
	require.Zero(t, bal.ID)

	items, err := svc.ListBalances(ctx, fx.OperatorID)
	require.NoError(t, err)
	require.Empty(t, items, "reads must not create rows")
}

func TestRecordManualMovement_SignsAndEntries(t *testing.T) {
	svc, fx, pm := newService(t, false)
	ctx := context.Background()

	cases := []struct {
		typ       string
		amount    string
		wantDelta string
		wantRef   string
		wantBal   string
	}{
		{MovementDeposit, "-100", "100", models.ReferenceManualDeposit, "100"},
		{MovementWithdrawal, "30", "-30", models.ReferenceManualWithdrawal, "70"},
		{MovementAdjustment, "-0.5", "-0.5", models.ReferenceAdjustment, "69.5"},
	}
	for _, tc := range cases {
		res, err := svc.RecordManualMovement(ctx, ManualMovementInput{
			OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD",
			Type: tc.typ, Amount: dec(tc.amount),
		})
		require.NoError(t, err, tc.typ)
		require.True(t, res.Entry.Delta.Equal(dec(tc.wantDelta)), "%s delta=%s", tc.typ, res.Entry.Delta)
		require.Equal(t, tc.wantRef, res.Entry.ReferenceType)
		require.NotEmpty(t, res.Entry.ReferenceID)
		require.True(t, res.Balance.Balance.Equal(dec(tc.wantBal)), "%s balance=%s", tc.typ, res.Balance.Balance)
	}

	bal, err := svc.GetBalance(ctx, fx.OperatorID, pm.ID, "USD")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("69.5")))
	require.EqualValues(t, 3, bal.Version)

	v, err := svc.VerifyBalance(ctx, bal.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent)
	require.Equal(t, 3, v.Entries)
}

func TestRecordManualMovement_Rejections(t *testing.T) {
	svc, fx, pm := newService(t, false)
	ctx := context.Background()
	other := fx.AddPaymentMethod(t, "VES", models.DirectionBoth, true, true)

	cases := []struct {
		name string
		in   ManualMovementInput
		want error
	}{
		{"zero amount", ManualMovementInput{OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD", Type: MovementDeposit, Amount: decimal.Zero}, ErrInvalidMovement},
		{"bad type", ManualMovementInput{OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD", Type: "gift", Amount: dec("1")}, ErrInvalidMovement},
		{"bad currency", ManualMovementInput{OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "US", Type: MovementDeposit, Amount: dec("1")}, ErrInvalidMovement},
		{"currency mismatch", ManualMovementInput{OperatorID: fx.OperatorID, PaymentMethodID: other.ID, Currency: "USD", Type: MovementDeposit, Amount: dec("1")}, ErrInvalidMovement},
		{"unknown method", ManualMovementInput{OperatorID: fx.OperatorID, PaymentMethodID: 999, Currency: "USD", Type: MovementDeposit, Amount: dec("1")}, repository.ErrNotFound},
	}
	for _, tc := range cases {
		_, err := svc.RecordManualMovement(ctx, tc.in)
		require.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestOverdraftPolicy(t *testing.T) {
	ctx := context.Background()

	permissive, fx, pm := newService(t, false)
	res, err := permissive.RecordManualMovement(ctx, ManualMovementInput{
		OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD", Type: MovementWithdrawal, Amount: dec("25"),
	})
	require.NoError(t, err)
	require.True(t, res.Overdraft)
	require.True(t, res.Balance.Balance.Equal(dec("-25")))

	strict, fx2, pm2 := newService(t, true)
	_, err = strict.RecordManualMovement(ctx, ManualMovementInput{
		OperatorID: fx2.OperatorID, PaymentMethodID: pm2.ID, Currency: "USD", Type: MovementWithdrawal, Amount: dec("25"),
	})
	require.ErrorIs(t, err, ErrOverdraftRejected)

	page, err := strict.ListLedgerEntries(ctx, fx2.OperatorID, LedgerEntryFilter{})
	require.NoError(t, err)
	require.Zero(t, page.Total, "rejected movement must not leave an entry")
}

func TestApplyAll_ConservesAndOrdersLocks(t *testing.T) {
	svc, fx, usd := newService(t, false)
	ves := fx.AddPaymentMethod(t, "VES", models.DirectionBoth, true, true)
	ctx := context.Background()

	muts := []Mutation{
		{Key: models.BalanceKey{OperatorID: fx.OperatorID, PaymentMethodID: ves.ID, Currency: "VES"}, Delta: dec("-3600"), ReferenceType: models.ReferenceOrderOut, ReferenceID: "1"},
		{Key: models.BalanceKey{OperatorID: fx.OperatorID, PaymentMethodID: usd.ID, Currency: "USD"}, Delta: dec("100"), ReferenceType: models.ReferenceOrderIn, ReferenceID: "1"},
	}
	var results []ApplyResult
	err := fx.Store.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		results, err = svc.Store.ApplyAll(ctx, tx, muts, Policy{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Caller order is preserved even though locks were taken by key.
	require.Equal(t, "VES", results[0].Entry.Currency)
	require.Equal(t, "USD", results[1].Entry.Currency)
	require.True(t, results[0].Overdraft)

	page, err := svc.ListLedgerEntries(ctx, fx.OperatorID, LedgerEntryFilter{ReferenceID: testutil.Ptr("1")})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
}

// The sqlite fixture runs on one connection, so these goroutines queue on
// the transaction rather than interleave inside ApplyDelta. The lost-update
// window is covered by TestApplyDelta_VersionMovedUnderLock.
func TestConcurrentMovements(t *testing.T) {
	svc, fx, pm := newService(t, false)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := MovementDeposit
			if i%2 == 1 {
				typ = MovementWithdrawal
			}
			_, err := svc.RecordManualMovement(ctx, ManualMovementInput{
				OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD",
				Type: typ, Amount: dec(fmt.Sprintf("%d", i+1)), ReferenceID: fmt.Sprintf("mv-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Deposits are odd numbers 1..19, withdrawals even 2..20: 100 - 110.
	bal, err := svc.GetBalance(ctx, fx.OperatorID, pm.ID, "USD")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("-10")), "balance=%s", bal.Balance)

	page, err := svc.ListLedgerEntries(ctx, fx.OperatorID, LedgerEntryFilter{Limit: 1000})
	require.NoError(t, err)
	require.EqualValues(t, workers, page.Total)
	require.Equal(t, MaxEntryLimit, page.Limit)

	v, err := svc.VerifyBalance(ctx, bal.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent, "verification: %+v", v)
}

func TestListLedgerEntries_PagingNewestFirst(t *testing.T) {
	svc, fx, pm := newService(t, false)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := svc.RecordManualMovement(ctx, ManualMovementInput{
			OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD",
			Type: MovementDeposit, Amount: dec(fmt.Sprintf("%d", i)),
		})
		require.NoError(t, err)
	}

	page, err := svc.ListLedgerEntries(ctx, fx.OperatorID, LedgerEntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.EqualValues(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	require.True(t, page.Items[0].Delta.Equal(dec("4")))
	require.True(t, page.Items[1].Delta.Equal(dec("3")))

	page, err = svc.ListLedgerEntries(ctx, fx.OperatorID, LedgerEntryFilter{})
	require.NoError(t, err)
	require.Equal(t, DefaultEntryLimit, page.Limit)
}

func TestVerifyBalance_Unknown(t *testing.T) {
	svc, _, _ := newService(t, false)
	_, err := svc.VerifyBalance(context.Background(), 42)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// interleavingRepo lands a competing committed write between the locked read
// and the versioned write, the window a second Postgres connection can hit.
type interleavingRepo struct {
	repository.LedgerRepository
	pending atomic.Int32
}

func (r *interleavingRepo) LockBalanceTx(ctx context.Context, tx *gorm.DB, key models.BalanceKey) (*models.OperatorCashBalance, error) {
	bal, err := r.LedgerRepository.LockBalanceTx(ctx, tx, key)
	if err != nil || bal == nil || r.pending.Add(-1) < 0 {
		return bal, err
	}
	if err := tx.Exec("UPDATE operator_cash_balances SET version = version + 1 WHERE id = ?", bal.ID).Error; err != nil {
		return nil, err
	}
	return bal, nil
}

func TestApplyDelta_VersionMovedUnderLock(t *testing.T) {
	fx := testutil.NewFixture(t)
	pm := fx.AddPaymentMethod(t, "USD", models.DirectionBoth, true, true)
	repo := &interleavingRepo{LedgerRepository: fx.Store}
	svc := NewService(repo, fx.Store, staticPolicy(false), nil, nil)
	ctx := context.Background()
	deposit := func(amount, ref string) error {
		_, err := svc.RecordManualMovement(ctx, ManualMovementInput{
			OperatorID: fx.OperatorID, PaymentMethodID: pm.ID, Currency: "USD",
			Type: MovementDeposit, Amount: dec(amount), ReferenceID: ref,
		})
		return err
	}

	require.NoError(t, deposit("50", "cas-1"))

	repo.pending.Store(1)
	err := deposit("10", "cas-2")
	require.ErrorIs(t, err, ErrConcurrentBalanceConflict)

	bal, err := svc.GetBalance(ctx, fx.OperatorID, pm.ID, "USD")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("50")), "balance=%s", bal.Balance)
	page, err := svc.ListLedgerEntries(ctx, fx.OperatorID, LedgerEntryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total, "the losing write must not append an entry")

	require.NoError(t, deposit("10", "cas-3"))
	bal, err = svc.GetBalance(ctx, fx.OperatorID, pm.ID, "USD")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("60")), "balance=%s", bal.Balance)

	v, err := svc.VerifyBalance(ctx, bal.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent, "verification: %+v", v)
}
