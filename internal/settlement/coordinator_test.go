package settlement

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kuberafi/internal/audit"
	"kuberafi/internal/commission"
	"kuberafi/internal/ledger"
	"kuberafi/internal/metrics"
	"kuberafi/internal/models"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/repository"
	"kuberafi/internal/testutil"
)

type staticPolicy bool

func (p staticPolicy) RejectOverdraft(context.Context) bool { return bool(p) }

type harness struct {
	fx      *testutil.Fixture
	coord   *Coordinator
	ledger  *ledger.Service
	metrics *metrics.Registry
	usd     models.PaymentMethod
	ves     models.PaymentMethod
}

func newHarness(t *testing.T, repo Repository, fx *testutil.Fixture, reject bool) *harness {
	t.Helper()
	reg := metrics.New()
	rec := audit.NewRecorder(nil, reg, nil, 0)
	led := ledger.NewService(fx.Store, fx.Store, staticPolicy(reject), rec, nil)
	return &harness{
		fx:      fx,
		metrics: reg,
		ledger:  led,
		coord: &Coordinator{
			Repo:         repo,
			Ledger:       led,
			Selector:     &paymentmethod.Selector{Repo: fx.Store},
			Resolver:     &commission.Resolver{Repo: fx.Store},
			Audit:        rec,
			MaxAttempts:  3,
			RetryBackoff: time.Millisecond,
		},
	}
}

func setup(t *testing.T) *harness {
	t.Helper()
	fx := testutil.NewFixture(t)
	h := newHarness(t, fx.Store, fx, false)
	h.usd = fx.AddPaymentMethod(t, "USD", models.DirectionInbound, true, true)
	h.ves = fx.AddPaymentMethod(t, "VES", models.DirectionOutbound, true, true)
	fx.AddCommissionConfig(t, models.CommissionModelMixed, "0.02", true)
	return h
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *harness) balance(t *testing.T, pm models.PaymentMethod) decimal.Decimal {
	t.Helper()
	bal, err := h.ledger.GetBalance(context.Background(), h.fx.OperatorID, pm.ID, pm.Currency)
	require.NoError(t, err)
	return bal.Balance
}

func (h *harness) entries(t *testing.T, ref string) int64 {
	t.Helper()
	page, err := h.ledger.ListLedgerEntries(context.Background(), h.fx.OperatorID, ledger.LedgerEntryFilter{ReferenceID: &ref})
	require.NoError(t, err)
	return page.Total
}

func TestSettleOrder_HappyPath(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	order := h.fx.AddOrder(t, "100", "3650", "36.5", testutil.Ptr("36"))

	res, err := h.coord.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, res.AlreadySettled)
	require.Len(t, res.Entries, 2)
	require.NotNil(t, res.Commission)

	// 100*0.02 + (36.5-36)*100 = 2 + 50, in the quote currency.
	require.True(t, res.Commission.Amount.Equal(d("52")), "commission=%s", res.Commission.Amount)
	require.Equal(t, "VES", res.Commission.Currency)
	require.Equal(t, models.CommissionModelMixed, res.Commission.Model)
	require.Equal(t, models.CommissionStatusPending, res.Commission.Status)

	require.True(t, h.balance(t, h.usd).Equal(d("100")))
	require.True(t, h.balance(t, h.ves).Equal(d("-3650")))
	require.EqualValues(t, 2, h.entries(t, fmt.Sprint(order.ID)))

	stored, err := h.fx.Store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	require.NotNil(t, stored.SettledAt)

	// A negative outbound balance is a warning, not an error.
	require.EqualValues(t, 1, counter(h.metrics, "negative_balances", "VES"))
	require.EqualValues(t, 1, counter(h.metrics, "settlements", metrics.OutcomeSettled))
}

func TestSettleOrder_Idempotent(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	order := h.fx.AddOrder(t, "10", "365", "36.5", nil)

	_, err := h.coord.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	again, err := h.coord.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, again.AlreadySettled)

	require.EqualValues(t, 2, h.entries(t, fmt.Sprint(order.ID)))
	require.True(t, h.balance(t, h.usd).Equal(d("10")))
	page, err := (&commission.Service{Repo: h.fx.Store}).List(ctx, commission.Filter{OrderID: &order.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
}

func TestSettleOrder_MissingPaymentMethodIsAtomic(t *testing.T) {
	fx := testutil.NewFixture(t)
	h := newHarness(t, fx.Store, fx, false)
	h.usd = fx.AddPaymentMethod(t, "USD", models.DirectionBoth, true, true)
	ctx := context.Background()
	order := fx.AddOrder(t, "100", "3650", "36.5", nil)

	_, err := h.coord.SettleOrder(ctx, order.ID)
	require.ErrorIs(t, err, paymentmethod.ErrNoActivePaymentMethod)

	stored, err := fx.Store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, stored.Status)
	require.Zero(t, h.entries(t, fmt.Sprint(order.ID)))
	balances, err := h.ledger.ListBalances(ctx, fx.OperatorID)
	require.NoError(t, err)
	require.Empty(t, balances)
	require.EqualValues(t, 1, counter(h.metrics, "settlements", metrics.OutcomeAborted))

	// Fixing configuration makes the same order settle.
	h.ves = fx.AddPaymentMethod(t, "VES", models.DirectionBoth, true, false)
	res, err := h.coord.SettleOrderWithRetry(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, res.AlreadySettled)
	require.True(t, h.balance(t, h.ves).Equal(d("-3650")))
}

func TestSettleOrder_RejectsTerminalAndUnknown(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	order := h.fx.AddOrder(t, "1", "36", "36", nil)
	require.NoError(t, h.fx.Store.InTx(ctx, func(tx *gorm.DB) error {
		return h.fx.Store.UpdateOrderTx(ctx, tx, order.ID, map[string]any{"status": models.OrderStatusCancelled})
	}))

	_, err := h.coord.SettleOrderWithRetry(ctx, order.ID)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)
	require.Zero(t, h.entries(t, fmt.Sprint(order.ID)))

	_, err = h.coord.SettleOrder(ctx, 424242)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSettleOrder_NegativeAmountRollsBack(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	order := h.fx.AddOrder(t, "100", "3650", "36.5", nil)
	// Intake rejects negative amounts, so corrupt the stored row directly.
	require.NoError(t, h.fx.Store.InTx(ctx, func(tx *gorm.DB) error {
		return h.fx.Store.UpdateOrderTx(ctx, tx, order.ID, map[string]any{"base_amount": d("-100")})
	}))

	_, err := h.coord.SettleOrderWithRetry(ctx, order.ID)
	require.ErrorIs(t, err, models.ErrInvalidOrder)
	require.Zero(t, h.entries(t, fmt.Sprint(order.ID)))
	require.True(t, h.balance(t, h.usd).IsZero())
	require.True(t, h.balance(t, h.ves).IsZero())

	existing, err := h.fx.Store.GetCommissionByOrderIDTx(ctx, nil, order.ID)
	require.NoError(t, err)
	require.Nil(t, existing)

	stored, err := h.fx.Store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestInsertOrderRejectsNegativeAmounts(t *testing.T) {
	fx := testutil.NewFixture(t)
	err := fx.Store.InsertOrder(context.Background(), &models.Order{
		OrderNumber:     "ORD-NEG",
		ExchangeHouseID: fx.House.ID,
		OperatorID:      fx.OperatorID,
		CurrencyPairID:  fx.Pair.ID,
		BaseAmount:      d("10"),
		QuoteAmount:     d("-365"),
		Status:          models.OrderStatusPending,
	})
	require.ErrorIs(t, err, models.ErrInvalidOrder)
}

func TestSettleOrder_StrictOverdraft(t *testing.T) {
	fx := testutil.NewFixture(t)
	h := newHarness(t, fx.Store, fx, true)
	h.usd = fx.AddPaymentMethod(t, "USD", models.DirectionBoth, true, true)
	h.ves = fx.AddPaymentMethod(t, "VES", models.DirectionBoth, true, true)
	ctx := context.Background()
	order := fx.AddOrder(t, "100", "3650", "36.5", nil)

	_, err := h.coord.SettleOrder(ctx, order.ID)
	require.ErrorIs(t, err, ledger.ErrOverdraftRejected)
	require.True(t, h.balance(t, h.usd).IsZero(), "credit leg must roll back too")

	_, err = h.ledger.RecordManualMovement(ctx, ledger.ManualMovementInput{
		OperatorID: fx.OperatorID, PaymentMethodID: h.ves.ID, Currency: "VES", Type: ledger.MovementDeposit, Amount: d("5000"),
	})
	require.NoError(t, err)
	_, err = h.coord.SettleOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, h.balance(t, h.ves).Equal(d("1350")))
}

// Like the ledger concurrency tests, these run on the single-connection
// sqlite fixture: they check idempotency and conservation under contention,
// not interleaving inside ApplyDelta.
func TestSettleOrder_ConcurrentSameOrder(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	order := h.fx.AddOrder(t, "50", "1825", "36.5", nil)

	const workers = 8
	var settled atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.coord.SettleOrderWithRetry(ctx, order.ID)
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			if !res.AlreadySettled {
				settled.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, settled.Load())
	require.EqualValues(t, 2, h.entries(t, fmt.Sprint(order.ID)))
	require.True(t, h.balance(t, h.usd).Equal(d("50")))
}

func TestSettleOrder_ConcurrentOrdersConserve(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	const n = 10
	ids := make([]uint64, 0, n)
	for i := 1; i <= n; i++ {
		o := h.fx.AddOrder(t, fmt.Sprint(i), fmt.Sprint(i*36), "36", nil)
		ids = append(ids, o.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, err := h.coord.SettleOrderWithRetry(ctx, id); err != nil {
				t.Errorf("settle %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	// Sum of 1..10 = 55 base, 55*36 = 1980 quote.
	require.True(t, h.balance(t, h.usd).Equal(d("55")))
	require.True(t, h.balance(t, h.ves).Equal(d("-1980")))

	for _, pm := range []models.PaymentMethod{h.usd, h.ves} {
		bal, err := h.ledger.GetBalance(ctx, h.fx.OperatorID, pm.ID, pm.Currency)
		require.NoError(t, err)
		v, err := h.ledger.VerifyBalance(ctx, bal.ID)
		require.NoError(t, err)
		require.True(t, v.Consistent)
		require.Equal(t, n, v.Entries)
	}
}

// flakyRepo fails the first order lock with a balance conflict.
type flakyRepo struct {
	Repository
	failures atomic.Int32
}

func (r *flakyRepo) LockOrderTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Order, error) {
	if r.failures.Add(-1) >= 0 {
		return nil, fmt.Errorf("simulated: %w", ledger.ErrConcurrentBalanceConflict)
	}
	return r.Repository.LockOrderTx(ctx, tx, id)
}

func TestSettleOrderWithRetry(t *testing.T) {
	fx := testutil.NewFixture(t)
	flaky := &flakyRepo{Repository: fx.Store}
	h := newHarness(t, flaky, fx, false)
	fx.AddPaymentMethod(t, "USD", models.DirectionBoth, true, true)
	fx.AddPaymentMethod(t, "VES", models.DirectionBoth, true, true)
	ctx := context.Background()

	order := fx.AddOrder(t, "1", "36", "36", nil)
	flaky.failures.Store(1)
	res, err := h.coord.SettleOrderWithRetry(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)

	other := fx.AddOrder(t, "1", "36", "36", nil)
	flaky.failures.Store(5)
	res, err = h.coord.SettleOrderWithRetry(ctx, other.ID)
	require.ErrorIs(t, err, ledger.ErrConcurrentBalanceConflict)
	require.Equal(t, 3, res.Attempts)
	require.EqualValues(t, 1, counter(h.metrics, "settlements", metrics.OutcomeFailed))
}

func TestRetryBudget(t *testing.T) {
	c := &Coordinator{MaxAttempts: 4, RetryBackoff: 10 * time.Millisecond}
	// Sleeps of 10, 20 and 40ms between four attempts.
	require.Equal(t, 70*time.Millisecond, c.RetryBudget())
	// Defaults: 3 attempts from 50ms.
	require.Equal(t, 150*time.Millisecond, (&Coordinator{}).RetryBudget())
}

func counter(reg *metrics.Registry, name, label string) float64 {
	return promtest.ToFloat64(reg.Counter(name, label))
}
