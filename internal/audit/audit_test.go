package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kuberafi/internal/models"
)

type collector struct {
	mu     sync.Mutex
	logins int
	events []Event
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			c.mu.Lock()
			c.logins++
			c.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":      "tok",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case "/api/v1/logs":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var evt Event
			_ = json.NewDecoder(r.Body).Decode(&evt)
			c.mu.Lock()
			c.events = append(c.events, evt)
			c.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) snapshot() (int, []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins, append([]Event(nil), c.events...)
}

func TestClientSendReusesToken(t *testing.T) {
	col := &collector{}
	srv := col.server(t)
	client := &Client{BaseURL: srv.URL, APIKey: "k", Agent: "kuberafi-ledger"}

	ctx := context.Background()
	require.NoError(t, client.Send(ctx, Event{Action: "a", Level: "info"}))
	require.NoError(t, client.Send(ctx, Event{Action: "b", Level: "info"}))

	logins, events := col.snapshot()
	require.Equal(t, 1, logins)
	require.Len(t, events, 2)
	require.Equal(t, "kuberafi-ledger", events[0].Agent)
}

func TestClientRequiresConfig(t *testing.T) {
	client := &Client{}
	require.Error(t, client.Send(context.Background(), Event{Action: "a"}))
}

func TestRecorderDeliversQueuedEvents(t *testing.T) {
	col := &collector{}
	srv := col.server(t)
	rec := NewRecorder(nil, nil, &Client{BaseURL: srv.URL, APIKey: "k"}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	key := models.BalanceKey{OperatorID: 1, PaymentMethodID: 2, Currency: "VES"}
	rec.NegativeBalance(key, decimal.RequireFromString("-10"), models.ReferenceOrderOut, "9")

	require.Eventually(t, func() bool {
		_, events := col.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, events := col.snapshot()
	require.Equal(t, ActionNegativeBalance, events[0].Action)
	require.Equal(t, "warn", events[0].Level)
	require.NotEmpty(t, events[0].ID)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.SettlementFailed(1, nil)
	rec.SettlementAborted(1, nil)
	rec.ManualMovement(&models.CashLedgerEntry{})
	rec.NegativeBalance(models.BalanceKey{}, decimal.Zero, "", "")
}

func TestWriteMiddlewareSkipsReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := NewRecorder(nil, nil, &Client{BaseURL: "http://unused", APIKey: "k"}, 4)

	r := gin.New()
	r.Use(WriteMiddleware(rec))
	r.GET("/api/v1/commissions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/commissions/:id/approve", func(c *gin.Context) { c.Status(http.StatusConflict) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/commissions", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/commissions/3/approve", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, rec.queue, 1)
	evt := <-rec.queue
	require.Equal(t, ActionHTTPWrite, evt.Action)
	require.Equal(t, "warn", evt.Level)
	require.Equal(t, "/api/v1/commissions/:id/approve", evt.Details["route"])
}
