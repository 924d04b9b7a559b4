package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"kuberafi/internal/db"
	"kuberafi/internal/ledger"
	"kuberafi/internal/models"
	"kuberafi/internal/orders"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/repository"
)

func TestWriteErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pgErr := func(code string) error {
		return fmt.Errorf("settle order 3: %w", &pgconn.PgError{Code: code})
	}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("order 9: %w", repository.ErrNotFound), http.StatusNotFound},
		{"transition", models.ErrInvalidStatusTransition, http.StatusConflict},
		{"no payment method", paymentmethod.ErrNoActivePaymentMethod, http.StatusConflict},
		{"duplicate key", pgErr(db.DuplicateKeyErrorCode), http.StatusConflict},
		{"overdraft", ledger.ErrOverdraftRejected, http.StatusUnprocessableEntity},
		{"invalid order", fmt.Errorf("order X: %w", models.ErrInvalidOrder), http.StatusUnprocessableEntity},
		{"invalid movement", ledger.ErrInvalidMovement, http.StatusBadRequest},
		{"balance conflict", ledger.ErrConcurrentBalanceConflict, http.StatusServiceUnavailable},
		{"serialization failure", pgErr(db.SerializationFailureCode), http.StatusServiceUnavailable},
		{"deadlock", pgErr(db.DeadlockDetectedCode), http.StatusServiceUnavailable},
		{"lock timeout", pgErr(db.LockNotAvailableCode), http.StatusServiceUnavailable},
		{"no settler", orders.ErrNoSettler, http.StatusServiceUnavailable},
		{"other pg error", pgErr("42P01"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		writeError(c, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%s: status=%d want %d", tc.name, rec.Code, tc.want)
		}
	}
}
