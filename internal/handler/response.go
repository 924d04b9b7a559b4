package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kuberafi/internal/db"
	"kuberafi/internal/ledger"
	"kuberafi/internal/models"
	"kuberafi/internal/orders"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/repository"
	"kuberafi/internal/settlement"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// writeError maps domain errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStatusTransition),
		errors.Is(err, paymentmethod.ErrNoActivePaymentMethod),
		db.IsDuplicateKey(err):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrOverdraftRejected),
		errors.Is(err, models.ErrInvalidOrder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidMovement):
		status = http.StatusBadRequest
	case settlement.IsRetryable(err),
		errors.Is(err, orders.ErrNoSettler):
		status = http.StatusServiceUnavailable
	}
	Error(c, status, err.Error(), nil)
}

func uint64Param(c *gin.Context, key string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(c.Param(key)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func uint64QueryPtr(c *gin.Context, key string) *uint64 {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if v, err := strconv.ParseUint(val, 10, 64); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

// timeQueryPtr accepts RFC3339 timestamps.
func timeQueryPtr(c *gin.Context, key string) *time.Time {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// bindOptionalJSON binds body when present; an empty body is allowed.
func bindOptionalJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return false
	}
	return true
}
