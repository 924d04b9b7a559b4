package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kuberafi/internal/ledger"
	"kuberafi/internal/models"
)

type LedgerHandler struct {
	Ledger *ledger.Service
}

func (h *LedgerHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/operators/:operator_id")
	g.GET("/balances", h.balances)
	g.POST("/movements", h.movement)
	g.GET("/ledger-entries", h.entries)
	r.GET("/api/v1/balances/:id/verify", h.verify)
}

// @Summary Operator balances
// @Description With payment_method_id and currency returns one balance (zero when never touched); otherwise lists every balance of the operator.
// @Tags ledger
// @Param operator_id path int true "Operator ID"
// @Param payment_method_id query int false "Payment method"
// @Param currency query string false "ISO currency"
// @Success 200 {object} map[string]any
// @Router /api/v1/operators/{operator_id}/balances [get]
func (h *LedgerHandler) balances(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	operatorID := uint64Param(c, "operator_id")
	if operatorID == 0 {
		Error(c, http.StatusBadRequest, "invalid operator_id", nil)
		return
	}
	pmID := uint64QueryPtr(c, "payment_method_id")
	currency := strQueryPtr(c, "currency")
	if pmID != nil && currency != nil {
		bal, err := h.Ledger.GetBalance(c.Request.Context(), operatorID, *pmID, *currency)
		if err != nil {
			writeError(c, err)
			return
		}
		Ok(c, bal, nil)
		return
	}
	items, err := h.Ledger.ListBalances(c.Request.Context(), operatorID)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

type movementResponse struct {
	Balance   ledger.Balance         `json:"balance"`
	Entry     models.CashLedgerEntry `json:"entry"`
	Overdraft bool                   `json:"overdraft"`
}

// @Summary Record manual movement
// @Description Deposit, withdrawal or signed adjustment against one cash box.
// @Tags ledger
// @Param operator_id path int true "Operator ID"
// @Param body body ledger.ManualMovementInput true "Movement"
// @Success 200 {object} movementResponse
// @Failure 400 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/v1/operators/{operator_id}/movements [post]
func (h *LedgerHandler) movement(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	operatorID := uint64Param(c, "operator_id")
	if operatorID == 0 {
		Error(c, http.StatusBadRequest, "invalid operator_id", nil)
		return
	}
	var req ledger.ManualMovementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.OperatorID = operatorID
	res, err := h.Ledger.RecordManualMovement(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	bal, err := h.Ledger.GetBalance(c.Request.Context(), operatorID, req.PaymentMethodID, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, movementResponse{Balance: bal, Entry: res.Entry, Overdraft: res.Overdraft}, nil)
}

// @Summary Operator ledger entries
// @Tags ledger
// @Param operator_id path int true "Operator ID"
// @Param payment_method_id query int false "Payment method"
// @Param currency query string false "ISO currency"
// @Param reference_type query string false "order_in|order_out|manual_deposit|manual_withdrawal|adjustment"
// @Param reference_id query string false "Reference"
// @Param since query string false "RFC3339"
// @Param until query string false "RFC3339"
// @Param limit query int false "Limit (default 50, max 500)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/operators/{operator_id}/ledger-entries [get]
func (h *LedgerHandler) entries(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	operatorID := uint64Param(c, "operator_id")
	if operatorID == 0 {
		Error(c, http.StatusBadRequest, "invalid operator_id", nil)
		return
	}
	page, err := h.Ledger.ListLedgerEntries(c.Request.Context(), operatorID, ledger.LedgerEntryFilter{
		PaymentMethodID: uint64QueryPtr(c, "payment_method_id"),
		Currency:        strQueryPtr(c, "currency"),
		ReferenceType:   strQueryPtr(c, "reference_type"),
		ReferenceID:     strQueryPtr(c, "reference_id"),
		Since:           timeQueryPtr(c, "since"),
		Until:           timeQueryPtr(c, "until"),
		Limit:           intQuery(c, "limit", 0),
		Offset:          intQuery(c, "offset", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, page.Items, paginationMeta(page.Limit, page.Offset, page.Total))
}

// @Summary Verify balance against its entries
// @Tags ledger
// @Param id path int true "Balance ID"
// @Success 200 {object} ledger.Verification
// @Router /api/v1/balances/{id}/verify [get]
func (h *LedgerHandler) verify(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	v, err := h.Ledger.VerifyBalance(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, v, nil)
}
