package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"kuberafi/internal/commission"
	"kuberafi/internal/models"
)

type CommissionHandler struct {
	Service *commission.Service
}

func (h *CommissionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/commissions")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/reject", h.reject)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/pay", h.pay)
}

// @Summary List commissions
// @Tags commissions
// @Param exchange_house_id query int false "Exchange house"
// @Param order_id query int false "Order"
// @Param status query string false "pending|approved|paid|rejected|cancelled"
// @Param model query string false "percentage|spread|mixed"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/commissions [get]
func (h *CommissionHandler) list(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "commission service unavailable", nil)
		return
	}
	page, err := h.Service.List(c.Request.Context(), commission.Filter{
		ExchangeHouseID: uint64QueryPtr(c, "exchange_house_id"),
		OrderID:         uint64QueryPtr(c, "order_id"),
		Status:          strQueryPtr(c, "status"),
		Model:           strQueryPtr(c, "model"),
		Limit:           intQuery(c, "limit", 50),
		Offset:          intQuery(c, "offset", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, page.Items, paginationMeta(page.Limit, page.Offset, page.Total))
}

// @Summary Get commission
// @Tags commissions
// @Param id path int true "Commission ID"
// @Success 200 {object} models.Commission
// @Router /api/v1/commissions/{id} [get]
func (h *CommissionHandler) get(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "commission service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Approve commission
// @Tags commissions
// @Param id path int true "Commission ID"
// @Param body body notesRequest false "Notes"
// @Success 200 {object} models.Commission
// @Failure 409 {object} map[string]any
// @Router /api/v1/commissions/{id}/approve [post]
func (h *CommissionHandler) approve(c *gin.Context) {
	h.transition(c, h.Service.Approve)
}

// @Summary Reject commission
// @Tags commissions
// @Param id path int true "Commission ID"
// @Param body body notesRequest false "Notes"
// @Success 200 {object} models.Commission
// @Router /api/v1/commissions/{id}/reject [post]
func (h *CommissionHandler) reject(c *gin.Context) {
	h.transition(c, h.Service.Reject)
}

// @Summary Cancel commission
// @Tags commissions
// @Param id path int true "Commission ID"
// @Param body body notesRequest false "Notes"
// @Success 200 {object} models.Commission
// @Router /api/v1/commissions/{id}/cancel [post]
func (h *CommissionHandler) cancel(c *gin.Context) {
	h.transition(c, h.Service.Cancel)
}

// @Summary Mark commission paid
// @Tags commissions
// @Param id path int true "Commission ID"
// @Param body body notesRequest false "Notes"
// @Success 200 {object} models.Commission
// @Router /api/v1/commissions/{id}/pay [post]
func (h *CommissionHandler) pay(c *gin.Context) {
	h.transition(c, h.Service.MarkPaid)
}

func (h *CommissionHandler) transition(c *gin.Context, apply func(context.Context, uint64, string) (*models.Commission, error)) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "commission service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	item, err := apply(c.Request.Context(), id, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}
