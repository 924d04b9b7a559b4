package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kuberafi/internal/models"
	"kuberafi/internal/orders"
	"kuberafi/internal/repository"
	"kuberafi/internal/settlement"
)

type OrderHandler struct {
	Repo       repository.OrderRepository
	Settlement *settlement.Coordinator
	Lifecycle  *orders.Lifecycle
}

func (h *OrderHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/orders")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/settle", h.settle)
	g.POST("/:id/complete", h.complete)
	g.POST("/:id/process", h.process)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/fail", h.fail)
}

// @Summary List orders
// @Tags orders
// @Param status query string false "pending|processing|completed|cancelled|failed"
// @Param exchange_house_id query int false "Exchange house"
// @Param operator_id query int false "Operator"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/orders [get]
func (h *OrderHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListOrdersParams{
		Limit:           limit,
		Offset:          offset,
		Status:          strQueryPtr(c, "status"),
		ExchangeHouseID: uint64QueryPtr(c, "exchange_house_id"),
		OperatorID:      uint64QueryPtr(c, "operator_id"),
	}
	items, err := h.Repo.ListOrders(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.Repo.CountOrders(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []models.Order{}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get order
// @Tags orders
// @Param id path int true "Order ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} map[string]any
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "order not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Settle order
// @Description Posts the ledger entries and commission of an order in one transaction. Settling twice is a no-op.
// @Tags orders
// @Param id path int true "Order ID"
// @Success 200 {object} settlement.Result
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/v1/orders/{id}/settle [post]
func (h *OrderHandler) settle(c *gin.Context) {
	if h.Settlement == nil {
		Error(c, http.StatusServiceUnavailable, "settlement unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	res, err := h.Settlement.SettleOrderWithRetry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Complete order
// @Description Settles inline or queues the order for the settlement worker, depending on the configured mode.
// @Tags orders
// @Param id path int true "Order ID"
// @Success 200 {object} orders.CompleteResult
// @Router /api/v1/orders/{id}/complete [post]
func (h *OrderHandler) complete(c *gin.Context) {
	if h.Lifecycle == nil {
		Error(c, http.StatusServiceUnavailable, "lifecycle unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	res, err := h.Lifecycle.Complete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Start processing order
// @Tags orders
// @Param id path int true "Order ID"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/process [post]
func (h *OrderHandler) process(c *gin.Context) {
	if h.Lifecycle == nil {
		Error(c, http.StatusServiceUnavailable, "lifecycle unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Lifecycle.StartProcessing(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Cancel order
// @Tags orders
// @Param id path int true "Order ID"
// @Param body body reasonRequest false "Reason"
// @Success 200 {object} models.Order
// @Failure 409 {object} map[string]any
// @Router /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) cancel(c *gin.Context) {
	h.terminate(c, models.OrderStatusCancelled)
}

// @Summary Fail order
// @Tags orders
// @Param id path int true "Order ID"
// @Param body body reasonRequest false "Reason"
// @Success 200 {object} models.Order
// @Failure 409 {object} map[string]any
// @Router /api/v1/orders/{id}/fail [post]
func (h *OrderHandler) fail(c *gin.Context) {
	h.terminate(c, models.OrderStatusFailed)
}

func (h *OrderHandler) terminate(c *gin.Context, status string) {
	if h.Lifecycle == nil {
		Error(c, http.StatusServiceUnavailable, "lifecycle unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	var (
		item *models.Order
		err  error
	)
	if status == models.OrderStatusCancelled {
		item, err = h.Lifecycle.Cancel(c.Request.Context(), id, req.Reason)
	} else {
		item, err = h.Lifecycle.Fail(c.Request.Context(), id, req.Reason)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}
