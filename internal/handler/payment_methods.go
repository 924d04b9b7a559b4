package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kuberafi/internal/paymentmethod"
)

type PaymentMethodHandler struct {
	Service *paymentmethod.Service
}

func (h *PaymentMethodHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/payment-methods")
	g.GET("", h.list)
	g.POST("/:id/default", h.setDefault)
	g.POST("/:id/activate", h.activate)
	g.POST("/:id/deactivate", h.deactivate)
}

// @Summary List payment methods
// @Tags payment-methods
// @Param exchange_house_id query int false "Exchange house"
// @Param currency query string false "ISO currency"
// @Success 200 {object} map[string]any
// @Router /api/v1/payment-methods [get]
func (h *PaymentMethodHandler) list(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "payment method service unavailable", nil)
		return
	}
	var houseID uint64
	if v := uint64QueryPtr(c, "exchange_house_id"); v != nil {
		houseID = *v
	}
	items, err := h.Service.List(c.Request.Context(), houseID, strings.ToUpper(strings.TrimSpace(c.Query("currency"))))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

// @Summary Make payment method the default
// @Description Clears the previous default for the same house, currency and direction.
// @Tags payment-methods
// @Param id path int true "Payment method ID"
// @Success 200 {object} models.PaymentMethod
// @Router /api/v1/payment-methods/{id}/default [post]
func (h *PaymentMethodHandler) setDefault(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "payment method service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Service.SetDefault(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Activate payment method
// @Tags payment-methods
// @Param id path int true "Payment method ID"
// @Success 200 {object} models.PaymentMethod
// @Router /api/v1/payment-methods/{id}/activate [post]
func (h *PaymentMethodHandler) activate(c *gin.Context) {
	h.setActive(c, true)
}

// @Summary Deactivate payment method
// @Tags payment-methods
// @Param id path int true "Payment method ID"
// @Success 200 {object} models.PaymentMethod
// @Router /api/v1/payment-methods/{id}/deactivate [post]
func (h *PaymentMethodHandler) deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PaymentMethodHandler) setActive(c *gin.Context, active bool) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "payment method service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Service.SetActive(c.Request.Context(), id, active)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, item, nil)
}
