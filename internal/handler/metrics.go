package handler

import (
	"github.com/gin-gonic/gin"

	"kuberafi/internal/metrics"
)

type MetricsHandler struct {
	Registry *metrics.Registry
}

// @Summary Prometheus metrics
// @Tags health
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *MetricsHandler) Register(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(h.Registry.Handler()))
}
