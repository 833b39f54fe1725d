package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/molinacode/padel-crm-api/internal/service"
	"github.com/molinacode/padel-crm-api/pkg/response"
)

// MetricsHandler exposes aggregate system metrics for the admin UI.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Snapshot godoc
// @Summary Aggregated runtime metrics
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/snapshot [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(), nil)
}
