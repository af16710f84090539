package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/fulfillment-api/internal/service"
	"github.com/printforge/fulfillment-api/pkg/response"
)

// ProgressHandler exposes the aggregated progress view.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// Get godoc
// @Summary Get the three-tier progress view for an order
// @Tags Progress
// @Produce json
// @Param id path string true "Order ID"
// @Param refresh query bool false "Bypass the cached view"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	refresh := c.Query("refresh") == "true"
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"), refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
