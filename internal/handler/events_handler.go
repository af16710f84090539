package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/printforge/fulfillment-api/internal/service"
	"github.com/printforge/fulfillment-api/pkg/response"
)

// EventsHandler streams change events for an order over SSE.
type EventsHandler struct {
	notifier *service.NotifierService
}

// NewEventsHandler constructs an events handler.
func NewEventsHandler(notifier *service.NotifierService) *EventsHandler {
	return &EventsHandler{notifier: notifier}
}

// Stream godoc
// @Summary Stream change events for an order (SSE)
// @Tags Events
// @Produce text/event-stream
// @Param id path string true "Order ID"
// @Success 200 {string} string "event stream"
// @Router /orders/{id}/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	events, cancel, err := h.notifier.Subscribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", event)
			return true
		}
	})
}
