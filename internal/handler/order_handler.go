package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/printforge/fulfillment-api/internal/models"
	"github.com/printforge/fulfillment-api/internal/service"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
	"github.com/printforge/fulfillment-api/pkg/response"
)

// OrderHandler exposes order intake, listing and lifecycle endpoints.
type OrderHandler struct {
	approval    *service.ApprovalService
	fulfillment *service.FulfillmentService
}

// NewOrderHandler constructs an order handler.
func NewOrderHandler(approval *service.ApprovalService, fulfillment *service.FulfillmentService) *OrderHandler {
	return &OrderHandler{approval: approval, fulfillment: fulfillment}
}

// Create godoc
// @Summary Submit a new printing order with its roster
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body service.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.approval.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// List godoc
// @Summary List orders
// @Tags Orders
// @Produce json
// @Param school_id query string false "Filter by school"
// @Param status query string false "Comma-separated status filter"
// @Param search query string false "Search by school name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var filter models.OrderFilter
	filter.SchoolID = c.Query("school_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, models.OrderStatus(strings.ToUpper(s)))
			}
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	orders, pagination, err := h.approval.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// Get godoc
// @Summary Get order detail
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.approval.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

type transitionRequest struct {
	Action string `json:"action" binding:"required"`
}

// Transition godoc
// @Summary Apply a lifecycle transition to an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body transitionRequest true "Transition action"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/transitions [post]
func (h *OrderHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.fulfillment.Apply(c.Request.Context(), c.Param("id"), service.TransitionAction(req.Action))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// Schedule godoc
// @Summary Schedule an order and move it to the queue
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body service.ScheduleOrderRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/schedule [post]
func (h *OrderHandler) Schedule(c *gin.Context) {
	var req service.ScheduleOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, estimate, err := h.fulfillment.Schedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order": order, "estimate": estimate}, nil)
}

// Estimate godoc
// @Summary Preview the processing duration estimate for an order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/schedule/estimate [get]
func (h *OrderHandler) Estimate(c *gin.Context) {
	estimate, err := h.fulfillment.Estimate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, estimate, nil)
}

// RecordPrinting godoc
// @Summary Record printed garment counts for a student
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.RecordPrintingRequest true "Printing payload"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/students/{studentId}/printing [patch]
func (h *OrderHandler) RecordPrinting(c *gin.Context) {
	var req service.RecordPrintingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.fulfillment.RecordPrinting(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
