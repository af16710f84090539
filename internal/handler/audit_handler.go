package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/fulfillment-api/internal/middleware"
	"github.com/printforge/fulfillment-api/internal/service"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
	"github.com/printforge/fulfillment-api/pkg/response"
)

// AuditHandler exposes the reconciliation workflow endpoints.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// Open godoc
// @Summary Open (or resume) the audit report for an order
// @Tags Audit
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id}/audit [post]
func (h *AuditHandler) Open(c *gin.Context) {
	report, err := h.service.Open(c.Request.Context(), c.Param("id"), middleware.ActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get an audit report with its snapshot and trail
// @Tags Audit
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /audit-reports/{id} [get]
func (h *AuditHandler) Get(c *gin.Context) {
	detail, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// EditOrder godoc
// @Summary Apply audited corrections to order totals
// @Tags Audit
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body service.EditOrderTotalsRequest true "Totals payload"
// @Success 200 {object} response.Envelope
// @Router /audit-reports/{id}/order [patch]
func (h *AuditHandler) EditOrder(c *gin.Context) {
	var req service.EditOrderTotalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	order, err := h.service.EditOrderTotals(c.Request.Context(), c.Param("id"), req, middleware.ActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// EditClass godoc
// @Summary Apply audited corrections to a class
// @Tags Audit
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param classId path string true "Class ID"
// @Param payload body service.EditClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /audit-reports/{id}/classes/{classId} [patch]
func (h *AuditHandler) EditClass(c *gin.Context) {
	var req service.EditClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.EditClass(c.Request.Context(), c.Param("id"), c.Param("classId"), req, middleware.ActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// SaveStudent godoc
// @Summary Save a student's audited garment counts
// @Tags Audit
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.SaveStudentAuditRequest true "Student audit payload"
// @Success 200 {object} response.Envelope
// @Router /audit-reports/{id}/students/{studentId} [patch]
func (h *AuditHandler) SaveStudent(c *gin.Context) {
	var req service.SaveStudentAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.SaveStudentAudit(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, middleware.ActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Seal godoc
// @Summary Seal an audit report
// @Tags Audit
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /audit-reports/{id}/seal [post]
func (h *AuditHandler) Seal(c *gin.Context) {
	report, err := h.service.Seal(c.Request.Context(), c.Param("id"), middleware.ActorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
