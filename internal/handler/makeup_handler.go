package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/service"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
	"github.com/molinacode/padel-crm-api/pkg/response"
)

// MakeupHandler exposes makeup credit endpoints.
type MakeupHandler struct {
	service *service.MakeupService
}

// NewMakeupHandler constructs a makeup handler.
func NewMakeupHandler(svc *service.MakeupService) *MakeupHandler {
	return &MakeupHandler{service: svc}
}

// List godoc
// @Summary List makeup credits
// @Tags Makeups
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param status query string false "Filter by status (pending, fulfilled, canceled)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /makeups [get]
func (h *MakeupHandler) List(c *gin.Context) {
	var filter models.MakeupCreditFilter
	filter.StudentID = c.Query("student_id")
	filter.ClassID = c.Query("class_id")
	filter.Status = models.CreditStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	credits, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credits, pagination)
}

// Create godoc
// @Summary Manually grant a makeup credit
// @Tags Makeups
// @Accept json
// @Produce json
// @Param payload body service.CreateCreditRequest true "Credit payload"
// @Success 201 {object} response.Envelope
// @Router /makeups [post]
func (h *MakeupHandler) Create(c *gin.Context) {
	var req service.CreateCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	credit, err := h.service.CreateManual(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, credit)
}

// TrulyPending godoc
// @Summary Pending credits of a student after attendance reconciliation
// @Tags Makeups
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/pending-makeups [get]
func (h *MakeupHandler) TrulyPending(c *gin.Context) {
	credits, err := h.service.TrulyPending(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credits, nil)
}

type cancelCreditRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Cancel godoc
// @Summary Cancel a pending makeup credit
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Credit ID"
// @Param payload body cancelCreditRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /makeups/{id}/cancel [post]
func (h *MakeupHandler) Cancel(c *gin.Context) {
	var req cancelCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	credit, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credit, nil)
}
