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

// EnrollmentHandler exposes assignment endpoints.
type EnrollmentHandler struct {
	service *service.AssignmentService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc *service.AssignmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param origin query string false "Filter by origin (escuela, interna)"
// @Param type query string false "Filter by assignment type (permanent, temporary)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("student_id")
	filter.ClassID = c.Query("class_id")
	filter.Origin = models.EnrollmentOrigin(c.Query("origin"))
	filter.AssignmentType = models.AssignmentType(c.Query("type"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Assign godoc
// @Summary Permanently assign a student to a class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.AssignStudentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Assign(c *gin.Context) {
	var req service.AssignStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.AssignPermanent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// FillGap godoc
// @Summary Temporarily place a student into one occurrence
// @Description Fills a freed seat for a single session. When the student is
// @Description brand new and no origin is supplied, nothing is written and the
// @Description response asks for an explicit origin decision.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.FillGapRequest true "Gap fill payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/fill-gap [post]
func (h *EnrollmentHandler) FillGap(c *gin.Context) {
	var req service.FillGapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.FillGap(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.OriginDecisionRequired {
		response.JSON(c, http.StatusConflict, result, nil)
		return
	}
	response.Created(c, result)
}

// Unassign godoc
// @Summary Remove an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Unassign(c *gin.Context) {
	if err := h.service.Unassign(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type changeOriginRequest struct {
	Origin models.EnrollmentOrigin `json:"origin" binding:"required"`
}

// ChangeClassOrigin godoc
// @Summary Rewrite the billing origin of every enrollment in a class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body changeOriginRequest true "New origin"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/origin [put]
func (h *EnrollmentHandler) ChangeClassOrigin(c *gin.Context) {
	var req changeOriginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.service.ChangeClassOrigin(c.Request.Context(), c.Param("id"), req.Origin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}
