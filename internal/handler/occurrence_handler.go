package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/service"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
	"github.com/molinacode/padel-crm-api/pkg/response"
)

// OccurrenceHandler exposes dated session endpoints.
type OccurrenceHandler struct {
	service  *service.OccurrenceService
	capacity *service.CapacityService
}

// NewOccurrenceHandler constructs an occurrence handler.
func NewOccurrenceHandler(svc *service.OccurrenceService, capacity *service.CapacityService) *OccurrenceHandler {
	return &OccurrenceHandler{service: svc, capacity: capacity}
}

// List godoc
// @Summary List class occurrences
// @Tags Occurrences
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /occurrences [get]
func (h *OccurrenceHandler) List(c *gin.Context) {
	var filter models.OccurrenceFilter
	filter.ClassID = c.Query("class_id")
	filter.Status = models.OccurrenceStatus(c.Query("status"))
	if raw := c.Query("from"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &date
		}
	}
	if raw := c.Query("to"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &date
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	occurrences, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, pagination)
}

// Get godoc
// @Summary Get occurrence detail
// @Tags Occurrences
// @Produce json
// @Param id path string true "Occurrence ID"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id} [get]
func (h *OccurrenceHandler) Get(c *gin.Context) {
	occurrence, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}

// Cancel godoc
// @Summary Cancel an occurrence
// @Tags Occurrences
// @Produce json
// @Param id path string true "Occurrence ID"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/cancel [post]
func (h *OccurrenceHandler) Cancel(c *gin.Context) {
	occurrence, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}

// Reschedule godoc
// @Summary Move an occurrence to a new date and time
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body service.RescheduleRequest true "New schedule"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/reschedule [post]
func (h *OccurrenceHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occurrence, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}

type excludeFromRentalRequest struct {
	Exclude bool `json:"exclude"`
}

// SetExcludeFromRental godoc
// @Summary Toggle the facility-rental accounting flag
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body excludeFromRentalRequest true "Flag"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/exclude-rental [post]
func (h *OccurrenceHandler) SetExcludeFromRental(c *gin.Context) {
	var req excludeFromRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occurrence, err := h.service.SetExcludeFromRental(c.Request.Context(), c.Param("id"), req.Exclude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrence, nil)
}

// Availability godoc
// @Summary Seat availability of an occurrence
// @Tags Occurrences
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param offered query int false "Hint clamping the seats offered externally"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/availability [get]
func (h *OccurrenceHandler) Availability(c *gin.Context) {
	var hint *int
	if raw := c.Query("offered"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "offered must be a non-negative integer"))
			return
		}
		hint = &value
	}
	availability, err := h.capacity.Availability(c.Request.Context(), c.Param("id"), hint)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}
