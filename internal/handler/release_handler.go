package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/service"
	"github.com/molinacode/padel-crm-api/pkg/response"
)

// ReleaseHandler exposes slot release endpoints. Releases open and close
// as side effects of attendance marks and gap fills; the API only reads them.
type ReleaseHandler struct {
	service *service.ReleaseService
}

// NewReleaseHandler constructs a release handler.
func NewReleaseHandler(svc *service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{service: svc}
}

// List godoc
// @Summary List slot releases
// @Tags Releases
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param status query string false "Filter by status (active, canceled)"
// @Param date query string false "Covering date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /releases [get]
func (h *ReleaseHandler) List(c *gin.Context) {
	var filter models.SlotReleaseFilter
	filter.StudentID = c.Query("student_id")
	filter.ClassID = c.Query("class_id")
	filter.Status = models.ReleaseStatus(c.Query("status"))
	if raw := c.Query("date"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.Date = &date
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	releases, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, releases, pagination)
}
