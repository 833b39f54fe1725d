package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/molinacode/padel-crm-api/internal/middleware"
	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/service"
)

// Handlers bundles every route handler the API mounts.
type Handlers struct {
	Auth        *AuthHandler
	Students    *StudentHandler
	Classes     *ClassHandler
	Occurrences *OccurrenceHandler
	Enrollments *EnrollmentHandler
	Attendance  *AttendanceHandler
	Makeups     *MakeupHandler
	Releases    *ReleaseHandler
	Payments    *PaymentHandler
	Exports     *ExportHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts all API routes under the given prefix. The export
// download endpoint stays outside the JWT guard: its signed token is the
// credential.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authSvc *service.AuthService) {
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	if h.Exports != nil {
		api.GET("/exports/download/:token", h.Exports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/students", h.Students.List)
	secured.POST("/students", h.Students.Create)
	secured.GET("/students/:id", h.Students.Get)
	secured.PUT("/students/:id", h.Students.Update)
	secured.POST("/students/:id/deactivate", h.Students.Deactivate)
	secured.GET("/students/:id/pending-makeups", h.Makeups.TrulyPending)

	secured.GET("/classes", h.Classes.List)
	secured.POST("/classes", h.Classes.Create)
	secured.GET("/classes/:id", h.Classes.Get)
	secured.PUT("/classes/:id", h.Classes.Update)
	secured.DELETE("/classes/:id", middleware.RequireRoles(models.RoleAdmin), h.Classes.Delete)
	secured.PUT("/classes/:id/origin", h.Enrollments.ChangeClassOrigin)

	secured.GET("/occurrences", h.Occurrences.List)
	secured.GET("/occurrences/:id", h.Occurrences.Get)
	secured.GET("/occurrences/:id/availability", h.Occurrences.Availability)
	secured.POST("/occurrences/:id/cancel", h.Occurrences.Cancel)
	secured.POST("/occurrences/:id/reschedule", h.Occurrences.Reschedule)
	secured.POST("/occurrences/:id/exclude-rental", h.Occurrences.SetExcludeFromRental)

	secured.GET("/enrollments", h.Enrollments.List)
	secured.POST("/enrollments", h.Enrollments.Assign)
	secured.POST("/enrollments/fill-gap", h.Enrollments.FillGap)
	secured.DELETE("/enrollments/:id", h.Enrollments.Unassign)

	secured.GET("/attendance", h.Attendance.List)
	secured.POST("/attendance", h.Attendance.Mark)

	secured.GET("/makeups", h.Makeups.List)
	secured.POST("/makeups", h.Makeups.Create)
	secured.POST("/makeups/:id/cancel", h.Makeups.Cancel)

	secured.GET("/releases", h.Releases.List)

	secured.GET("/payments", h.Payments.List)
	secured.POST("/payments", h.Payments.Create)
	secured.POST("/payments/:id/pay", h.Payments.MarkPaid)
	secured.POST("/payments/generate", middleware.RequireRoles(models.RoleAdmin), h.Payments.GenerateExpected)

	if h.Exports != nil {
		secured.POST("/exports", h.Exports.Create)
		secured.GET("/exports/:id", h.Exports.Status)
	}

	if h.Metrics != nil {
		secured.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), h.Metrics.Snapshot)
	}
}
