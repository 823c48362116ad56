package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/middleware"
	"github.com/noah-isme/civic-portal-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Audit        *AuditHandler
	Projects     *ContentHandler[models.ProjectRequest, models.Project]
	Schemes      *ContentHandler[models.SchemeRequest, models.Scheme]
	Events       *ContentHandler[models.EventRequest, models.Event]
	Schedules    *ScheduleHandler
	Complaints   *ComplaintHandler
	Attendance   *AttendanceHandler
	Transparency *TransparencyHandler
	Reports      *ReportHandler
	Metrics      *MetricsHandler
}

// RouteDeps carries the cross-cutting collaborators used to gate routes.
type RouteDeps struct {
	Tokens  middleware.TokenValidator
	Guard   *authz.Guard
	Denials middleware.DenialRecorder
	Audit   middleware.AuditWriter
}

type contentRoutes interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Submit(c *gin.Context)
	Update(c *gin.Context)
	Review(c *gin.Context)
	Delete(c *gin.Context)
	Rate(c *gin.Context)
}

// RegisterRoutes mounts the portal API on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, deps RouteDeps) {
	if deps.Guard == nil {
		deps.Guard = authz.NewGuard(nil)
	}
	authRequired := middleware.JWT(deps.Tokens)
	optionalAuth := middleware.OptionalJWT(deps.Tokens)
	can := func(caps ...authz.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(deps.Guard, deps.Denials, caps...)
	}

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", authRequired, h.Auth.Logout)
	auth.POST("/change-password", authRequired, h.Auth.ChangePassword)

	users := api.Group("/users", authRequired, can(authz.ManageUsers))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	api.GET("/audit-logs", authRequired, can(authz.ReadAudit), h.Audit.List)

	mountContent := func(path string, handler contentRoutes, submit, approve authz.Capability, edit ...authz.Capability) {
		group := api.Group(path)
		group.GET("", optionalAuth, handler.List)
		group.GET("/:id", optionalAuth, handler.Get)
		group.POST("", authRequired, can(submit), handler.Submit)
		group.PUT("/:id", authRequired, can(edit...), handler.Update)
		group.POST("/:id/review", authRequired, can(approve), handler.Review)
		group.DELETE("/:id", authRequired, can(authz.DeleteContent), handler.Delete)
		group.POST("/:id/ratings", authRequired, can(authz.WriteRating), handler.Rate)
	}
	mountContent("/projects", h.Projects, authz.SubmitProject, authz.ApproveProject, authz.EditAnyProject, authz.EditOwnContent)
	mountContent("/schemes", h.Schemes, authz.SubmitScheme, authz.ApproveScheme, authz.EditOwnContent)
	mountContent("/events", h.Events, authz.SubmitEvent, authz.ApproveEvent, authz.EditOwnContent)

	schedules := api.Group("/schedules")
	schedules.GET("", optionalAuth, h.Schedules.List)
	schedules.GET("/:id", optionalAuth, h.Schedules.Get)
	schedules.POST("", authRequired, can(authz.SubmitSchedule), h.Schedules.Submit)
	schedules.PUT("/:id", authRequired, can(authz.SubmitSchedule), h.Schedules.Update)
	schedules.POST("/:id/review", authRequired, can(authz.ApproveSchedule), h.Schedules.Review)
	schedules.DELETE("/:id", authRequired, can(authz.DeleteContent), h.Schedules.Delete)

	complaints := api.Group("/complaints", authRequired)
	complaints.POST("", can(authz.CreateComplaint), h.Complaints.Create)
	complaints.GET("/mine", can(authz.ReadOwnComplaints), h.Complaints.ListMine)
	complaints.GET("", can(authz.ReadAllComplaints), h.Complaints.List)
	complaints.GET("/:id", h.Complaints.Get)
	complaints.PATCH("/:id", can(authz.UpdateComplaint), h.Complaints.Update)

	attendance := api.Group("/attendance", authRequired)
	attendance.POST("/days", can(authz.RecordAttendance), h.Attendance.RecordDay)
	attendance.PATCH("/days/:id/verify", can(authz.VerifyAttendance), h.Attendance.VerifyDay)
	attendance.GET("", can(authz.ReadAttendance), h.Attendance.List)
	attendance.GET("/:season/:mlaId", can(authz.ReadAttendance), h.Attendance.Get)

	public := api.Group("/public", middleware.WithResponseMeta())
	public.GET("/attendance/percentage", h.Attendance.PublicPercentage)
	public.GET("/attendance/mlas/:mlaId/percentage", h.Attendance.MLAPercentage)
	public.GET("/summary", h.Transparency.Summary)

	if h.Reports != nil {
		reports := api.Group("/reports", authRequired, can(authz.GenerateReport))
		if deps.Audit != nil {
			reports.POST("", middleware.Audit(deps.Audit, models.AuditActionReportRequest, "report"), h.Reports.Generate)
		} else {
			reports.POST("", h.Reports.Generate)
		}
		reports.GET("/:id", h.Reports.Status)
		api.GET("/export/:token", h.Reports.Download)
	}

	if h.Metrics != nil {
		api.GET("/metrics/summary", authRequired, can(authz.ReadAudit), h.Metrics.Snapshot)
	}
}

// RegisterOps mounts health, readiness and Prometheus endpoints at the root.
func RegisterOps(router gin.IRoutes, h *MetricsHandler) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
}
