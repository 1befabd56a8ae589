package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Achyut-shekhar/Attendx/internal/middleware"
	"github.com/Achyut-shekhar/Attendx/internal/models"
	"github.com/Achyut-shekhar/Attendx/internal/service"
)

// Handlers bundles everything RegisterRoutes needs.
type Handlers struct {
	Auth          *AuthHandler
	Class         *ClassHandler
	Session       *SessionHandler
	Attendance    *AttendanceHandler
	Notification  *NotificationHandler
	Report        *ReportHandler
	AuthService   *service.AuthService
	ReportEnabled bool
}

// RegisterRoutes mounts the API surface on the router.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", middleware.JWT(h.AuthService), h.Auth.Me)
	}

	authed := r.Group("/", middleware.JWT(h.AuthService))

	faculty := authed.Group("/faculty", middleware.RequireRoles(models.RoleFaculty))
	{
		faculty.POST("/classes", h.Class.Create)
		faculty.GET("/classes", h.Class.ListMine)
		faculty.DELETE("/classes/:id", h.Class.Delete)
		faculty.GET("/classes/:id/students", h.Class.Roster)
		faculty.POST("/classes/:id/sessions", h.Session.Start)
		faculty.PUT("/classes/:id/sessions/:sid/end", h.Session.End)
		faculty.GET("/sessions/active", h.Session.ListActive)
		if h.ReportEnabled {
			faculty.GET("/sessions/:id/report.pdf", h.Report.SessionPDF)
			faculty.GET("/sessions/:id/report-link", h.Report.SessionPDFLink)
		}
	}

	if h.ReportEnabled {
		r.GET("/downloads/:token", h.Report.Download)
	}

	student := authed.Group("/student", middleware.RequireRoles(models.RoleStudent))
	{
		student.POST("/classes/join", h.Class.Join)
		student.GET("/classes", h.Class.ListEnrolled)
		student.GET("/classes/:id/attendance", h.Attendance.History)
		student.GET("/attendance/summary", h.Attendance.Summary)
	}

	authed.GET("/classes/:id/active-session", h.Session.Active)
	authed.GET("/classes/:id/sessions", h.Session.ByDate)
	authed.GET("/sessions/:id/attendance", h.Attendance.Snapshot)
	authed.POST("/sessions/:id/attendance", middleware.RequireRoles(models.RoleFaculty), h.Attendance.Mark)
	authed.POST("/attendance/submit-code", middleware.RequireRoles(models.RoleStudent), h.Attendance.SubmitCode)

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.PUT("/:id/read", h.Notification.MarkRead)
		notifications.PUT("/read-all", h.Notification.MarkAllRead)
	}
}
