package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	"github.com/Achyut-shekhar/Attendx/internal/service"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
	"github.com/Achyut-shekhar/Attendx/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance service.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

type markRequest struct {
	StudentID string                  `json:"student_id" binding:"required"`
	Status    models.AttendanceStatus `json:"status" binding:"required"`
}

// Mark godoc
// @Summary Mark attendance
// @Description Write a student's status in a session (faculty)
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body markRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session id"))
		return
	}

	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mark payload"))
		return
	}

	record, err := h.service.Mark(c.Request.Context(), claims.UserID, sessionID, req.StudentID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Snapshot godoc
// @Summary Session attendance
// @Description The authoritative attendance records for a session
// @Tags Attendance
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session id"))
		return
	}

	records, err := h.service.Snapshot(c.Request.Context(), claims.UserID, claims.Role, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// SubmitCode godoc
// @Summary Submit attendance code
// @Description Mark the calling student by code; geofenced sessions decide by distance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.CodeSubmission true "Submission payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/submit-code [post]
func (h *AttendanceHandler) SubmitCode(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CodeSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	verdict, err := h.service.SubmitCode(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, verdict, nil)
}

// History godoc
// @Summary Attendance history
// @Description The calling student's marks within one class
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /student/classes/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	records, err := h.service.History(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// Summary godoc
// @Summary Attendance summary
// @Description The calling student's counts across all sessions
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
