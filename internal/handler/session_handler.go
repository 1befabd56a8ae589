package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	"github.com/Achyut-shekhar/Attendx/internal/service"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
	"github.com/Achyut-shekhar/Attendx/pkg/response"
)

// SessionHandler wires HTTP endpoints to the session service.
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Start godoc
// @Summary Start attendance session
// @Description Open a session for a class, optionally with a geofence
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.StartSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /faculty/classes/{id}/sessions [post]
func (h *SessionHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.service.Start(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// End godoc
// @Summary End attendance session
// @Description Close a session and mark unmarked students absent
// @Tags Sessions
// @Produce json
// @Param id path string true "Class ID"
// @Param sid path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /faculty/classes/{id}/sessions/{sid}/end [put]
func (h *SessionHandler) End(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("sid"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session id"))
		return
	}

	absent, err := h.service.End(c.Request.Context(), claims.UserID, c.Param("id"), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"session_id": sessionID, "marked_absent": absent}, nil)
}

// Active godoc
// @Summary Active session
// @Description Return the class's currently open session
// @Tags Sessions
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/active-session [get]
func (h *SessionHandler) Active(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.service.Active(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// ListActive godoc
// @Summary List open sessions
// @Description All ACTIVE sessions across the faculty member's classes
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculty/sessions/active [get]
func (h *SessionHandler) ListActive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.service.ListActiveByFaculty(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// ByDate godoc
// @Summary Sessions on a day
// @Description A class's sessions started on the given date (YYYY-MM-DD, UTC)
// @Tags Sessions
// @Produce json
// @Param id path string true "Class ID"
// @Param date query string true "Date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/sessions [get]
func (h *SessionHandler) ByDate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	sessions, err := h.service.ByClassAndDate(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}
