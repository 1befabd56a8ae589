package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Achyut-shekhar/Attendx/internal/service"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
	"github.com/Achyut-shekhar/Attendx/pkg/response"
)

// ReportHandler serves the PDF session report.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// SessionPDF godoc
// @Summary Session report
// @Description Download a session's attendance sheet as PDF
// @Tags Reports
// @Produce application/pdf
// @Param id path int true "Session ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculty/sessions/{id}/report.pdf [get]
func (h *ReportHandler) SessionPDF(c *gin.Context) {
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

	payload, filename, err := h.service.SessionPDF(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// SessionPDFLink godoc
// @Summary Shareable session report link
// @Description Archive the session report and return an expiring download URL
// @Tags Reports
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculty/sessions/{id}/report-link [get]
func (h *ReportHandler) SessionPDFLink(c *gin.Context) {
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

	token, expiresAt, err := h.service.SessionPDFLink(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/downloads/" + token,
		"expires_at": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download an archived report
// @Description Stream a previously archived report using a signed token
// @Tags Reports
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	payload, filename, err := h.service.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
