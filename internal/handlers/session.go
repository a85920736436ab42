package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/FelipeVergaraChico/ping-presenca/internal/registry"
	"github.com/FelipeVergaraChico/ping-presenca/internal/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	attendanceService *services.AttendanceService
}

func NewSessionHandler(attendanceService *services.AttendanceService) *SessionHandler {
	return &SessionHandler{attendanceService: attendanceService}
}

type CreateSessionRequest struct {
	StartsAt *time.Time `json:"starts_at,omitempty" example:"2026-08-29T19:00:00Z"`
}

type AutoRotateRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

type BindingResponse struct {
	URL string `json:"url"`
}

// respondSessionError maps service failures onto responses without exposing
// storage internals to the client.
func respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, registry.ErrNoActiveSession), errors.Is(err, registry.ErrAlreadyActive):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		log.Printf("sessions: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// CreateSession godoc
// @Summary      Create a class session
// @Description  Open an attendance window for a class meeting. No code is issued yet.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Course ID"
// @Param        request body CreateSessionRequest false "Session data"
// @Success      201 {object} models.Session
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/courses/{id}/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	professorID := c.GetUint("user_id")
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid course id"})
		return
	}

	// An empty body means "start now"; only a malformed one is rejected.
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var startsAt time.Time
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}

	session, err := h.attendanceService.CreateSession(uint(courseID), professorID, startsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions godoc
// @Summary      List sessions
// @Description  All sessions across the professor's courses, newest first
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Session
// @Router       /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	professorID := c.GetUint("user_id")

	sessions, err := h.attendanceService.ListSessions(professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// IssueCode godoc
// @Summary      Issue a verification code
// @Description  Generate the session's code and arm its expiry window
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} services.SessionStatus
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/code [post]
func (h *SessionHandler) IssueCode(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	status, err := h.attendanceService.IssueCode(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// RotateCode godoc
// @Summary      Rotate the verification code
// @Description  Supersede the current code with a fresh one; the previous code stops validating immediately
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} services.SessionStatus
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/rotate [post]
func (h *SessionHandler) RotateCode(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	status, err := h.attendanceService.RotateCode(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// StopSession godoc
// @Summary      Stop the session
// @Description  Close the attendance window; further submissions are rejected
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} services.SessionStatus
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/stop [post]
func (h *SessionHandler) StopSession(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	status, err := h.attendanceService.StopSession(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// SetAutoRotate godoc
// @Summary      Toggle auto-rotation
// @Description  When enabled, an expiring code is replaced instead of ending the session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Param        request body AutoRotateRequest true "Policy"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/auto-rotate [put]
func (h *SessionHandler) SetAutoRotate(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	var req AutoRotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.attendanceService.SetAutoRotate(uint(sessionID), professorID, *req.Enabled); err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "auto-rotate updated"})
}

// GetStatus godoc
// @Summary      Get session status
// @Description  Professor view with the live code and binding link while active
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} services.SessionStatus
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetStatus(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	status, err := h.attendanceService.GetStatus(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetBinding godoc
// @Summary      Get the scannable check-in link
// @Description  The QR payload embedding the current code; regenerate after every rotation
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} BindingResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/binding [get]
func (h *SessionHandler) GetBinding(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	url, err := h.attendanceService.GetBinding(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, BindingResponse{URL: url})
}

// GetAttendance godoc
// @Summary      List session attendance
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {array} models.Attendance
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/attendance [get]
func (h *SessionHandler) GetAttendance(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	records, err := h.attendanceService.SessionAttendance(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ExportAttendance godoc
// @Summary      Export session attendance as CSV
// @Tags         sessions
// @Produce      text/csv
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {string} string "CSV payload"
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/export [get]
func (h *SessionHandler) ExportAttendance(c *gin.Context) {
	professorID := c.GetUint("user_id")
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		return
	}

	payload, err := h.attendanceService.ExportCSV(uint(sessionID), professorID)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	filename := fmt.Sprintf("attendance-session-%d.csv", sessionID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", payload)
}

// GetPublicStatus godoc
// @Summary      Get countdown status
// @Description  Read-only state, expiry and generation for display layers; never includes the code
// @Tags         sessions
// @Produce      json
// @Param        public_id path string true "Session public ID"
// @Success      200 {object} services.PublicStatus
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/public/sessions/{public_id} [get]
func (h *SessionHandler) GetPublicStatus(c *gin.Context) {
	status, err := h.attendanceService.GetPublicStatus(c.Param("public_id"))
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
