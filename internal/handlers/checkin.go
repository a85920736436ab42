package handlers

import (
	"log"
	"net/http"

	"github.com/FelipeVergaraChico/ping-presenca/internal/services"

	"github.com/gin-gonic/gin"
)

type CheckInHandler struct {
	attendanceService *services.AttendanceService
}

func NewCheckInHandler(attendanceService *services.AttendanceService) *CheckInHandler {
	return &CheckInHandler{attendanceService: attendanceService}
}

type CheckInRequest struct {
	SessionPublicID string `json:"session_public_id" binding:"required,uuid" example:"7b0d1f2e-0f3a-4a63-9f9d-6f3fb0f7a111"`
	Code            string `json:"code" binding:"required,len=6,numeric" example:"042137"`
}

// CheckIn godoc
// @Summary      Submit a verification code
// @Description  Validate the code against the session's current one and record attendance on acceptance
// @Tags         checkin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CheckInRequest true "Submission"
// @Success      200 {object} services.CheckInResult
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /api/v1/checkin [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	studentID := c.GetUint("user_id")

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.attendanceService.SubmitCode(req.SessionPublicID, req.Code, studentID)
	if err != nil {
		log.Printf("checkin: submit for session %s: %v", req.SessionPublicID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to record attendance"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// History godoc
// @Summary      List the student's check-in history
// @Tags         checkin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Attendance
// @Router       /api/v1/checkin/history [get]
func (h *CheckInHandler) History(c *gin.Context) {
	studentID := c.GetUint("user_id")

	records, err := h.attendanceService.StudentHistory(studentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}
