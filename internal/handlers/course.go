package handlers

import (
	"net/http"
	"strconv"

	"github.com/FelipeVergaraChico/ping-presenca/internal/services"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	courseService *services.CourseService
}

func NewCourseHandler(courseService *services.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

type CreateCourseRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255" example:"Programação Web"`
	Code string `json:"code" binding:"required,min=3,max=10" example:"WEB101"`
}

type JoinCourseRequest struct {
	Code string `json:"code" binding:"required" example:"WEB101"`
}

// CreateCourse godoc
// @Summary      Create a course
// @Description  Register a course with its short enrollment code
// @Tags         courses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateCourseRequest true "Course data"
// @Success      201 {object} models.Course
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	professorID := c.GetUint("user_id")

	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	course, err := h.courseService.CreateCourse(professorID, req.Name, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, course)
}

// ListCourses godoc
// @Summary      List courses
// @Description  Professors see their own courses, students the ones they joined
// @Tags         courses
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.Course
// @Router       /api/v1/courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	userID := c.GetUint("user_id")

	var courses interface{}
	var err error
	if c.GetString("role") == "professor" {
		courses, err = h.courseService.ListCourses(userID)
	} else {
		courses, err = h.courseService.ListEnrolled(userID)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, courses)
}

// JoinCourse godoc
// @Summary      Join a course
// @Description  Enroll the authenticated student using the course code
// @Tags         courses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body JoinCourseRequest true "Course code"
// @Success      200 {object} services.EnrollResult
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/courses/join [post]
func (h *CourseHandler) JoinCourse(c *gin.Context) {
	studentID := c.GetUint("user_id")

	var req JoinCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.courseService.JoinCourse(studentID, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListStudents godoc
// @Summary      List enrolled students
// @Tags         courses
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Course ID"
// @Success      200 {array} models.User
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/courses/{id}/students [get]
func (h *CourseHandler) ListStudents(c *gin.Context) {
	professorID := c.GetUint("user_id")
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid course id"})
		return
	}

	students, err := h.courseService.ListStudents(uint(courseID), professorID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, students)
}
