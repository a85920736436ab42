package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FelipeVergaraChico/ping-presenca/internal/models"

	"gorm.io/gorm"
)

type CourseService struct {
	db *gorm.DB
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db}
}

func (s *CourseService) CreateCourse(professorID uint, name, courseCode string) (*models.Course, error) {
	courseCode = strings.ToUpper(strings.TrimSpace(courseCode))
	if courseCode == "" || name == "" {
		return nil, errors.New("name and code are required")
	}

	var existing models.Course
	if err := s.db.Where("code = ?", courseCode).First(&existing).Error; err == nil {
		return nil, errors.New("course code already taken")
	}

	course := models.Course{
		ProfessorID: professorID,
		Name:        name,
		Code:        courseCode,
	}
	if err := s.db.Create(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *CourseService) ListCourses(professorID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := s.db.Where("professor_id = ?", professorID).
		Order("created_at DESC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (s *CourseService) ListEnrolled(studentID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := s.db.Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.student_id = ?", studentID).
		Order("courses.created_at DESC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (s *CourseService) GetCourse(courseID, professorID uint) (*models.Course, error) {
	var course models.Course
	if err := s.db.Where("id = ? AND professor_id = ?", courseID, professorID).
		First(&course).Error; err != nil {
		return nil, errors.New("course not found")
	}
	return &course, nil
}

// JoinCourse enrolls a student by the course's short human code (e.g. WEB101).
// Re-joining is a no-op and returns the existing enrollment.
func (s *CourseService) JoinCourse(studentID uint, courseCode string) (*EnrollResult, error) {
	courseCode = strings.ToUpper(strings.TrimSpace(courseCode))

	var course models.Course
	if err := s.db.Where("code = ?", courseCode).First(&course).Error; err != nil {
		return nil, errors.New("course not found")
	}

	var existing models.Enrollment
	if err := s.db.Where("course_id = ? AND student_id = ?", course.ID, studentID).
		First(&existing).Error; err == nil {
		return &EnrollResult{Course: course, Enrollment: existing, IsRejoin: true}, nil
	}

	enrollment := models.Enrollment{
		CourseID:  course.ID,
		StudentID: studentID,
		JoinedAt:  time.Now(),
	}
	if err := s.db.Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to join course: %w", err)
	}

	return &EnrollResult{Course: course, Enrollment: enrollment}, nil
}

func (s *CourseService) ListStudents(courseID, professorID uint) ([]models.User, error) {
	if _, err := s.GetCourse(courseID, professorID); err != nil {
		return nil, err
	}

	var students []models.User
	if err := s.db.Joins("JOIN enrollments ON enrollments.student_id = users.id").
		Where("enrollments.course_id = ?", courseID).
		Order("users.name ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (s *CourseService) IsEnrolled(courseID, studentID uint) bool {
	var count int64
	s.db.Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count)
	return count > 0
}

type EnrollResult struct {
	Course     models.Course     `json:"course"`
	Enrollment models.Enrollment `json:"enrollment"`
	IsRejoin   bool              `json:"is_rejoin"`
}
