package models

import "time"

type Course struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ProfessorID uint         `gorm:"not null;index" json:"professor_id"`
	Professor   User         `gorm:"foreignKey:ProfessorID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Code        string       `gorm:"size:10;uniqueIndex;not null" json:"code"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID" json:"enrollments,omitempty"`
	Sessions    []Session    `gorm:"foreignKey:CourseID" json:"sessions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_course_student" json:"course_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_course_student" json:"student_id"`
	Student   User      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}
