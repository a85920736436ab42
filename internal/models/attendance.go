package models

import "time"

// Attendance is one accepted check-in. A student is credited at most once per
// session; the generation records which code was live when they checked in.
type Attendance struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  uint      `gorm:"not null;uniqueIndex:idx_session_student" json:"session_id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_session_student" json:"student_id"`
	Student    User      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Generation uint64    `gorm:"not null" json:"generation"`
	MarkedAt   time.Time `json:"marked_at"`
}
