package models

import "time"

// Session is one class meeting's attendance window. The live verification code
// is held only in the in-memory registry; the row mirrors the durable fields so
// the generation counter and lifecycle state survive a restart.
type Session struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	PublicID   string     `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	CourseID   uint       `gorm:"not null;index" json:"course_id"`
	Course     Course     `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	State      string     `gorm:"size:20;not null;default:'inactive'" json:"state"`
	Generation uint64     `gorm:"not null;default:0" json:"generation"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	StartsAt   time.Time  `json:"starts_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	SessionStateInactive = "inactive"
	SessionStateActive   = "active"
	SessionStateExpired  = "expired"
)
