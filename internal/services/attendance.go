package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/FelipeVergaraChico/ping-presenca/internal/code"
	"github.com/FelipeVergaraChico/ping-presenca/internal/models"
	"github.com/FelipeVergaraChico/ping-presenca/internal/registry"
	"github.com/FelipeVergaraChico/ping-presenca/internal/ws"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSessionNotFound covers both a missing session and one the caller does
// not own; the two are indistinguishable on purpose.
var ErrSessionNotFound = errors.New("session not found")

// Check-in verdict reasons, reported to the caller as-is.
const (
	ReasonNoActiveSession = "no_active_session"
	ReasonCodeExpired     = "code_expired"
	ReasonInvalidCode     = "invalid_code"
	ReasonNotEnrolled     = "not_enrolled"
	ReasonAlreadyMarked   = "already_marked"
)

// AttendanceService drives the verification-code lifecycle for class sessions.
// The registry owns the live code; this service owns everything durable around
// it: the session rows, the attendance records and the websocket feed.
type AttendanceService struct {
	db      *gorm.DB
	reg     *registry.Registry
	hub     *ws.Hub
	courses *CourseService
	baseURL string
}

func NewAttendanceService(db *gorm.DB, hub *ws.Hub, courses *CourseService, window time.Duration, baseURL string) *AttendanceService {
	s := &AttendanceService{
		db:      db,
		hub:     hub,
		courses: courses,
		baseURL: baseURL,
	}
	s.reg = registry.New(registry.Config{
		Window:       window,
		OnTransition: s.onTransition,
	})
	return s
}

// Close stops the expiry scheduler.
func (s *AttendanceService) Close() {
	s.reg.Close()
}

// Restore reconciles the registry with the database after a restart. Sessions
// left active by a crash are expired in place (their code died with the
// process) while keeping the generation counter, so later sessions never
// reuse one. Sessions still inactive are re-registered and can be started.
func (s *AttendanceService) Restore() {
	res := s.db.Model(&models.Session{}).
		Where("state = ?", models.SessionStateActive).
		Update("state", models.SessionStateExpired)
	if res.RowsAffected > 0 {
		log.Printf("attendance: expired %d dangling active sessions", res.RowsAffected)
	}

	var rows []models.Session
	s.db.Where("state = ?", models.SessionStateInactive).Find(&rows)
	for _, row := range rows {
		if err := s.reg.Open(row.ID, row.Generation); err != nil {
			log.Printf("attendance: restore session %d: %v", row.ID, err)
		}
	}
}

// CreateSession opens a new attendance window for a class meeting. No code is
// issued yet; the session starts inactive.
func (s *AttendanceService) CreateSession(courseID, professorID uint, startsAt time.Time) (*models.Session, error) {
	if _, err := s.courses.GetCourse(courseID, professorID); err != nil {
		return nil, err
	}
	if startsAt.IsZero() {
		startsAt = time.Now()
	}

	session := models.Session{
		PublicID: uuid.NewString(),
		CourseID: courseID,
		State:    models.SessionStateInactive,
		StartsAt: startsAt,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}

	if err := s.reg.Open(session.ID, session.Generation); err != nil {
		return nil, err
	}
	return &session, nil
}

// IssueCode issues the first verification code for the session (or a fresh one
// if it is already active) and arms the expiry timer.
func (s *AttendanceService) IssueCode(sessionID, professorID uint) (*SessionStatus, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	snap, err := s.reg.Issue(session.ID)
	if err != nil {
		return nil, err
	}
	return s.status(session, snap), nil
}

// RotateCode supersedes the current code with a fresh one.
func (s *AttendanceService) RotateCode(sessionID, professorID uint) (*SessionStatus, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	snap, err := s.reg.Rotate(session.ID)
	if err != nil {
		return nil, err
	}
	return s.status(session, snap), nil
}

// StopSession ends the attendance window. Terminal for this meeting; a new
// meeting needs a new session.
func (s *AttendanceService) StopSession(sessionID, professorID uint) (*SessionStatus, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	snap, err := s.reg.Stop(session.ID)
	if err != nil {
		return nil, err
	}
	return s.status(session, snap), nil
}

// SetAutoRotate flips the auto-rotation policy; it takes effect on the next
// expiry.
func (s *AttendanceService) SetAutoRotate(sessionID, professorID uint, enabled bool) error {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return err
	}
	return s.reg.SetAutoRotate(session.ID, enabled)
}

// GetStatus returns the professor view, including the live code and its
// scannable binding link while active.
func (s *AttendanceService) GetStatus(sessionID, professorID uint) (*SessionStatus, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	snap, err := s.reg.Snapshot(session.ID)
	if err != nil {
		return nil, err
	}
	return s.status(session, snap), nil
}

// GetBinding returns the shareable check-in link for the session's current
// code. Regenerated by callers after every rotation since the link embeds the
// code itself.
func (s *AttendanceService) GetBinding(sessionID, professorID uint) (string, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return "", err
	}

	snap, err := s.reg.Snapshot(session.ID)
	if err != nil {
		return "", err
	}
	if snap.State != registry.StateActive {
		return "", registry.ErrNoActiveSession
	}
	return code.Binding(s.baseURL, session.PublicID, snap.Code), nil
}

// GetPublicStatus is the attendee-facing countdown surface: state, expiry and
// generation, never the code. Displays derive the remaining seconds from
// ExpiresAt instead of keeping their own counter.
func (s *AttendanceService) GetPublicStatus(publicID string) (*PublicStatus, error) {
	session, err := s.byPublicID(publicID)
	if err != nil {
		return nil, err
	}

	snap, err := s.reg.Snapshot(session.ID)
	if err != nil {
		// Known row but no registry record: an expired session from a
		// previous process.
		return &PublicStatus{State: session.State, Generation: session.Generation, ExpiresAt: session.ExpiresAt}, nil
	}
	return publicStatus(snap), nil
}

// SubmitCode validates a student's submitted code and, on acceptance, records
// attendance exactly once per (session, student). Rejections come back as
// verdicts, never as silent acceptance.
func (s *AttendanceService) SubmitCode(publicID, submitted string, studentID uint) (*CheckInResult, error) {
	session, err := s.byPublicID(publicID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return &CheckInResult{Reason: ReasonNoActiveSession}, nil
		}
		return nil, err
	}

	if !s.courses.IsEnrolled(session.CourseID, studentID) {
		return &CheckInResult{Reason: ReasonNotEnrolled}, nil
	}

	generation, err := s.reg.Validate(session.ID, submitted)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrCodeExpired):
			return &CheckInResult{Reason: ReasonCodeExpired}, nil
		case errors.Is(err, registry.ErrInvalidCode):
			return &CheckInResult{Reason: ReasonInvalidCode}, nil
		default:
			return &CheckInResult{Reason: ReasonNoActiveSession}, nil
		}
	}

	var existing models.Attendance
	err = s.db.Where("session_id = ? AND student_id = ?", session.ID, studentID).
		First(&existing).Error
	if err == nil {
		return &CheckInResult{Reason: ReasonAlreadyMarked}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}

	record := models.Attendance{
		SessionID:  session.ID,
		StudentID:  studentID,
		Generation: generation,
		MarkedAt:   time.Now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		// The unique index backstops the check above under concurrent
		// submits: a row present now means this student lost the race and
		// is already marked. Anything else is a real failure.
		var raced models.Attendance
		if lookupErr := s.db.Where("session_id = ? AND student_id = ?", session.ID, studentID).
			First(&raced).Error; lookupErr == nil {
			return &CheckInResult{Reason: ReasonAlreadyMarked}, nil
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	return &CheckInResult{Accepted: true}, nil
}

// ListSessions returns every session of the professor's courses, newest first.
func (s *AttendanceService) ListSessions(professorID uint) ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Joins("JOIN courses ON courses.id = sessions.course_id").
		Where("courses.professor_id = ?", professorID).
		Preload("Course").
		Order("sessions.created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionAttendance lists who checked in, for the professor's roster view.
func (s *AttendanceService) SessionAttendance(sessionID, professorID uint) ([]models.Attendance, error) {
	session, err := s.loadOwned(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	var records []models.Attendance
	if err := s.db.Where("session_id = ?", session.ID).
		Preload("Student").
		Order("marked_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// StudentHistory lists a student's accepted check-ins, newest first.
func (s *AttendanceService) StudentHistory(studentID uint) ([]models.Attendance, error) {
	var records []models.Attendance
	if err := s.db.Where("student_id = ?", studentID).
		Order("marked_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ExportCSV renders a session's attendance as CSV for download.
func (s *AttendanceService) ExportCSV(sessionID, professorID uint) ([]byte, error) {
	records, err := s.SessionAttendance(sessionID, professorID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"name", "email", "generation", "marked_at"})
	for _, r := range records {
		w.Write([]string{
			r.Student.Name,
			r.Student.Email,
			fmt.Sprintf("%d", r.Generation),
			r.MarkedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// onTransition runs on every issuance, rotation and stop, whether triggered by
// the professor or by the expiry scheduler. It mirrors the durable fields to
// the session row and pushes a countdown frame to connected displays.
func (s *AttendanceService) onTransition(sessionID uint, snap registry.Snapshot) {
	var session models.Session
	if err := s.db.First(&session, sessionID).Error; err != nil {
		log.Printf("attendance: transition on unknown session %d: %v", sessionID, err)
		return
	}

	updates := map[string]interface{}{
		"state":      string(snap.State),
		"generation": snap.Generation,
	}
	if snap.State == registry.StateActive {
		updates["issued_at"] = snap.IssuedAt
		updates["expires_at"] = snap.ExpiresAt
	}
	if err := s.db.Model(&models.Session{}).Where("id = ?", sessionID).
		Updates(updates).Error; err != nil {
		log.Printf("attendance: persist session %d: %v", sessionID, err)
	}

	event := ws.EventCodeIssued
	if snap.State == registry.StateExpired {
		event = ws.EventSessionExpired
	}
	frame := ws.Frame{
		Event:      event,
		State:      string(snap.State),
		Generation: snap.Generation,
	}
	if snap.State == registry.StateActive {
		expires := snap.ExpiresAt
		frame.ExpiresAt = &expires
	}
	s.hub.Publish(session.PublicID, frame)
}

func (s *AttendanceService) loadOwned(sessionID, professorID uint) (*models.Session, error) {
	var session models.Session
	if err := s.db.Joins("JOIN courses ON courses.id = sessions.course_id").
		Where("sessions.id = ? AND courses.professor_id = ?", sessionID, professorID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	return &session, nil
}

func (s *AttendanceService) byPublicID(publicID string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("public_id = ?", publicID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", publicID, err)
	}
	return &session, nil
}

func (s *AttendanceService) status(session *models.Session, snap registry.Snapshot) *SessionStatus {
	st := &SessionStatus{
		SessionID:  session.ID,
		PublicID:   session.PublicID,
		CourseID:   session.CourseID,
		State:      string(snap.State),
		Generation: snap.Generation,
		AutoRotate: snap.AutoRotate,
	}
	if snap.State == registry.StateActive {
		issued, expires := snap.IssuedAt, snap.ExpiresAt
		st.Code = snap.Code
		st.IssuedAt = &issued
		st.ExpiresAt = &expires
		st.BindingURL = code.Binding(s.baseURL, session.PublicID, snap.Code)
	}
	return st
}

func publicStatus(snap registry.Snapshot) *PublicStatus {
	st := &PublicStatus{
		State:      string(snap.State),
		Generation: snap.Generation,
	}
	if snap.State == registry.StateActive {
		expires := snap.ExpiresAt
		st.ExpiresAt = &expires
	}
	return st
}

// SessionStatus is the professor view of a session, including the live code.
type SessionStatus struct {
	SessionID  uint       `json:"session_id"`
	PublicID   string     `json:"public_id"`
	CourseID   uint       `json:"course_id"`
	State      string     `json:"state"`
	Code       string     `json:"code,omitempty"`
	Generation uint64     `json:"generation"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	AutoRotate bool       `json:"auto_rotate"`
	BindingURL string     `json:"binding_url,omitempty"`
}

// PublicStatus is what attendee displays see: enough to render a countdown,
// never the code.
type PublicStatus struct {
	State      string     `json:"state"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Generation uint64     `json:"generation"`
}

// CheckInResult is the typed verdict for a code submission.
type CheckInResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
