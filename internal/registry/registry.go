package registry

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/FelipeVergaraChico/ping-presenca/internal/code"
)

// State of a session's attendance window.
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
	StateExpired  State = "expired"
)

// Snapshot is a consistent view of one session's record. Code is empty unless
// the session is active.
type Snapshot struct {
	State      State
	Code       string
	Generation uint64
	IssuedAt   time.Time
	ExpiresAt  time.Time
	AutoRotate bool
}

// TransitionFunc observes every issuance, rotation and stop, including the
// scheduler-driven ones. It runs with the session's record locked, so it must
// not call back into the registry.
type TransitionFunc func(sessionID uint, snap Snapshot)

// Config for a Registry. Window is the code validity duration; zero means
// DefaultWindow. Generate and Clock default to code.Generate and time.Now and
// exist for tests.
type Config struct {
	Window       time.Duration
	Generate     func() (string, error)
	Clock        func() time.Time
	OnTransition TransitionFunc
}

// DefaultWindow is how long a verification code stays valid.
const DefaultWindow = 30 * time.Second

// Registry owns the authoritative in-memory state of every session's
// verification code. All mutation goes through it; a per-session lock
// serializes writers while validations read a consistent snapshot. Sessions
// are independent: there is no lock shared across them beyond the lookup map.
type Registry struct {
	window   time.Duration
	generate func() (string, error)
	now      func() time.Time
	notify   TransitionFunc

	mu       sync.RWMutex
	sessions map[uint]*record

	sched *scheduler
}

type record struct {
	mu         sync.RWMutex
	state      State
	code       string
	generation uint64
	issuedAt   time.Time
	expiresAt  time.Time
	autoRotate bool
}

func New(cfg Config) *Registry {
	r := &Registry{
		window:   cfg.Window,
		generate: cfg.Generate,
		now:      cfg.Clock,
		notify:   cfg.OnTransition,
		sessions: make(map[uint]*record),
	}
	if r.window <= 0 {
		r.window = DefaultWindow
	}
	if r.generate == nil {
		r.generate = code.Generate
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.sched = newScheduler(r.expire, r.now)
	return r
}

// Close stops the expiry scheduler. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.sched.stop()
}

// Open registers a session in the inactive state, seeding the generation
// counter (non-zero after a restart so issuances never reuse a generation).
// No code is issued yet.
func (r *Registry) Open(sessionID uint, generation uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return ErrAlreadyActive
	}
	r.sessions[sessionID] = &record{state: StateInactive, generation: generation}
	return nil
}

// Issue generates a fresh code for the session, bumps the generation and arms
// the expiry timer. Valid on an inactive session (first issuance) or an active
// one (equivalent to Rotate).
func (r *Registry) Issue(sessionID uint) (Snapshot, error) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return Snapshot{}, ErrNoActiveSession
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state == StateExpired {
		return Snapshot{}, ErrNoActiveSession
	}
	return r.issueLocked(sessionID, rec)
}

// Rotate supersedes the current code with a fresh one. Only callable while
// active; used for the manual "new code" action and by the scheduler.
func (r *Registry) Rotate(sessionID uint) (Snapshot, error) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return Snapshot{}, ErrNoActiveSession
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state != StateActive {
		return Snapshot{}, ErrNoActiveSession
	}
	return r.issueLocked(sessionID, rec)
}

// Stop ends the session's attendance window: the code is cleared, the state
// becomes expired and pending timers are cancelled. Terminal for this session.
func (r *Registry) Stop(sessionID uint) (Snapshot, error) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return Snapshot{}, ErrNoActiveSession
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state != StateActive {
		return Snapshot{}, ErrNoActiveSession
	}
	return r.stopLocked(sessionID, rec), nil
}

// SetAutoRotate flips the rotation policy. Takes effect at the next expiry.
func (r *Registry) SetAutoRotate(sessionID uint, enabled bool) error {
	rec := r.lookup(sessionID)
	if rec == nil {
		return ErrNoActiveSession
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state == StateExpired {
		return ErrNoActiveSession
	}
	rec.autoRotate = enabled
	return nil
}

// Snapshot returns a consistent view of the session's record.
func (r *Registry) Snapshot(sessionID uint) (Snapshot, error) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return Snapshot{}, ErrNoActiveSession
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.snapshotLocked(), nil
}

// Validate checks a submitted code against the currently live one. On success
// it returns the generation the code belonged to, which callers use as part of
// the attendance dedup key. The expiry check here covers the narrow race where
// the window has elapsed but the scheduler has not fired yet.
func (r *Registry) Validate(sessionID uint, submitted string) (uint64, error) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return 0, ErrNoActiveSession
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	if rec.state != StateActive {
		return 0, ErrNoActiveSession
	}
	if r.now().After(rec.expiresAt) {
		return 0, ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(rec.code)) != 1 {
		return 0, ErrInvalidCode
	}
	return rec.generation, nil
}

func (r *Registry) lookup(sessionID uint) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// issueLocked performs the shared issuance path for Issue, Rotate and
// auto-rotation. Caller holds rec.mu.
func (r *Registry) issueLocked(sessionID uint, rec *record) (Snapshot, error) {
	c, err := r.generate()
	if err != nil {
		return Snapshot{}, err
	}

	now := r.now()
	rec.state = StateActive
	rec.code = c
	rec.generation++
	rec.issuedAt = now
	rec.expiresAt = now.Add(r.window)

	r.sched.arm(sessionID, rec.generation, rec.expiresAt)

	snap := rec.snapshotLocked()
	if r.notify != nil {
		r.notify(sessionID, snap)
	}
	return snap, nil
}

func (r *Registry) stopLocked(sessionID uint, rec *record) Snapshot {
	rec.state = StateExpired
	rec.code = ""
	r.sched.cancel(sessionID)

	snap := rec.snapshotLocked()
	if r.notify != nil {
		r.notify(sessionID, snap)
	}
	return snap
}

// expire is the scheduler callback for an armed (sessionID, generation) pair.
// The generation re-check under the record lock is what makes a timer racing a
// manual rotation or stop a harmless no-op: whichever side wins the lock
// supersedes the other.
func (r *Registry) expire(sessionID uint, generation uint64) {
	rec := r.lookup(sessionID)
	if rec == nil {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state != StateActive || rec.generation != generation {
		// Stale timer; already rotated or stopped.
		return
	}

	if rec.autoRotate {
		if _, err := r.issueLocked(sessionID, rec); err == nil {
			return
		}
		// Generator failure: fall through and close the window rather than
		// leaving an expired code live.
	}
	r.stopLocked(sessionID, rec)
}

func (rec *record) snapshotLocked() Snapshot {
	return Snapshot{
		State:      rec.state,
		Code:       rec.code,
		Generation: rec.generation,
		IssuedAt:   rec.issuedAt,
		ExpiresAt:  rec.expiresAt,
		AutoRotate: rec.autoRotate,
	}
}
