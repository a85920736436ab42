package registry

import "errors"

// Verdicts and failures surfaced by the registry. Callers match with
// errors.Is; none of these is fatal and a failure on one session never
// affects another session's record or timers.
var (
	// ErrAlreadyActive is returned by Open when the session is already
	// registered, whatever its state.
	ErrAlreadyActive = errors.New("session already active")

	// ErrNoActiveSession is returned when an operation needs a live session
	// and the session is unknown, inactive or expired.
	ErrNoActiveSession = errors.New("no active session")

	// ErrCodeExpired is returned by Validate when the window has elapsed but
	// the scheduler has not yet processed the expiry.
	ErrCodeExpired = errors.New("code expired")

	// ErrInvalidCode is returned by Validate on a code mismatch.
	ErrInvalidCode = errors.New("invalid code")
)
