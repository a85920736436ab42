package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestOpenAndIssue(t *testing.T) {
	clock := newFakeClock()
	r := New(Config{Window: 30 * time.Second, Clock: clock.Now})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.ErrorIs(t, r.Open(1, 0), ErrAlreadyActive)

	snap, err := r.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, StateInactive, snap.State)
	assert.Empty(t, snap.Code)

	snap, err = r.Issue(1)
	require.NoError(t, err)
	assert.Equal(t, StateActive, snap.State)
	assert.Len(t, snap.Code, 6)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, clock.Now(), snap.IssuedAt)
	assert.Equal(t, clock.Now().Add(30*time.Second), snap.ExpiresAt)
}

func TestIssueSeedsGeneration(t *testing.T) {
	r := New(Config{Window: 30 * time.Second})
	defer r.Close()

	// A restart restores the durable counter; issuances continue from it.
	require.NoError(t, r.Open(1, 7))
	snap, err := r.Issue(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), snap.Generation)
}

func TestCodePresentOnlyWhileActive(t *testing.T) {
	r := New(Config{Window: 30 * time.Second})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))

	snap, _ := r.Snapshot(1)
	assert.Empty(t, snap.Code)

	snap, err := r.Issue(1)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Code)

	snap, err = r.Stop(1)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, snap.State)
	assert.Empty(t, snap.Code)
}

func TestRotateRequiresActive(t *testing.T) {
	r := New(Config{Window: 30 * time.Second})
	defer r.Close()

	_, err := r.Rotate(99)
	require.ErrorIs(t, err, ErrNoActiveSession)

	require.NoError(t, r.Open(1, 0))
	_, err = r.Rotate(1)
	require.ErrorIs(t, err, ErrNoActiveSession)

	first, err := r.Issue(1)
	require.NoError(t, err)

	second, err := r.Rotate(1)
	require.NoError(t, err)
	assert.Equal(t, first.Generation+1, second.Generation)
	assert.Equal(t, StateActive, second.State)
}

func TestStopIsTerminal(t *testing.T) {
	r := New(Config{Window: 30 * time.Second})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	_, err := r.Stop(1)
	require.ErrorIs(t, err, ErrNoActiveSession)

	_, err = r.Issue(1)
	require.NoError(t, err)
	_, err = r.Stop(1)
	require.NoError(t, err)

	_, err = r.Stop(1)
	require.ErrorIs(t, err, ErrNoActiveSession)
	_, err = r.Issue(1)
	require.ErrorIs(t, err, ErrNoActiveSession)
	_, err = r.Rotate(1)
	require.ErrorIs(t, err, ErrNoActiveSession)
	require.ErrorIs(t, r.SetAutoRotate(1, true), ErrNoActiveSession)
}

func TestValidate(t *testing.T) {
	clock := newFakeClock()
	r := New(Config{Window: 30 * time.Second, Clock: clock.Now})
	defer r.Close()

	_, err := r.Validate(99, "123456")
	require.ErrorIs(t, err, ErrNoActiveSession)

	require.NoError(t, r.Open(1, 0))
	_, err = r.Validate(1, "123456")
	require.ErrorIs(t, err, ErrNoActiveSession)

	snap, err := r.Issue(1)
	require.NoError(t, err)

	gen, err := r.Validate(1, snap.Code)
	require.NoError(t, err)
	assert.Equal(t, snap.Generation, gen)

	wrong := "000000"
	if snap.Code == wrong {
		wrong = "000001"
	}
	_, err = r.Validate(1, wrong)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestValidateRejectsAfterWindowBeforeSchedulerFires(t *testing.T) {
	clock := newFakeClock()
	r := New(Config{Window: 30 * time.Second, Clock: clock.Now})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	snap, err := r.Issue(1)
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	_, err = r.Validate(1, snap.Code)
	require.NoError(t, err)

	// Window elapsed; the scheduler has not processed the expiry yet, but
	// the code must already be dead.
	clock.Advance(2 * time.Second)
	_, err = r.Validate(1, snap.Code)
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestRotationInvalidatesPreviousCode(t *testing.T) {
	r := New(Config{Window: 30 * time.Second})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	first, err := r.Issue(1)
	require.NoError(t, err)

	second, err := r.Rotate(1)
	require.NoError(t, err)

	if first.Code != second.Code {
		_, err = r.Validate(1, first.Code)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	gen, err := r.Validate(1, second.Code)
	require.NoError(t, err)
	assert.Equal(t, second.Generation, gen)
}

func TestAutoRotateKeepsSessionActive(t *testing.T) {
	r := New(Config{Window: 40 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.NoError(t, r.SetAutoRotate(1, true))

	first, err := r.Issue(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Generation)

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(1)
		return err == nil && snap.Generation >= 2
	}, time.Second, 5*time.Millisecond)

	snap, err := r.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, StateActive, snap.State)
	assert.NotEmpty(t, snap.Code)
}

func TestExpiryWithoutAutoRotateStopsSession(t *testing.T) {
	r := New(Config{Window: 40 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	_, err := r.Issue(1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(1)
		return err == nil && snap.State == StateExpired
	}, time.Second, 5*time.Millisecond)

	snap, _ := r.Snapshot(1)
	assert.Empty(t, snap.Code)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestDisablingAutoRotateTakesEffectOnNextExpiry(t *testing.T) {
	r := New(Config{Window: 40 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.NoError(t, r.SetAutoRotate(1, true))
	_, err := r.Issue(1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(1)
		return err == nil && snap.Generation >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.SetAutoRotate(1, false))

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(1)
		return err == nil && snap.State == StateExpired
	}, time.Second, 5*time.Millisecond)
}

func TestStopCancelsPendingExpiry(t *testing.T) {
	r := New(Config{Window: 40 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.NoError(t, r.SetAutoRotate(1, true))
	snap, err := r.Issue(1)
	require.NoError(t, err)

	_, err = r.Stop(1)
	require.NoError(t, err)

	// The armed timer must not resurrect the session.
	time.Sleep(120 * time.Millisecond)
	after, err := r.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, after.State)
	assert.Equal(t, snap.Generation, after.Generation)
}

func TestConcurrentRotationAndExpiry(t *testing.T) {
	var mu sync.Mutex
	var generations []uint64

	r := New(Config{
		Window: 30 * time.Millisecond,
		OnTransition: func(_ uint, snap Snapshot) {
			if snap.State == StateActive {
				mu.Lock()
				generations = append(generations, snap.Generation)
				mu.Unlock()
			}
		},
	})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.NoError(t, r.SetAutoRotate(1, true))
	_, err := r.Issue(1)
	require.NoError(t, err)

	// Hammer manual rotations while the scheduler expires windows. However
	// the races land, every issuance must get its own generation.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				r.Rotate(1)
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	_, err = r.Stop(1)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, generations)
	for i := 1; i < len(generations); i++ {
		assert.Equal(t, generations[i-1]+1, generations[i],
			"issuances must be totally ordered with no gaps or duplicates")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	r := New(Config{Window: 40 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	require.NoError(t, r.Open(2, 0))
	require.NoError(t, r.SetAutoRotate(2, true))

	_, err := r.Issue(1)
	require.NoError(t, err)
	_, err = r.Issue(2)
	require.NoError(t, err)

	_, err = r.Stop(1)
	require.NoError(t, err)

	// Session 2 keeps rotating after session 1 ended.
	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(2)
		return err == nil && snap.State == StateActive && snap.Generation >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestTransitionsAreObserved(t *testing.T) {
	var mu sync.Mutex
	var states []State

	r := New(Config{
		Window: 30 * time.Second,
		OnTransition: func(_ uint, snap Snapshot) {
			mu.Lock()
			states = append(states, snap.State)
			mu.Unlock()
		},
	})
	defer r.Close()

	require.NoError(t, r.Open(1, 0))
	_, err := r.Issue(1)
	require.NoError(t, err)
	_, err = r.Rotate(1)
	require.NoError(t, err)
	_, err = r.Stop(1)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateActive, StateActive, StateExpired}, states)
}
