package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fired []entry
}

func (f *fireRecorder) fire(sessionID uint, generation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, entry{sessionID: sessionID, generation: generation})
}

func (f *fireRecorder) snapshot() []entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entry(nil), f.fired...)
}

func TestSchedulerFiresDueEntries(t *testing.T) {
	rec := &fireRecorder{}
	s := newScheduler(rec.fire, time.Now)
	defer s.stop()

	now := time.Now()
	s.arm(1, 1, now.Add(20*time.Millisecond))
	s.arm(2, 1, now.Add(40*time.Millisecond))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	fired := rec.snapshot()
	assert.Equal(t, uint(1), fired[0].sessionID)
	assert.Equal(t, uint(2), fired[1].sessionID)
}

func TestSchedulerCancelDropsSessionEntries(t *testing.T) {
	rec := &fireRecorder{}
	s := newScheduler(rec.fire, time.Now)
	defer s.stop()

	now := time.Now()
	s.arm(1, 1, now.Add(30*time.Millisecond))
	s.arm(2, 1, now.Add(30*time.Millisecond))
	s.cancel(1)

	time.Sleep(80 * time.Millisecond)
	fired := rec.snapshot()
	require.Len(t, fired, 1)
	assert.Equal(t, uint(2), fired[0].sessionID)
}

func TestSchedulerRearmsFromFireCallback(t *testing.T) {
	// Auto-rotation arms the next generation from inside the expiry of the
	// previous one; the loop must not deadlock on that.
	var mu sync.Mutex
	count := 0

	var s *scheduler
	s = newScheduler(func(sessionID uint, generation uint64) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n < 3 {
			s.arm(sessionID, generation+1, time.Now().Add(10*time.Millisecond))
		}
	}, time.Now)
	defer s.stop()

	s.arm(1, 1, time.Now().Add(10*time.Millisecond))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerIdleUntilArmed(t *testing.T) {
	rec := &fireRecorder{}
	s := newScheduler(rec.fire, time.Now)
	defer s.stop()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	s.arm(1, 1, time.Now().Add(10*time.Millisecond))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}
