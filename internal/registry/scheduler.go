package registry

import (
	"container/heap"
	"sync"
	"time"
)

// idleWait bounds the sleep while no entry is armed.
const idleWait = time.Hour

type entry struct {
	at         time.Time
	sessionID  uint
	generation uint64
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// scheduler runs a single loop for the whole process. Entries are one-shot and
// keyed by (sessionID, generation); an entry whose generation has been
// superseded is dropped by the fire callback's generation check, so arming a
// new code implicitly cancels the previous timer. The fire callback runs
// outside the scheduler lock and may itself call arm (auto-rotation re-arms
// the new generation from within the expiry of the old one).
type scheduler struct {
	fire func(sessionID uint, generation uint64)
	now  func() time.Time

	mu      sync.Mutex
	pending entryHeap

	wake chan struct{}
	done chan struct{}
}

func newScheduler(fire func(uint, uint64), now func() time.Time) *scheduler {
	s := &scheduler{
		fire: fire,
		now:  now,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// arm schedules a one-shot fire at the given instant for (sessionID, generation).
func (s *scheduler) arm(sessionID uint, generation uint64, at time.Time) {
	s.mu.Lock()
	heap.Push(&s.pending, &entry{at: at, sessionID: sessionID, generation: generation})
	s.mu.Unlock()
	s.kick()
}

// cancel eagerly drops every armed entry for the session. Purely a resource
// hygiene measure: a timer that slips through still no-ops on the generation
// check.
func (s *scheduler) cancel(sessionID uint) {
	s.mu.Lock()
	kept := s.pending[:0]
	for _, e := range s.pending {
		if e.sessionID != sessionID {
			kept = append(kept, e)
		}
	}
	s.pending = kept
	heap.Init(&s.pending)
	s.mu.Unlock()
	s.kick()
}

func (s *scheduler) stop() {
	close(s.done)
}

func (s *scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *scheduler) run() {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		due, wait := s.collect()
		for _, e := range due {
			s.fire(e.sessionID, e.generation)
		}
		if len(due) > 0 {
			// Firing may have armed or cancelled entries; recompute.
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

// collect pops every due entry and reports how long to sleep for the next one.
func (s *scheduler) collect() ([]*entry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*entry
	for s.pending.Len() > 0 && !s.pending[0].at.After(now) {
		due = append(due, heap.Pop(&s.pending).(*entry))
	}

	wait := idleWait
	if s.pending.Len() > 0 {
		wait = s.pending[0].at.Sub(now)
	}
	return due, wait
}
