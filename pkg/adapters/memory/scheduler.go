package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/ports"
)

type manualTimer struct {
	handle   ports.TimerHandle
	deadline time.Time
	fn       func()
}

// ManualScheduler is a deterministic ports.Scheduler for tests and offline
// tools. Time only moves when Advance is called; due callbacks run on the
// caller's goroutine in deadline order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	next   ports.TimerHandle
	timers []manualTimer
	// Tick is the duration NextTick callbacks wait for.
	Tick time.Duration
}

// NewManualScheduler starts the clock at start. A zero start uses the Unix epoch.
func NewManualScheduler(start time.Time) *ManualScheduler {
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return &ManualScheduler{now: start, Tick: 16 * time.Millisecond}
}

// Schedule runs fn once after d of manual time.
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) ports.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.timers = append(s.timers, manualTimer{handle: s.next, deadline: s.now.Add(d), fn: fn})
	return s.next
}

// Cancel drops a pending callback.
func (s *ManualScheduler) Cancel(h ports.TimerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.timers {
		if t.handle == h {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// NextTick runs fn after one Tick.
func (s *ManualScheduler) NextTick(fn func()) {
	s.Schedule(s.Tick, fn)
}

// Now returns the manual clock.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of callbacks waiting to fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Advance moves the clock forward by d, firing every callback due within the
// window. Callbacks scheduled while advancing fire too if they fall inside it.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		t, ok := s.popDue(target)
		if !ok {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	if s.now.Before(target) {
		s.now = target
	}
	s.mu.Unlock()
}

func (s *ManualScheduler) popDue(target time.Time) (manualTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return manualTimer{}, false
	}
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].deadline.Equal(s.timers[j].deadline) {
			return s.timers[i].handle < s.timers[j].handle
		}
		return s.timers[i].deadline.Before(s.timers[j].deadline)
	})
	t := s.timers[0]
	if t.deadline.After(target) {
		return manualTimer{}, false
	}
	s.timers = s.timers[1:]
	if t.deadline.After(s.now) {
		s.now = t.deadline
	}
	return t, true
}
