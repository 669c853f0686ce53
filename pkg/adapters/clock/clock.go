// Package clock provides a wall-clock ports.Scheduler.
package clock

import (
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/ports"
)

// DefaultTick is the frame interval NextTick waits for.
const DefaultTick = 16 * time.Millisecond

// Scheduler runs callbacks on real time. Timers fire on their own goroutines
// but every callback is handed to a single executor goroutine, so callbacks
// never run concurrently with each other.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	tick time.Duration
	jobs chan func()

	mu     sync.Mutex
	next   ports.TimerHandle
	timers map[ports.TimerHandle]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithTick overrides the NextTick interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// New starts a scheduler. Call Stop to release its executor.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tick:   DefaultTick,
		jobs:   make(chan func(), 64),
		timers: make(map[ports.TimerHandle]*time.Timer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.jobs:
			fn()
		case <-s.done:
			return
		}
	}
}

// Schedule runs fn once after d on the executor.
func (s *Scheduler) Schedule(d time.Duration, fn func()) ports.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[h]
		delete(s.timers, h)
		s.mu.Unlock()
		if !live {
			return
		}
		select {
		case s.jobs <- fn:
		case <-s.done:
		}
	})
	return h
}

// Cancel stops a pending timer. A callback already handed to the executor
// still runs; callers guard against that with their own tokens.
func (s *Scheduler) Cancel(h ports.TimerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

// NextTick runs fn after one tick.
func (s *Scheduler) NextTick(fn func()) {
	s.Schedule(s.tick, fn)
}

// Now returns the wall clock.
func (s *Scheduler) Now() time.Time {
	return time.Now()
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer and waits for the executor to exit. Safe to call
// multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		for h, t := range s.timers {
			t.Stop()
			delete(s.timers, h)
		}
		s.mu.Unlock()
		close(s.done)
		s.wg.Wait()
	})
}
