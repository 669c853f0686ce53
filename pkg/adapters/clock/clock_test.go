package clock_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/clock"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_Fires(t *testing.T) {
	s := clock.New()
	defer s.Stop()

	fired := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_Cancel(t *testing.T) {
	s := clock.New()
	defer s.Stop()

	var calls atomic.Int32
	h := s.Schedule(20*time.Millisecond, func() { calls.Add(1) })
	s.Cancel(h)
	s.Cancel(h)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestScheduler_CallbacksAreSerialised(t *testing.T) {
	s := clock.New(clock.WithTick(time.Millisecond))
	defer s.Stop()

	var (
		mu      sync.Mutex
		running int
		overlap bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		s.NextTick(func() {
			defer wg.Done()
			mu.Lock()
			running++
			overlap = overlap || running > 1
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()
	assert.False(t, overlap)
}

func TestScheduler_StopDropsTimers(t *testing.T) {
	s := clock.New()
	var calls atomic.Int32
	s.Schedule(10*time.Millisecond, func() { calls.Add(1) })
	s.Stop()
	s.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.Zero(t, s.Pending())
}
