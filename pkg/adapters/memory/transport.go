package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Transport is an in-process ports.Transport linking one authority with any
// number of peers. Slow snapshot subscribers drop messages instead of
// blocking the authority.
type Transport struct {
	requests chan ports.Request

	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Snapshot]struct{}
	buffer      int
}

// NewTransport creates a loopback transport. buffer sizes every channel.
func NewTransport(buffer int) *Transport {
	if buffer <= 0 {
		buffer = 16
	}
	return &Transport{
		requests:    make(chan ports.Request, buffer),
		subscribers: make(map[string]map[chan domain.Snapshot]struct{}),
		buffer:      buffer,
	}
}

// SendRequest queues req for the authority.
func (t *Transport) SendRequest(ctx context.Context, req ports.Request) error {
	select {
	case t.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests returns the authority side of the request queue.
func (t *Transport) Requests(context.Context) (<-chan ports.Request, error) {
	return t.requests, nil
}

// Broadcast fans the snapshot out to every subscriber of its session.
func (t *Transport) Broadcast(_ context.Context, snapshot domain.Snapshot) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ch := range t.subscribers[snapshot.SessionID] {
		select {
		case ch <- snapshot:
		default:
			// Drop message if buffer full to prevent blocking the authority
		}
	}
	return nil
}

// Snapshots subscribes to sessionID until ctx is done.
func (t *Transport) Snapshots(ctx context.Context, sessionID string) (<-chan domain.Snapshot, error) {
	ch := make(chan domain.Snapshot, t.buffer)

	t.mu.Lock()
	if t.subscribers[sessionID] == nil {
		t.subscribers[sessionID] = make(map[chan domain.Snapshot]struct{})
	}
	t.subscribers[sessionID][ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers[sessionID], ch)
		if len(t.subscribers[sessionID]) == 0 {
			delete(t.subscribers, sessionID)
		}
		close(ch)
	}()
	return ch, nil
}
