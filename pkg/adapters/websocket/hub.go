package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// ErrHubClosed is returned by hub operations after Close.
var ErrHubClosed = errors.New("websocket hub closed")

// Hub implements ports.Transport on the authority side. It accepts peer
// connections over HTTP and fans snapshots out to the peers of each session.
// In-process subscribers are served the same way.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	peers    map[string]map[*peerConn]struct{}
	local    map[string][]chan domain.Snapshot
	latest   map[string]domain.Snapshot
	requests chan ports.Request
	done     chan struct{}
	stopOnce sync.Once
}

type peerConn struct {
	conn    *websocket.Conn
	session string
	send    chan Message
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithLogger configures a logger for the Hub.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithCheckOrigin replaces the origin check of the upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHub creates a hub. requests buffers peer requests until the authority reads them.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logging.NewNop(),
		peers:    make(map[string]map[*peerConn]struct{}),
		local:    make(map[string][]chan domain.Snapshot),
		latest:   make(map[string]domain.Snapshot),
		requests: make(chan ports.Request, 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the connection of a peer following ?session=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get(SessionParam)
	if session == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	p := &peerConn{conn: conn, session: session, send: make(chan Message, sendBuffer)}
	h.mu.Lock()
	if h.isClosed() {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if h.peers[session] == nil {
		h.peers[session] = make(map[*peerConn]struct{})
	}
	h.peers[session][p] = struct{}{}
	if snap, ok := h.latest[session]; ok {
		p.send <- Message{Type: MessageSnapshot, Snapshot: &snap}
	}
	h.mu.Unlock()
	h.logger.Debug("peer connected", "session_id", session, "remote", r.RemoteAddr)

	go h.writePump(p)
	h.readPump(p)
}

func (h *Hub) readPump(p *peerConn) {
	defer h.drop(p)

	p.conn.SetReadLimit(1 << 20)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("peer read failed", "session_id", p.session, "err", err)
			}
			return
		}
		if msg.Type != MessageRequest || msg.Request == nil {
			h.logger.Warn("dropping unexpected frame", "session_id", p.session, "type", msg.Type)
			continue
		}
		req := *msg.Request
		if req.SessionID == "" {
			req.SessionID = p.session
		}
		select {
		case h.requests <- req:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) writePump(p *peerConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(msg); err != nil {
				h.logger.Warn("peer write failed", "session_id", p.session, "err", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop unregisters p and closes its send queue once.
func (h *Hub) drop(p *peerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.peers[p.session]; ok {
		if _, ok := set[p]; ok {
			delete(set, p)
			close(p.send)
		}
		if len(set) == 0 {
			delete(h.peers, p.session)
		}
	}
}

func (h *Hub) isClosed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Peers returns the number of connected peers following sessionID.
func (h *Hub) Peers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers[sessionID])
}

// SendRequest implements ports.Transport for requests raised next to the authority.
func (h *Hub) SendRequest(ctx context.Context, req ports.Request) error {
	select {
	case h.requests <- req:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests implements ports.Transport.
func (h *Hub) Requests(context.Context) (<-chan ports.Request, error) {
	return h.requests, nil
}

// Broadcast implements ports.Transport. A peer whose queue is full is
// disconnected and catches up from the latest snapshot when it reconnects.
func (h *Hub) Broadcast(_ context.Context, snapshot domain.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isClosed() {
		return ErrHubClosed
	}
	h.latest[snapshot.SessionID] = snapshot

	for p := range h.peers[snapshot.SessionID] {
		snap := snapshot
		select {
		case p.send <- Message{Type: MessageSnapshot, Snapshot: &snap}:
		default:
			h.logger.Warn("peer too slow, disconnecting", "session_id", p.session)
			delete(h.peers[snapshot.SessionID], p)
			close(p.send)
		}
	}
	for _, ch := range h.local[snapshot.SessionID] {
		select {
		case ch <- snapshot:
		default:
			h.logger.Warn("local subscriber too slow, dropping snapshot", "session_id", snapshot.SessionID, "seq", snapshot.Sequence)
		}
	}
	return nil
}

// Snapshots implements ports.Transport for in-process subscribers.
func (h *Hub) Snapshots(ctx context.Context, sessionID string) (<-chan domain.Snapshot, error) {
	ch := make(chan domain.Snapshot, sendBuffer)
	h.mu.Lock()
	if h.isClosed() {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if snap, ok := h.latest[sessionID]; ok {
		ch <- snap
	}
	h.local[sessionID] = append(h.local[sessionID], ch)
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.local[sessionID]
		for i, c := range subs {
			if c == ch {
				h.local[sessionID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.local[sessionID]) == 0 {
			delete(h.local, sessionID)
		}
	}()
	return ch, nil
}

// Close disconnects every peer. It is safe to call more than once.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		close(h.done)
		for session, set := range h.peers {
			for p := range set {
				close(p.send)
			}
			delete(h.peers, session)
		}
	})
}
