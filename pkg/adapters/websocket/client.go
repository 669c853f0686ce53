package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/gorilla/websocket"
)

// Client implements ports.Transport on the peer side of one session.
// Only SendRequest and Snapshots are available; the authority owns the rest.
type Client struct {
	conn    *websocket.Conn
	session string
	logger  *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   []chan domain.Snapshot
	latest *domain.Snapshot
	closed bool
	done   chan struct{}
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithClientLogger configures a logger for the Client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Dial connects to the hub at rawURL and follows sessionID.
func Dial(ctx context.Context, rawURL, sessionID string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub url: %w", err)
	}
	q := u.Query()
	q.Set(SessionParam, sessionID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial hub: %w", err)
	}

	c := &Client{
		conn:    conn,
		session: sessionID,
		logger:  logging.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("hub read failed", "session_id", c.session, "err", err)
			}
			return
		}
		if msg.Type != MessageSnapshot || msg.Snapshot == nil {
			continue
		}
		c.mu.Lock()
		snap := *msg.Snapshot
		c.latest = &snap
		for _, ch := range c.subs {
			select {
			case ch <- *msg.Snapshot:
			default:
				c.logger.Warn("subscriber too slow, dropping snapshot", "session_id", c.session, "seq", msg.Snapshot.Sequence)
			}
		}
		c.mu.Unlock()
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

// Done is closed once the connection ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendRequest implements ports.Transport.
func (c *Client) SendRequest(_ context.Context, req ports.Request) error {
	if req.SessionID == "" {
		req.SessionID = c.session
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(Message{Type: MessageRequest, Request: &req}); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// Requests implements ports.Transport. Peers never receive requests.
func (c *Client) Requests(context.Context) (<-chan ports.Request, error) {
	return nil, domain.ErrNotAuthority
}

// Broadcast implements ports.Transport. Peers never mirror snapshots.
func (c *Client) Broadcast(context.Context, domain.Snapshot) error {
	return domain.ErrNotAuthority
}

// Snapshots implements ports.Transport for the followed session. A new
// subscriber first receives the last snapshot the client saw.
func (c *Client) Snapshots(ctx context.Context, sessionID string) (<-chan domain.Snapshot, error) {
	if sessionID != c.session {
		return nil, fmt.Errorf("client follows %q, not %q: %w", c.session, sessionID, domain.ErrSessionNotFound)
	}
	ch := make(chan domain.Snapshot, sendBuffer)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if c.latest != nil {
		ch <- *c.latest
	}
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.conn.Close()
}
