package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Transport implements ports.Transport over Redis pub/sub. The latest
// snapshot of each session is also kept under a key so late subscribers
// start from the current state.
type Transport struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// TransportOption configures the Transport.
type TransportOption func(*Transport)

// WithTransportPrefix sets the channel and key prefix.
func WithTransportPrefix(prefix string) TransportOption {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithLatestTTL expires the stored latest snapshot.
func WithLatestTTL(ttl time.Duration) TransportOption {
	return func(t *Transport) {
		t.ttl = ttl
	}
}

// WithTransportLogger configures a logger for the Transport.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a pub/sub transport on client.
func NewTransport(client *backend.Client, opts ...TransportOption) *Transport {
	t := &Transport{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) requestChannel() string {
	return t.prefix + "requests"
}

func (t *Transport) snapshotChannel(sessionID string) string {
	return t.prefix + "snapshots:" + sessionID
}

func (t *Transport) latestKey(sessionID string) string {
	return t.prefix + "latest:" + sessionID
}

// SendRequest implements ports.Transport.
func (t *Transport) SendRequest(ctx context.Context, req ports.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := t.client.Publish(ctx, t.requestChannel(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish request: %w", err)
	}
	return nil
}

// Requests implements ports.Transport. The subscription is active once it returns.
func (t *Transport) Requests(ctx context.Context) (<-chan ports.Request, error) {
	return subscribe(ctx, t, t.requestChannel(), nil, func(payload string) (ports.Request, error) {
		var req ports.Request
		err := json.Unmarshal([]byte(payload), &req)
		return req, err
	})
}

// Broadcast implements ports.Transport.
func (t *Transport) Broadcast(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	pipe := t.client.Pipeline()
	pipe.Set(ctx, t.latestKey(snapshot.SessionID), data, t.ttl)
	pipe.Publish(ctx, t.snapshotChannel(snapshot.SessionID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to broadcast snapshot: %w", err)
	}
	return nil
}

// Snapshots implements ports.Transport. The stored latest snapshot, if any,
// is delivered first.
func (t *Transport) Snapshots(ctx context.Context, sessionID string) (<-chan domain.Snapshot, error) {
	decode := func(payload string) (domain.Snapshot, error) {
		var snap domain.Snapshot
		err := json.Unmarshal([]byte(payload), &snap)
		return snap, err
	}
	first := func(ctx context.Context) (string, bool) {
		val, err := t.client.Get(ctx, t.latestKey(sessionID)).Result()
		if err != nil {
			if !errors.Is(err, backend.Nil) {
				t.logger.Warn("failed to read latest snapshot", "session_id", sessionID, "err", err)
			}
			return "", false
		}
		return val, true
	}
	return subscribe(ctx, t, t.snapshotChannel(sessionID), first, decode)
}

// subscribe forwards decoded messages of channel until ctx is done.
func subscribe[T any](
	ctx context.Context,
	t *Transport,
	channel string,
	first func(context.Context) (string, bool),
	decode func(string) (T, error),
) (<-chan T, error) {
	sub := t.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan T, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		deliver := func(payload string) bool {
			v, err := decode(payload)
			if err != nil {
				t.logger.Warn("dropping malformed message", "channel", channel, "err", err)
				return true
			}
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if first != nil {
			if payload, ok := first(ctx); ok && !deliver(payload) {
				return
			}
		}

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !deliver(msg.Payload) {
					return
				}
			}
		}
	}()
	return out, nil
}
