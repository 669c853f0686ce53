// Package postgres persists replicated snapshots in PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the snapshot table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS parley_snapshots (
    session_id TEXT PRIMARY KEY,
    seq        BIGINT NOT NULL,
    state      TEXT NOT NULL,
    snapshot   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_parley_snapshots_updated ON parley_snapshots(updated_at);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements ports.SnapshotStore on PostgreSQL.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ ports.SnapshotStore = (*Store)(nil)

// NewStore wraps an existing connection or pool. The caller owns db and
// should call [Store.Migrate] before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Open creates a pool for dsn, verifies it and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Save upserts the snapshot of its session.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("postgres: marshal snapshot: %w", err)
	}

	const query = `
		INSERT INTO parley_snapshots (session_id, seq, state, snapshot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			seq = EXCLUDED.seq,
			state = EXCLUDED.state,
			snapshot = EXCLUDED.snapshot,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, snapshot.SessionID, int64(snapshot.Sequence), string(snapshot.State), data); err != nil {
		return fmt.Errorf("postgres: save %q: %w", snapshot.SessionID, err)
	}
	return nil
}

// Load retrieves the snapshot of sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	const query = `SELECT snapshot FROM parley_snapshots WHERE session_id = $1`

	var data []byte
	if err := s.db.QueryRow(ctx, query, sessionID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrSessionNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: load %q: %w", sessionID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("postgres: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the snapshot of sessionID.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM parley_snapshots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres: delete %q: %w", sessionID, err)
	}
	return nil
}

// List returns every stored session ID, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT session_id FROM parley_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return ids, nil
}

// Close releases the pool created by [Open]. Stores built with [NewStore]
// leave their connection to the caller.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
