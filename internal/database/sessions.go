package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/shardline/internal/connection"
)

// Querier is the subset of *pgxpool.Pool the session store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore keeps one resumable session per shard in gateway_sessions.
type SessionStore struct {
	db Querier
}

var _ connection.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a store on db.
func NewSessionStore(db Querier) *SessionStore {
	return &SessionStore{db: db}
}

// Load returns the stored session of shardID.
func (s *SessionStore) Load(ctx context.Context, shardID int) (connection.SessionSnapshot, bool, error) {
	snap := connection.SessionSnapshot{ShardID: shardID}
	err := s.db.QueryRow(ctx, `
		SELECT session_id, resume_url, seq, updated_at
		FROM gateway_sessions
		WHERE shard_id = $1
	`, shardID).Scan(&snap.SessionID, &snap.ResumeURL, &snap.Seq, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return connection.SessionSnapshot{}, false, nil
	}
	if err != nil {
		return connection.SessionSnapshot{}, false, fmt.Errorf("load session %d: %w", shardID, err)
	}
	return snap, true, nil
}

// Save upserts the session of snap.ShardID.
func (s *SessionStore) Save(ctx context.Context, snap connection.SessionSnapshot) error {
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO gateway_sessions (shard_id, session_id, resume_url, seq, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shard_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			resume_url = EXCLUDED.resume_url,
			seq        = EXCLUDED.seq,
			updated_at = EXCLUDED.updated_at
	`, snap.ShardID, snap.SessionID, snap.ResumeURL, snap.Seq, updated.UTC())
	if err != nil {
		return fmt.Errorf("save session %d: %w", snap.ShardID, err)
	}
	return nil
}

// Delete forgets the session of shardID.
func (s *SessionStore) Delete(ctx context.Context, shardID int) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM gateway_sessions WHERE shard_id = $1`, shardID); err != nil {
		return fmt.Errorf("delete session %d: %w", shardID, err)
	}
	return nil
}
