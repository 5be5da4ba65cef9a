package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of *pgxpool.Pool used for DDL.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gateway_sessions (
		shard_id   INTEGER PRIMARY KEY,
		session_id TEXT NOT NULL,
		resume_url TEXT NOT NULL,
		seq        BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gateway_events (
		shard_id    INTEGER NOT NULL,
		session_id  TEXT NOT NULL,
		seq         BIGINT NOT NULL,
		event_name  TEXT NOT NULL,
		received_at BIGINT NOT NULL,
		payload     JSONB NOT NULL,
		PRIMARY KEY (shard_id, session_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS gateway_events_name_idx ON gateway_events (event_name, received_at)`,
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
