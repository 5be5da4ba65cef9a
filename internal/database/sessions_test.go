package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/shardline/internal/connection"
)

// fakeDB emulates gateway_sessions by interpreting the store's statements.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[int]connection.SessionSnapshot
	execErr error
	stmts   []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[int]connection.SessionSnapshot)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}

	switch {
	case strings.Contains(sql, "INSERT INTO gateway_sessions"):
		f.rows[args[0].(int)] = connection.SessionSnapshot{
			ShardID:   args[0].(int),
			SessionID: args[1].(string),
			ResumeURL: args[2].(string),
			Seq:       args[3].(int64),
			UpdatedAt: args[4].(time.Time),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "DELETE FROM gateway_sessions"):
		delete(f.rows, args[0].(int))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.rows[args[0].(int)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []any{snap.SessionID, snap.ResumeURL, snap.Seq, snap.UpdatedAt}}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int64:
			*p = r.vals[i].(int64)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

func TestSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(newFakeDB())

	_, ok, err := store.Load(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := connection.SessionSnapshot{ShardID: 3, SessionID: "abc", ResumeURL: "wss://resume.example", Seq: 77}
	require.NoError(t, store.Save(ctx, snap))

	got, ok, err := store.Load(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.ShardID)
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, "wss://resume.example", got.ResumeURL)
	assert.Equal(t, int64(77), got.Seq)
	assert.False(t, got.UpdatedAt.IsZero(), "a zero timestamp is replaced on save")

	require.NoError(t, store.Delete(ctx, 3))
	_, ok, err = store.Load(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_Errors(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("connection reset")
	store := NewSessionStore(db)

	err := store.Save(context.Background(), connection.SessionSnapshot{ShardID: 1, SessionID: "x"})
	assert.ErrorContains(t, err, "save session 1")
	assert.ErrorIs(t, err, db.execErr)

	err = store.Delete(context.Background(), 1)
	assert.ErrorContains(t, err, "delete session 1")
}

func TestEnsureSchema(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, EnsureSchema(context.Background(), db))

	require.Len(t, db.stmts, len(schema))
	assert.Contains(t, db.stmts[0], "gateway_sessions")
	assert.Contains(t, db.stmts[1], "gateway_events")

	db.execErr = errors.New("permission denied")
	assert.ErrorContains(t, EnsureSchema(context.Background(), db), "ensure schema")
}
