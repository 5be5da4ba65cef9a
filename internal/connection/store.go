package connection

import (
	"context"
	"sync"
)

// SessionStore persists session snapshots so a restarted process can resume.
type SessionStore interface {
	Load(ctx context.Context, shardID int) (SessionSnapshot, bool, error)
	Save(ctx context.Context, snap SessionSnapshot) error
	Delete(ctx context.Context, shardID int) error
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[int]SessionSnapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[int]SessionSnapshot)}
}

func (m *MemoryStore) Load(_ context.Context, shardID int) (SessionSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[shardID]
	return snap, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, snap SessionSnapshot) error {
	m.mu.Lock()
	m.snaps[snap.ShardID] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, shardID int) error {
	m.mu.Lock()
	delete(m.snaps, shardID)
	m.mu.Unlock()
	return nil
}
