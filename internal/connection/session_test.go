package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_HeartbeatCounter(t *testing.T) {
	var s Session

	s.Sent()
	s.Sent()
	assert.Equal(t, int32(2), s.Outstanding())

	s.Acked()
	assert.Equal(t, int32(1), s.Outstanding())

	s.Acked()
	s.Acked()
	assert.Equal(t, int32(0), s.Outstanding(), "acks never drive the counter negative")

	s.Sent()
	s.ResetHeartbeats()
	assert.Equal(t, int32(0), s.Outstanding())
}

func TestSession_CanResume(t *testing.T) {
	var s Session
	assert.False(t, s.CanResume())

	s.Set("abc", "wss://resume.example")
	assert.False(t, s.CanResume(), "a session without a sequence cannot resume")

	s.SetSeq(7)
	assert.True(t, s.CanResume())

	s.Clear()
	assert.False(t, s.CanResume())
	assert.Equal(t, int64(0), s.Seq())
	assert.Empty(t, s.ResumeURL())
}

func TestSession_SnapshotRestore(t *testing.T) {
	var s Session
	s.Set("abc", "wss://resume.example")
	s.SetSeq(42)

	snap := s.Snapshot(3)
	assert.Equal(t, 3, snap.ShardID)
	assert.Equal(t, "abc", snap.SessionID)
	assert.Equal(t, int64(42), snap.Seq)
	assert.False(t, snap.UpdatedAt.IsZero())

	var restored Session
	restored.Restore(snap)
	assert.True(t, restored.CanResume())
	assert.Equal(t, "wss://resume.example", restored.ResumeURL())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_hello", StateAwaitingHello.String())
	assert.Equal(t, "zombie", StateZombie.String())
	assert.Equal(t, "unknown", State(99).String())
}
