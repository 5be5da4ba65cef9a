package connection

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is the resumable state of one shard. It outlives connections.
type Session struct {
	mu        sync.RWMutex
	id        string
	resumeURL string
	interval  time.Duration
	lastSent  time.Time
	latency   time.Duration

	seq         atomic.Int64
	outstanding atomic.Int32
}

// SessionSnapshot is the persisted form of a session.
type SessionSnapshot struct {
	ShardID   int       `json:"shard_id"`
	SessionID string    `json:"session_id"`
	ResumeURL string    `json:"resume_url"`
	Seq       int64     `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Set records a session established by READY.
func (s *Session) Set(id, resumeURL string) {
	s.mu.Lock()
	s.id = id
	s.resumeURL = resumeURL
	s.mu.Unlock()
}

// Clear forgets the session so the next connection identifies.
func (s *Session) Clear() {
	s.mu.Lock()
	s.id = ""
	s.resumeURL = ""
	s.mu.Unlock()
	s.seq.Store(0)
}

// ID returns the session id, or "" when there is none.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// ResumeURL returns the gateway URL to resume on.
func (s *Session) ResumeURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeURL
}

// CanResume reports whether both a session id and a sequence are known.
func (s *Session) CanResume() bool {
	return s.ID() != "" && s.seq.Load() > 0
}

// Seq returns the last received sequence number.
func (s *Session) Seq() int64 {
	return s.seq.Load()
}

// SetSeq records a received sequence number.
func (s *Session) SetSeq(seq int64) {
	s.seq.Store(seq)
}

// SetInterval records the heartbeat interval from Hello.
func (s *Session) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Interval returns the heartbeat interval.
func (s *Session) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// Sent counts a heartbeat as outstanding.
func (s *Session) Sent() int32 {
	s.mu.Lock()
	s.lastSent = time.Now()
	s.mu.Unlock()
	return s.outstanding.Add(1)
}

// Acked decrements the outstanding count, never below zero.
func (s *Session) Acked() {
	for {
		n := s.outstanding.Load()
		if n <= 0 {
			return
		}
		if s.outstanding.CompareAndSwap(n, n-1) {
			break
		}
	}
	s.mu.Lock()
	if !s.lastSent.IsZero() {
		s.latency = time.Since(s.lastSent)
	}
	s.mu.Unlock()
}

// Outstanding returns the number of unacknowledged heartbeats.
func (s *Session) Outstanding() int32 {
	return s.outstanding.Load()
}

// ResetHeartbeats zeroes the outstanding count for a new connection.
func (s *Session) ResetHeartbeats() {
	s.outstanding.Store(0)
}

// Latency returns the last heartbeat round trip.
func (s *Session) Latency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

// Snapshot returns the persistable state.
func (s *Session) Snapshot(shardID int) SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSnapshot{
		ShardID:   shardID,
		SessionID: s.id,
		ResumeURL: s.resumeURL,
		Seq:       s.seq.Load(),
		UpdatedAt: time.Now(),
	}
}

// Restore loads a persisted snapshot.
func (s *Session) Restore(snap SessionSnapshot) {
	s.mu.Lock()
	s.id = snap.SessionID
	s.resumeURL = snap.ResumeURL
	s.mu.Unlock()
	s.seq.Store(snap.Seq)
}
