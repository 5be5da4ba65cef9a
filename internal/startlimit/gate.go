// Package startlimit implements the session start-limit gate: at most one
// Identify per concurrency bucket within the release window.
//
// Bucket key: shardID % maxConcurrency, scoped by application id and the
// concurrency value. A ticket holds its bucket until ReleaseAfter has elapsed
// from the moment it was used, or until it is released unused.
package startlimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// DefaultReleaseAfter is the per-bucket cooldown after an Identify.
const DefaultReleaseAfter = 5 * time.Second

type bucketKey struct {
	appID          snowflake.ID
	maxConcurrency int
	bucket         int
}

// Gate serializes session starts per bucket.
type Gate struct {
	releaseAfter time.Duration

	mu      sync.Mutex
	buckets map[bucketKey]chan struct{}
}

var (
	sharedOnce sync.Once
	shared     *Gate
)

// Shared returns the process-wide gate.
func Shared() *Gate {
	sharedOnce.Do(func() {
		shared = New(DefaultReleaseAfter)
	})
	return shared
}

// New creates a gate with the given cooldown. Non-positive values use
// DefaultReleaseAfter.
func New(releaseAfter time.Duration) *Gate {
	if releaseAfter <= 0 {
		releaseAfter = DefaultReleaseAfter
	}
	return &Gate{
		releaseAfter: releaseAfter,
		buckets:      make(map[bucketKey]chan struct{}),
	}
}

// BucketFor returns the bucket index of shardID. maxConcurrency of 0 is
// treated as 1.
func BucketFor(shardID, maxConcurrency int) int {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return shardID % maxConcurrency
}

func (g *Gate) slot(key bucketKey) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.buckets[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.buckets[key] = ch
	}
	return ch
}

// Acquire blocks until the shard's bucket is free or ctx ends.
func (g *Gate) Acquire(ctx context.Context, appID snowflake.ID, maxConcurrency, shardID int) (*Ticket, error) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	key := bucketKey{appID: appID, maxConcurrency: maxConcurrency, bucket: BucketFor(shardID, maxConcurrency)}
	slot := g.slot(key)

	select {
	case slot <- struct{}{}:
		return &Ticket{slot: slot, releaseAfter: g.releaseAfter, Bucket: key.bucket}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire start-limit bucket %d: %w", key.bucket, ctx.Err())
	}
}

// Ticket is a held bucket.
type Ticket struct {
	// Bucket is the bucket index this ticket holds.
	Bucket int

	slot         chan struct{}
	releaseAfter time.Duration

	mu       sync.Mutex
	used     bool
	released bool
	timer    *time.Timer
}

// Used marks the ticket as spent on an Identify. The bucket frees itself
// after the release window. Calling Used more than once has no effect.
func (t *Ticket) Used() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.used || t.released {
		return
	}
	t.used = true
	t.timer = time.AfterFunc(t.releaseAfter, t.free)
}

// Release frees the bucket now if the ticket was never used. A used ticket
// keeps its time-based release. Release is idempotent.
func (t *Ticket) Release() {
	t.mu.Lock()
	if t.used || t.released {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.free()
}

func (t *Ticket) free() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	t.mu.Unlock()

	<-t.slot
}
