package startlimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		shard, conc, want int
	}{
		{0, 1, 0},
		{5, 1, 0},
		{5, 0, 0},
		{5, 4, 1},
		{17, 16, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.shard, tt.conc), "shard=%d conc=%d", tt.shard, tt.conc)
	}
}

func TestAcquire_SerializesBucket(t *testing.T) {
	const window = 100 * time.Millisecond
	g := New(window)
	ctx := context.Background()

	var mu sync.Mutex
	var identifies []time.Time

	var wg sync.WaitGroup
	for shard := range 3 {
		wg.Add(1)
		go func(shard int) {
			defer wg.Done()
			tk, err := g.Acquire(ctx, 1, 1, shard)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			identifies = append(identifies, time.Now())
			mu.Unlock()
			tk.Used()
			tk.Release()
		}(shard)
	}
	wg.Wait()

	require.Len(t, identifies, 3)
	mu.Lock()
	defer mu.Unlock()
	for i := range identifies {
		for j := range identifies {
			if i == j {
				continue
			}
			gap := identifies[i].Sub(identifies[j]).Abs()
			assert.GreaterOrEqual(t, gap, window-10*time.Millisecond)
		}
	}
}

func TestAcquire_IndependentBuckets(t *testing.T) {
	g := New(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := g.Acquire(ctx, 1, 2, 0)
	require.NoError(t, err)
	a.Used()

	b, err := g.Acquire(ctx, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Bucket)

	// Another application does not share buckets.
	_, err = g.Acquire(ctx, 2, 2, 0)
	require.NoError(t, err)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	g := New(time.Hour)
	tk, err := g.Acquire(context.Background(), 1, 1, 0)
	require.NoError(t, err)
	tk.Used()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, 1, 1, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelease_UnusedFreesImmediately(t *testing.T) {
	g := New(time.Hour)
	tk, err := g.Acquire(context.Background(), 1, 1, 0)
	require.NoError(t, err)
	tk.Release()
	tk.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, 1, 1, 0)
	assert.NoError(t, err)
}

func TestRelease_UsedKeepsWindow(t *testing.T) {
	g := New(time.Hour)
	tk, err := g.Acquire(context.Background(), 1, 1, 0)
	require.NoError(t, err)
	tk.Used()
	tk.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, 1, 1, 0)
	assert.Error(t, err)
}

func TestShared(t *testing.T) {
	assert.Same(t, Shared(), Shared())
}
