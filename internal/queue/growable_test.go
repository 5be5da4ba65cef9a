package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowable_FIFO(t *testing.T) {
	q := NewGrowable[int](4)
	for i := range 100 {
		require.True(t, q.Push(i))
	}

	s := q.Stats()
	assert.Equal(t, 100, s.Queued)
	assert.Equal(t, 100, s.HighWater)
	assert.Greater(t, s.Resizes, 1)

	for i := range 100 {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestGrowable_GrowsAt70Percent(t *testing.T) {
	q := NewGrowable[int](10)
	for i := range 7 {
		q.Push(i)
	}
	s := q.Stats()
	assert.Equal(t, 20, s.Capacity)
	assert.Equal(t, 1, s.Resizes)
}

func TestGrowable_WrappedGrow(t *testing.T) {
	q := NewGrowable[int](10)
	for i := range 5 {
		q.Push(i)
	}
	for range 4 {
		q.TryPop()
	}
	// head is now at 4; pushing wraps the tail before the next grow.
	for i := 5; i < 20; i++ {
		q.Push(i)
	}
	got := q.Drain(0)
	want := make([]int, 0, 16)
	for i := 4; i < 20; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, got)
}

func TestGrowable_CloseDrains(t *testing.T) {
	q := NewGrowable[string](2)
	q.Push("a")
	q.Close()
	assert.False(t, q.Push("b"))

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestGrowable_PopBlocksUntilPush(t *testing.T) {
	q := NewGrowable[int](1)
	got := make(chan int, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake")
	}
}

func TestGrowable_PopContextCancel(t *testing.T) {
	q := NewGrowable[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.PopContext(ctx)
	assert.False(t, ok)
}

func TestGrowable_DrainLimit(t *testing.T) {
	q := NewGrowable[int](4)
	for i := range 10 {
		q.Push(i)
	}
	assert.Equal(t, []int{0, 1, 2}, q.Drain(3))
	assert.Equal(t, 7, q.Len())
}

func TestGrowable_ConcurrentProducers(t *testing.T) {
	q := NewGrowable[int](8)
	var wg sync.WaitGroup
	for p := range 8 {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range 250 {
				q.Push(p*1000 + i)
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	n := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 2000, n)
}
