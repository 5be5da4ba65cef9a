package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/queue"
)

// Pump is the per-shard ordered queue between a socket read loop and the
// dispatcher. Enqueue never blocks, so a slow cache merge cannot hold up
// heartbeat acknowledgements on the read side.
type Pump struct {
	shardID    int
	dispatcher *Dispatcher
	cache      *cache.Cache
	queue      *queue.Growable[RawDispatch]
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPump creates a pump for one shard.
func NewPump(d *Dispatcher, c *cache.Cache, shardID, queueSize int, logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pump{
		shardID:    shardID,
		dispatcher: d,
		cache:      c,
		queue:      queue.NewGrowable[RawDispatch](queueSize),
		logger:     logger.With("shard_id", shardID),
	}
}

// Cache returns the cache this pump writes to.
func (p *Pump) Cache() *cache.Cache {
	return p.cache
}

// Start begins draining the queue.
func (p *Pump) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.loop(ctx)
}

// Enqueue adds a payload. It returns false after Stop.
func (p *Pump) Enqueue(raw RawDispatch) bool {
	return p.queue.Push(raw)
}

// Stop closes the queue and waits for the queued payloads to be dispatched,
// or until ctx ends.
func (p *Pump) Stop(ctx context.Context) error {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("dispatch pump stop timed out", "queued", p.queue.Len())
		if p.cancel != nil {
			p.cancel()
		}
		return ctx.Err()
	}
}

// Stats returns queue statistics.
func (p *Pump) Stats() queue.Stats {
	return p.queue.Stats()
}

func (p *Pump) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		raw, ok := p.queue.PopContext(ctx)
		if !ok {
			return
		}
		p.dispatcher.Dispatch(ctx, p.cache, raw)
	}
}
