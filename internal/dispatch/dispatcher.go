package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rickgao/shardline/internal/cache"
)

// RawDispatch is one DISPATCH payload as received by a shard.
type RawDispatch struct {
	ShardID    int
	SessionID  string
	Seq        int64
	Name       string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Handler receives notifications of the kind it was registered for.
type Handler func(ctx context.Context, ev Event)

// RawHandler receives every dispatch before it is decoded.
type RawHandler func(ctx context.Context, raw RawDispatch)

// Config holds dispatcher settings.
type Config struct {
	// HandlerTimeout is advisory: invocations running longer are logged.
	// Zero disables the check. Default: 1s.
	HandlerTimeout time.Duration

	// MaxConcurrentHandlers bounds in-flight invocations. Zero means
	// unbounded: a subscriber that never returns leaks a goroutine per
	// dispatch.
	MaxConcurrentHandlers int64
}

// DefaultConfig returns default dispatcher settings.
func DefaultConfig() Config {
	return Config{HandlerTimeout: time.Second}
}

// Stats contains runtime counters.
type Stats struct {
	Dispatched    int64 `json:"dispatched"`
	Notifications int64 `json:"notifications"`
	Passthrough   int64 `json:"passthrough"`
	Unknown       int64 `json:"unknown"`
	DecodeErrors  int64 `json:"decode_errors"`
	Anomalies     int64 `json:"anomalies"`
	SlowHandlers  int64 `json:"slow_handlers"`
	HandlerPanics int64 `json:"handler_panics"`
}

// Dispatcher owns the subscriber registry and the decode table.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu       sync.RWMutex
	handlers map[EventKind][]Handler
	raw      []RawHandler

	inflight sync.WaitGroup

	dispatched    atomic.Int64
	notifications atomic.Int64
	passthrough   atomic.Int64
	unknown       atomic.Int64
	decodeErrors  atomic.Int64
	anomalies     atomic.Int64
	slow          atomic.Int64
	panics        atomic.Int64
}

// New creates a dispatcher.
func New(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[EventKind][]Handler),
	}
	if cfg.MaxConcurrentHandlers > 0 {
		d.sem = semaphore.NewWeighted(cfg.MaxConcurrentHandlers)
	}
	return d
}

// On appends fn to the subscribers of kind. Invocations start in
// registration order, each on its own goroutine.
func (d *Dispatcher) On(kind EventKind, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], fn)
}

// OnRaw registers a tap that sees every dispatch, including unknown ones.
func (d *Dispatcher) OnRaw(fn RawHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = append(d.raw, fn)
}

// Subscribe registers a typed subscriber. The kind is taken from T.
func Subscribe[T Event](d *Dispatcher, fn func(ctx context.Context, ev T)) {
	var zero T
	SubscribeKind(d, zero.Kind(), fn)
}

// SubscribeKind registers a typed subscriber for an explicit kind. Use it
// for Passthrough, whose kind varies per value.
func SubscribeKind[T Event](d *Dispatcher, kind EventKind, fn func(ctx context.Context, ev T)) {
	d.On(kind, func(ctx context.Context, ev Event) {
		if t, ok := ev.(T); ok {
			fn(ctx, t)
		}
	})
}

// Dispatch decodes raw, applies it to c and fans out the resulting
// notifications. The cache mutation completes before Dispatch returns;
// subscribers run asynchronously. Callers must dispatch one shard's payloads
// in receipt order.
func (d *Dispatcher) Dispatch(ctx context.Context, c *cache.Cache, raw RawDispatch) {
	d.dispatched.Add(1)

	d.mu.RLock()
	taps := d.raw
	d.mu.RUnlock()
	for _, tap := range taps {
		d.invoke(ctx, "raw", func(ctx context.Context) { tap(ctx, raw) })
	}

	for _, ev := range d.decode(c, raw) {
		d.publish(ctx, ev)
	}
}

// decode resolves the kind and runs its decoder. Errors are logged and
// counted, never returned.
func (d *Dispatcher) decode(c *cache.Cache, raw RawDispatch) []Event {
	h := Header{ShardID: raw.ShardID, Seq: raw.Seq}
	kind := ParseEventKind(raw.Name)

	if kind == KindUnknown {
		d.unknown.Add(1)
		d.logger.Debug("unknown dispatch event",
			"name", raw.Name,
			"shard_id", raw.ShardID,
			"seq", raw.Seq,
		)
		return []Event{Unknown{Header: h, Name: raw.Name, Raw: raw.Data}}
	}

	dec, ok := decoders[kind]
	if !ok {
		d.passthrough.Add(1)
		return []Event{Passthrough{Header: h, Type: kind, Raw: raw.Data}}
	}

	events, err := d.safeDecode(dec, decodeContext{cache: c, header: h, logger: d.logger}, raw)
	if err != nil {
		if errors.Is(err, errUncachedGuild) {
			d.anomalies.Add(1)
			d.logger.Warn("dropping event for uncached guild",
				"shard_id", raw.ShardID,
				"seq", raw.Seq,
				"error", err,
			)
		} else {
			d.decodeErrors.Add(1)
			d.logger.Warn("failed to decode dispatch",
				"name", raw.Name,
				"shard_id", raw.ShardID,
				"seq", raw.Seq,
				"error", err,
			)
		}
		return nil
	}
	return events
}

// safeDecode converts a decoder panic into an error so one malformed payload
// cannot end the session.
func (d *Dispatcher) safeDecode(dec decodeFunc, dc decodeContext, raw RawDispatch) (events []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("decoder panicked",
				"name", raw.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			events, err = nil, errors.New("decoder panicked")
		}
	}()
	return dec(dc, raw.Data)
}

// publish fans ev out to the subscribers of its kind.
func (d *Dispatcher) publish(ctx context.Context, ev Event) {
	d.notifications.Add(1)

	d.mu.RLock()
	subs := d.handlers[ev.Kind()]
	d.mu.RUnlock()

	for _, fn := range subs {
		d.invoke(ctx, ev.Kind().String(), func(ctx context.Context) { fn(ctx, ev) })
	}
}

// invoke runs fn on its own goroutine with panic recovery and the advisory
// timeout. With a concurrency bound it waits for a slot first.
func (d *Dispatcher) invoke(ctx context.Context, label string, fn func(context.Context)) {
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn("handler slot unavailable", "kind", label, "error", err)
			return
		}
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if d.sem != nil {
			defer d.sem.Release(1)
		}
		if d.cfg.HandlerTimeout > 0 {
			start := time.Now()
			timer := time.AfterFunc(d.cfg.HandlerTimeout, func() {
				d.slow.Add(1)
				d.logger.Warn("event handler exceeded timeout",
					"kind", label,
					"timeout", d.cfg.HandlerTimeout,
					"elapsed", time.Since(start),
				)
			})
			defer timer.Stop()
		}
		defer func() {
			if r := recover(); r != nil {
				d.panics.Add(1)
				d.logger.Error("event handler panicked",
					"kind", label,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn(ctx)
	}()
}

// Wait blocks until every in-flight subscriber invocation has returned or
// ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:    d.dispatched.Load(),
		Notifications: d.notifications.Load(),
		Passthrough:   d.passthrough.Load(),
		Unknown:       d.unknown.Load(),
		DecodeErrors:  d.decodeErrors.Load(),
		Anomalies:     d.anomalies.Load(),
		SlowHandlers:  d.slow.Load(),
		HandlerPanics: d.panics.Load(),
	}
}
