package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/queue"
)

// Config holds batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
	Events        []string // empty archives every event
}

// Metrics counts archive activity.
type Metrics struct {
	Received  int64 `json:"received"`
	Filtered  int64 `json:"filtered"`
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
}

// BatchSender is the subset of *pgxpool.Pool used for inserts.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type eventRow struct {
	ShardID    int
	SessionID  string
	Seq        int64
	Name       string
	ReceivedAt int64 // µs since epoch
	Payload    []byte
}

// EventWriter archives raw dispatches into gateway_events. Register Handle
// with Dispatcher.OnRaw.
type EventWriter struct {
	cfg    Config
	logger *slog.Logger
	filter map[string]struct{}

	// Input from the dispatcher tap
	input *queue.Growable[dispatch.RawDispatch]

	// Database
	db BatchSender

	// Batching
	batch   []eventRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(cfg Config, db BatchSender, logger *slog.Logger) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}

	var filter map[string]struct{}
	if len(cfg.Events) > 0 {
		filter = make(map[string]struct{}, len(cfg.Events))
		for _, name := range cfg.Events {
			filter[name] = struct{}{}
		}
	}

	return &EventWriter{
		cfg:    cfg,
		logger: logger,
		filter: filter,
		input:  queue.NewGrowable[dispatch.RawDispatch](cfg.BufferSize),
		db:     db,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Handle queues raw for archiving. It never blocks.
func (w *EventWriter) Handle(_ context.Context, raw dispatch.RawDispatch) {
	w.batchMu.Lock()
	w.metrics.Received++
	if w.filter != nil {
		if _, ok := w.filter[raw.Name]; !ok {
			w.metrics.Filtered++
			w.batchMu.Unlock()
			return
		}
	}
	w.batchMu.Unlock()

	if !w.input.Push(raw) {
		w.logger.Debug("archive closed, dropping dispatch", "event", raw.Name)
	}
}

// Start begins consuming dispatches and writing to the database.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"events", len(w.cfg.Events),
	)
	return nil
}

// Stop closes the input, writes what is still queued and waits for the
// background loops.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
	}

	// Final flush
	flushCtx := context.WithoutCancel(ctx)
	for _, raw := range w.input.Drain(0) {
		w.add(raw)
	}
	w.flush(flushCtx)

	w.logger.Info("event writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *EventWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		raw, ok := w.input.PopContext(w.ctx)
		if !ok {
			return
		}
		if w.add(raw) {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends a row and reports whether the batch is full.
func (w *EventWriter) add(raw dispatch.RawDispatch) bool {
	row := transform(raw)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

func transform(raw dispatch.RawDispatch) eventRow {
	payload := []byte(raw.Data)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return eventRow{
		ShardID:    raw.ShardID,
		SessionID:  raw.SessionID,
		Seq:        raw.Seq,
		Name:       raw.Name,
		ReceivedAt: raw.ReceivedAt.UnixMicro(),
		Payload:    payload,
	}
}

// flush writes the current batch to the database.
func (w *EventWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// Replayed dispatches after a resume carry the same key and are skipped.
func (w *EventWriter) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO gateway_events (shard_id, session_id, seq, event_name, received_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (shard_id, session_id, seq) DO NOTHING
		`, r.ShardID, r.SessionID, r.Seq, r.Name, r.ReceivedAt, r.Payload)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
