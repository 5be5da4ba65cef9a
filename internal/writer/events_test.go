package writer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/shardline/internal/dispatch"
)

// fakeSender records batches. Rows whose key was already seen report zero
// rows affected, like ON CONFLICT DO NOTHING.
type fakeSender struct {
	mu      sync.Mutex
	seen    map[[3]any]bool
	batches []int
	err     error
}

func newFakeSender() *fakeSender {
	return &fakeSender{seen: make(map[[3]any]bool)}
}

func (f *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := &fakeResults{err: f.err}
	f.batches = append(f.batches, b.Len())
	for _, q := range b.QueuedQueries {
		key := [3]any{q.Arguments[0], q.Arguments[1], q.Arguments[2]}
		res.affected = append(res.affected, !f.seen[key])
		f.seen[key] = true
	}
	return res
}

func (f *fakeSender) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batches...)
}

type fakeResults struct {
	affected []bool
	i        int
	err      error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	ok := r.affected[r.i]
	r.i++
	if ok {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func raw(seq int64, name string) dispatch.RawDispatch {
	return dispatch.RawDispatch{
		ShardID:    1,
		SessionID:  "abc",
		Seq:        seq,
		Name:       name,
		Data:       json.RawMessage(`{"id":"1"}`),
		ReceivedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestEventWriter_Transform(t *testing.T) {
	r := raw(42, "MESSAGE_CREATE")
	row := transform(r)

	if row.ShardID != 1 || row.SessionID != "abc" || row.Seq != 42 {
		t.Errorf("key = (%d, %s, %d), want (1, abc, 42)", row.ShardID, row.SessionID, row.Seq)
	}
	if row.Name != "MESSAGE_CREATE" {
		t.Errorf("Name = %s, want MESSAGE_CREATE", row.Name)
	}
	if row.ReceivedAt != r.ReceivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, r.ReceivedAt.UnixMicro())
	}
	if string(row.Payload) != `{"id":"1"}` {
		t.Errorf("Payload = %s", row.Payload)
	}

	r.Data = nil
	if got := string(transform(r).Payload); got != "null" {
		t.Errorf("empty payload stored as %q, want null", got)
	}
}

func TestEventWriter_FlushOnBatchSize(t *testing.T) {
	db := newFakeSender()
	w := NewEventWriter(Config{BatchSize: 3, FlushInterval: time.Hour}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := int64(1); i <= 3; i++ {
		w.Handle(ctx, raw(i, "TYPING_START"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Flushes == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stats := w.Stats()
	if stats.Flushes != 1 || stats.Inserts != 3 {
		t.Errorf("stats = %+v, want 1 flush of 3 inserts", stats)
	}

	if err := w.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestEventWriter_FlushOnInterval(t *testing.T) {
	db := newFakeSender()
	w := NewEventWriter(Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(ctx)

	w.Handle(ctx, raw(1, "GUILD_CREATE"))

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Inserts == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := w.Stats().Inserts; got != 1 {
		t.Errorf("Inserts = %d, want 1", got)
	}
}

func TestEventWriter_StopFlushesRemaining(t *testing.T) {
	db := newFakeSender()
	w := NewEventWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		w.Handle(ctx, raw(i, "PRESENCE_UPDATE"))
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := w.Stats().Inserts; got != 5 {
		t.Errorf("Inserts = %d, want 5", got)
	}

	// Handle after Stop is dropped.
	w.Handle(ctx, raw(6, "PRESENCE_UPDATE"))
	if got := w.Stats().Inserts; got != 5 {
		t.Errorf("Inserts after stop = %d, want 5", got)
	}
}

func TestEventWriter_ReplayedDispatchesConflict(t *testing.T) {
	db := newFakeSender()
	w := NewEventWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Handle(ctx, raw(1, "MESSAGE_CREATE"))
	w.Handle(ctx, raw(2, "MESSAGE_CREATE"))
	w.Handle(ctx, raw(2, "MESSAGE_CREATE"))
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := w.Stats()
	if stats.Inserts != 2 || stats.Conflicts != 1 {
		t.Errorf("stats = %+v, want 2 inserts and 1 conflict", stats)
	}
}

func TestEventWriter_Filter(t *testing.T) {
	db := newFakeSender()
	w := NewEventWriter(Config{BatchSize: 100, FlushInterval: time.Hour, Events: []string{"MESSAGE_CREATE"}}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Handle(ctx, raw(1, "MESSAGE_CREATE"))
	w.Handle(ctx, raw(2, "TYPING_START"))
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := w.Stats()
	if stats.Received != 2 || stats.Filtered != 1 || stats.Inserts != 1 {
		t.Errorf("stats = %+v, want 2 received, 1 filtered, 1 insert", stats)
	}
	if sizes := db.batchSizes(); len(sizes) != 1 || sizes[0] != 1 {
		t.Errorf("batches = %v, want [1]", sizes)
	}
}

func TestEventWriter_InsertError(t *testing.T) {
	db := newFakeSender()
	db.err = errors.New("relation does not exist")
	w := NewEventWriter(Config{BatchSize: 100, FlushInterval: time.Hour}, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Handle(ctx, raw(1, "READY"))
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := w.Stats()
	if stats.Errors != 1 || stats.Inserts != 0 {
		t.Errorf("stats = %+v, want 1 error and no inserts", stats)
	}
}
