package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/shardline/internal/api"
	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/gateway"
	"github.com/rickgao/shardline/internal/model"
	"github.com/rickgao/shardline/internal/startlimit"
)

// GatewayInfoSource provides the gateway URL, shard count and start limit.
// *api.Client implements it.
type GatewayInfoSource interface {
	GetGatewayInfo(ctx context.Context) (api.GatewayInfo, error)
}

// ManagerStats provides statistics about the shard manager.
type ManagerStats struct {
	ShardCount     int          `json:"shard_count"`
	ConnectedCount int          `json:"connected_count"`
	Shards         []ShardStats `json:"shards"`
}

// ShardStats is the state of one shard.
type ShardStats struct {
	ID          int           `json:"id"`
	State       string        `json:"state"`
	SessionID   string        `json:"session_id,omitempty"`
	Seq         int64         `json:"seq"`
	Latency     time.Duration `json:"latency"`
	Outstanding int32         `json:"outstanding_heartbeats"`
	Queued      int           `json:"queued_dispatches"`
	Cache       cache.Stats   `json:"cache"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionStore persists sessions somewhere other than memory.
func WithSessionStore(store SessionStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithGate uses gate instead of the process-wide start-limit gate.
func WithGate(gate *startlimit.Gate) ManagerOption {
	return func(m *Manager) {
		m.gate = gate
	}
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		m.newClient = f
	}
}

// Manager runs every shard of the process and reconnects them.
type Manager struct {
	cfg        ManagerConfig
	source     GatewayInfoSource
	dispatcher *dispatch.Dispatcher
	store      SessionStore
	gate       *startlimit.Gate
	newClient  ClientFactory
	logger     *slog.Logger

	identities *cache.Identities
	shared     *cache.Cache

	mu         sync.RWMutex
	shards     map[int]*Shard
	shardIDs   []int
	shardCount int
	gatewayURL string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error
}

// NewManager creates a shard manager.
func NewManager(cfg ManagerConfig, source GatewayInfoSource, dispatcher *dispatch.Dispatcher, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = dispatch.New(dispatch.DefaultConfig(), logger)
	}

	m := &Manager{
		cfg:        cfg,
		source:     source,
		dispatcher: dispatcher,
		newClient:  NewClient,
		logger:     logger,
		identities: cache.NewIdentities(),
		shards:     make(map[int]*Shard),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.gate == nil {
		if cfg.StartLimitRelease > 0 && cfg.StartLimitRelease != startlimit.DefaultReleaseAfter {
			m.gate = startlimit.New(cfg.StartLimitRelease)
		} else {
			m.gate = startlimit.Shared()
		}
	}
	return m
}

// Dispatcher returns the dispatcher shards publish to.
func (m *Manager) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

// Start resolves the shard layout and starts every shard. It returns once
// the shards are launched; Wait reports how they ended.
func (m *Manager) Start(ctx context.Context) error {
	info, err := m.source.GetGatewayInfo(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return fmt.Errorf("get gateway info: %w", err)
	}

	count := m.cfg.ShardCount
	if count <= 0 {
		count = max(info.Shards, 1)
	}
	ids := slices.Clone(m.cfg.ShardIDs)
	if len(ids) == 0 {
		for i := range count {
			ids = append(ids, i)
		}
	}
	for _, id := range ids {
		if id < 0 || id >= count {
			return fmt.Errorf("%w: shard id %d outside [0, %d)", ErrNotSupported, id, count)
		}
	}

	limit := info.SessionStartLimit
	if limit.Remaining < len(ids) {
		wait := limit.ResetIn()
		m.logger.Warn("session start limit exhausted, waiting for reset",
			"remaining", limit.Remaining,
			"shards", len(ids),
			"reset_after", wait,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.Lock()
	m.shardCount = count
	m.shardIDs = ids
	m.gatewayURL = info.URL
	if m.cfg.SharedCache {
		m.shared = cache.New(m.cfg.Cache, m.identities, m.logger)
		m.shared.ExpectShards(len(ids))
	}
	for _, id := range ids {
		m.shards[id] = m.newShard(id, count, limit.MaxConcurrency)
	}
	m.mu.Unlock()

	for _, id := range ids {
		sh := m.shards[id]
		snap, ok, err := m.store.Load(ctx, id)
		if err != nil {
			m.logger.Warn("failed to load session", "shard_id", id, "error", err)
			continue
		}
		if ok && snap.SessionID != "" {
			sh.session.Restore(snap)
			m.logger.Info("restored session", "shard_id", id, "session_id", snap.SessionID, "seq", snap.Seq)
		}
	}

	// Pumps outlive the manager context so Stop can drain them.
	pumpCtx := context.WithoutCancel(ctx)
	for _, id := range ids {
		m.shards[id].pump.Start(pumpCtx)
	}

	// A shard that runs out of attempts stops alone; a fatal error stops all.
	var g errgroup.Group
	for _, id := range ids {
		sh := m.shards[id]
		g.Go(func() error {
			err := m.supervise(m.ctx, sh)
			if IsFatal(err) {
				m.cancel()
			}
			return err
		})
	}

	go func() {
		m.err = g.Wait()
		if m.err != nil {
			m.logger.Error("shard manager stopped", "error", m.err)
		}
		close(m.done)
	}()

	m.wg.Add(1)
	go m.saveLoop()

	m.logger.Info("shard manager started",
		"shards", len(ids),
		"shard_count", count,
		"max_concurrency", limit.MaxConcurrency,
		"shared_cache", m.cfg.SharedCache,
	)

	return nil
}

func (m *Manager) newShard(id, count, maxConcurrency int) *Shard {
	c := m.shared
	if c == nil {
		c = cache.New(m.cfg.Cache, m.identities, m.logger.With("shard_id", id))
	}

	cfg := m.cfg.Shard
	cfg.ShardID = id
	cfg.ShardCount = count
	cfg.MaxConcurrency = maxConcurrency

	pump := dispatch.NewPump(m.dispatcher, c, id, m.cfg.QueueSize, m.logger)
	sh := NewShard(cfg, m.gate, pump, m.logger)
	sh.newClient = m.newClient
	return sh
}

// supervise runs one shard until ctx ends, a fatal error occurs, or the
// retry budget is spent.
func (m *Manager) supervise(ctx context.Context, sh *Shard) error {
	base := m.cfg.ReconnectBaseDelay
	if base <= 0 {
		base = DefaultManagerConfig().ReconnectBaseDelay
	}
	delay := base
	attempts := 0

	for {
		err := sh.Run(ctx, m.gatewayURL)
		m.saveSession(sh)

		if ctx.Err() != nil {
			return nil
		}
		if IsFatal(err) {
			m.logger.Error("shard failed permanently", "shard_id", sh.ID(), "error", err)
			return fmt.Errorf("shard %d: %w", sh.ID(), err)
		}

		// A connection that got to READY or RESUMED starts a fresh budget and
		// reconnects immediately.
		if sh.ReachedConnected() || errors.Is(err, errReconnectRequested) {
			attempts = 0
			delay = base
			m.logger.Info("shard disconnected, reconnecting",
				"shard_id", sh.ID(),
				"error", err,
				"resume", sh.session.CanResume(),
			)
			continue
		}

		attempts++
		if m.cfg.ReconnectMaxAttempts >= 0 && attempts > m.cfg.ReconnectMaxAttempts {
			return fmt.Errorf("shard %d: giving up after %d attempts: %w", sh.ID(), attempts-1, err)
		}

		m.logger.Warn("shard connection failed",
			"shard_id", sh.ID(),
			"attempt", attempts,
			"retry_in", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if m.cfg.ReconnectMaxDelay > 0 && delay > m.cfg.ReconnectMaxDelay {
			delay = m.cfg.ReconnectMaxDelay
		}
	}
}

func (m *Manager) saveLoop() {
	defer m.wg.Done()

	interval := m.cfg.SessionSaveInterval
	if interval <= 0 {
		interval = DefaultManagerConfig().SessionSaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			for _, sh := range m.Shards() {
				m.saveSession(sh)
			}
		}
	}
}

func (m *Manager) saveSession(sh *Shard) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 5*time.Second)
	defer cancel()

	var err error
	if sh.session.ID() == "" {
		err = m.store.Delete(ctx, sh.ID())
	} else {
		err = m.store.Save(ctx, sh.session.Snapshot(sh.ID()))
	}
	if err != nil {
		m.logger.Warn("failed to persist session", "shard_id", sh.ID(), "error", err)
	}
}

// Stop closes every shard, drains the dispatch queues and persists sessions.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping shard manager")

	if m.cancel == nil {
		return nil
	}
	m.cancel()

	select {
	case <-m.done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, shards still closing")
	}
	m.wg.Wait()

	var errs []error
	for _, sh := range m.Shards() {
		m.saveSession(sh)
		if err := sh.pump.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop shard %d pump: %w", sh.ID(), err))
		}
	}
	if err := m.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for handlers: %w", err))
	}

	m.logger.Info("shard manager stopped")
	return errors.Join(errs...)
}

// Wait blocks until every shard has stopped and returns the first fatal
// error, or nil on shutdown.
func (m *Manager) Wait() error {
	<-m.done
	return m.err
}

// Done is closed when every shard has stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns the terminal error once Done is closed.
func (m *Manager) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Shards returns the running shards ordered by id.
func (m *Manager) Shards() []*Shard {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Shard, 0, len(m.shardIDs))
	for _, id := range m.shardIDs {
		out = append(out, m.shards[id])
	}
	return out
}

// Shard returns the shard with id.
func (m *Manager) Shard(id int) (*Shard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sh, ok := m.shards[id]
	return sh, ok
}

// ShardCount returns the total number of shards of the application.
func (m *Manager) ShardCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shardCount
}

// shardForGuild returns the local shard responsible for guildID.
func (m *Manager) shardForGuild(guildID snowflake.ID) (*Shard, bool) {
	return m.Shard(model.ShardForGuild(guildID, m.ShardCount()))
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	shards := m.Shards()
	stats := ManagerStats{ShardCount: m.ShardCount()}

	for _, sh := range shards {
		st := sh.State()
		if st == StateConnected {
			stats.ConnectedCount++
		}
		stats.Shards = append(stats.Shards, ShardStats{
			ID:          sh.ID(),
			State:       st.String(),
			SessionID:   sh.session.ID(),
			Seq:         sh.session.Seq(),
			Latency:     sh.session.Latency(),
			Outstanding: sh.session.Outstanding(),
			Queued:      sh.pump.Stats().Queued,
			Cache:       sh.Cache().Stats(),
		})
	}
	return stats
}

// GetCachedGuild returns a copy of a cached guild.
func (m *Manager) GetCachedGuild(id snowflake.ID) (*model.Guild, bool) {
	sh, ok := m.shardForGuild(id)
	if !ok {
		return nil, false
	}
	return sh.Cache().Guild(id)
}

// GetCachedChannel returns a copy of a cached guild channel.
func (m *Manager) GetCachedChannel(id snowflake.ID) (*model.Channel, bool) {
	for _, c := range m.caches() {
		if ch, ok := c.Channel(id); ok {
			return ch, true
		}
	}
	return nil, false
}

// GetCachedThread returns a copy of a cached thread.
func (m *Manager) GetCachedThread(id snowflake.ID) (*model.Channel, bool) {
	for _, c := range m.caches() {
		if th, ok := c.Thread(id); ok {
			return th, true
		}
	}
	return nil, false
}

// GetCachedUser returns a copy of a cached user. Users are process-wide.
func (m *Manager) GetCachedUser(id snowflake.ID) (*model.User, bool) {
	return m.identities.User(id)
}

func (m *Manager) caches() []*cache.Cache {
	if m.shared != nil {
		return []*cache.Cache{m.shared}
	}
	shards := m.Shards()
	out := make([]*cache.Cache, 0, len(shards))
	for _, sh := range shards {
		out = append(out, sh.Cache())
	}
	return out
}

// UpdatePresence sets the presence on every connected shard.
func (m *Manager) UpdatePresence(ctx context.Context, p gateway.UpdatePresence) error {
	var errs []error
	for _, sh := range m.Shards() {
		if err := sh.Send(ctx, gateway.OpPresenceUpdate, p); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", sh.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// RequestGuildMembers asks the guild's shard for member chunks. It returns
// the nonce that the resulting chunks carry.
func (m *Manager) RequestGuildMembers(ctx context.Context, req gateway.RequestGuildMembers) (string, error) {
	sh, ok := m.shardForGuild(req.GuildID)
	if !ok {
		return "", fmt.Errorf("guild %s is not on a local shard", req.GuildID)
	}
	if req.Nonce == "" {
		// Nonces are limited to 32 bytes.
		req.Nonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if req.Query == nil && len(req.UserIDs) == 0 {
		empty := ""
		req.Query = &empty
	}
	if err := sh.Send(ctx, gateway.OpRequestGuildMembers, req); err != nil {
		return "", err
	}
	return req.Nonce, nil
}
