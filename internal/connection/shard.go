package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/gateway"
	"github.com/rickgao/shardline/internal/startlimit"
)

// Shard owns one gateway session. Run drives a single connection lifetime;
// the manager calls it again to reconnect.
type Shard struct {
	cfg       ShardConfig
	gate      *startlimit.Gate
	pump      *dispatch.Pump
	session   *Session
	limiter   *rate.Limiter
	newClient ClientFactory
	logger    *slog.Logger

	state     atomic.Int32
	connected atomic.Bool // reached Connected during the current Run

	mu   sync.Mutex
	conn *conn
}

// NewShard creates a shard. gate is normally startlimit.Shared().
func NewShard(cfg ShardConfig, gate *startlimit.Gate, pump *dispatch.Pump, logger *slog.Logger) *Shard {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = startlimit.Shared()
	}
	if cfg.SendLimit <= 0 || cfg.SendPeriod <= 0 {
		def := DefaultShardConfig()
		cfg.SendLimit, cfg.SendPeriod = def.SendLimit, def.SendPeriod
	}
	if cfg.MaxMissedHeartbeats <= 0 {
		cfg.MaxMissedHeartbeats = DefaultShardConfig().MaxMissedHeartbeats
	}

	return &Shard{
		cfg:       cfg,
		gate:      gate,
		pump:      pump,
		session:   &Session{},
		limiter:   rate.NewLimiter(rate.Every(cfg.SendPeriod/time.Duration(cfg.SendLimit)), cfg.SendLimit),
		newClient: NewClient,
		logger:    logger.With("shard_id", cfg.ShardID),
	}
}

// ID returns the shard id.
func (s *Shard) ID() int {
	return s.cfg.ShardID
}

// State returns the current connection state.
func (s *Shard) State() State {
	return State(s.state.Load())
}

func (s *Shard) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Debug("shard state changed", "from", prev, "to", st)
	}
}

// Session returns the shard's session.
func (s *Shard) Session() *Session {
	return s.session
}

// Cache returns the cache this shard's dispatches are merged into.
func (s *Shard) Cache() *cache.Cache {
	return s.pump.Cache()
}

// Pump returns the shard's dispatch pump.
func (s *Shard) Pump() *dispatch.Pump {
	return s.pump
}

// Send writes a command on the current connection, waiting on the outbound
// rate limit.
func (s *Shard) Send(ctx context.Context, op gateway.Opcode, d any) error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil || s.State() != StateConnected {
		return ErrNotConnected
	}
	return c.send(ctx, op, d)
}

// Run connects to gatewayURL (or the session's resume URL) and blocks until
// the connection ends. It resumes when the session allows it and identifies
// otherwise. The returned error is never nil; ctx.Err() on shutdown.
func (s *Shard) Run(ctx context.Context, gatewayURL string) error {
	base := gatewayURL
	if s.session.CanResume() && s.session.ResumeURL() != "" {
		base = s.session.ResumeURL()
	}
	url, err := gateway.URL(base, s.cfg.APIVersion, s.cfg.Compression)
	if err != nil {
		return fmt.Errorf("build gateway url: %w", err)
	}

	s.connected.Store(false)
	s.session.ResetHeartbeats()
	s.setState(StateConnecting)

	client := s.newClient(s.cfg.Client, s.logger)
	if err := client.Connect(ctx, url); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("dial gateway: %w", err)
	}

	c := s.newConn(ctx, client)

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	s.setState(StateAwaitingHello)
	s.logger.Info("connected to gateway", "url", url, "resuming", s.session.CanResume())

	err = c.run()
	c.teardown(ctx.Err() != nil)

	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()

	return err
}

func (s *Shard) newConn(ctx context.Context, client Client) *conn {
	connCtx, cancel := context.WithCancel(ctx)
	return &conn{
		shard:    s,
		client:   client,
		inflater: gateway.NewInflater(s.cfg.Compression),
		ctx:      connCtx,
		cancel:   cancel,
		failc:    make(chan error, 1),
	}
}

// ReachedConnected reports whether the last Run got a READY or RESUMED.
func (s *Shard) ReachedConnected() bool {
	return s.connected.Load()
}

func (s *Shard) markConnected() {
	s.connected.Store(true)
	s.setState(StateConnected)
}

// classifyClose turns a socket error into the shard's error vocabulary.
func (s *Shard) classifyClose(err error) error {
	var ce *CloseError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Action() {
	case gateway.CloseFatalAuth:
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, ce)
	case gateway.CloseFatalUnsupported:
		return fmt.Errorf("%w: %w", ErrNotSupported, ce)
	case gateway.CloseReidentify:
		s.logger.Warn("session invalidated by close code", "code", ce.Code)
		s.session.Clear()
	}
	return ce
}

// IsFatal reports whether err must stop reconnecting.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrNotSupported)
}

// conn is the state of one connection lifetime.
type conn struct {
	shard    *Shard
	client   Client
	inflater *gateway.Inflater

	ctx    context.Context
	cancel context.CancelFunc
	failc  chan error

	helloSeen bool

	// closed is set by teardown; tickets acquired after it are freed at once.
	ticketMu sync.Mutex
	ticket   *startlimit.Ticket
	closed   bool

	closeOnce sync.Once
}

func (c *conn) run() error {
	s := c.shard

	hello := time.NewTimer(s.cfg.HelloTimeout)
	defer hello.Stop()
	helloC := hello.C
	if s.cfg.HelloTimeout <= 0 {
		helloC = nil
	}

	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()

		case err := <-c.failc:
			return err

		case err := <-c.client.Errors():
			// Frames read before the close still carry sequence numbers.
			if derr := c.drain(); derr != nil {
				return derr
			}
			return s.classifyClose(err)

		case frame := <-c.client.Messages():
			if err := c.handleFrame(frame); err != nil {
				return err
			}
			if c.helloSeen && helloC != nil {
				hello.Stop()
				helloC = nil
			}

		case <-helloC:
			return ErrHelloTimeout
		}
	}
}

func (c *conn) drain() error {
	for {
		select {
		case frame := <-c.client.Messages():
			if err := c.handleFrame(frame); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (c *conn) handleFrame(frame Frame) error {
	s := c.shard

	data, complete, err := c.inflater.Decode(frame.Data, frame.Binary)
	if err != nil {
		if errors.Is(err, gateway.ErrStreamBroken) {
			return err
		}
		s.logger.Warn("failed to decode frame", "error", err)
		return nil
	}
	if !complete {
		return nil
	}

	p, err := gateway.DecodePayload(data)
	if err != nil {
		s.logger.Warn("failed to parse payload", "error", err, "size", len(data))
		return nil
	}
	return c.handlePayload(p, frame.ReceivedAt)
}

func (c *conn) handlePayload(p gateway.Payload, receivedAt time.Time) error {
	s := c.shard

	switch p.Op {
	case gateway.OpHello:
		if c.helloSeen {
			s.logger.Debug("duplicate hello ignored")
			return nil
		}
		var h gateway.Hello
		if err := json.Unmarshal(p.D, &h); err != nil {
			return fmt.Errorf("decode hello: %w", err)
		}
		if h.HeartbeatInterval <= 0 {
			return fmt.Errorf("invalid heartbeat interval %d", h.HeartbeatInterval)
		}
		c.helloSeen = true
		s.session.SetInterval(h.Interval())

		go c.heartbeat(h.Interval())
		go c.authenticate()

	case gateway.OpHeartbeatAck:
		s.session.Acked()

	case gateway.OpHeartbeat:
		return c.beat()

	case gateway.OpReconnect:
		s.logger.Info("gateway requested reconnect")
		return errReconnectRequested

	case gateway.OpInvalidSession:
		var resumable bool
		_ = json.Unmarshal(p.D, &resumable)
		s.logger.Warn("invalid session", "resumable", resumable)
		if !resumable {
			s.session.Clear()
		}
		go c.reauthenticate(s.cfg.InvalidSessionDelay)

	case gateway.OpDispatch:
		var seq int64
		if p.S != nil {
			seq = *p.S
			s.session.SetSeq(seq)
		}

		switch p.T {
		case "READY":
			var r gateway.Ready
			if err := json.Unmarshal(p.D, &r); err != nil {
				return fmt.Errorf("decode ready: %w", err)
			}
			s.session.Set(r.SessionID, r.ResumeGatewayURL)
			s.markConnected()
			s.logger.Info("session ready", "session_id", r.SessionID, "guilds", len(r.Guilds))
		case "RESUMED":
			s.markConnected()
			s.logger.Info("session resumed", "seq", seq)
		}

		if !s.pump.Enqueue(dispatch.RawDispatch{
			ShardID:    s.cfg.ShardID,
			SessionID:  s.session.ID(),
			Seq:        seq,
			Name:       p.T,
			Data:       p.D,
			ReceivedAt: receivedAt,
		}) {
			s.logger.Debug("dispatch dropped after pump stop", "event", p.T)
		}

	default:
		s.logger.Debug("unhandled opcode", "op", p.Op)
	}

	return nil
}

// authenticate resumes when the session allows it and identifies otherwise.
func (c *conn) authenticate() {
	if err := c.identifyOrResume(); err != nil && c.ctx.Err() == nil {
		c.fail(err)
	}
}

func (c *conn) reauthenticate(delay time.Duration) {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	c.authenticate()
}

func (c *conn) identifyOrResume() error {
	s := c.shard

	if s.session.CanResume() {
		s.setState(StateResuming)
		return c.send(c.ctx, gateway.OpResume, gateway.Resume{
			Token:     s.cfg.Token,
			SessionID: s.session.ID(),
			Seq:       s.session.Seq(),
		})
	}

	s.setState(StateIdentifying)
	ticket, err := s.gate.Acquire(c.ctx, s.cfg.ApplicationID, s.cfg.MaxConcurrency, s.cfg.ShardID)
	if err != nil {
		return err
	}
	if !c.setTicket(ticket) {
		return c.ctx.Err()
	}

	err = c.send(c.ctx, gateway.OpIdentify, gateway.Identify{
		Token:          s.cfg.Token,
		Properties:     s.cfg.Properties,
		Compress:       s.cfg.Compression == gateway.CompressionPayload,
		LargeThreshold: s.cfg.LargeThreshold,
		Shard:          [2]int{s.cfg.ShardID, s.cfg.ShardCount},
		Presence:       s.cfg.Presence,
		Intents:        s.cfg.Intents,
	})
	if err != nil {
		c.releaseTicket()
		return err
	}
	ticket.Used()
	s.logger.Debug("identify sent", "bucket", ticket.Bucket)
	return nil
}

// setTicket stores t, releasing any previous ticket. It reports false and
// releases t if the connection was already torn down.
func (c *conn) setTicket(t *startlimit.Ticket) bool {
	c.ticketMu.Lock()
	if c.closed {
		c.ticketMu.Unlock()
		t.Release()
		return false
	}
	prev := c.ticket
	c.ticket = t
	c.ticketMu.Unlock()
	if prev != nil {
		prev.Release()
	}
	return true
}

// releaseTicket frees an unused ticket now. A used one keeps its timed
// release.
func (c *conn) releaseTicket() {
	c.ticketMu.Lock()
	t := c.ticket
	c.ticket = nil
	c.ticketMu.Unlock()
	if t != nil {
		t.Release()
	}
}

func (c *conn) heartbeat(interval time.Duration) {
	// The first beat is jittered so shards do not beat in lockstep.
	t := time.NewTimer(time.Duration(rand.Float64() * float64(interval)))
	defer t.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
		if err := c.beat(); err != nil {
			c.fail(err)
			return
		}
		t.Reset(interval)
	}
}

// beat sends one heartbeat, or reports a zombied connection.
func (c *conn) beat() error {
	s := c.shard

	if n := s.session.Outstanding(); n > int32(s.cfg.MaxMissedHeartbeats) {
		if s.Cache().AllGuildsDownloaded() {
			s.setState(StateZombie)
			s.logger.Warn("connection zombied", "outstanding", n)
			return ErrZombie
		}
		s.logger.Warn("heartbeats unacknowledged while guilds are downloading", "outstanding", n)
	}

	var d any
	if seq := s.session.Seq(); seq > 0 {
		d = seq
	}
	p, err := gateway.NewPayload(gateway.OpHeartbeat, d)
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.session.Sent()
	if err := c.client.Send(data); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

// send writes a rate-limited command. Heartbeats go through beat.
func (c *conn) send(ctx context.Context, op gateway.Opcode, d any) error {
	p, err := gateway.NewPayload(op, d)
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if err := c.shard.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send %s: %w", op, err)
	}
	if err := c.client.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", op, err)
	}
	return nil
}

func (c *conn) fail(err error) {
	select {
	case c.failc <- err:
	default:
	}
}

// teardown is idempotent: cancel background work, free the start-limit
// ticket, close the socket.
func (c *conn) teardown(shutdown bool) {
	c.closeOnce.Do(func() {
		s := c.shard
		c.cancel()

		c.ticketMu.Lock()
		c.closed = true
		c.ticketMu.Unlock()
		c.releaseTicket()

		code := gateway.CloseReconnecting
		if shutdown && !s.cfg.KeepSessionOnStop {
			code = 1000
			s.session.Clear()
		}
		if err := c.client.Close(code); err != nil {
			s.logger.Debug("close socket", "error", err)
		}
		c.inflater.Close()
		s.setState(StateDisconnected)
	})
}
