package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/gateway"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")

	// ErrAuthenticationFailed is fatal: the token was rejected (close 4004 or
	// REST 401). It stops every retry loop.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotSupported is fatal: the gateway rejected the requested shard,
	// version or intents. No retry.
	ErrNotSupported = errors.New("gateway configuration not supported")

	// ErrZombie means too many heartbeats went unacknowledged after every
	// guild was downloaded; the connection is dropped and resumed.
	ErrZombie = errors.New("zombied connection")

	// ErrHelloTimeout means no Hello arrived within the handshake timeout.
	ErrHelloTimeout = errors.New("hello timeout")

	// errReconnectRequested is the server's Reconnect opcode. It is a
	// lifecycle transition, not a failure.
	errReconnectRequested = errors.New("reconnect requested")
)

// CloseError is a close frame received from the gateway.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("gateway closed: %d %s", e.Code, e.Reason)
}

// Action returns what the client should do next.
func (e *CloseError) Action() gateway.CloseAction {
	return gateway.ClassifyClose(e.Code)
}

// Frame is one received WebSocket message.
type Frame struct {
	Data       []byte    // Raw message bytes from WebSocket
	Binary     bool      // Binary frames carry compressed payloads
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Frame channel buffer size
	UserAgent        string
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// ShardConfig configures one shard's connection.
type ShardConfig struct {
	ShardID    int
	ShardCount int

	Token          string
	ApplicationID  snowflake.ID
	MaxConcurrency int // start-limit concurrency from /gateway/bot
	Intents        gateway.Intents
	LargeThreshold int
	Compression    gateway.Compression
	APIVersion     int
	Presence       *gateway.UpdatePresence
	Properties     gateway.IdentifyProperties

	HelloTimeout        time.Duration // Max wait for Hello after dial
	InvalidSessionDelay time.Duration // Wait before re-authenticating after op 9
	MaxMissedHeartbeats int           // Unacked heartbeats tolerated before zombie handling

	SendLimit  int           // Outbound payloads allowed per SendPeriod
	SendPeriod time.Duration // Window for SendLimit

	// KeepSessionOnStop closes with a resumable code on shutdown so a
	// persisted session can be resumed by the next process.
	KeepSessionOnStop bool

	Client ClientConfig
}

// DefaultShardConfig returns defaults for every field except identity.
func DefaultShardConfig() ShardConfig {
	return ShardConfig{
		ShardCount:          1,
		MaxConcurrency:      1,
		Intents:             gateway.IntentsNonPrivileged,
		LargeThreshold:      250,
		Compression:         gateway.CompressionStream,
		APIVersion:          gateway.DefaultVersion,
		Properties:          gateway.IdentifyProperties{OS: "linux", Browser: "shardline", Device: "shardline"},
		HelloTimeout:        20 * time.Second,
		InvalidSessionDelay: 6 * time.Second,
		MaxMissedHeartbeats: 5,
		SendLimit:           120,
		SendPeriod:          60 * time.Second,
		Client:              DefaultClientConfig(),
	}
}

// ManagerConfig configures the shard manager.
type ManagerConfig struct {
	Shard ShardConfig // Template; ShardID and ShardCount are filled per shard

	ShardCount int   // 0 = use the recommended count from the REST API
	ShardIDs   []int // Empty = every shard in [0, ShardCount)

	ReconnectBaseDelay   time.Duration // First retry delay, doubled per attempt
	ReconnectMaxDelay    time.Duration // Cap for the doubled delay
	ReconnectMaxAttempts int           // Consecutive failures before giving up; -1 = unbounded

	SharedCache bool         // One cache for every shard instead of one per shard
	Cache       cache.Policy // Member persistence policy

	QueueSize           int           // Initial per-shard dispatch queue capacity
	SessionSaveInterval time.Duration // How often session snapshots are persisted
	StartLimitRelease   time.Duration // Start-limit bucket cooldown
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Shard:                DefaultShardConfig(),
		ReconnectBaseDelay:   7500 * time.Millisecond,
		ReconnectMaxDelay:    2 * time.Minute,
		ReconnectMaxAttempts: 5,
		QueueSize:            256,
		SessionSaveInterval:  10 * time.Second,
		StartLimitRelease:    5 * time.Second,
	}
}
