package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL              = "https://discord.com/api/v10"
	DefaultAPIVersion           = 10
	DefaultLargeThreshold       = 250
	DefaultCompression          = "stream"
	DefaultStatus               = "online"
	DefaultReconnectBaseDelay   = 7500 * time.Millisecond
	DefaultReconnectMaxDelay    = 2 * time.Minute
	DefaultReconnectMaxAttempts = 5
	DefaultInvalidSessionDelay  = 6 * time.Second
	DefaultHelloTimeout         = 20 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultMaxMissedHeartbeats  = 5
	DefaultStartLimitRelease    = 5 * time.Second
	DefaultSendLimit            = 120
	DefaultSendPeriod           = 60 * time.Second
	DefaultSessionSaveInterval  = 10 * time.Second
	DefaultHandlerTimeout       = 1 * time.Second
	DefaultQueueSize            = 256
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultBufferSize           = 10000
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultHealthPort           = 8080
)

// DefaultIntents is used when discord.intents is empty.
var DefaultIntents = []string{"non_privileged"}

func (c *GatewayConfig) applyDefaults() {
	// Discord defaults
	if c.Discord.RestURL == "" {
		c.Discord.RestURL = DefaultRestURL
	}
	if c.Discord.APIVersion == 0 {
		c.Discord.APIVersion = DefaultAPIVersion
	}
	if len(c.Discord.Intents) == 0 {
		c.Discord.Intents = append([]string(nil), DefaultIntents...)
	}
	if c.Discord.LargeThreshold == 0 {
		c.Discord.LargeThreshold = DefaultLargeThreshold
	}
	if c.Discord.Compression == "" {
		c.Discord.Compression = DefaultCompression
	}
	if c.Discord.Status == "" {
		c.Discord.Status = DefaultStatus
	}

	// Connections defaults
	conn := &c.Connections
	if conn.ReconnectBaseDelay == 0 {
		conn.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if conn.ReconnectMaxDelay == 0 {
		conn.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if conn.ReconnectMaxAttempts == 0 {
		conn.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}
	if conn.InvalidSessionDelay == 0 {
		conn.InvalidSessionDelay = DefaultInvalidSessionDelay
	}
	if conn.HelloTimeout == 0 {
		conn.HelloTimeout = DefaultHelloTimeout
	}
	if conn.HandshakeTimeout == 0 {
		conn.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.MaxMissedHeartbeats == 0 {
		conn.MaxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	if conn.StartLimitRelease == 0 {
		conn.StartLimitRelease = DefaultStartLimitRelease
	}
	if conn.SendLimit == 0 {
		conn.SendLimit = DefaultSendLimit
	}
	if conn.SendPeriod == 0 {
		conn.SendPeriod = DefaultSendPeriod
	}
	if conn.SessionSaveInterval == 0 {
		conn.SessionSaveInterval = DefaultSessionSaveInterval
	}

	// Dispatch defaults
	if c.Dispatch.HandlerTimeout == 0 {
		c.Dispatch.HandlerTimeout = DefaultHandlerTimeout
	}
	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = DefaultQueueSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
