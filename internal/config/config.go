// Package config loads the gateway process configuration from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// GatewayConfig is the top-level configuration of a shardline process.
type GatewayConfig struct {
	Instance    InstanceConfig    `yaml:"instance" toml:"instance"`
	Discord     DiscordConfig     `yaml:"discord" toml:"discord"`
	Connections ConnectionsConfig `yaml:"connections" toml:"connections"`
	Cache       CacheConfig       `yaml:"cache" toml:"cache"`
	Dispatch    DispatchConfig    `yaml:"dispatch" toml:"dispatch"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Archive     ArchiveConfig     `yaml:"archive" toml:"archive"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
	Health      HealthConfig      `yaml:"health" toml:"health"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id" toml:"id"`
}

// DiscordConfig holds the bot identity and the shard layout.
type DiscordConfig struct {
	Token          string   `yaml:"token" toml:"token"`
	TokenFile      string   `yaml:"token_file" toml:"token_file"`
	RestURL        string   `yaml:"rest_url" toml:"rest_url"`
	APIVersion     int      `yaml:"api_version" toml:"api_version"`
	Intents        []string `yaml:"intents" toml:"intents"`
	ShardCount     int      `yaml:"shard_count" toml:"shard_count"` // 0 = recommended count
	ShardIDs       []int    `yaml:"shard_ids" toml:"shard_ids"`     // empty = all shards
	LargeThreshold int      `yaml:"large_threshold" toml:"large_threshold"`
	Compression    string   `yaml:"compression" toml:"compression"`
	Status         string   `yaml:"status" toml:"status"`
	Activity       string   `yaml:"activity" toml:"activity"`
}

// ConnectionsConfig holds reconnect, heartbeat and rate-limit settings.
type ConnectionsConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay" toml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay" toml:"reconnect_max_delay"`
	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts" toml:"reconnect_max_attempts"` // -1 = unbounded
	InvalidSessionDelay  time.Duration `yaml:"invalid_session_delay" toml:"invalid_session_delay"`
	HelloTimeout         time.Duration `yaml:"hello_timeout" toml:"hello_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	MaxMissedHeartbeats  int           `yaml:"max_missed_heartbeats" toml:"max_missed_heartbeats"`
	StartLimitRelease    time.Duration `yaml:"start_limit_release" toml:"start_limit_release"`
	SendLimit            int           `yaml:"send_limit" toml:"send_limit"`
	SendPeriod           time.Duration `yaml:"send_period" toml:"send_period"`
	SessionSaveInterval  time.Duration `yaml:"session_save_interval" toml:"session_save_interval"`
	KeepSessionOnStop    bool          `yaml:"keep_session_on_stop" toml:"keep_session_on_stop"`
}

// CacheConfig selects cache layout and member retention.
type CacheConfig struct {
	Shared             bool `yaml:"shared" toml:"shared"`
	TrackMembers       bool `yaml:"track_members" toml:"track_members"`
	AlwaysCacheMembers bool `yaml:"always_cache_members" toml:"always_cache_members"`
}

// DispatchConfig holds subscriber invocation settings.
type DispatchConfig struct {
	HandlerTimeout        time.Duration `yaml:"handler_timeout" toml:"handler_timeout"`
	MaxConcurrentHandlers int64         `yaml:"max_concurrent_handlers" toml:"max_concurrent_handlers"`
	QueueSize             int           `yaml:"queue_size" toml:"queue_size"`
}

// DatabaseConfig holds the optional Postgres connection.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Postgres DBConfig `yaml:"postgres" toml:"postgres"`
}

// DBConfig holds connection settings for a single database.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// ArchiveConfig controls the raw dispatch archive. It needs the database.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled" toml:"enabled"`
	Events        []string      `yaml:"events" toml:"events"` // empty = every event
	BatchSize     int           `yaml:"batch_size" toml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval" toml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size" toml:"buffer_size"`
}

// LoggingConfig selects the log level, format and optional file.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text, json or pretty
	File   string `yaml:"file" toml:"file"`
}

// HealthConfig configures the HTTP health endpoint.
type HealthConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Load reads a config file, expanding ${VAR} references. Files ending in
// .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg GatewayConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return &cfg, nil
}

// LoadWithDefaults loads a config and fills every unset optional field.
func LoadWithDefaults(path string) (*GatewayConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads, applies defaults and validates.
func LoadAndValidate(path string) (*GatewayConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
