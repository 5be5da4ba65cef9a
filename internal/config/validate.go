package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/shardline/internal/gateway"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Discord.validate(); err != nil {
		return err
	}

	if c.Connections.ReconnectMaxAttempts < -1 {
		return fmt.Errorf("connections.reconnect_max_attempts must be >= -1, got %d", c.Connections.ReconnectMaxAttempts)
	}
	if c.Connections.MaxMissedHeartbeats < 1 {
		return errors.New("connections.max_missed_heartbeats must be >= 1")
	}
	if c.Connections.SendLimit < 1 {
		return errors.New("connections.send_limit must be >= 1")
	}
	if c.Connections.SendPeriod <= 0 {
		return errors.New("connections.send_period must be > 0")
	}
	if c.Connections.ReconnectMaxDelay < c.Connections.ReconnectBaseDelay {
		return fmt.Errorf("connections.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.Connections.ReconnectMaxDelay, c.Connections.ReconnectBaseDelay)
	}

	if c.Dispatch.MaxConcurrentHandlers < 0 {
		return errors.New("dispatch.max_concurrent_handlers must be >= 0")
	}
	if c.Dispatch.QueueSize < 1 {
		return errors.New("dispatch.queue_size must be >= 1")
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Archive.Enabled {
		if !c.Database.Enabled {
			return errors.New("archive.enabled requires database.enabled")
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be text, json or pretty, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (d *DiscordConfig) validate() error {
	if d.Token == "" && d.TokenFile == "" {
		return errors.New("discord.token is required")
	}
	if d.APIVersion < 9 {
		return fmt.Errorf("discord.api_version must be >= 9, got %d", d.APIVersion)
	}
	if _, err := gateway.ParseIntents(d.Intents); err != nil {
		return fmt.Errorf("discord.intents: %w", err)
	}
	if _, err := gateway.ParseCompression(d.Compression); err != nil {
		return fmt.Errorf("discord.compression: %w", err)
	}
	if d.ShardCount < 0 {
		return errors.New("discord.shard_count must be >= 0")
	}
	if len(d.ShardIDs) > 0 && d.ShardCount == 0 {
		return errors.New("discord.shard_ids requires discord.shard_count")
	}
	for _, id := range d.ShardIDs {
		if id < 0 || id >= d.ShardCount {
			return fmt.Errorf("discord.shard_ids: %d outside [0, %d)", id, d.ShardCount)
		}
	}
	if d.LargeThreshold < 50 || d.LargeThreshold > 250 {
		return fmt.Errorf("discord.large_threshold must be between 50 and 250, got %d", d.LargeThreshold)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
