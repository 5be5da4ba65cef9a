package config

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/connection"
	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/gateway"
	"github.com/rickgao/shardline/internal/model"
	"github.com/rickgao/shardline/internal/version"
)

// ManagerConfig translates the loaded configuration into shard manager
// settings for the given bot identity. Call it on a validated config.
func (c *GatewayConfig) ManagerConfig(token string, appID snowflake.ID) (connection.ManagerConfig, error) {
	intents, err := gateway.ParseIntents(c.Discord.Intents)
	if err != nil {
		return connection.ManagerConfig{}, fmt.Errorf("discord.intents: %w", err)
	}
	compression, err := gateway.ParseCompression(c.Discord.Compression)
	if err != nil {
		return connection.ManagerConfig{}, fmt.Errorf("discord.compression: %w", err)
	}

	mc := connection.DefaultManagerConfig()

	sh := &mc.Shard
	sh.Token = token
	sh.ApplicationID = appID
	sh.Intents = intents
	sh.Compression = compression
	sh.APIVersion = c.Discord.APIVersion
	sh.LargeThreshold = c.Discord.LargeThreshold
	sh.Presence = c.Discord.presence()
	sh.Properties.Browser = "shardline"
	sh.Properties.Device = "shardline"
	sh.HelloTimeout = c.Connections.HelloTimeout
	sh.InvalidSessionDelay = c.Connections.InvalidSessionDelay
	sh.MaxMissedHeartbeats = c.Connections.MaxMissedHeartbeats
	sh.SendLimit = c.Connections.SendLimit
	sh.SendPeriod = c.Connections.SendPeriod
	sh.KeepSessionOnStop = c.Connections.KeepSessionOnStop
	sh.Client.HandshakeTimeout = c.Connections.HandshakeTimeout
	sh.Client.WriteTimeout = c.Connections.WriteTimeout
	sh.Client.UserAgent = version.UserAgent()

	mc.ShardCount = c.Discord.ShardCount
	mc.ShardIDs = c.Discord.ShardIDs
	mc.ReconnectBaseDelay = c.Connections.ReconnectBaseDelay
	mc.ReconnectMaxDelay = c.Connections.ReconnectMaxDelay
	mc.ReconnectMaxAttempts = c.Connections.ReconnectMaxAttempts
	mc.SessionSaveInterval = c.Connections.SessionSaveInterval
	mc.StartLimitRelease = c.Connections.StartLimitRelease
	mc.QueueSize = c.Dispatch.QueueSize

	mc.SharedCache = c.Cache.Shared
	mc.Cache = cache.Policy{
		TrackMembers:       c.Cache.TrackMembers || intents.Has(gateway.IntentGuildMembers),
		AlwaysCacheMembers: c.Cache.AlwaysCacheMembers,
	}

	return mc, nil
}

// DispatcherConfig returns the dispatcher settings.
func (c *GatewayConfig) DispatcherConfig() dispatch.Config {
	return dispatch.Config{
		HandlerTimeout:        c.Dispatch.HandlerTimeout,
		MaxConcurrentHandlers: c.Dispatch.MaxConcurrentHandlers,
	}
}

func (d DiscordConfig) presence() *gateway.UpdatePresence {
	if d.Status == "" && d.Activity == "" {
		return nil
	}
	p := &gateway.UpdatePresence{Status: d.Status, Activities: []model.Activity{}}
	if p.Status == "" {
		p.Status = DefaultStatus
	}
	if d.Activity != "" {
		// Custom status; the gateway ignores Name for type 4 and reads State.
		state := d.Activity
		p.Activities = append(p.Activities, model.Activity{Name: "Custom Status", Type: 4, State: &state})
	}
	return p
}
