package cache

import (
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// Policy controls which optional entities are persisted.
type Policy struct {
	// TrackMembers persists members; normally set when the guild-members
	// intent is enabled.
	TrackMembers bool

	// AlwaysCacheMembers persists members regardless of intents.
	AlwaysCacheMembers bool
}

// PersistMembers reports whether members are stored.
func (p Policy) PersistMembers() bool {
	return p.TrackMembers || p.AlwaysCacheMembers
}

// Cache is the guild-scoped entity cache. It is safe for concurrent use.
// Each add-or-merge is a single critical section.
type Cache struct {
	policy     Policy
	identities *Identities
	logger     *slog.Logger

	mu sync.RWMutex

	// All known guilds indexed by id.
	guilds map[snowflake.ID]*model.Guild

	// Channel and thread id to owning guild id.
	channelGuild map[snowflake.ID]snowflake.ID
	threadGuild  map[snowflake.ID]snowflake.ID

	// The bot's own user id, set at Ready.
	selfID snowflake.ID

	// Flips to true once every cached guild is available.
	downloaded bool

	// Shards that must report READY before the flag may flip, and those
	// that have.
	expectShards int
	readyShards  map[int]struct{}
}

// New creates a cache. A nil identities store gets a private one.
func New(policy Policy, identities *Identities, logger *slog.Logger) *Cache {
	if identities == nil {
		identities = NewIdentities()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		policy:       policy,
		identities:   identities,
		logger:       logger,
		guilds:       make(map[snowflake.ID]*model.Guild),
		channelGuild: make(map[snowflake.ID]snowflake.ID),
		threadGuild:  make(map[snowflake.ID]snowflake.ID),
		readyShards:  make(map[int]struct{}),
	}
}

// ExpectShards holds the downloaded flag until n distinct shards have called
// Ready. A cache shared by several shards needs this so the first READY does
// not flip it while later shards' guilds are still unknown.
func (c *Cache) ExpectShards(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expectShards = n
}

// Policy returns the cache policy.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Identities returns the user and presence store.
func (c *Cache) Identities() *Identities {
	return c.identities
}

// Ready records the bot's own user and stubs every listed guild as
// unavailable. shardID is the shard that received the READY. It reports
// whether the downloaded flag flipped.
func (c *Cache) Ready(shardID int, self *model.User, guilds []model.UnavailableGuild) bool {
	if self != nil {
		c.identities.UpsertUser(self)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if self != nil {
		c.selfID = self.ID
	}
	c.readyShards[shardID] = struct{}{}
	for _, ug := range guilds {
		if _, ok := c.guilds[ug.ID]; !ok {
			c.guilds[ug.ID] = model.NewGuild(ug.ID)
		}
	}
	return c.checkDownloadedLocked()
}

// SelfID returns the bot's own user id, zero before Ready.
func (c *Cache) SelfID() snowflake.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfID
}

// AllGuildsDownloaded reports whether every cached guild has been available
// at least once since the flag was set.
func (c *Cache) AllGuildsDownloaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.downloaded
}

// checkDownloadedLocked flips the downloaded flag if every expected shard is
// ready and every guild is available (caller must hold write lock). It
// returns true only on the flip.
func (c *Cache) checkDownloadedLocked() bool {
	if c.downloaded || len(c.readyShards) < c.expectShards {
		return false
	}
	for _, g := range c.guilds {
		if !g.Available {
			return false
		}
	}
	c.downloaded = true
	c.logger.Info("all guilds downloaded", "guilds", len(c.guilds))
	return true
}

// ---- Lookups ----

// Guild returns a deep copy of a cached guild (read-locked).
func (c *Cache) Guild(id snowflake.ID) (*model.Guild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// GuildIDs returns the ids of all cached guilds (read-locked).
func (c *Cache) GuildIDs() []snowflake.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Keys(c.guilds)
}

// Channel returns a copy of a cached non-thread channel (read-locked).
func (c *Cache) Channel(id snowflake.ID) (*model.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[c.channelGuild[id]]
	if !ok {
		return nil, false
	}
	ch, ok := g.Channels[id]
	if !ok {
		return nil, false
	}
	return ch.Clone(), true
}

// Thread returns a copy of a cached thread (read-locked).
func (c *Cache) Thread(id snowflake.ID) (*model.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[c.threadGuild[id]]
	if !ok {
		return nil, false
	}
	th, ok := g.Threads[id]
	if !ok {
		return nil, false
	}
	return th.Clone(), true
}

// GuildOfChannel resolves the guild owning a channel or thread (read-locked).
func (c *Cache) GuildOfChannel(id snowflake.ID) (snowflake.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if gid, ok := c.channelGuild[id]; ok {
		return gid, true
	}
	gid, ok := c.threadGuild[id]
	return gid, ok
}

// User returns a copy of a cached user.
func (c *Cache) User(id snowflake.ID) (*model.User, bool) {
	return c.identities.User(id)
}

// Presence returns a copy of a user's presence.
func (c *Cache) Presence(userID snowflake.ID) (*model.Presence, bool) {
	return c.identities.Presence(userID)
}

// Member returns a copy of a cached member (read-locked).
func (c *Cache) Member(guildID, userID snowflake.ID) (*model.Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	m, ok := g.Members[userID]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Role returns a copy of a cached role (read-locked).
func (c *Cache) Role(guildID, roleID snowflake.ID) (*model.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	r, ok := g.Roles[roleID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// VoiceState returns a copy of a user's voice state in a guild (read-locked).
func (c *Cache) VoiceState(guildID, userID snowflake.ID) (*model.VoiceState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	vs, ok := g.VoiceStates[userID]
	if !ok {
		return nil, false
	}
	return vs.Clone(), true
}

// Stats is a point-in-time count of cached entities.
type Stats struct {
	Guilds            int  `json:"guilds"`
	UnavailableGuilds int  `json:"unavailable_guilds"`
	Channels          int  `json:"channels"`
	Threads           int  `json:"threads"`
	Roles             int  `json:"roles"`
	Members           int  `json:"members"`
	VoiceStates       int  `json:"voice_states"`
	Users             int  `json:"users"`
	Presences         int  `json:"presences"`
	Downloaded        bool `json:"downloaded"`
}

// Stats returns entity counts (read-locked).
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	s := Stats{Guilds: len(c.guilds), Downloaded: c.downloaded}
	for _, g := range c.guilds {
		if !g.Available {
			s.UnavailableGuilds++
		}
		s.Channels += len(g.Channels)
		s.Threads += len(g.Threads)
		s.Roles += len(g.Roles)
		s.Members += len(g.Members)
		s.VoiceStates += len(g.VoiceStates)
	}
	c.mu.RUnlock()

	s.Users, s.Presences = c.identities.Counts()
	return s
}
