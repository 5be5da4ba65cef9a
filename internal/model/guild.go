package model

import (
	"maps"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Guild is a cached guild with its owned sub-collections.
//
// Sub-collection maps are owned by the guild. Channels and threads are keyed by
// channel id, members and voice states by user id.
type Guild struct {
	ID                          snowflake.ID  `json:"id"`
	Name                        string        `json:"name"`
	Icon                        *string       `json:"icon,omitempty"`
	Splash                      *string       `json:"splash,omitempty"`
	Banner                      *string       `json:"banner,omitempty"`
	Description                 *string       `json:"description,omitempty"`
	OwnerID                     snowflake.ID  `json:"owner_id"`
	AFKChannelID                *snowflake.ID `json:"afk_channel_id,omitempty"`
	AFKTimeout                  int           `json:"afk_timeout"`
	VerificationLevel           int           `json:"verification_level"`
	DefaultMessageNotifications int           `json:"default_message_notifications"`
	ExplicitContentFilter       int           `json:"explicit_content_filter"`
	MFALevel                    int           `json:"mfa_level"`
	NSFWLevel                   int           `json:"nsfw_level"`
	SystemChannelID             *snowflake.ID `json:"system_channel_id,omitempty"`
	SystemChannelFlags          int           `json:"system_channel_flags"`
	RulesChannelID              *snowflake.ID `json:"rules_channel_id,omitempty"`
	PublicUpdatesChannelID      *snowflake.ID `json:"public_updates_channel_id,omitempty"`
	VanityURLCode               *string       `json:"vanity_url_code,omitempty"`
	PremiumTier                 int           `json:"premium_tier"`
	PremiumSubscriptionCount    int           `json:"premium_subscription_count,omitempty"`
	PreferredLocale             string        `json:"preferred_locale"`
	Features                    []string      `json:"features"`
	MaxMembers                  int           `json:"max_members,omitempty"`
	MemberCount                 int           `json:"member_count,omitempty"`
	Large                       bool          `json:"large,omitempty"`
	JoinedAt                    *time.Time    `json:"joined_at,omitempty"`

	// Available marks whether the remote currently considers the guild loaded.
	Available bool `json:"-"`

	Channels        map[snowflake.ID]*Channel        `json:"-"`
	Threads         map[snowflake.ID]*Channel        `json:"-"`
	Roles           map[snowflake.ID]*Role           `json:"-"`
	Members         map[snowflake.ID]*Member         `json:"-"`
	Emojis          map[snowflake.ID]*Emoji          `json:"-"`
	Stickers        map[snowflake.ID]*Sticker        `json:"-"`
	VoiceStates     map[snowflake.ID]*VoiceState     `json:"-"`
	ScheduledEvents map[snowflake.ID]*ScheduledEvent `json:"-"`
	StageInstances  map[snowflake.ID]*StageInstance  `json:"-"`
}

// NewGuild returns an empty, unavailable guild with initialised collections.
func NewGuild(id snowflake.ID) *Guild {
	g := &Guild{ID: id}
	g.EnsureCollections()
	return g
}

// EnsureCollections allocates any nil sub-collection map.
func (g *Guild) EnsureCollections() {
	if g.Channels == nil {
		g.Channels = make(map[snowflake.ID]*Channel)
	}
	if g.Threads == nil {
		g.Threads = make(map[snowflake.ID]*Channel)
	}
	if g.Roles == nil {
		g.Roles = make(map[snowflake.ID]*Role)
	}
	if g.Members == nil {
		g.Members = make(map[snowflake.ID]*Member)
	}
	if g.Emojis == nil {
		g.Emojis = make(map[snowflake.ID]*Emoji)
	}
	if g.Stickers == nil {
		g.Stickers = make(map[snowflake.ID]*Sticker)
	}
	if g.VoiceStates == nil {
		g.VoiceStates = make(map[snowflake.ID]*VoiceState)
	}
	if g.ScheduledEvents == nil {
		g.ScheduledEvents = make(map[snowflake.ID]*ScheduledEvent)
	}
	if g.StageInstances == nil {
		g.StageInstances = make(map[snowflake.ID]*StageInstance)
	}
}

// ScalarCopy copies every scalar field of g. Sub-collection maps are left nil.
func (g *Guild) ScalarCopy() *Guild {
	if g == nil {
		return nil
	}
	c := &Guild{}
	c.ApplyScalars(g)
	c.Available = g.Available
	return c
}

// ApplyScalars overwrites the scalar fields of g with those of src.
// Sub-collections and the availability flag are not touched.
func (g *Guild) ApplyScalars(src *Guild) {
	channels, threads, roles, members := g.Channels, g.Threads, g.Roles, g.Members
	emojis, stickers, voice, events, stages := g.Emojis, g.Stickers, g.VoiceStates, g.ScheduledEvents, g.StageInstances
	available := g.Available

	*g = *src
	g.Icon = clonePtr(src.Icon)
	g.Splash = clonePtr(src.Splash)
	g.Banner = clonePtr(src.Banner)
	g.Description = clonePtr(src.Description)
	g.AFKChannelID = clonePtr(src.AFKChannelID)
	g.SystemChannelID = clonePtr(src.SystemChannelID)
	g.RulesChannelID = clonePtr(src.RulesChannelID)
	g.PublicUpdatesChannelID = clonePtr(src.PublicUpdatesChannelID)
	g.VanityURLCode = clonePtr(src.VanityURLCode)
	g.JoinedAt = clonePtr(src.JoinedAt)
	g.Features = slices.Clone(src.Features)

	g.Channels, g.Threads, g.Roles, g.Members = channels, threads, roles, members
	g.Emojis, g.Stickers, g.VoiceStates, g.ScheduledEvents, g.StageInstances = emojis, stickers, voice, events, stages
	g.Available = available
}

// Clone returns a deep copy of g including every sub-collection entry.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	c := g.ScalarCopy()
	c.Channels = cloneMap(g.Channels, (*Channel).Clone)
	c.Threads = cloneMap(g.Threads, (*Channel).Clone)
	c.Roles = cloneMap(g.Roles, (*Role).Clone)
	c.Members = cloneMap(g.Members, (*Member).Clone)
	c.Emojis = cloneMap(g.Emojis, (*Emoji).Clone)
	c.Stickers = cloneMap(g.Stickers, (*Sticker).Clone)
	c.VoiceStates = cloneMap(g.VoiceStates, (*VoiceState).Clone)
	c.ScheduledEvents = cloneMap(g.ScheduledEvents, (*ScheduledEvent).Clone)
	c.StageInstances = cloneMap(g.StageInstances, (*StageInstance).Clone)
	return c
}

// ShareCollections points the sub-collections of g at those of src.
// Used for before/after pairs whose collections are not diffed.
func (g *Guild) ShareCollections(src *Guild) {
	g.Channels, g.Threads, g.Roles, g.Members = src.Channels, src.Threads, src.Roles, src.Members
	g.Emojis, g.Stickers, g.VoiceStates = src.Emojis, src.Stickers, src.VoiceStates
	g.ScheduledEvents, g.StageInstances = src.ScheduledEvents, src.StageInstances
}

// UnavailableGuild is the stub sent in READY and in GUILD_DELETE.
type UnavailableGuild struct {
	ID          snowflake.ID `json:"id"`
	Unavailable bool         `json:"unavailable"`
}

// ShardForGuild returns the shard responsible for guildID.
func ShardForGuild(guildID snowflake.ID, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	return int((uint64(guildID) >> 22) % uint64(shardCount))
}

func cloneMap[T any](m map[snowflake.ID]*T, clone func(*T) *T) map[snowflake.ID]*T {
	if m == nil {
		return nil
	}
	out := make(map[snowflake.ID]*T, len(m))
	for id, v := range m {
		out[id] = clone(v)
	}
	return out
}

// Keys returns the ids of m in unspecified order.
func Keys[T any](m map[snowflake.ID]*T) []snowflake.ID {
	return slices.Collect(maps.Keys(m))
}
