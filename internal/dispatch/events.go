package dispatch

import (
	"encoding/json"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// Event is an immutable notification value.
type Event interface {
	Kind() EventKind
	Shard() int
}

// Header is carried by every notification.
type Header struct {
	ShardID int
	Seq     int64
}

// Shard returns the shard that received the payload.
func (h Header) Shard() int { return h.ShardID }

// ---- Session ----

type Ready struct {
	Header
	User          *model.User
	SessionID     string
	ApplicationID snowflake.ID
	GuildIDs      []snowflake.ID
}

type Resumed struct{ Header }

// GuildsDownloaded fires once per cache, when every cached guild has become
// available.
type GuildsDownloaded struct {
	Header
	GuildCount int
}

// ---- Guilds ----

// GuildAvailable is a GUILD_CREATE for a guild the session already knew
// about (listed in READY, or back from an outage).
type GuildAvailable struct {
	Header
	Guild *model.Guild
}

// GuildJoined is a GUILD_CREATE for a guild the bot was just added to.
type GuildJoined struct {
	Header
	Guild *model.Guild
}

// GuildUpdated carries the previous scalars in Before. Before and After share
// the same sub-collections.
type GuildUpdated struct {
	Header
	Before *model.Guild
	After  *model.Guild
}

// GuildUnavailable is an outage; cached state is kept.
type GuildUnavailable struct {
	Header
	Guild *model.Guild
}

// GuildLeft means the bot was removed; the guild was evicted.
type GuildLeft struct {
	Header
	Guild *model.Guild
}

type BanAdded struct {
	Header
	GuildID snowflake.ID
	User    *model.User
}

type BanRemoved struct {
	Header
	GuildID snowflake.ID
	User    *model.User
}

type EmojisUpdated struct {
	Header
	GuildID snowflake.ID
	Before  []*model.Emoji
	After   []*model.Emoji
}

type StickersUpdated struct {
	Header
	GuildID snowflake.ID
	Before  []*model.Sticker
	After   []*model.Sticker
}

// ---- Channels and threads ----

type ChannelCreated struct {
	Header
	Channel *model.Channel
}

type ChannelUpdated struct {
	Header
	Before *model.Channel // nil if not cached
	After  *model.Channel
}

type ChannelDeleted struct {
	Header
	Channel *model.Channel
}

type ThreadCreated struct {
	Header
	Thread       *model.Channel
	NewlyCreated bool
}

type ThreadUpdated struct {
	Header
	Before *model.Channel
	After  *model.Channel
}

// ThreadDeleted carries the cached thread, or a stand-in with id, type,
// guild id and parent id.
type ThreadDeleted struct {
	Header
	Thread *model.Channel
}

type ThreadListSynced struct {
	Header
	GuildID    snowflake.ID
	ChannelIDs []snowflake.ID
	Threads    []*model.Channel
	Removed    int
}

// ---- Roles ----

type RoleCreated struct {
	Header
	GuildID snowflake.ID
	Role    *model.Role
}

type RoleUpdated struct {
	Header
	GuildID snowflake.ID
	Before  *model.Role
	After   *model.Role
}

// RoleDeleted has a nil Role when the role was not cached.
type RoleDeleted struct {
	Header
	GuildID snowflake.ID
	RoleID  snowflake.ID
	Role    *model.Role
}

// ---- Members and users ----

type MemberJoined struct {
	Header
	Member *model.Member
	User   *model.User
}

type MemberUpdated struct {
	Header
	Before *model.Member // nil if not cached
	After  *model.Member
	User   *model.User
}

// TimeoutChanged reports whether the communication-disabled deadline differs
// between Before and After. An uncached Before counts as no timeout.
func (e MemberUpdated) TimeoutChanged() bool {
	var before, after *time.Time
	if e.Before != nil {
		before = e.Before.CommunicationDisabledUntil
	}
	if e.After != nil {
		after = e.After.CommunicationDisabledUntil
	}
	switch {
	case before == nil && after == nil:
		return false
	case before == nil || after == nil:
		return true
	}
	return !before.Equal(*after)
}

type MemberLeft struct {
	Header
	GuildID snowflake.ID
	User    *model.User
	Member  *model.Member // cached member or a stand-in
}

type MembersChunk struct {
	Header
	GuildID    snowflake.ID
	Members    []*model.Member
	ChunkIndex int
	ChunkCount int
	NotFound   []snowflake.ID
	Nonce      string
}

type UserUpdated struct {
	Header
	Before *model.User
	After  *model.User
}

type PresenceUpdated struct {
	Header
	Before *model.Presence
	After  *model.Presence
}

// ---- Voice and stage ----

type VoiceStateUpdated struct {
	Header
	Before *model.VoiceState
	After  *model.VoiceState
}

// Left reports whether the user disconnected from voice.
func (e VoiceStateUpdated) Left() bool {
	return e.After != nil && e.After.ChannelID == nil
}

type VoiceServerUpdated struct {
	Header
	GuildID  snowflake.ID
	Token    string
	Endpoint *string
}

type StageInstanceCreated struct {
	Header
	StageInstance *model.StageInstance
}

type StageInstanceUpdated struct {
	Header
	Before *model.StageInstance
	After  *model.StageInstance
}

type StageInstanceDeleted struct {
	Header
	StageInstance *model.StageInstance
}

// ---- Scheduled events ----

type ScheduledEventCreated struct {
	Header
	Event *model.ScheduledEvent
}

type ScheduledEventUpdated struct {
	Header
	Before *model.ScheduledEvent
	After  *model.ScheduledEvent
}

// ScheduledEventDeleted is emitted for an explicit delete and for an update
// that moved the event to Completed or Canceled. Reason is the event's last
// status.
type ScheduledEventDeleted struct {
	Header
	Event  *model.ScheduledEvent
	Reason model.ScheduledEventStatus
}

type ScheduledEventUserAdded struct {
	Header
	GuildID snowflake.ID
	EventID snowflake.ID
	UserID  snowflake.ID
}

type ScheduledEventUserRemoved struct {
	Header
	GuildID snowflake.ID
	EventID snowflake.ID
	UserID  snowflake.ID
}

// ---- Messages ----

// MessageCreated carries the author, and the partial member for guild
// messages. Webhook authors are not cached.
type MessageCreated struct {
	Header
	Message *model.Message
	Author  *model.User
	Member  *model.Member
}

type MessageUpdated struct {
	Header
	Message *model.Message
	Author  *model.User // nil for partial updates
}

type MessageDeleted struct {
	Header
	ID        snowflake.ID
	ChannelID snowflake.ID
	GuildID   *snowflake.ID
}

type MessagesBulkDeleted struct {
	Header
	IDs       []snowflake.ID
	ChannelID snowflake.ID
	GuildID   *snowflake.ID
}

type TypingStarted struct {
	Header
	ChannelID snowflake.ID
	GuildID   *snowflake.ID
	UserID    snowflake.ID
	Timestamp time.Time
	Member    *model.Member
}

// ---- Fallbacks ----

// Passthrough is a recognised kind with no typed model. Raw is the
// undecoded payload.
type Passthrough struct {
	Header
	Type EventKind
	Raw  json.RawMessage
}

// Unknown is an unrecognised dispatch name.
type Unknown struct {
	Header
	Name string
	Raw  json.RawMessage
}

func (Ready) Kind() EventKind                     { return KindReady }
func (Resumed) Kind() EventKind                   { return KindResumed }
func (GuildsDownloaded) Kind() EventKind          { return KindGuildsDownloaded }
func (GuildAvailable) Kind() EventKind            { return KindGuildAvailable }
func (GuildJoined) Kind() EventKind               { return KindGuildJoined }
func (GuildUpdated) Kind() EventKind              { return KindGuildUpdate }
func (GuildUnavailable) Kind() EventKind          { return KindGuildUnavailable }
func (GuildLeft) Kind() EventKind                 { return KindGuildLeft }
func (BanAdded) Kind() EventKind                  { return KindGuildBanAdd }
func (BanRemoved) Kind() EventKind                { return KindGuildBanRemove }
func (EmojisUpdated) Kind() EventKind             { return KindGuildEmojisUpdate }
func (StickersUpdated) Kind() EventKind           { return KindGuildStickersUpdate }
func (ChannelCreated) Kind() EventKind            { return KindChannelCreate }
func (ChannelUpdated) Kind() EventKind            { return KindChannelUpdate }
func (ChannelDeleted) Kind() EventKind            { return KindChannelDelete }
func (ThreadCreated) Kind() EventKind             { return KindThreadCreate }
func (ThreadUpdated) Kind() EventKind             { return KindThreadUpdate }
func (ThreadDeleted) Kind() EventKind             { return KindThreadDelete }
func (ThreadListSynced) Kind() EventKind          { return KindThreadListSync }
func (RoleCreated) Kind() EventKind               { return KindGuildRoleCreate }
func (RoleUpdated) Kind() EventKind               { return KindGuildRoleUpdate }
func (RoleDeleted) Kind() EventKind               { return KindGuildRoleDelete }
func (MemberJoined) Kind() EventKind              { return KindGuildMemberAdd }
func (MemberUpdated) Kind() EventKind             { return KindGuildMemberUpdate }
func (MemberLeft) Kind() EventKind                { return KindGuildMemberRemove }
func (MembersChunk) Kind() EventKind              { return KindGuildMembersChunk }
func (UserUpdated) Kind() EventKind               { return KindUserUpdate }
func (PresenceUpdated) Kind() EventKind           { return KindPresenceUpdate }
func (VoiceStateUpdated) Kind() EventKind         { return KindVoiceStateUpdate }
func (VoiceServerUpdated) Kind() EventKind        { return KindVoiceServerUpdate }
func (StageInstanceCreated) Kind() EventKind      { return KindStageInstanceCreate }
func (StageInstanceUpdated) Kind() EventKind      { return KindStageInstanceUpdate }
func (StageInstanceDeleted) Kind() EventKind      { return KindStageInstanceDelete }
func (ScheduledEventCreated) Kind() EventKind     { return KindGuildScheduledEventCreate }
func (ScheduledEventUpdated) Kind() EventKind     { return KindGuildScheduledEventUpdate }
func (ScheduledEventDeleted) Kind() EventKind     { return KindGuildScheduledEventDelete }
func (ScheduledEventUserAdded) Kind() EventKind   { return KindGuildScheduledEventUserAdd }
func (ScheduledEventUserRemoved) Kind() EventKind { return KindGuildScheduledEventUserRemove }
func (MessageCreated) Kind() EventKind            { return KindMessageCreate }
func (MessageUpdated) Kind() EventKind            { return KindMessageUpdate }
func (MessageDeleted) Kind() EventKind            { return KindMessageDelete }
func (MessagesBulkDeleted) Kind() EventKind       { return KindMessageDeleteBulk }
func (TypingStarted) Kind() EventKind             { return KindTypingStart }
func (p Passthrough) Kind() EventKind             { return p.Type }
func (Unknown) Kind() EventKind                   { return KindUnknown }
