package model

import (
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// -----------------------------------------------------------------------------
// Identity Types
// -----------------------------------------------------------------------------

// User is a process-wide identity, deduplicated across guilds.
type User struct {
	ID            snowflake.ID `json:"id"`
	Username      string       `json:"username"`
	GlobalName    *string      `json:"global_name,omitempty"`
	Discriminator string       `json:"discriminator,omitempty"`
	Avatar        *string      `json:"avatar,omitempty"`
	Bot           bool         `json:"bot,omitempty"`
	System        bool         `json:"system,omitempty"`
	PublicFlags   int          `json:"public_flags,omitempty"`
}

// Clone returns a copy that shares no memory with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.GlobalName = clonePtr(u.GlobalName)
	c.Avatar = clonePtr(u.Avatar)
	return &c
}

// Apply copies every field of src onto u in place. The id is left untouched.
func (u *User) Apply(src *User) {
	if src == nil {
		return
	}
	id := u.ID
	*u = *src.Clone()
	u.ID = id
}

// Member is per-guild state for a user. It never embeds the User itself.
type Member struct {
	GuildID                    snowflake.ID   `json:"guild_id"`
	UserID                     snowflake.ID   `json:"-"`
	Nick                       *string        `json:"nick,omitempty"`
	Avatar                     *string        `json:"avatar,omitempty"`
	RoleIDs                    []snowflake.ID `json:"roles"`
	JoinedAt                   *time.Time     `json:"joined_at,omitempty"`
	PremiumSince               *time.Time     `json:"premium_since,omitempty"`
	CommunicationDisabledUntil *time.Time     `json:"communication_disabled_until,omitempty"`
	Flags                      int            `json:"flags"`
	Deaf                       bool           `json:"deaf"`
	Mute                       bool           `json:"mute"`
	Pending                    bool           `json:"pending,omitempty"`
}

// Clone returns a deep copy of m.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	c := *m
	c.Nick = clonePtr(m.Nick)
	c.Avatar = clonePtr(m.Avatar)
	c.RoleIDs = slices.Clone(m.RoleIDs)
	c.JoinedAt = clonePtr(m.JoinedAt)
	c.PremiumSince = clonePtr(m.PremiumSince)
	c.CommunicationDisabledUntil = clonePtr(m.CommunicationDisabledUntil)
	return &c
}

// TimedOut reports whether the member is timed out at t.
func (m *Member) TimedOut(t time.Time) bool {
	return m.CommunicationDisabledUntil != nil && m.CommunicationDisabledUntil.After(t)
}

// Role belongs to exactly one guild.
type Role struct {
	ID           snowflake.ID `json:"id"`
	GuildID      snowflake.ID `json:"-"`
	Name         string       `json:"name"`
	Color        int          `json:"color"`
	Hoist        bool         `json:"hoist"`
	Icon         *string      `json:"icon,omitempty"`
	UnicodeEmoji *string      `json:"unicode_emoji,omitempty"`
	Position     int          `json:"position"`
	Permissions  string       `json:"permissions"`
	Managed      bool         `json:"managed"`
	Mentionable  bool         `json:"mentionable"`
	Flags        int          `json:"flags"`
}

// Clone returns a deep copy of r.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	c.Icon = clonePtr(r.Icon)
	c.UnicodeEmoji = clonePtr(r.UnicodeEmoji)
	return &c
}

// -----------------------------------------------------------------------------
// Presence Types
// -----------------------------------------------------------------------------

// Activity is one entry of a presence's activity list.
type Activity struct {
	Name          string        `json:"name"`
	Type          int           `json:"type"`
	URL           *string       `json:"url,omitempty"`
	State         *string       `json:"state,omitempty"`
	Details       *string       `json:"details,omitempty"`
	CreatedAt     int64         `json:"created_at,omitempty"`
	ApplicationID *snowflake.ID `json:"application_id,omitempty"`
}

// ClientStatus reports the status per client platform.
type ClientStatus struct {
	Desktop string `json:"desktop,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Web     string `json:"web,omitempty"`
}

// Presence is process-wide and keyed by user id. Last write wins.
type Presence struct {
	UserID       snowflake.ID `json:"-"`
	GuildID      snowflake.ID `json:"guild_id,omitempty"`
	Status       string       `json:"status"`
	Activities   []Activity   `json:"activities"`
	ClientStatus ClientStatus `json:"client_status"`
}

// Clone returns a deep copy of p.
func (p *Presence) Clone() *Presence {
	if p == nil {
		return nil
	}
	c := *p
	c.Activities = slices.Clone(p.Activities)
	return &c
}

// -----------------------------------------------------------------------------
// Guild-Owned Types
// -----------------------------------------------------------------------------

// VoiceState is keyed by user id within its guild.
type VoiceState struct {
	GuildID                 snowflake.ID  `json:"guild_id"`
	ChannelID               *snowflake.ID `json:"channel_id"`
	UserID                  snowflake.ID  `json:"user_id"`
	SessionID               string        `json:"session_id"`
	Deaf                    bool          `json:"deaf"`
	Mute                    bool          `json:"mute"`
	SelfDeaf                bool          `json:"self_deaf"`
	SelfMute                bool          `json:"self_mute"`
	SelfStream              bool          `json:"self_stream,omitempty"`
	SelfVideo               bool          `json:"self_video"`
	Suppress                bool          `json:"suppress"`
	RequestToSpeakTimestamp *time.Time    `json:"request_to_speak_timestamp,omitempty"`
}

// Clone returns a deep copy of v.
func (v *VoiceState) Clone() *VoiceState {
	if v == nil {
		return nil
	}
	c := *v
	c.ChannelID = clonePtr(v.ChannelID)
	c.RequestToSpeakTimestamp = clonePtr(v.RequestToSpeakTimestamp)
	return &c
}

// Emoji is a custom guild emoji.
type Emoji struct {
	ID        snowflake.ID   `json:"id"`
	Name      string         `json:"name"`
	RoleIDs   []snowflake.ID `json:"roles,omitempty"`
	Managed   bool           `json:"managed,omitempty"`
	Animated  bool           `json:"animated,omitempty"`
	Available bool           `json:"available,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Emoji) Clone() *Emoji {
	if e == nil {
		return nil
	}
	c := *e
	c.RoleIDs = slices.Clone(e.RoleIDs)
	return &c
}

// Sticker is a custom guild sticker.
type Sticker struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	Tags        string       `json:"tags"`
	FormatType  int          `json:"format_type"`
	Available   bool         `json:"available,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Sticker) Clone() *Sticker {
	if s == nil {
		return nil
	}
	c := *s
	c.Description = clonePtr(s.Description)
	return &c
}

// ScheduledEventStatus is the lifecycle status of a scheduled event.
type ScheduledEventStatus int

const (
	ScheduledEventScheduled ScheduledEventStatus = 1
	ScheduledEventActive    ScheduledEventStatus = 2
	ScheduledEventCompleted ScheduledEventStatus = 3
	ScheduledEventCanceled  ScheduledEventStatus = 4
)

// IsTerminal reports whether the event has finished for good.
func (s ScheduledEventStatus) IsTerminal() bool {
	return s == ScheduledEventCompleted || s == ScheduledEventCanceled
}

func (s ScheduledEventStatus) String() string {
	switch s {
	case ScheduledEventScheduled:
		return "scheduled"
	case ScheduledEventActive:
		return "active"
	case ScheduledEventCompleted:
		return "completed"
	case ScheduledEventCanceled:
		return "canceled"
	}
	return "unknown"
}

// ScheduledEvent is a guild scheduled event.
type ScheduledEvent struct {
	ID                 snowflake.ID         `json:"id"`
	GuildID            snowflake.ID         `json:"guild_id"`
	ChannelID          *snowflake.ID        `json:"channel_id,omitempty"`
	CreatorID          *snowflake.ID        `json:"creator_id,omitempty"`
	Name               string               `json:"name"`
	Description        *string              `json:"description,omitempty"`
	ScheduledStartTime time.Time            `json:"scheduled_start_time"`
	ScheduledEndTime   *time.Time           `json:"scheduled_end_time,omitempty"`
	PrivacyLevel       int                  `json:"privacy_level"`
	Status             ScheduledEventStatus `json:"status"`
	EntityType         int                  `json:"entity_type"`
	EntityID           *snowflake.ID        `json:"entity_id,omitempty"`
	UserCount          int                  `json:"user_count,omitempty"`
}

// Clone returns a deep copy of e.
func (e *ScheduledEvent) Clone() *ScheduledEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.ChannelID = clonePtr(e.ChannelID)
	c.CreatorID = clonePtr(e.CreatorID)
	c.Description = clonePtr(e.Description)
	c.ScheduledEndTime = clonePtr(e.ScheduledEndTime)
	c.EntityID = clonePtr(e.EntityID)
	return &c
}

// StageInstance is a live stage in a stage channel.
type StageInstance struct {
	ID                    snowflake.ID  `json:"id"`
	GuildID               snowflake.ID  `json:"guild_id"`
	ChannelID             snowflake.ID  `json:"channel_id"`
	Topic                 string        `json:"topic"`
	PrivacyLevel          int           `json:"privacy_level"`
	GuildScheduledEventID *snowflake.ID `json:"guild_scheduled_event_id,omitempty"`
}

// Clone returns a deep copy of s.
func (s *StageInstance) Clone() *StageInstance {
	if s == nil {
		return nil
	}
	c := *s
	c.GuildScheduledEventID = clonePtr(s.GuildScheduledEventID)
	return &c
}

// -----------------------------------------------------------------------------
// Message Types
// -----------------------------------------------------------------------------

// Message is not cached; it is decoded for notifications only.
type Message struct {
	ID              snowflake.ID   `json:"id"`
	ChannelID       snowflake.ID   `json:"channel_id"`
	GuildID         *snowflake.ID  `json:"guild_id,omitempty"`
	AuthorID        snowflake.ID   `json:"-"`
	Content         string         `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	EditedTimestamp *time.Time     `json:"edited_timestamp,omitempty"`
	TTS             bool           `json:"tts"`
	MentionEveryone bool           `json:"mention_everyone"`
	MentionRoleIDs  []snowflake.ID `json:"mention_roles"`
	Pinned          bool           `json:"pinned"`
	Type            int            `json:"type"`
	WebhookID       *snowflake.ID  `json:"webhook_id,omitempty"`
	Flags           int            `json:"flags,omitempty"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
