package model

import (
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ChannelType is the gateway channel type.
type ChannelType int

const (
	ChannelGuildText          ChannelType = 0
	ChannelDM                 ChannelType = 1
	ChannelGuildVoice         ChannelType = 2
	ChannelGroupDM            ChannelType = 3
	ChannelGuildCategory      ChannelType = 4
	ChannelGuildAnnouncement  ChannelType = 5
	ChannelAnnouncementThread ChannelType = 10
	ChannelPublicThread       ChannelType = 11
	ChannelPrivateThread      ChannelType = 12
	ChannelGuildStageVoice    ChannelType = 13
	ChannelGuildDirectory     ChannelType = 14
	ChannelGuildForum         ChannelType = 15
	ChannelGuildMedia         ChannelType = 16
)

// IsThread reports whether t is one of the thread types.
func (t ChannelType) IsThread() bool {
	return t == ChannelAnnouncementThread || t == ChannelPublicThread || t == ChannelPrivateThread
}

// IsForumLike reports whether t carries forum tags and default reactions.
func (t ChannelType) IsForumLike() bool {
	return t == ChannelGuildForum || t == ChannelGuildMedia
}

// HasSlowmode reports whether rate_limit_per_user applies to t.
func (t ChannelType) HasSlowmode() bool {
	switch t {
	case ChannelGuildText, ChannelGuildVoice, ChannelGuildStageVoice, ChannelGuildForum,
		ChannelGuildMedia, ChannelAnnouncementThread, ChannelPublicThread, ChannelPrivateThread:
		return true
	}
	return false
}

// IsVoice reports whether t carries bitrate and user limit.
func (t ChannelType) IsVoice() bool {
	return t == ChannelGuildVoice || t == ChannelGuildStageVoice
}

// PermissionOverwrite is a role or member permission override on a channel.
type PermissionOverwrite struct {
	ID    snowflake.ID `json:"id"`
	Type  int          `json:"type"`
	Allow string       `json:"allow"`
	Deny  string       `json:"deny"`
}

// ForumTag is a tag that can be applied to forum threads.
type ForumTag struct {
	ID        snowflake.ID  `json:"id"`
	Name      string        `json:"name"`
	Moderated bool          `json:"moderated"`
	EmojiID   *snowflake.ID `json:"emoji_id,omitempty"`
	EmojiName *string       `json:"emoji_name,omitempty"`
}

// DefaultReaction is the emoji shown on new forum posts.
type DefaultReaction struct {
	EmojiID   *snowflake.ID `json:"emoji_id,omitempty"`
	EmojiName *string       `json:"emoji_name,omitempty"`
}

// ThreadMetadata holds thread-only state.
type ThreadMetadata struct {
	Archived            bool       `json:"archived"`
	AutoArchiveDuration int        `json:"auto_archive_duration"`
	ArchiveTimestamp    time.Time  `json:"archive_timestamp"`
	Locked              bool       `json:"locked"`
	Invitable           *bool      `json:"invitable,omitempty"`
	CreateTimestamp     *time.Time `json:"create_timestamp,omitempty"`
}

// Channel is a guild channel or thread. GuildID is a weak back-reference.
type Channel struct {
	ID                            snowflake.ID          `json:"id"`
	Type                          ChannelType           `json:"type"`
	GuildID                       snowflake.ID          `json:"guild_id,omitempty"`
	Position                      int                   `json:"position,omitempty"`
	PermissionOverwrites          []PermissionOverwrite `json:"permission_overwrites,omitempty"`
	Name                          string                `json:"name,omitempty"`
	Topic                         *string               `json:"topic,omitempty"`
	NSFW                          bool                  `json:"nsfw,omitempty"`
	LastMessageID                 *snowflake.ID         `json:"last_message_id,omitempty"`
	Bitrate                       int                   `json:"bitrate,omitempty"`
	UserLimit                     int                   `json:"user_limit,omitempty"`
	RateLimitPerUser              int                   `json:"rate_limit_per_user,omitempty"`
	OwnerID                       *snowflake.ID         `json:"owner_id,omitempty"`
	ParentID                      *snowflake.ID         `json:"parent_id,omitempty"`
	RTCRegion                     *string               `json:"rtc_region,omitempty"`
	MessageCount                  int                   `json:"message_count,omitempty"`
	MemberCount                   int                   `json:"member_count,omitempty"`
	ThreadMetadata                *ThreadMetadata       `json:"thread_metadata,omitempty"`
	DefaultAutoArchiveDuration    int                   `json:"default_auto_archive_duration,omitempty"`
	Flags                         int                   `json:"flags,omitempty"`
	AvailableTags                 []ForumTag            `json:"available_tags,omitempty"`
	AppliedTags                   []snowflake.ID        `json:"applied_tags,omitempty"`
	DefaultReactionEmoji          *DefaultReaction      `json:"default_reaction_emoji,omitempty"`
	DefaultThreadRateLimitPerUser int                   `json:"default_thread_rate_limit_per_user,omitempty"`
	DefaultSortOrder              *int                  `json:"default_sort_order,omitempty"`
	DefaultForumLayout            int                   `json:"default_forum_layout,omitempty"`
}

// Clone returns a deep copy of c.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	n := *c
	n.PermissionOverwrites = slices.Clone(c.PermissionOverwrites)
	n.Topic = clonePtr(c.Topic)
	n.LastMessageID = clonePtr(c.LastMessageID)
	n.OwnerID = clonePtr(c.OwnerID)
	n.ParentID = clonePtr(c.ParentID)
	n.RTCRegion = clonePtr(c.RTCRegion)
	if c.ThreadMetadata != nil {
		tm := *c.ThreadMetadata
		tm.Invitable = clonePtr(c.ThreadMetadata.Invitable)
		tm.CreateTimestamp = clonePtr(c.ThreadMetadata.CreateTimestamp)
		n.ThreadMetadata = &tm
	}
	n.AvailableTags = make([]ForumTag, len(c.AvailableTags))
	for i, t := range c.AvailableTags {
		t.EmojiID = clonePtr(t.EmojiID)
		t.EmojiName = clonePtr(t.EmojiName)
		n.AvailableTags[i] = t
	}
	if c.AvailableTags == nil {
		n.AvailableTags = nil
	}
	n.AppliedTags = slices.Clone(c.AppliedTags)
	if c.DefaultReactionEmoji != nil {
		n.DefaultReactionEmoji = &DefaultReaction{
			EmojiID:   clonePtr(c.DefaultReactionEmoji.EmojiID),
			EmojiName: clonePtr(c.DefaultReactionEmoji.EmojiName),
		}
	}
	n.DefaultSortOrder = clonePtr(c.DefaultSortOrder)
	return &n
}

// Normalize clears fields that do not apply to the channel's current type.
// A channel converted away from forum keeps no stale tags.
func (c *Channel) Normalize() {
	if !c.Type.IsForumLike() {
		c.AvailableTags = nil
		c.DefaultReactionEmoji = nil
		c.DefaultSortOrder = nil
		c.DefaultForumLayout = 0
	}
	if !c.Type.IsThread() {
		c.ThreadMetadata = nil
		c.AppliedTags = nil
		c.MessageCount = 0
		c.MemberCount = 0
	}
	if !c.Type.HasSlowmode() {
		c.RateLimitPerUser = 0
	}
	if !c.Type.IsVoice() {
		c.Bitrate = 0
		c.UserLimit = 0
		c.RTCRegion = nil
	}
}
