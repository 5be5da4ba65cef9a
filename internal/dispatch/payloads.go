package dispatch

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// Wire shapes of dispatch payloads that differ from the cached model.

type guildPayload struct {
	model.Guild
	Unavailable     bool                    `json:"unavailable"`
	Channels        []*model.Channel        `json:"channels"`
	Threads         []*model.Channel        `json:"threads"`
	Roles           []*model.Role           `json:"roles"`
	Emojis          []*model.Emoji          `json:"emojis"`
	Stickers        []*model.Sticker        `json:"stickers"`
	Members         []memberPayload         `json:"members"`
	VoiceStates     []*model.VoiceState     `json:"voice_states"`
	Presences       []presencePayload       `json:"presences"`
	ScheduledEvents []*model.ScheduledEvent `json:"guild_scheduled_events"`
	StageInstances  []*model.StageInstance  `json:"stage_instances"`
}

// toGuild converts the payload into a guild with keyed sub-collections,
// plus the users and presences it carried.
func (p *guildPayload) toGuild() (*model.Guild, []*model.User, []*model.Presence) {
	g := p.Guild
	g.Channels, g.Threads, g.Roles, g.Members = nil, nil, nil, nil
	g.Emojis, g.Stickers, g.VoiceStates, g.ScheduledEvents, g.StageInstances = nil, nil, nil, nil, nil
	g.EnsureCollections()

	for _, ch := range p.Channels {
		ch.GuildID = g.ID
		g.Channels[ch.ID] = ch
	}
	for _, th := range p.Threads {
		th.GuildID = g.ID
		g.Threads[th.ID] = th
	}
	for _, r := range p.Roles {
		r.GuildID = g.ID
		g.Roles[r.ID] = r
	}
	for _, e := range p.Emojis {
		g.Emojis[e.ID] = e
	}
	for _, s := range p.Stickers {
		g.Stickers[s.ID] = s
	}
	users := make([]*model.User, 0, len(p.Members))
	for i := range p.Members {
		m, u := p.Members[i].split(g.ID)
		if u != nil {
			users = append(users, u)
		}
		if m.UserID != 0 {
			g.Members[m.UserID] = m
		}
	}
	for _, vs := range p.VoiceStates {
		vs.GuildID = g.ID
		g.VoiceStates[vs.UserID] = vs
	}
	for _, ev := range p.ScheduledEvents {
		g.ScheduledEvents[ev.ID] = ev
	}
	for _, si := range p.StageInstances {
		g.StageInstances[si.ID] = si
	}
	presences := make([]*model.Presence, 0, len(p.Presences))
	for i := range p.Presences {
		presences = append(presences, p.Presences[i].toPresence(g.ID))
	}
	return &g, users, presences
}

type memberPayload struct {
	model.Member
	User *model.User `json:"user"`
}

// split separates the embedded user from the member.
func (p *memberPayload) split(guildID snowflake.ID) (*model.Member, *model.User) {
	m := p.Member
	if guildID != 0 {
		m.GuildID = guildID
	}
	if p.User != nil {
		m.UserID = p.User.ID
	}
	return &m, p.User
}

type presencePayload struct {
	model.Presence
	User model.User `json:"user"`
}

func (p *presencePayload) toPresence(guildID snowflake.ID) *model.Presence {
	pr := p.Presence
	pr.UserID = p.User.ID
	if pr.GuildID == 0 {
		pr.GuildID = guildID
	}
	return &pr
}

type threadCreatePayload struct {
	model.Channel
	NewlyCreated bool `json:"newly_created"`
}

type threadDeletePayload struct {
	ID       snowflake.ID      `json:"id"`
	GuildID  snowflake.ID      `json:"guild_id"`
	ParentID *snowflake.ID     `json:"parent_id"`
	Type     model.ChannelType `json:"type"`
}

type threadListSyncPayload struct {
	GuildID    snowflake.ID     `json:"guild_id"`
	ChannelIDs []snowflake.ID   `json:"channel_ids"`
	Threads    []*model.Channel `json:"threads"`
}

type guildDeletePayload struct {
	ID          snowflake.ID `json:"id"`
	Unavailable bool         `json:"unavailable"`
}

type rolePayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	Role    *model.Role  `json:"role"`
}

type roleDeletePayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	RoleID  snowflake.ID `json:"role_id"`
}

type memberRemovePayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	User    *model.User  `json:"user"`
}

type membersChunkPayload struct {
	GuildID    snowflake.ID      `json:"guild_id"`
	Members    []memberPayload   `json:"members"`
	ChunkIndex int               `json:"chunk_index"`
	ChunkCount int               `json:"chunk_count"`
	NotFound   []snowflake.ID    `json:"not_found"`
	Presences  []presencePayload `json:"presences"`
	Nonce      string            `json:"nonce"`
}

type voiceStatePayload struct {
	model.VoiceState
	Member *memberPayload `json:"member"`
}

type voiceServerPayload struct {
	Token    string       `json:"token"`
	GuildID  snowflake.ID `json:"guild_id"`
	Endpoint *string      `json:"endpoint"`
}

type scheduledEventUserPayload struct {
	EventID snowflake.ID `json:"guild_scheduled_event_id"`
	UserID  snowflake.ID `json:"user_id"`
	GuildID snowflake.ID `json:"guild_id"`
}

type emojisPayload struct {
	GuildID snowflake.ID   `json:"guild_id"`
	Emojis  []*model.Emoji `json:"emojis"`
}

type stickersPayload struct {
	GuildID  snowflake.ID     `json:"guild_id"`
	Stickers []*model.Sticker `json:"stickers"`
}

type banPayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	User    *model.User  `json:"user"`
}

type messagePayload struct {
	model.Message
	Author *model.User   `json:"author"`
	Member *model.Member `json:"member"`
}

type messageDeletePayload struct {
	ID        snowflake.ID  `json:"id"`
	ChannelID snowflake.ID  `json:"channel_id"`
	GuildID   *snowflake.ID `json:"guild_id"`
}

type messageDeleteBulkPayload struct {
	IDs       []snowflake.ID `json:"ids"`
	ChannelID snowflake.ID   `json:"channel_id"`
	GuildID   *snowflake.ID  `json:"guild_id"`
}

type typingStartPayload struct {
	ChannelID snowflake.ID   `json:"channel_id"`
	GuildID   *snowflake.ID  `json:"guild_id"`
	UserID    snowflake.ID   `json:"user_id"`
	Timestamp int64          `json:"timestamp"`
	Member    *memberPayload `json:"member"`
}
