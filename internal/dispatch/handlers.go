package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/gateway"
	"github.com/rickgao/shardline/internal/model"
)

// errUncachedGuild marks an event that references a guild the cache does
// not hold. Such events are dropped.
var errUncachedGuild = errors.New("guild not cached")

func uncached(kind EventKind, guildID snowflake.ID) error {
	return fmt.Errorf("%w: %s for guild %d", errUncachedGuild, kind, guildID)
}

// decodeContext is what a decoder needs for one payload.
type decodeContext struct {
	cache  *cache.Cache
	header Header
	logger *slog.Logger
}

type decodeFunc func(dc decodeContext, data json.RawMessage) ([]Event, error)

// decoders maps each modeled kind to its decoder. Kinds without an entry
// are emitted as Passthrough.
var decoders map[EventKind]decodeFunc

func init() {
	decoders = map[EventKind]decodeFunc{
		KindReady:                         decodeReady,
		KindResumed:                       decodeResumed,
		KindGuildCreate:                   decodeGuildCreate,
		KindGuildUpdate:                   decodeGuildUpdate,
		KindGuildDelete:                   decodeGuildDelete,
		KindGuildBanAdd:                   decodeBan(true),
		KindGuildBanRemove:                decodeBan(false),
		KindGuildEmojisUpdate:             decodeEmojis,
		KindGuildStickersUpdate:           decodeStickers,
		KindChannelCreate:                 decodeChannelUpsert(KindChannelCreate),
		KindChannelUpdate:                 decodeChannelUpsert(KindChannelUpdate),
		KindChannelDelete:                 decodeChannelDelete,
		KindThreadCreate:                  decodeThreadCreate,
		KindThreadUpdate:                  decodeThreadUpdate,
		KindThreadDelete:                  decodeThreadDelete,
		KindThreadListSync:                decodeThreadListSync,
		KindGuildRoleCreate:               decodeRoleUpsert(KindGuildRoleCreate),
		KindGuildRoleUpdate:               decodeRoleUpsert(KindGuildRoleUpdate),
		KindGuildRoleDelete:               decodeRoleDelete,
		KindGuildMemberAdd:                decodeMemberAdd,
		KindGuildMemberUpdate:             decodeMemberUpdate,
		KindGuildMemberRemove:             decodeMemberRemove,
		KindGuildMembersChunk:             decodeMembersChunk,
		KindUserUpdate:                    decodeUserUpdate,
		KindPresenceUpdate:                decodePresenceUpdate,
		KindVoiceStateUpdate:              decodeVoiceState,
		KindVoiceServerUpdate:             decodeVoiceServer,
		KindGuildScheduledEventCreate:     decodeScheduledEventUpsert(KindGuildScheduledEventCreate),
		KindGuildScheduledEventUpdate:     decodeScheduledEventUpsert(KindGuildScheduledEventUpdate),
		KindGuildScheduledEventDelete:     decodeScheduledEventDelete,
		KindGuildScheduledEventUserAdd:    decodeScheduledEventUser(1),
		KindGuildScheduledEventUserRemove: decodeScheduledEventUser(-1),
		KindStageInstanceCreate:           decodeStageUpsert(KindStageInstanceCreate),
		KindStageInstanceUpdate:           decodeStageUpsert(KindStageInstanceUpdate),
		KindStageInstanceDelete:           decodeStageDelete,
		KindMessageCreate:                 decodeMessageCreate,
		KindMessageUpdate:                 decodeMessageUpdate,
		KindMessageDelete:                 decodeMessageDelete,
		KindMessageDeleteBulk:             decodeMessageDeleteBulk,
		KindTypingStart:                   decodeTypingStart,
	}
}

func unmarshal(kind EventKind, data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// ---- Session ----

func decodeReady(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var r gateway.Ready
	if err := unmarshal(KindReady, data, &r); err != nil {
		return nil, err
	}

	flipped := dc.cache.Ready(dc.header.ShardID, &r.User, r.Guilds)
	ids := make([]snowflake.ID, len(r.Guilds))
	for i, g := range r.Guilds {
		ids[i] = g.ID
	}

	events := []Event{Ready{
		Header:        dc.header,
		User:          r.User.Clone(),
		SessionID:     r.SessionID,
		ApplicationID: r.Application.ID,
		GuildIDs:      ids,
	}}
	if flipped {
		events = append(events, GuildsDownloaded{Header: dc.header, GuildCount: len(dc.cache.GuildIDs())})
	}
	return events, nil
}

func decodeResumed(dc decodeContext, _ json.RawMessage) ([]Event, error) {
	return []Event{Resumed{Header: dc.header}}, nil
}

// ---- Guilds ----

func decodeGuildCreate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p guildPayload
	if err := unmarshal(KindGuildCreate, data, &p); err != nil {
		return nil, err
	}
	if p.Unavailable {
		g, ok := dc.cache.MarkGuildUnavailable(p.ID)
		if !ok {
			g = model.NewGuild(p.ID)
		}
		return []Event{GuildUnavailable{Header: dc.header, Guild: g}}, nil
	}

	g, users, presences := p.toGuild()
	res := dc.cache.UpsertGuild(g, users, presences)

	var events []Event
	if res.Existed {
		events = append(events, GuildAvailable{Header: dc.header, Guild: res.Guild})
	} else {
		events = append(events, GuildJoined{Header: dc.header, Guild: res.Guild})
	}
	if res.DownloadCompleted {
		events = append(events, GuildsDownloaded{Header: dc.header, GuildCount: len(dc.cache.GuildIDs())})
	}
	return events, nil
}

func decodeGuildUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p guildPayload
	if err := unmarshal(KindGuildUpdate, data, &p); err != nil {
		return nil, err
	}
	g, _, _ := p.toGuild()
	before, after, ok := dc.cache.UpdateGuild(g)
	if !ok {
		return nil, uncached(KindGuildUpdate, p.ID)
	}
	return []Event{GuildUpdated{Header: dc.header, Before: before, After: after}}, nil
}

func decodeGuildDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p guildDeletePayload
	if err := unmarshal(KindGuildDelete, data, &p); err != nil {
		return nil, err
	}
	if p.Unavailable {
		g, ok := dc.cache.MarkGuildUnavailable(p.ID)
		if !ok {
			g = model.NewGuild(p.ID)
		}
		return []Event{GuildUnavailable{Header: dc.header, Guild: g}}, nil
	}

	g, completed, ok := dc.cache.RemoveGuild(p.ID)
	if !ok {
		g = model.NewGuild(p.ID)
	}
	events := []Event{GuildLeft{Header: dc.header, Guild: g}}
	if completed {
		events = append(events, GuildsDownloaded{Header: dc.header, GuildCount: len(dc.cache.GuildIDs())})
	}
	return events, nil
}

func decodeBan(added bool) decodeFunc {
	kind := KindGuildBanRemove
	if added {
		kind = KindGuildBanAdd
	}
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var p banPayload
		if err := unmarshal(kind, data, &p); err != nil {
			return nil, err
		}
		_, after := dc.cache.UpsertUser(p.User)
		if after == nil {
			after = p.User
		}
		if added {
			return []Event{BanAdded{Header: dc.header, GuildID: p.GuildID, User: after}}, nil
		}
		return []Event{BanRemoved{Header: dc.header, GuildID: p.GuildID, User: after}}, nil
	}
}

func decodeEmojis(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p emojisPayload
	if err := unmarshal(KindGuildEmojisUpdate, data, &p); err != nil {
		return nil, err
	}
	before, ok := dc.cache.ReplaceEmojis(p.GuildID, p.Emojis)
	if !ok {
		return nil, uncached(KindGuildEmojisUpdate, p.GuildID)
	}
	return []Event{EmojisUpdated{Header: dc.header, GuildID: p.GuildID, Before: before, After: p.Emojis}}, nil
}

func decodeStickers(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p stickersPayload
	if err := unmarshal(KindGuildStickersUpdate, data, &p); err != nil {
		return nil, err
	}
	before, ok := dc.cache.ReplaceStickers(p.GuildID, p.Stickers)
	if !ok {
		return nil, uncached(KindGuildStickersUpdate, p.GuildID)
	}
	return []Event{StickersUpdated{Header: dc.header, GuildID: p.GuildID, Before: before, After: p.Stickers}}, nil
}

// ---- Channels and threads ----

func decodeChannelUpsert(kind EventKind) decodeFunc {
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var ch model.Channel
		if err := unmarshal(kind, data, &ch); err != nil {
			return nil, err
		}
		if ch.GuildID == 0 {
			// Private channels are not cached.
			if kind == KindChannelCreate {
				return []Event{ChannelCreated{Header: dc.header, Channel: &ch}}, nil
			}
			return []Event{ChannelUpdated{Header: dc.header, After: &ch}}, nil
		}

		before, after, ok := dc.cache.UpsertChannel(&ch)
		if !ok {
			return nil, uncached(kind, ch.GuildID)
		}
		if kind == KindChannelCreate {
			return []Event{ChannelCreated{Header: dc.header, Channel: after}}, nil
		}
		return []Event{ChannelUpdated{Header: dc.header, Before: before, After: after}}, nil
	}
}

func decodeChannelDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var ch model.Channel
	if err := unmarshal(KindChannelDelete, data, &ch); err != nil {
		return nil, err
	}
	if ch.GuildID == 0 {
		return []Event{ChannelDeleted{Header: dc.header, Channel: &ch}}, nil
	}
	cached, ok := dc.cache.RemoveChannel(ch.GuildID, ch.ID)
	if !ok {
		return nil, uncached(KindChannelDelete, ch.GuildID)
	}
	if cached == nil {
		cached = &ch
	}
	return []Event{ChannelDeleted{Header: dc.header, Channel: cached}}, nil
}

func decodeThreadCreate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p threadCreatePayload
	if err := unmarshal(KindThreadCreate, data, &p); err != nil {
		return nil, err
	}
	_, after, ok := dc.cache.UpsertThread(&p.Channel)
	if !ok {
		return nil, uncached(KindThreadCreate, p.GuildID)
	}
	return []Event{ThreadCreated{Header: dc.header, Thread: after, NewlyCreated: p.NewlyCreated}}, nil
}

func decodeThreadUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var th model.Channel
	if err := unmarshal(KindThreadUpdate, data, &th); err != nil {
		return nil, err
	}
	before, after, ok := dc.cache.UpsertThread(&th)
	if !ok {
		return nil, uncached(KindThreadUpdate, th.GuildID)
	}
	return []Event{ThreadUpdated{Header: dc.header, Before: before, After: after}}, nil
}

func decodeThreadDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p threadDeletePayload
	if err := unmarshal(KindThreadDelete, data, &p); err != nil {
		return nil, err
	}
	th, ok := dc.cache.RemoveThread(p.GuildID, p.ID)
	if !ok {
		return nil, uncached(KindThreadDelete, p.GuildID)
	}
	if th == nil {
		th = &model.Channel{ID: p.ID, GuildID: p.GuildID, ParentID: p.ParentID, Type: p.Type}
	}
	return []Event{ThreadDeleted{Header: dc.header, Thread: th}}, nil
}

func decodeThreadListSync(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p threadListSyncPayload
	if err := unmarshal(KindThreadListSync, data, &p); err != nil {
		return nil, err
	}
	removed, ok := dc.cache.SyncThreads(p.GuildID, p.ChannelIDs, p.Threads)
	if !ok {
		return nil, uncached(KindThreadListSync, p.GuildID)
	}
	return []Event{ThreadListSynced{
		Header:     dc.header,
		GuildID:    p.GuildID,
		ChannelIDs: p.ChannelIDs,
		Threads:    p.Threads,
		Removed:    removed,
	}}, nil
}

// ---- Roles ----

func decodeRoleUpsert(kind EventKind) decodeFunc {
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var p rolePayload
		if err := unmarshal(kind, data, &p); err != nil {
			return nil, err
		}
		if p.Role == nil {
			return nil, fmt.Errorf("decode %s: missing role", kind)
		}
		before, after, ok := dc.cache.UpsertRole(p.GuildID, p.Role)
		if !ok {
			return nil, uncached(kind, p.GuildID)
		}
		if kind == KindGuildRoleCreate {
			return []Event{RoleCreated{Header: dc.header, GuildID: p.GuildID, Role: after}}, nil
		}
		return []Event{RoleUpdated{Header: dc.header, GuildID: p.GuildID, Before: before, After: after}}, nil
	}
}

func decodeRoleDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p roleDeletePayload
	if err := unmarshal(KindGuildRoleDelete, data, &p); err != nil {
		return nil, err
	}
	role, ok := dc.cache.RemoveRole(p.GuildID, p.RoleID)
	if !ok {
		return nil, uncached(KindGuildRoleDelete, p.GuildID)
	}
	if role == nil {
		dc.logger.Warn("deleted role was not cached",
			"guild_id", p.GuildID,
			"role_id", p.RoleID,
		)
	}
	return []Event{RoleDeleted{Header: dc.header, GuildID: p.GuildID, RoleID: p.RoleID, Role: role}}, nil
}

// ---- Members and users ----

func decodeMemberAdd(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p memberPayload
	if err := unmarshal(KindGuildMemberAdd, data, &p); err != nil {
		return nil, err
	}
	m, u := p.split(0)
	member, ok := dc.cache.AddMember(m, u)
	if !ok {
		return nil, uncached(KindGuildMemberAdd, m.GuildID)
	}
	return []Event{MemberJoined{Header: dc.header, Member: member, User: u}}, nil
}

func decodeMemberUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p memberPayload
	if err := unmarshal(KindGuildMemberUpdate, data, &p); err != nil {
		return nil, err
	}
	m, u := p.split(0)
	before, after, ok := dc.cache.UpdateMember(m, u)
	if !ok {
		return nil, uncached(KindGuildMemberUpdate, m.GuildID)
	}
	return []Event{MemberUpdated{Header: dc.header, Before: before, After: after, User: u}}, nil
}

func decodeMemberRemove(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p memberRemovePayload
	if err := unmarshal(KindGuildMemberRemove, data, &p); err != nil {
		return nil, err
	}
	if p.User == nil {
		return nil, fmt.Errorf("decode %s: missing user", KindGuildMemberRemove)
	}
	dc.cache.UpsertUser(p.User)
	member, ok := dc.cache.RemoveMember(p.GuildID, p.User.ID)
	if !ok {
		return nil, uncached(KindGuildMemberRemove, p.GuildID)
	}
	if member == nil {
		member = &model.Member{GuildID: p.GuildID, UserID: p.User.ID}
	}
	return []Event{MemberLeft{Header: dc.header, GuildID: p.GuildID, User: p.User, Member: member}}, nil
}

func decodeMembersChunk(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p membersChunkPayload
	if err := unmarshal(KindGuildMembersChunk, data, &p); err != nil {
		return nil, err
	}
	members := make([]*model.Member, 0, len(p.Members))
	users := make([]*model.User, 0, len(p.Members))
	for i := range p.Members {
		m, u := p.Members[i].split(p.GuildID)
		members = append(members, m)
		if u != nil {
			users = append(users, u)
		}
	}
	presences := make([]*model.Presence, 0, len(p.Presences))
	for i := range p.Presences {
		presences = append(presences, p.Presences[i].toPresence(p.GuildID))
	}

	if _, ok := dc.cache.AddMembersChunk(p.GuildID, members, users, presences); !ok {
		return nil, uncached(KindGuildMembersChunk, p.GuildID)
	}
	return []Event{MembersChunk{
		Header:     dc.header,
		GuildID:    p.GuildID,
		Members:    members,
		ChunkIndex: p.ChunkIndex,
		ChunkCount: p.ChunkCount,
		NotFound:   p.NotFound,
		Nonce:      p.Nonce,
	}}, nil
}

func decodeUserUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var u model.User
	if err := unmarshal(KindUserUpdate, data, &u); err != nil {
		return nil, err
	}
	before, after := dc.cache.UpsertUser(&u)
	return []Event{UserUpdated{Header: dc.header, Before: before, After: after}}, nil
}

func decodePresenceUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p presencePayload
	if err := unmarshal(KindPresenceUpdate, data, &p); err != nil {
		return nil, err
	}
	pr := p.toPresence(0)
	before, after := dc.cache.UpdatePresence(pr, &p.User)
	return []Event{PresenceUpdated{Header: dc.header, Before: before, After: after}}, nil
}

// ---- Voice and stage ----

func decodeVoiceState(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p voiceStatePayload
	if err := unmarshal(KindVoiceStateUpdate, data, &p); err != nil {
		return nil, err
	}
	if p.GuildID == 0 {
		return []Event{VoiceStateUpdated{Header: dc.header, After: &p.VoiceState}}, nil
	}
	if p.Member != nil {
		m, u := p.Member.split(p.GuildID)
		dc.cache.UpsertMember(m, u)
	}
	before, after, ok := dc.cache.UpdateVoiceState(&p.VoiceState)
	if !ok {
		return nil, uncached(KindVoiceStateUpdate, p.GuildID)
	}
	return []Event{VoiceStateUpdated{Header: dc.header, Before: before, After: after}}, nil
}

func decodeVoiceServer(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p voiceServerPayload
	if err := unmarshal(KindVoiceServerUpdate, data, &p); err != nil {
		return nil, err
	}
	return []Event{VoiceServerUpdated{Header: dc.header, GuildID: p.GuildID, Token: p.Token, Endpoint: p.Endpoint}}, nil
}

func decodeStageUpsert(kind EventKind) decodeFunc {
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var si model.StageInstance
		if err := unmarshal(kind, data, &si); err != nil {
			return nil, err
		}
		before, after, ok := dc.cache.UpsertStageInstance(&si)
		if !ok {
			return nil, uncached(kind, si.GuildID)
		}
		if kind == KindStageInstanceCreate {
			return []Event{StageInstanceCreated{Header: dc.header, StageInstance: after}}, nil
		}
		return []Event{StageInstanceUpdated{Header: dc.header, Before: before, After: after}}, nil
	}
}

func decodeStageDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var si model.StageInstance
	if err := unmarshal(KindStageInstanceDelete, data, &si); err != nil {
		return nil, err
	}
	cached, ok := dc.cache.RemoveStageInstance(si.GuildID, si.ID)
	if !ok {
		return nil, uncached(KindStageInstanceDelete, si.GuildID)
	}
	if cached == nil {
		cached = &si
	}
	return []Event{StageInstanceDeleted{Header: dc.header, StageInstance: cached}}, nil
}

// ---- Scheduled events ----

func decodeScheduledEventUpsert(kind EventKind) decodeFunc {
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var ev model.ScheduledEvent
		if err := unmarshal(kind, data, &ev); err != nil {
			return nil, err
		}
		before, after, removed, ok := dc.cache.UpsertScheduledEvent(&ev)
		if !ok {
			return nil, uncached(kind, ev.GuildID)
		}
		if removed {
			return []Event{ScheduledEventDeleted{Header: dc.header, Event: after, Reason: after.Status}}, nil
		}
		if kind == KindGuildScheduledEventCreate {
			return []Event{ScheduledEventCreated{Header: dc.header, Event: after}}, nil
		}
		return []Event{ScheduledEventUpdated{Header: dc.header, Before: before, After: after}}, nil
	}
}

func decodeScheduledEventDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var ev model.ScheduledEvent
	if err := unmarshal(KindGuildScheduledEventDelete, data, &ev); err != nil {
		return nil, err
	}
	cached, ok := dc.cache.RemoveScheduledEvent(ev.GuildID, ev.ID)
	if !ok {
		return nil, uncached(KindGuildScheduledEventDelete, ev.GuildID)
	}
	if cached == nil {
		cached = &ev
	}
	reason := ev.Status
	if reason == 0 {
		reason = cached.Status
	}
	return []Event{ScheduledEventDeleted{Header: dc.header, Event: cached, Reason: reason}}, nil
}

func decodeScheduledEventUser(delta int) decodeFunc {
	kind := KindGuildScheduledEventUserAdd
	if delta < 0 {
		kind = KindGuildScheduledEventUserRemove
	}
	return func(dc decodeContext, data json.RawMessage) ([]Event, error) {
		var p scheduledEventUserPayload
		if err := unmarshal(kind, data, &p); err != nil {
			return nil, err
		}
		if _, ok := dc.cache.AdjustScheduledEventUsers(p.GuildID, p.EventID, delta); !ok {
			dc.logger.Debug("scheduled event not cached",
				"guild_id", p.GuildID,
				"event_id", p.EventID,
			)
		}
		if delta > 0 {
			return []Event{ScheduledEventUserAdded{Header: dc.header, GuildID: p.GuildID, EventID: p.EventID, UserID: p.UserID}}, nil
		}
		return []Event{ScheduledEventUserRemoved{Header: dc.header, GuildID: p.GuildID, EventID: p.EventID, UserID: p.UserID}}, nil
	}
}

// ---- Messages ----

// resolveAuthor caches the author unless the message came from a webhook,
// whose author objects are not real users.
func resolveAuthor(dc decodeContext, p *messagePayload) {
	if p.Author == nil {
		return
	}
	p.AuthorID = p.Author.ID
	if p.WebhookID == nil {
		dc.cache.UpsertUser(p.Author)
	}
	if p.Member != nil && p.GuildID != nil {
		p.Member.GuildID = *p.GuildID
		p.Member.UserID = p.Author.ID
	}
}

func decodeMessageCreate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p messagePayload
	if err := unmarshal(KindMessageCreate, data, &p); err != nil {
		return nil, err
	}
	resolveAuthor(dc, &p)
	dc.cache.TouchLastMessage(p.ChannelID, p.ID)

	var member *model.Member
	if p.GuildID != nil {
		member = p.Member
	}
	return []Event{MessageCreated{Header: dc.header, Message: &p.Message, Author: p.Author, Member: member}}, nil
}

func decodeMessageUpdate(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p messagePayload
	if err := unmarshal(KindMessageUpdate, data, &p); err != nil {
		return nil, err
	}
	resolveAuthor(dc, &p)
	return []Event{MessageUpdated{Header: dc.header, Message: &p.Message, Author: p.Author}}, nil
}

func decodeMessageDelete(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p messageDeletePayload
	if err := unmarshal(KindMessageDelete, data, &p); err != nil {
		return nil, err
	}
	return []Event{MessageDeleted{Header: dc.header, ID: p.ID, ChannelID: p.ChannelID, GuildID: p.GuildID}}, nil
}

func decodeMessageDeleteBulk(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p messageDeleteBulkPayload
	if err := unmarshal(KindMessageDeleteBulk, data, &p); err != nil {
		return nil, err
	}
	return []Event{MessagesBulkDeleted{Header: dc.header, IDs: p.IDs, ChannelID: p.ChannelID, GuildID: p.GuildID}}, nil
}

func decodeTypingStart(dc decodeContext, data json.RawMessage) ([]Event, error) {
	var p typingStartPayload
	if err := unmarshal(KindTypingStart, data, &p); err != nil {
		return nil, err
	}
	ev := TypingStarted{
		Header:    dc.header,
		ChannelID: p.ChannelID,
		GuildID:   p.GuildID,
		UserID:    p.UserID,
		Timestamp: time.Unix(p.Timestamp, 0),
	}
	if p.Member != nil && p.GuildID != nil {
		m, u := p.Member.split(*p.GuildID)
		dc.cache.UpsertUser(u)
		ev.Member = m
	}
	return []Event{ev}, nil
}
