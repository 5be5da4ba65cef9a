package cache

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// GuildResult describes the outcome of a guild create/available merge.
type GuildResult struct {
	// Guild is a deep copy of the merged guild.
	Guild *model.Guild

	// Existed is true if the guild was cached before (possibly as a stub).
	Existed bool

	// WasAvailable is the availability before the merge.
	WasAvailable bool

	// DownloadCompleted is true if this merge flipped the downloaded flag.
	DownloadCompleted bool
}

// UpsertGuild merges a full guild snapshot into the cache and marks it
// available. Sub-entries absent from g are kept. Users and presences
// carried by the snapshot go to the process-wide maps.
func (c *Cache) UpsertGuild(g *model.Guild, users []*model.User, presences []*model.Presence) GuildResult {
	for _, u := range users {
		c.identities.UpsertUser(u)
	}
	for _, p := range presences {
		c.identities.UpdatePresence(p)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.guilds[g.ID]
	res := GuildResult{Existed: ok}
	if !ok {
		existing = model.NewGuild(g.ID)
		c.guilds[g.ID] = existing
	}
	res.WasAvailable = existing.Available

	existing.ApplyScalars(g)
	existing.Available = true
	c.mergeCollectionsLocked(existing, g)

	res.DownloadCompleted = c.checkDownloadedLocked()
	res.Guild = existing.Clone()
	return res
}

// mergeCollectionsLocked adds or replaces every sub-entry of src in dst
// (caller must hold write lock). Nothing is removed from dst.
func (c *Cache) mergeCollectionsLocked(dst, src *model.Guild) {
	for id, ch := range src.Channels {
		ch.GuildID = dst.ID
		ch.Normalize()
		dst.Channels[id] = ch.Clone()
		c.channelGuild[id] = dst.ID
	}
	for id, th := range src.Threads {
		th.GuildID = dst.ID
		th.Normalize()
		dst.Threads[id] = th.Clone()
		c.threadGuild[id] = dst.ID
	}
	for id, r := range src.Roles {
		r.GuildID = dst.ID
		dst.Roles[id] = r.Clone()
	}
	for id, m := range src.Members {
		c.identities.EnsureUser(m.UserID)
		if c.persistMemberLocked(m.UserID) {
			m.GuildID = dst.ID
			dst.Members[id] = m.Clone()
		}
	}
	for id, e := range src.Emojis {
		dst.Emojis[id] = e.Clone()
	}
	for id, s := range src.Stickers {
		dst.Stickers[id] = s.Clone()
	}
	for id, vs := range src.VoiceStates {
		if vs.ChannelID == nil {
			continue
		}
		vs.GuildID = dst.ID
		dst.VoiceStates[id] = vs.Clone()
	}
	for id, ev := range src.ScheduledEvents {
		if ev.Status.IsTerminal() {
			delete(dst.ScheduledEvents, id)
			continue
		}
		dst.ScheduledEvents[id] = ev.Clone()
	}
	for id, si := range src.StageInstances {
		dst.StageInstances[id] = si.Clone()
	}
}

// persistMemberLocked reports whether a member should be stored
// (caller must hold lock). The bot's own member is always kept.
func (c *Cache) persistMemberLocked(userID snowflake.ID) bool {
	return c.policy.PersistMembers() || (userID != 0 && userID == c.selfID)
}

// UpdateGuild applies a guild update. Scalars are replaced in place; roles and
// emojis carried by the update are merged additively. before holds the
// previous scalars; before and after share one copy of the sub-collections.
func (c *Cache) UpdateGuild(g *model.Guild) (before, after *model.Guild, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.guilds[g.ID]
	if !ok {
		return nil, nil, false
	}

	before = existing.ScalarCopy()

	// GUILD_UPDATE omits the GUILD_CREATE-only fields.
	memberCount, large, joinedAt, maxMembers := existing.MemberCount, existing.Large, existing.JoinedAt, existing.MaxMembers
	existing.ApplyScalars(g)
	existing.MemberCount, existing.Large, existing.JoinedAt = memberCount, large, joinedAt
	if existing.MaxMembers == 0 {
		existing.MaxMembers = maxMembers
	}
	for id, r := range g.Roles {
		r.GuildID = existing.ID
		existing.Roles[id] = r.Clone()
	}
	for id, e := range g.Emojis {
		existing.Emojis[id] = e.Clone()
	}

	after = existing.Clone()
	before.ShareCollections(after)
	return before, after, true
}

// MarkGuildUnavailable flags a guild as unavailable (outage). The cached
// entities are kept. ok is false if the guild was not cached.
func (c *Cache) MarkGuildUnavailable(id snowflake.ID) (*model.Guild, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[id]
	if !ok {
		return nil, false
	}
	g.Available = false
	return g.Clone(), true
}

// RemoveGuild evicts a guild and every entity it owns. downloadCompleted
// reports whether the removal left every remaining guild available and so
// flipped the downloaded flag.
func (c *Cache) RemoveGuild(id snowflake.ID) (g *model.Guild, downloadCompleted, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok = c.guilds[id]
	if !ok {
		return nil, false, false
	}
	delete(c.guilds, id)
	for chID := range g.Channels {
		delete(c.channelGuild, chID)
	}
	for thID := range g.Threads {
		delete(c.threadGuild, thID)
	}
	return g, c.checkDownloadedLocked(), true
}
