package cache

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// ---- Roles ----

// UpsertRole adds or replaces a role.
func (c *Cache) UpsertRole(guildID snowflake.ID, r *model.Role) (before, after *model.Role, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, nil, false
	}
	next := r.Clone()
	next.GuildID = guildID
	if existing, found := g.Roles[r.ID]; found {
		before = existing.Clone()
		*existing = *next
		return before, existing.Clone(), true
	}
	g.Roles[r.ID] = next
	return nil, next.Clone(), true
}

// RemoveRole evicts a role and strips it from cached members.
// role is nil when the role was not cached.
func (c *Cache) RemoveRole(guildID, roleID snowflake.ID) (role *model.Role, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	role = g.Roles[roleID]
	delete(g.Roles, roleID)
	for _, m := range g.Members {
		m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(id snowflake.ID) bool { return id == roleID })
	}
	return role, true
}

// ---- Members ----

// AddMember handles a member join: the user is merged, the guild's member
// count incremented and the member stored if the policy allows.
func (c *Cache) AddMember(m *model.Member, u *model.User) (*model.Member, bool) {
	c.resolveUser(m, u)

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[m.GuildID]
	if !ok {
		return nil, false
	}
	g.MemberCount++
	if c.persistMemberLocked(m.UserID) {
		g.Members[m.UserID] = m.Clone()
	}
	return m.Clone(), true
}

// UpsertMember stores a member without touching the member count.
func (c *Cache) UpsertMember(m *model.Member, u *model.User) (*model.Member, bool) {
	_, after, ok := c.UpdateMember(m, u)
	return after, ok
}

// UpdateMember merges a member update. before is nil when the member was not
// cached (always the case when members are not persisted).
func (c *Cache) UpdateMember(m *model.Member, u *model.User) (before, after *model.Member, ok bool) {
	c.resolveUser(m, u)

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[m.GuildID]
	if !ok {
		return nil, nil, false
	}
	if existing, found := g.Members[m.UserID]; found {
		before = existing.Clone()
	}
	if c.persistMemberLocked(m.UserID) {
		if existing, found := g.Members[m.UserID]; found {
			*existing = *m.Clone()
		} else {
			g.Members[m.UserID] = m.Clone()
		}
	}
	return before, m.Clone(), true
}

// RemoveMember evicts a member and decrements the member count.
func (c *Cache) RemoveMember(guildID, userID snowflake.ID) (member *model.Member, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	member = g.Members[userID]
	delete(g.Members, userID)
	if g.MemberCount > 0 {
		g.MemberCount--
	}
	return member, true
}

// AddMembersChunk merges one members-chunk page.
func (c *Cache) AddMembersChunk(guildID snowflake.ID, members []*model.Member, users []*model.User, presences []*model.Presence) (stored int, ok bool) {
	for _, u := range users {
		c.identities.UpsertUser(u)
	}
	for _, p := range presences {
		c.identities.UpdatePresence(p)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return 0, false
	}
	for _, m := range members {
		c.identities.EnsureUser(m.UserID)
		if !c.persistMemberLocked(m.UserID) {
			continue
		}
		m.GuildID = guildID
		g.Members[m.UserID] = m.Clone()
		stored++
	}
	return stored, true
}

// resolveUser merges u into the user map, or synthesizes a stub so that
// every member's user id resolves.
func (c *Cache) resolveUser(m *model.Member, u *model.User) {
	if u != nil {
		m.UserID = u.ID
		c.identities.UpsertUser(u)
		return
	}
	c.identities.EnsureUser(m.UserID)
}

// UpsertUser merges a user into the process-wide map.
func (c *Cache) UpsertUser(u *model.User) (before, after *model.User) {
	return c.identities.UpsertUser(u)
}

// UpdatePresence applies a presence update; a partial user is patched.
func (c *Cache) UpdatePresence(p *model.Presence, partial *model.User) (before, after *model.Presence) {
	if partial != nil {
		p.UserID = partial.ID
		c.identities.PatchUser(partial)
	}
	return c.identities.UpdatePresence(p)
}

// ---- Voice ----

// UpdateVoiceState stores a voice state; a nil channel id removes it.
func (c *Cache) UpdateVoiceState(vs *model.VoiceState) (before, after *model.VoiceState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[vs.GuildID]
	if !ok {
		return nil, nil, false
	}
	if existing, found := g.VoiceStates[vs.UserID]; found {
		before = existing.Clone()
	}
	if vs.ChannelID == nil {
		delete(g.VoiceStates, vs.UserID)
	} else {
		g.VoiceStates[vs.UserID] = vs.Clone()
	}
	return before, vs.Clone(), true
}

// ---- Scheduled events ----

// UpsertScheduledEvent stores an event. Events reaching a terminal status
// are removed and removed is true.
func (c *Cache) UpsertScheduledEvent(ev *model.ScheduledEvent) (before, after *model.ScheduledEvent, removed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[ev.GuildID]
	if !ok {
		return nil, nil, false, false
	}
	existing, found := g.ScheduledEvents[ev.ID]
	if found {
		before = existing.Clone()
	}
	if ev.Status.IsTerminal() {
		delete(g.ScheduledEvents, ev.ID)
		return before, ev.Clone(), true, true
	}

	next := ev.Clone()
	if found {
		if next.UserCount == 0 {
			next.UserCount = existing.UserCount
		}
		*existing = *next
		return before, existing.Clone(), false, true
	}
	g.ScheduledEvents[ev.ID] = next
	return nil, next.Clone(), false, true
}

// RemoveScheduledEvent evicts an event.
func (c *Cache) RemoveScheduledEvent(guildID, id snowflake.ID) (ev *model.ScheduledEvent, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	ev = g.ScheduledEvents[id]
	delete(g.ScheduledEvents, id)
	return ev, true
}

// AdjustScheduledEventUsers adds delta to an event's interested-user count.
func (c *Cache) AdjustScheduledEventUsers(guildID, id snowflake.ID, delta int) (*model.ScheduledEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	ev, ok := g.ScheduledEvents[id]
	if !ok {
		return nil, false
	}
	ev.UserCount = max(ev.UserCount+delta, 0)
	return ev.Clone(), true
}

// ---- Stage instances ----

// UpsertStageInstance adds or replaces a stage instance.
func (c *Cache) UpsertStageInstance(si *model.StageInstance) (before, after *model.StageInstance, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[si.GuildID]
	if !ok {
		return nil, nil, false
	}
	if existing, found := g.StageInstances[si.ID]; found {
		before = existing.Clone()
	}
	g.StageInstances[si.ID] = si.Clone()
	return before, si.Clone(), true
}

// RemoveStageInstance evicts a stage instance.
func (c *Cache) RemoveStageInstance(guildID, id snowflake.ID) (si *model.StageInstance, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	si = g.StageInstances[id]
	delete(g.StageInstances, id)
	return si, true
}

// ---- Emojis and stickers ----

// ReplaceEmojis sets the full emoji list of a guild. These events carry the
// complete list, so absent entries are removed.
func (c *Cache) ReplaceEmojis(guildID snowflake.ID, emojis []*model.Emoji) (before []*model.Emoji, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	before = make([]*model.Emoji, 0, len(g.Emojis))
	for _, e := range g.Emojis {
		before = append(before, e)
	}
	g.Emojis = make(map[snowflake.ID]*model.Emoji, len(emojis))
	for _, e := range emojis {
		g.Emojis[e.ID] = e.Clone()
	}
	return before, true
}

// ReplaceStickers sets the full sticker list of a guild.
func (c *Cache) ReplaceStickers(guildID snowflake.ID, stickers []*model.Sticker) (before []*model.Sticker, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	before = make([]*model.Sticker, 0, len(g.Stickers))
	for _, s := range g.Stickers {
		before = append(before, s)
	}
	g.Stickers = make(map[snowflake.ID]*model.Sticker, len(stickers))
	for _, s := range stickers {
		g.Stickers[s.ID] = s.Clone()
	}
	return before, true
}
