package cache

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// UpsertChannel adds or replaces a guild channel. Thread types are routed to
// UpsertThread. Type-dependent fields are normalized before storing, so
// applying the same update twice yields the same state as once.
func (c *Cache) UpsertChannel(ch *model.Channel) (before, after *model.Channel, ok bool) {
	if ch.Type.IsThread() {
		return c.UpsertThread(ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[ch.GuildID]
	if !ok {
		return nil, nil, false
	}
	before, after = upsertChannelLocked(g.Channels, ch)
	c.channelGuild[ch.ID] = g.ID
	return before, after, true
}

// UpsertThread adds or replaces a thread.
func (c *Cache) UpsertThread(th *model.Channel) (before, after *model.Channel, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[th.GuildID]
	if !ok {
		return nil, nil, false
	}
	before, after = upsertChannelLocked(g.Threads, th)
	c.threadGuild[th.ID] = g.ID
	return before, after, true
}

func upsertChannelLocked(m map[snowflake.ID]*model.Channel, ch *model.Channel) (before, after *model.Channel) {
	next := ch.Clone()
	next.Normalize()

	if existing, ok := m[ch.ID]; ok {
		before = existing.Clone()
		*existing = *next
		return before, existing.Clone()
	}
	m[ch.ID] = next
	return nil, next.Clone()
}

// RemoveChannel evicts a guild channel. guildOK is false when the guild is
// not cached; the returned channel is nil when the channel was unknown.
func (c *Cache) RemoveChannel(guildID, id snowflake.ID) (ch *model.Channel, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	ch = g.Channels[id]
	delete(g.Channels, id)
	delete(c.channelGuild, id)
	return ch, true
}

// RemoveThread evicts a thread.
func (c *Cache) RemoveThread(guildID, id snowflake.ID) (th *model.Channel, guildOK bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}
	th = g.Threads[id]
	delete(g.Threads, id)
	delete(c.threadGuild, id)
	return th, true
}

// SyncThreads replaces the active threads of the listed parent channels with
// threads. An empty parentIDs means the whole guild was synced.
func (c *Cache) SyncThreads(guildID snowflake.ID, parentIDs []snowflake.ID, threads []*model.Channel) (removed int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		return 0, false
	}

	synced := make(map[snowflake.ID]struct{}, len(threads))
	for _, th := range threads {
		synced[th.ID] = struct{}{}
	}
	for id, th := range g.Threads {
		if _, keep := synced[id]; keep {
			continue
		}
		if len(parentIDs) > 0 && (th.ParentID == nil || !slices.Contains(parentIDs, *th.ParentID)) {
			continue
		}
		delete(g.Threads, id)
		delete(c.threadGuild, id)
		removed++
	}
	for _, th := range threads {
		th.GuildID = guildID
		upsertChannelLocked(g.Threads, th)
		c.threadGuild[th.ID] = guildID
	}
	return removed, true
}

// TouchLastMessage records the newest message id on a channel or thread.
// Threads also count the message.
func (c *Cache) TouchLastMessage(channelID, messageID snowflake.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.guilds[c.channelGuild[channelID]]; ok {
		if ch, ok := g.Channels[channelID]; ok {
			ch.LastMessageID = &messageID
			return true
		}
	}
	if g, ok := c.guilds[c.threadGuild[channelID]]; ok {
		if th, ok := g.Threads[channelID]; ok {
			th.LastMessageID = &messageID
			th.MessageCount++
			return true
		}
	}
	return false
}
