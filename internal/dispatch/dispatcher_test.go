package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/shardline/internal/cache"
	"github.com/rickgao/shardline/internal/model"
)

// collector records every notification of the kinds it is attached to.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) attach(d *Dispatcher, kinds ...EventKind) {
	for _, k := range kinds {
		d.On(k, func(_ context.Context, ev Event) {
			c.mu.Lock()
			c.events = append(c.events, ev)
			c.mu.Unlock()
		})
	}
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *cache.Cache) {
	t.Helper()
	return New(DefaultConfig(), nil), cache.New(cache.Policy{TrackMembers: true}, nil, nil)
}

func dispatch(t *testing.T, d *Dispatcher, c *cache.Cache, seq int64, name, data string) {
	t.Helper()
	d.Dispatch(context.Background(), c, RawDispatch{ShardID: 0, Seq: seq, Name: name, Data: json.RawMessage(data)})
	require.NoError(t, d.Wait(context.Background()))
}

func TestParseEventKind(t *testing.T) {
	assert.Equal(t, KindGuildCreate, ParseEventKind("GUILD_CREATE"))
	assert.Equal(t, KindUnknown, ParseEventKind("SOMETHING_NEW"))
	assert.Equal(t, KindUnknown, ParseEventKind("GUILD_AVAILABLE"), "derived kinds are never parsed")
	assert.Equal(t, "GUILD_AVAILABLE", KindGuildAvailable.String())
	assert.True(t, KindGuildsDownloaded.Derived())
	assert.False(t, KindReady.Derived())

	for k, name := range wireNames {
		assert.Equal(t, k, ParseEventKind(name))
	}
}

func TestDispatch_UnknownEvent(t *testing.T) {
	d, c := newTestDispatcher(t)
	var col collector
	col.attach(d, KindUnknown)

	dispatch(t, d, c, 1, "BRAND_NEW_THING", `{"x":1}`)

	got := col.snapshot()
	require.Len(t, got, 1)
	u, ok := got[0].(Unknown)
	require.True(t, ok)
	assert.Equal(t, "BRAND_NEW_THING", u.Name)
	assert.JSONEq(t, `{"x":1}`, string(u.Raw))
	assert.EqualValues(t, 1, d.Stats().Unknown)
}

func TestDispatch_Passthrough(t *testing.T) {
	d, c := newTestDispatcher(t)
	got := make(chan Passthrough, 1)
	SubscribeKind(d, KindInviteCreate, func(_ context.Context, ev Passthrough) { got <- ev })

	dispatch(t, d, c, 1, "INVITE_CREATE", `{"code":"abc"}`)

	select {
	case ev := <-got:
		assert.Equal(t, KindInviteCreate, ev.Kind())
	case <-time.After(time.Second):
		t.Fatal("no passthrough notification")
	}
}

func TestDispatch_ReadyAndGuildCreate(t *testing.T) {
	d, c := newTestDispatcher(t)
	var col collector
	col.attach(d, KindReady, KindGuildAvailable, KindGuildJoined, KindGuildsDownloaded)

	dispatch(t, d, c, 1, "READY", `{
		"v": 10,
		"user": {"id": "1", "username": "bot"},
		"guilds": [{"id": "10", "unavailable": true}],
		"session_id": "sess",
		"resume_gateway_url": "wss://resume.example",
		"application": {"id": "1"}
	}`)
	dispatch(t, d, c, 2, "GUILD_CREATE", `{
		"id": "10",
		"name": "guild",
		"channels": [{"id": "100", "type": 0, "name": "general"}],
		"roles": [{"id": "10", "name": "@everyone"}],
		"members": [{"user": {"id": "2", "username": "two"}, "roles": []}],
		"presences": [{"user": {"id": "2"}, "status": "online", "activities": []}],
		"voice_states": [{"user_id": "2", "channel_id": "100", "session_id": "x"}]
	}`)
	dispatch(t, d, c, 3, "GUILD_CREATE", `{"id": "20", "name": "joined"}`)

	events := col.snapshot()
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind()
	}
	assert.ElementsMatch(t, []EventKind{KindReady, KindGuildAvailable, KindGuildsDownloaded, KindGuildJoined}, kinds)

	g, ok := c.Guild(10)
	require.True(t, ok)
	assert.True(t, g.Available)
	assert.Equal(t, snowflake.ID(10), g.Channels[100].GuildID)
	assert.Contains(t, g.Members, snowflake.ID(2))
	assert.Contains(t, g.VoiceStates, snowflake.ID(2))

	u, ok := c.User(2)
	require.True(t, ok)
	assert.Equal(t, "two", u.Username)
	p, ok := c.Presence(2)
	require.True(t, ok)
	assert.Equal(t, "online", p.Status)
	assert.True(t, c.AllGuildsDownloaded())
}

func TestDispatch_RoleDeleteUncachedRole(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)

	got := make(chan RoleDeleted, 1)
	Subscribe(d, func(_ context.Context, ev RoleDeleted) { got <- ev })

	require.NotPanics(t, func() {
		dispatch(t, d, c, 1, "GUILD_ROLE_DELETE", `{"guild_id": "10", "role_id": "999"}`)
	})

	select {
	case ev := <-got:
		assert.Nil(t, ev.Role)
		assert.Equal(t, snowflake.ID(999), ev.RoleID)
		assert.Equal(t, snowflake.ID(10), ev.GuildID)
	case <-time.After(time.Second):
		t.Fatal("no role deleted notification")
	}
}

func TestDispatch_UncachedGuildDropped(t *testing.T) {
	d, c := newTestDispatcher(t)
	var col collector
	col.attach(d, KindChannelCreate)

	dispatch(t, d, c, 1, "CHANNEL_CREATE", `{"id": "100", "guild_id": "42", "type": 0}`)

	assert.Empty(t, col.snapshot())
	assert.EqualValues(t, 1, d.Stats().Anomalies)
	_, ok := c.Channel(100)
	assert.False(t, ok)
}

func TestDispatch_DecodeErrorCounted(t *testing.T) {
	d, c := newTestDispatcher(t)
	dispatch(t, d, c, 1, "CHANNEL_CREATE", `{"id": 12`)
	assert.EqualValues(t, 1, d.Stats().DecodeErrors)
}

func TestDispatch_ChannelUpdateTwiceEqualsOnce(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)

	upd := `{"id": "100", "guild_id": "10", "type": 0, "name": "general", "rate_limit_per_user": 3}`
	dispatch(t, d, c, 1, "CHANNEL_UPDATE", upd)
	once, _ := c.Channel(100)
	dispatch(t, d, c, 2, "CHANNEL_UPDATE", upd)
	twice, _ := c.Channel(100)

	assert.Equal(t, once, twice)
}

func TestDispatch_MemberTimeout(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)
	dispatch(t, d, c, 1, "GUILD_MEMBER_ADD", `{"guild_id": "10", "user": {"id": "5"}, "roles": []}`)

	got := make(chan MemberUpdated, 1)
	Subscribe(d, func(_ context.Context, ev MemberUpdated) { got <- ev })

	until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	dispatch(t, d, c, 2, "GUILD_MEMBER_UPDATE", `{"guild_id": "10", "user": {"id": "5"}, "roles": [], "communication_disabled_until": "`+until+`"}`)

	select {
	case ev := <-got:
		assert.True(t, ev.TimeoutChanged())
		require.NotNil(t, ev.Before)
		assert.Nil(t, ev.Before.CommunicationDisabledUntil)
	case <-time.After(time.Second):
		t.Fatal("no member updated notification")
	}
}

func TestDispatch_ScheduledEventTerminalStatusEmitsDelete(t *testing.T) {
	for _, status := range []model.ScheduledEventStatus{model.ScheduledEventCompleted, model.ScheduledEventCanceled} {
		t.Run(status.String(), func(t *testing.T) {
			d, c := newTestDispatcher(t)
			c.UpsertGuild(model.NewGuild(10), nil, nil)

			dispatch(t, d, c, 1, "GUILD_SCHEDULED_EVENT_CREATE", `{"id": "7", "guild_id": "10", "name": "e", "status": 1, "scheduled_start_time": "2026-01-01T00:00:00Z"}`)
			g, _ := c.Guild(10)
			require.Contains(t, g.ScheduledEvents, snowflake.ID(7))

			var updates collector
			updates.attach(d, KindGuildScheduledEventUpdate)
			deleted := make(chan ScheduledEventDeleted, 1)
			Subscribe(d, func(_ context.Context, ev ScheduledEventDeleted) { deleted <- ev })

			dispatch(t, d, c, 2, "GUILD_SCHEDULED_EVENT_UPDATE",
				`{"id": "7", "guild_id": "10", "name": "e", "status": `+strconv.Itoa(int(status))+`, "scheduled_start_time": "2026-01-01T00:00:00Z"}`)

			select {
			case ev := <-deleted:
				assert.Equal(t, status, ev.Reason)
				require.NotNil(t, ev.Event)
				assert.Equal(t, snowflake.ID(7), ev.Event.ID)
			case <-time.After(time.Second):
				t.Fatal("no scheduled event deleted notification")
			}
			assert.Empty(t, updates.snapshot())

			g, _ = c.Guild(10)
			assert.NotContains(t, g.ScheduledEvents, snowflake.ID(7))
		})
	}
}

func TestDispatch_ScheduledEventActivePatches(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)

	dispatch(t, d, c, 1, "GUILD_SCHEDULED_EVENT_CREATE", `{"id": "7", "guild_id": "10", "name": "e", "status": 1, "scheduled_start_time": "2026-01-01T00:00:00Z"}`)

	got := make(chan ScheduledEventUpdated, 1)
	Subscribe(d, func(_ context.Context, ev ScheduledEventUpdated) { got <- ev })
	dispatch(t, d, c, 2, "GUILD_SCHEDULED_EVENT_UPDATE", `{"id": "7", "guild_id": "10", "name": "e2", "status": 2, "scheduled_start_time": "2026-01-01T00:00:00Z"}`)

	ev := <-got
	require.NotNil(t, ev.Before)
	assert.Equal(t, "e", ev.Before.Name)
	assert.Equal(t, model.ScheduledEventActive, ev.After.Status)
	g, _ := c.Guild(10)
	assert.Contains(t, g.ScheduledEvents, snowflake.ID(7))
}

func TestDispatch_ScheduledEventExplicitDelete(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)

	deleted := make(chan ScheduledEventDeleted, 1)
	Subscribe(d, func(_ context.Context, ev ScheduledEventDeleted) { deleted <- ev })
	dispatch(t, d, c, 1, "GUILD_SCHEDULED_EVENT_DELETE", `{"id": "8", "guild_id": "10", "name": "gone", "status": 1, "scheduled_start_time": "2026-01-01T00:00:00Z"}`)

	ev := <-deleted
	require.NotNil(t, ev.Event)
	assert.Equal(t, snowflake.ID(8), ev.Event.ID)
	assert.Equal(t, model.ScheduledEventScheduled, ev.Reason)
}

func TestDispatch_GuildDelete(t *testing.T) {
	d, c := newTestDispatcher(t)
	c.UpsertGuild(model.NewGuild(10), nil, nil)

	var col collector
	col.attach(d, KindGuildUnavailable, KindGuildLeft)

	dispatch(t, d, c, 1, "GUILD_DELETE", `{"id": "10", "unavailable": true}`)
	g, ok := c.Guild(10)
	require.True(t, ok)
	assert.False(t, g.Available)

	dispatch(t, d, c, 2, "GUILD_DELETE", `{"id": "10"}`)
	_, ok = c.Guild(10)
	assert.False(t, ok)

	dispatch(t, d, c, 3, "GUILD_DELETE", `{"id": "99"}`)

	events := col.snapshot()
	require.Len(t, events, 3)
	for _, ev := range events {
		switch e := ev.(type) {
		case GuildLeft:
			require.NotNil(t, e.Guild, "stand-in guild for uncached delete")
		case GuildUnavailable:
			require.NotNil(t, e.Guild)
		}
	}
}

func TestDispatch_GuildDeleteCompletesDownload(t *testing.T) {
	d, c := newTestDispatcher(t)
	var col collector
	col.attach(d, KindGuildLeft, KindGuildsDownloaded)

	dispatch(t, d, c, 1, "READY", `{
		"user": {"id": "1", "username": "bot"},
		"guilds": [{"id": "10", "unavailable": true}, {"id": "11", "unavailable": true}],
		"session_id": "sess",
		"application": {"id": "1"}
	}`)
	dispatch(t, d, c, 2, "GUILD_CREATE", `{"id": "10", "name": "stays"}`)
	require.False(t, c.AllGuildsDownloaded())

	// Removed from guild 11 before it ever became available.
	dispatch(t, d, c, 3, "GUILD_DELETE", `{"id": "11"}`)

	events := col.snapshot()
	require.Len(t, events, 2)
	var done GuildsDownloaded
	for _, ev := range events {
		if e, ok := ev.(GuildsDownloaded); ok {
			done = e
		}
	}
	assert.Equal(t, 1, done.GuildCount)
	assert.True(t, c.AllGuildsDownloaded())
}

func TestDispatch_MessageCreate(t *testing.T) {
	d, c := newTestDispatcher(t)
	g := model.NewGuild(10)
	g.Channels[100] = &model.Channel{ID: 100, Type: model.ChannelGuildText}
	c.UpsertGuild(g, nil, nil)

	got := make(chan MessageCreated, 1)
	Subscribe(d, func(_ context.Context, ev MessageCreated) { got <- ev })

	dispatch(t, d, c, 1, "MESSAGE_CREATE", `{
		"id": "500", "channel_id": "100", "guild_id": "10",
		"author": {"id": "5", "username": "five"},
		"member": {"roles": [], "deaf": false, "mute": false},
		"content": "hi", "timestamp": "2026-01-01T00:00:00Z"
	}`)

	ev := <-got
	assert.Equal(t, snowflake.ID(5), ev.Message.AuthorID)
	require.NotNil(t, ev.Member)
	assert.Equal(t, snowflake.ID(5), ev.Member.UserID)
	assert.Equal(t, snowflake.ID(10), ev.Member.GuildID)

	u, ok := c.User(5)
	require.True(t, ok)
	assert.Equal(t, "five", u.Username)
	ch, _ := c.Channel(100)
	require.NotNil(t, ch.LastMessageID)
	assert.Equal(t, snowflake.ID(500), *ch.LastMessageID)
}

func TestDispatch_HandlerPanicRecovered(t *testing.T) {
	d, c := newTestDispatcher(t)
	d.On(KindResumed, func(context.Context, Event) { panic("boom") })

	require.NotPanics(t, func() {
		dispatch(t, d, c, 1, "RESUMED", `{}`)
	})
	assert.EqualValues(t, 1, d.Stats().HandlerPanics)
}

func TestDispatch_SlowHandlerNotCancelled(t *testing.T) {
	d := New(Config{HandlerTimeout: 10 * time.Millisecond}, nil)
	c := cache.New(cache.Policy{}, nil, nil)

	finished := make(chan struct{})
	d.On(KindResumed, func(ctx context.Context, _ Event) {
		time.Sleep(50 * time.Millisecond)
		close(finished)
	})

	dispatch(t, d, c, 1, "RESUMED", `{}`)

	select {
	case <-finished:
	default:
		t.Fatal("slow handler did not run to completion")
	}
	assert.EqualValues(t, 1, d.Stats().SlowHandlers)
}

func TestDispatch_SlowHandlerDoesNotBlockNext(t *testing.T) {
	d, c := newTestDispatcher(t)
	release := make(chan struct{})
	d.On(KindResumed, func(context.Context, Event) { <-release })

	start := time.Now()
	for i := range 3 {
		d.Dispatch(context.Background(), c, RawDispatch{Seq: int64(i), Name: "RESUMED", Data: json.RawMessage(`{}`)})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatch_RawTap(t *testing.T) {
	d, c := newTestDispatcher(t)
	got := make(chan RawDispatch, 1)
	d.OnRaw(func(_ context.Context, raw RawDispatch) { got <- raw })

	dispatch(t, d, c, 9, "TYPING_START", `{"channel_id": "1", "user_id": "2", "timestamp": 1700000000}`)

	raw := <-got
	assert.Equal(t, "TYPING_START", raw.Name)
	assert.EqualValues(t, 9, raw.Seq)
}

func TestDispatch_BoundedHandlers(t *testing.T) {
	d := New(Config{MaxConcurrentHandlers: 1}, nil)
	c := cache.New(cache.Policy{}, nil, nil)

	var mu sync.Mutex
	running, peak := 0, 0
	d.On(KindResumed, func(context.Context, Event) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
	})

	for i := range 5 {
		d.Dispatch(context.Background(), c, RawDispatch{Seq: int64(i), Name: "RESUMED", Data: json.RawMessage(`{}`)})
	}
	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, 1, peak)
}
