package cache

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// Identities holds the process-wide user and presence maps. One instance is
// shared by every Cache in the process, even when guild caches are per shard.
type Identities struct {
	mu        sync.RWMutex
	users     map[snowflake.ID]*model.User
	presences map[snowflake.ID]*model.Presence
}

// NewIdentities creates an empty identity store.
func NewIdentities() *Identities {
	return &Identities{
		users:     make(map[snowflake.ID]*model.User),
		presences: make(map[snowflake.ID]*model.Presence),
	}
}

// UpsertUser adds u or merges it into the existing user in place.
// before is nil when the user was not cached.
func (s *Identities) UpsertUser(u *model.User) (before, after *model.User) {
	if u == nil || u.ID == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertUserLocked(u)
}

func (s *Identities) upsertUserLocked(u *model.User) (before, after *model.User) {
	existing, ok := s.users[u.ID]
	if !ok {
		stored := u.Clone()
		s.users[u.ID] = stored
		return nil, stored.Clone()
	}
	before = existing.Clone()
	existing.Apply(u)
	return before, existing.Clone()
}

// PatchUser merges only the non-empty fields of a partial user object.
// Presence payloads carry such partial users.
func (s *Identities) PatchUser(u *model.User) {
	if u == nil || u.ID == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		existing = &model.User{ID: u.ID}
		s.users[u.ID] = existing
	}
	if u.Username != "" {
		existing.Username = u.Username
	}
	if u.Discriminator != "" {
		existing.Discriminator = u.Discriminator
	}
	if u.GlobalName != nil {
		v := *u.GlobalName
		existing.GlobalName = &v
	}
	if u.Avatar != nil {
		v := *u.Avatar
		existing.Avatar = &v
	}
}

// EnsureUser synthesizes a stub user for id if none is cached.
func (s *Identities) EnsureUser(id snowflake.ID) {
	if id == 0 {
		return
	}
	s.mu.Lock()
	if _, ok := s.users[id]; !ok {
		s.users[id] = &model.User{ID: id}
	}
	s.mu.Unlock()
}

// User returns a copy of the cached user.
func (s *Identities) User(id snowflake.ID) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// UpdatePresence applies p as the latest presence of p.UserID. Status and
// client status are patched in place; the activity slice's backing array is
// reused when the length is unchanged.
func (s *Identities) UpdatePresence(p *model.Presence) (before, after *model.Presence) {
	if p == nil || p.UserID == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.presences[p.UserID]
	if !ok {
		stored := p.Clone()
		s.presences[p.UserID] = stored
		return nil, stored.Clone()
	}

	before = existing.Clone()
	existing.Status = p.Status
	existing.ClientStatus = p.ClientStatus
	if p.GuildID != 0 {
		existing.GuildID = p.GuildID
	}
	if len(existing.Activities) == len(p.Activities) {
		copy(existing.Activities, p.Activities)
	} else {
		existing.Activities = append([]model.Activity(nil), p.Activities...)
	}
	return before, existing.Clone()
}

// Presence returns a copy of the presence of userID.
func (s *Identities) Presence(userID snowflake.ID) (*model.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presences[userID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Counts returns the number of cached users and presences.
func (s *Identities) Counts() (users, presences int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.presences)
}
