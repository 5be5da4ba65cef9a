package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/rickgao/shardline/internal/model"
)

// Payload is the envelope of every gateway frame.
type Payload struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// NewPayload marshals d into an outbound payload.
func NewPayload(op Opcode, d any) (Payload, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal %s: %w", op, err)
	}
	return Payload{Op: op, D: raw}, nil
}

// DecodePayload parses a decompressed frame.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// ---- Commands (client to gateway) ----

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify starts a new session.
type Identify struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress,omitempty"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
	Shard          [2]int             `json:"shard"`
	Presence       *UpdatePresence    `json:"presence,omitempty"`
	Intents        Intents            `json:"intents"`
}

// Resume replays missed events of an existing session.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// RequestGuildMembers asks for GUILD_MEMBERS_CHUNK pages.
type RequestGuildMembers struct {
	GuildID   snowflake.ID   `json:"guild_id"`
	Query     *string        `json:"query,omitempty"`
	Limit     int            `json:"limit"`
	Presences bool           `json:"presences,omitempty"`
	UserIDs   []snowflake.ID `json:"user_ids,omitempty"`
	Nonce     string         `json:"nonce,omitempty"`
}

// UpdatePresence sets the bot's presence.
type UpdatePresence struct {
	Since      *int64           `json:"since"`
	Activities []model.Activity `json:"activities"`
	Status     string           `json:"status"`
	AFK        bool             `json:"afk"`
}

// UpdateVoiceState joins, moves or leaves a voice channel.
type UpdateVoiceState struct {
	GuildID   snowflake.ID  `json:"guild_id"`
	ChannelID *snowflake.ID `json:"channel_id"`
	SelfMute  bool          `json:"self_mute"`
	SelfDeaf  bool          `json:"self_deaf"`
}

// ---- Events (gateway to client) ----

// Hello is the first frame on every connection.
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Interval returns the heartbeat interval as a duration.
func (h Hello) Interval() time.Duration {
	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

// ReadyApplication is the partial application object in READY.
type ReadyApplication struct {
	ID    snowflake.ID `json:"id"`
	Flags int          `json:"flags"`
}

// Ready completes an Identify.
type Ready struct {
	V                int                      `json:"v"`
	User             model.User               `json:"user"`
	Guilds           []model.UnavailableGuild `json:"guilds"`
	SessionID        string                   `json:"session_id"`
	ResumeGatewayURL string                   `json:"resume_gateway_url"`
	Shard            *[2]int                  `json:"shard,omitempty"`
	Application      ReadyApplication         `json:"application"`
}
