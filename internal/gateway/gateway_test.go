package gateway

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyClose(t *testing.T) {
	tests := []struct {
		code int
		want CloseAction
	}{
		{CloseAuthenticationFailed, CloseFatalAuth},
		{CloseInvalidShard, CloseFatalUnsupported},
		{CloseShardingRequired, CloseFatalUnsupported},
		{CloseInvalidAPIVersion, CloseFatalUnsupported},
		{CloseInvalidIntents, CloseFatalUnsupported},
		{CloseDisallowedIntents, CloseFatalUnsupported},
		{CloseInvalidSeq, CloseReidentify},
		{CloseSessionTimedOut, CloseReidentify},
		{CloseUnknownError, CloseResume},
		{CloseRateLimited, CloseResume},
		{1006, CloseResume},
		{CloseReconnecting, CloseResume},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyClose(tt.code), "code %d", tt.code)
		})
	}
	assert.True(t, CloseFatalAuth.Fatal())
	assert.False(t, CloseReidentify.Fatal())
}

func TestURL(t *testing.T) {
	raw, err := URL("wss://gateway.discord.gg", 10, CompressionStream)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "gateway.discord.gg", u.Host)
	assert.Equal(t, "/", u.Path)
	assert.Equal(t, "10", u.Query().Get("v"))
	assert.Equal(t, "json", u.Query().Get("encoding"))
	assert.Equal(t, "zlib-stream", u.Query().Get("compress"))

	raw, err = URL("wss://resume.example/?compress=zlib-stream", 0, CompressionNone)
	require.NoError(t, err)
	u, _ = url.Parse(raw)
	assert.Empty(t, u.Query().Get("compress"))
	assert.Equal(t, "10", u.Query().Get("v"))

	_, err = URL("not a url", 10, CompressionNone)
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zlib-stream")
	require.NoError(t, err)
	assert.Equal(t, CompressionStream, c)

	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestIntents(t *testing.T) {
	i, err := ParseIntents([]string{"guilds", "Guild_Members"})
	require.NoError(t, err)
	assert.True(t, i.Has(IntentGuilds))
	assert.True(t, i.Has(IntentGuildMembers))
	assert.False(t, i.Has(IntentGuildPresences))
	assert.True(t, i.Privileged())
	assert.False(t, IntentsNonPrivileged.Privileged())

	_, err = ParseIntents([]string{"everything"})
	assert.Error(t, err)
}

func TestPayload(t *testing.T) {
	p, err := DecodePayload([]byte(`{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"id":"1"}}`))
	require.NoError(t, err)
	assert.Equal(t, OpDispatch, p.Op)
	require.NotNil(t, p.S)
	assert.EqualValues(t, 42, *p.S)
	assert.Equal(t, "MESSAGE_CREATE", p.T)

	var seq *int64
	hb, err := NewPayload(OpHeartbeat, seq)
	require.NoError(t, err)
	out, err := json.Marshal(hb)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":null}`, string(out))

	hello, err := DecodePayload([]byte(`{"op":10,"d":{"heartbeat_interval":41250}}`))
	require.NoError(t, err)
	var h Hello
	require.NoError(t, json.Unmarshal(hello.D, &h))
	assert.Equal(t, 41250*time.Millisecond, h.Interval())
	assert.Equal(t, "HELLO", hello.Op.String())
}
