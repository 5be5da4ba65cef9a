package gateway

import (
	"fmt"
	"strings"
)

// Intents is the gateway intent bit set.
type Intents int64

const (
	IntentGuilds                      Intents = 1 << 0
	IntentGuildMembers                Intents = 1 << 1
	IntentGuildModeration             Intents = 1 << 2
	IntentGuildEmojisAndStickers      Intents = 1 << 3
	IntentGuildIntegrations           Intents = 1 << 4
	IntentGuildWebhooks               Intents = 1 << 5
	IntentGuildInvites                Intents = 1 << 6
	IntentGuildVoiceStates            Intents = 1 << 7
	IntentGuildPresences              Intents = 1 << 8
	IntentGuildMessages               Intents = 1 << 9
	IntentGuildMessageReactions       Intents = 1 << 10
	IntentGuildMessageTyping          Intents = 1 << 11
	IntentDirectMessages              Intents = 1 << 12
	IntentDirectMessageReactions      Intents = 1 << 13
	IntentDirectMessageTyping         Intents = 1 << 14
	IntentMessageContent              Intents = 1 << 15
	IntentGuildScheduledEvents        Intents = 1 << 16
	IntentAutoModerationConfiguration Intents = 1 << 20
	IntentAutoModerationExecution     Intents = 1 << 21
	IntentGuildMessagePolls           Intents = 1 << 24
	IntentDirectMessagePolls          Intents = 1 << 25

	// IntentsPrivileged must be enabled in the developer portal.
	IntentsPrivileged = IntentGuildMembers | IntentGuildPresences | IntentMessageContent

	// IntentsNonPrivileged is every intent that needs no approval.
	IntentsNonPrivileged = IntentGuilds | IntentGuildModeration | IntentGuildEmojisAndStickers |
		IntentGuildIntegrations | IntentGuildWebhooks | IntentGuildInvites | IntentGuildVoiceStates |
		IntentGuildMessages | IntentGuildMessageReactions | IntentGuildMessageTyping |
		IntentDirectMessages | IntentDirectMessageReactions | IntentDirectMessageTyping |
		IntentGuildScheduledEvents | IntentAutoModerationConfiguration | IntentAutoModerationExecution |
		IntentGuildMessagePolls | IntentDirectMessagePolls
)

var intentNames = map[string]Intents{
	"guilds":                        IntentGuilds,
	"guild_members":                 IntentGuildMembers,
	"guild_moderation":              IntentGuildModeration,
	"guild_emojis_and_stickers":     IntentGuildEmojisAndStickers,
	"guild_integrations":            IntentGuildIntegrations,
	"guild_webhooks":                IntentGuildWebhooks,
	"guild_invites":                 IntentGuildInvites,
	"guild_voice_states":            IntentGuildVoiceStates,
	"guild_presences":               IntentGuildPresences,
	"guild_messages":                IntentGuildMessages,
	"guild_message_reactions":       IntentGuildMessageReactions,
	"guild_message_typing":          IntentGuildMessageTyping,
	"direct_messages":               IntentDirectMessages,
	"direct_message_reactions":      IntentDirectMessageReactions,
	"direct_message_typing":         IntentDirectMessageTyping,
	"message_content":               IntentMessageContent,
	"guild_scheduled_events":        IntentGuildScheduledEvents,
	"auto_moderation_configuration": IntentAutoModerationConfiguration,
	"auto_moderation_execution":     IntentAutoModerationExecution,
	"guild_message_polls":           IntentGuildMessagePolls,
	"direct_message_polls":          IntentDirectMessagePolls,
	"non_privileged":                IntentsNonPrivileged,
	"privileged":                    IntentsPrivileged,
	"all":                           IntentsNonPrivileged | IntentsPrivileged,
}

// Has reports whether every bit of flag is set.
func (i Intents) Has(flag Intents) bool {
	return i&flag == flag
}

// Privileged reports whether any privileged intent is set.
func (i Intents) Privileged() bool {
	return i&IntentsPrivileged != 0
}

// ParseIntents combines intent names such as "guilds" or "guild_members".
func ParseIntents(names []string) (Intents, error) {
	var out Intents
	for _, n := range names {
		v, ok := intentNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown intent %q", n)
		}
		out |= v
	}
	return out, nil
}
