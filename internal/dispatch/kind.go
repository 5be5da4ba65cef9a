package dispatch

// EventKind is the closed set of dispatch names, plus a few notification
// kinds the dispatcher derives from them.
type EventKind int

const (
	KindUnknown EventKind = iota

	KindReady
	KindResumed
	KindApplicationCommandPermissionsUpdate
	KindAutoModerationRuleCreate
	KindAutoModerationRuleUpdate
	KindAutoModerationRuleDelete
	KindAutoModerationActionExecution
	KindChannelCreate
	KindChannelUpdate
	KindChannelDelete
	KindChannelPinsUpdate
	KindThreadCreate
	KindThreadUpdate
	KindThreadDelete
	KindThreadListSync
	KindThreadMemberUpdate
	KindThreadMembersUpdate
	KindEntitlementCreate
	KindEntitlementUpdate
	KindEntitlementDelete
	KindGuildCreate
	KindGuildUpdate
	KindGuildDelete
	KindGuildAuditLogEntryCreate
	KindGuildBanAdd
	KindGuildBanRemove
	KindGuildEmojisUpdate
	KindGuildStickersUpdate
	KindGuildIntegrationsUpdate
	KindGuildMemberAdd
	KindGuildMemberRemove
	KindGuildMemberUpdate
	KindGuildMembersChunk
	KindGuildRoleCreate
	KindGuildRoleUpdate
	KindGuildRoleDelete
	KindGuildScheduledEventCreate
	KindGuildScheduledEventUpdate
	KindGuildScheduledEventDelete
	KindGuildScheduledEventUserAdd
	KindGuildScheduledEventUserRemove
	KindGuildSoundboardSoundCreate
	KindGuildSoundboardSoundUpdate
	KindGuildSoundboardSoundDelete
	KindGuildSoundboardSoundsUpdate
	KindSoundboardSounds
	KindIntegrationCreate
	KindIntegrationUpdate
	KindIntegrationDelete
	KindInteractionCreate
	KindInviteCreate
	KindInviteDelete
	KindMessageCreate
	KindMessageUpdate
	KindMessageDelete
	KindMessageDeleteBulk
	KindMessageReactionAdd
	KindMessageReactionRemove
	KindMessageReactionRemoveAll
	KindMessageReactionRemoveEmoji
	KindMessagePollVoteAdd
	KindMessagePollVoteRemove
	KindPresenceUpdate
	KindStageInstanceCreate
	KindStageInstanceUpdate
	KindStageInstanceDelete
	KindSubscriptionCreate
	KindSubscriptionUpdate
	KindSubscriptionDelete
	KindTypingStart
	KindUserUpdate
	KindVoiceChannelEffectSend
	KindVoiceChannelStatusUpdate
	KindVoiceStateUpdate
	KindVoiceServerUpdate
	KindWebhooksUpdate

	// Derived notification kinds; never parsed from the wire.
	KindGuildAvailable
	KindGuildJoined
	KindGuildUnavailable
	KindGuildLeft
	KindGuildsDownloaded
)

var wireNames = map[EventKind]string{
	KindReady:                               "READY",
	KindResumed:                             "RESUMED",
	KindApplicationCommandPermissionsUpdate: "APPLICATION_COMMAND_PERMISSIONS_UPDATE",
	KindAutoModerationRuleCreate:            "AUTO_MODERATION_RULE_CREATE",
	KindAutoModerationRuleUpdate:            "AUTO_MODERATION_RULE_UPDATE",
	KindAutoModerationRuleDelete:            "AUTO_MODERATION_RULE_DELETE",
	KindAutoModerationActionExecution:       "AUTO_MODERATION_ACTION_EXECUTION",
	KindChannelCreate:                       "CHANNEL_CREATE",
	KindChannelUpdate:                       "CHANNEL_UPDATE",
	KindChannelDelete:                       "CHANNEL_DELETE",
	KindChannelPinsUpdate:                   "CHANNEL_PINS_UPDATE",
	KindThreadCreate:                        "THREAD_CREATE",
	KindThreadUpdate:                        "THREAD_UPDATE",
	KindThreadDelete:                        "THREAD_DELETE",
	KindThreadListSync:                      "THREAD_LIST_SYNC",
	KindThreadMemberUpdate:                  "THREAD_MEMBER_UPDATE",
	KindThreadMembersUpdate:                 "THREAD_MEMBERS_UPDATE",
	KindEntitlementCreate:                   "ENTITLEMENT_CREATE",
	KindEntitlementUpdate:                   "ENTITLEMENT_UPDATE",
	KindEntitlementDelete:                   "ENTITLEMENT_DELETE",
	KindGuildCreate:                         "GUILD_CREATE",
	KindGuildUpdate:                         "GUILD_UPDATE",
	KindGuildDelete:                         "GUILD_DELETE",
	KindGuildAuditLogEntryCreate:            "GUILD_AUDIT_LOG_ENTRY_CREATE",
	KindGuildBanAdd:                         "GUILD_BAN_ADD",
	KindGuildBanRemove:                      "GUILD_BAN_REMOVE",
	KindGuildEmojisUpdate:                   "GUILD_EMOJIS_UPDATE",
	KindGuildStickersUpdate:                 "GUILD_STICKERS_UPDATE",
	KindGuildIntegrationsUpdate:             "GUILD_INTEGRATIONS_UPDATE",
	KindGuildMemberAdd:                      "GUILD_MEMBER_ADD",
	KindGuildMemberRemove:                   "GUILD_MEMBER_REMOVE",
	KindGuildMemberUpdate:                   "GUILD_MEMBER_UPDATE",
	KindGuildMembersChunk:                   "GUILD_MEMBERS_CHUNK",
	KindGuildRoleCreate:                     "GUILD_ROLE_CREATE",
	KindGuildRoleUpdate:                     "GUILD_ROLE_UPDATE",
	KindGuildRoleDelete:                     "GUILD_ROLE_DELETE",
	KindGuildScheduledEventCreate:           "GUILD_SCHEDULED_EVENT_CREATE",
	KindGuildScheduledEventUpdate:           "GUILD_SCHEDULED_EVENT_UPDATE",
	KindGuildScheduledEventDelete:           "GUILD_SCHEDULED_EVENT_DELETE",
	KindGuildScheduledEventUserAdd:          "GUILD_SCHEDULED_EVENT_USER_ADD",
	KindGuildScheduledEventUserRemove:       "GUILD_SCHEDULED_EVENT_USER_REMOVE",
	KindGuildSoundboardSoundCreate:          "GUILD_SOUNDBOARD_SOUND_CREATE",
	KindGuildSoundboardSoundUpdate:          "GUILD_SOUNDBOARD_SOUND_UPDATE",
	KindGuildSoundboardSoundDelete:          "GUILD_SOUNDBOARD_SOUND_DELETE",
	KindGuildSoundboardSoundsUpdate:         "GUILD_SOUNDBOARD_SOUNDS_UPDATE",
	KindSoundboardSounds:                    "SOUNDBOARD_SOUNDS",
	KindIntegrationCreate:                   "INTEGRATION_CREATE",
	KindIntegrationUpdate:                   "INTEGRATION_UPDATE",
	KindIntegrationDelete:                   "INTEGRATION_DELETE",
	KindInteractionCreate:                   "INTERACTION_CREATE",
	KindInviteCreate:                        "INVITE_CREATE",
	KindInviteDelete:                        "INVITE_DELETE",
	KindMessageCreate:                       "MESSAGE_CREATE",
	KindMessageUpdate:                       "MESSAGE_UPDATE",
	KindMessageDelete:                       "MESSAGE_DELETE",
	KindMessageDeleteBulk:                   "MESSAGE_DELETE_BULK",
	KindMessageReactionAdd:                  "MESSAGE_REACTION_ADD",
	KindMessageReactionRemove:               "MESSAGE_REACTION_REMOVE",
	KindMessageReactionRemoveAll:            "MESSAGE_REACTION_REMOVE_ALL",
	KindMessageReactionRemoveEmoji:          "MESSAGE_REACTION_REMOVE_EMOJI",
	KindMessagePollVoteAdd:                  "MESSAGE_POLL_VOTE_ADD",
	KindMessagePollVoteRemove:               "MESSAGE_POLL_VOTE_REMOVE",
	KindPresenceUpdate:                      "PRESENCE_UPDATE",
	KindStageInstanceCreate:                 "STAGE_INSTANCE_CREATE",
	KindStageInstanceUpdate:                 "STAGE_INSTANCE_UPDATE",
	KindStageInstanceDelete:                 "STAGE_INSTANCE_DELETE",
	KindSubscriptionCreate:                  "SUBSCRIPTION_CREATE",
	KindSubscriptionUpdate:                  "SUBSCRIPTION_UPDATE",
	KindSubscriptionDelete:                  "SUBSCRIPTION_DELETE",
	KindTypingStart:                         "TYPING_START",
	KindUserUpdate:                          "USER_UPDATE",
	KindVoiceChannelEffectSend:              "VOICE_CHANNEL_EFFECT_SEND",
	KindVoiceChannelStatusUpdate:            "VOICE_CHANNEL_STATUS_UPDATE",
	KindVoiceStateUpdate:                    "VOICE_STATE_UPDATE",
	KindVoiceServerUpdate:                   "VOICE_SERVER_UPDATE",
	KindWebhooksUpdate:                      "WEBHOOKS_UPDATE",
}

var derivedNames = map[EventKind]string{
	KindGuildAvailable:   "GUILD_AVAILABLE",
	KindGuildJoined:      "GUILD_JOINED",
	KindGuildUnavailable: "GUILD_UNAVAILABLE",
	KindGuildLeft:        "GUILD_LEFT",
	KindGuildsDownloaded: "GUILDS_DOWNLOADED",
}

var kindsByName = func() map[string]EventKind {
	m := make(map[string]EventKind, len(wireNames))
	for k, n := range wireNames {
		m[n] = k
	}
	return m
}()

// ParseEventKind resolves a dispatch name. Unrecognised names map to
// KindUnknown.
func ParseEventKind(name string) EventKind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

func (k EventKind) String() string {
	if n, ok := wireNames[k]; ok {
		return n
	}
	if n, ok := derivedNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// Derived reports whether k is produced by the dispatcher rather than sent by
// the gateway.
func (k EventKind) Derived() bool {
	_, ok := derivedNames[k]
	return ok
}
