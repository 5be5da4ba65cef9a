package gateway

// Gateway close codes.
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014

	// CloseReconnecting is sent by the client when it drops a connection it
	// intends to resume. Any code other than 1000/1001 keeps the session.
	CloseReconnecting = 4900
)

// CloseAction is what a client does after a close code.
type CloseAction int

const (
	// CloseResume reconnects and resumes the session.
	CloseResume CloseAction = iota

	// CloseReidentify reconnects with a fresh session.
	CloseReidentify

	// CloseFatalAuth stops: the token was rejected.
	CloseFatalAuth

	// CloseFatalUnsupported stops: the requested configuration is invalid.
	CloseFatalUnsupported
)

func (a CloseAction) String() string {
	switch a {
	case CloseResume:
		return "resume"
	case CloseReidentify:
		return "reidentify"
	case CloseFatalAuth:
		return "fatal_auth"
	case CloseFatalUnsupported:
		return "fatal_unsupported"
	}
	return "unknown"
}

// Fatal reports whether no reconnect must be attempted.
func (a CloseAction) Fatal() bool {
	return a == CloseFatalAuth || a == CloseFatalUnsupported
}

// ClassifyClose maps a close code to the client's next action.
func ClassifyClose(code int) CloseAction {
	switch code {
	case CloseAuthenticationFailed:
		return CloseFatalAuth
	case CloseInvalidShard, CloseShardingRequired, CloseInvalidAPIVersion,
		CloseInvalidIntents, CloseDisallowedIntents:
		return CloseFatalUnsupported
	case CloseNotAuthenticated, CloseInvalidSeq, CloseSessionTimedOut:
		return CloseReidentify
	}
	return CloseResume
}
