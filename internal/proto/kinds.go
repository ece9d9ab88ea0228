// Package proto defines the MudVault Mesh wire envelope: the closed
// set of message kinds, typed builders for outbound envelopes, and a
// shallow dotted-key scanner for inbound ones. The wire schema is
// fixed and shallow, so the scanner replaces a general JSON tree
// parser; call sites only see the typed API, so a real parser could
// substitute without touching them.
package proto

// Version is the protocol version stamped on every envelope. Inbound
// envelopes with a different major version are rejected.
const Version = "1.0"

// Kind is the envelope type discriminator.
type Kind string

const (
	KindTell     Kind = "tell"
	KindEmote    Kind = "emote"
	KindEmoteTo  Kind = "emoteto"
	KindChannel  Kind = "channel"
	KindWho      Kind = "who"
	KindFinger   Kind = "finger"
	KindLocate   Kind = "locate"
	KindPresence Kind = "presence"
	KindAuth     Kind = "auth"
	KindPing     Kind = "ping"
	KindPong     Kind = "pong"
	KindError    Kind = "error"
)

var validKinds = map[Kind]bool{
	KindTell: true, KindEmote: true, KindEmoteTo: true, KindChannel: true,
	KindWho: true, KindFinger: true, KindLocate: true, KindPresence: true,
	KindAuth: true, KindPing: true, KindPong: true, KindError: true,
}

// ParseKind maps a wire type string onto the closed kind set. Any
// other value is a protocol error.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, validKinds[k]
}

// Channel payload actions.
const (
	ActionJoin    = "join"
	ActionLeave   = "leave"
	ActionMessage = "message"
)

// Error codes carried in error payloads.
const (
	CodeInvalidMessage     = 1000
	CodeAuthFailed         = 1001
	CodeUnauthorized       = 1002
	CodeMudNotFound        = 1003
	CodeUserNotFound       = 1004
	CodeChannelNotFound    = 1005
	CodeRateLimited        = 1006
	CodeInternalError      = 1007
	CodeProtocolError      = 1008
	CodeUnsupportedVersion = 1009
	CodeMessageTooLarge    = 1010
)
