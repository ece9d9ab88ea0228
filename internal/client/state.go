package client

// State is the connection lifecycle position. Transitions only happen
// inside Poll, on the embedder's thread.
type State int

const (
	// StateDisconnected means no socket exists; a reconnect attempt
	// may be pending.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateHandshaking means the upgrade request is sent and the
	// response is being collected.
	StateHandshaking
	// StateAuthenticating means the upgrade finished and the auth
	// envelope is awaiting its reply.
	StateAuthenticating
	// StateAuthenticated is the steady state: envelopes flow.
	StateAuthenticated
	// StateFatal means the client gave up after exhausting reconnect
	// attempts. Only ForceReconnect leaves this state.
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}
