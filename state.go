package wavechan

// ConnectionState is the lifecycle state of a Channel.
type ConnectionState int

const (
	// StateDisconnected means there is no usable connection. A retry may be
	// pending.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial or the authentication handshake is in flight.
	StateConnecting

	// StateAuthenticated means the server acknowledged the credential. Only in
	// this state are outbound frames written.
	StateAuthenticated
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateChange describes one transition.
type StateChange struct {
	From ConnectionState
	To   ConnectionState
	// Err is the reason a connection was lost, if any.
	Err error
}
