package parley

// Status represents the current state of the connection as seen by the
// presentation layer.
type Status int

const (
	// StatusChecking means the client has not attempted a connection yet.
	StatusChecking Status = iota

	// StatusConnecting means the client is establishing a connection.
	StatusConnecting

	// StatusConnected means the client is connected and ready.
	StatusConnected

	// StatusDisconnected means the connection dropped; a reconnect may be
	// in progress.
	StatusDisconnected

	// StatusError means the client gave up on the connection.
	StatusError
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
