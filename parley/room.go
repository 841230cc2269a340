package parley

// Room is the participant roster snapshot for the joined room. Participants
// map id to display name and are replaced wholesale on every server update,
// never merged field-by-field.
type Room struct {
	ID           string
	Participants map[string]string
}

// CleanupReason selects which state survives a cleanup pass.
type CleanupReason string

const (
	// CleanupManual is the full reset used before navigating away: the
	// message log, seen-id set, errors and loading flags are all cleared.
	CleanupManual CleanupReason = "manual"

	// CleanupDisconnect preserves the message log and seen-id set, since a
	// reconnect is expected to resume rather than replace history.
	CleanupDisconnect CleanupReason = "disconnect"

	// CleanupReconnect runs between a drop and a re-setup; it keeps event
	// listeners attached so the resumed room reuses the same registration.
	CleanupReconnect CleanupReason = "reconnect"

	// CleanupUnmount is teardown of the consuming context; every
	// asynchronous continuation becomes a no-op afterwards.
	CleanupUnmount CleanupReason = "unmount"

	// CleanupError is the forced cleanup after a fatal session error.
	CleanupError CleanupReason = "error"
)

// lifecycle holds the three independent re-entrancy guards of the room
// controller. Uninitialized: all false. Initializing: initializing set.
// Ready: setupDone set. CleaningUp: cleaning set.
type lifecycle struct {
	initializing bool // guards concurrent setup calls
	setupDone    bool // guards repeat setup after success
	cleaning     bool // guards concurrent or recursive cleanup
}

// canSetup reports whether a setup pass may begin.
func (l *lifecycle) canSetup() bool {
	return !l.initializing && !l.setupDone && !l.cleaning
}
