package parley

// MessageEvent is the wire shape of a single message, used both for live
// deliveries and for entries inside a history batch.
type MessageEvent struct {
	ID        string              `json:"id"`
	Room      string              `json:"room"`
	Sender    string              `json:"senderId"`
	Kind      string              `json:"kind"`
	Text      string              `json:"text"`
	FileName  string              `json:"fileName,omitempty"`
	TS        int64               `json:"ts"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Readers   []Reader            `json:"readers,omitempty"`
}

// HistoryEvent delivers a page of older messages together with a
// continuation flag.
type HistoryEvent struct {
	Room     string         `json:"room"`
	Messages []MessageEvent `json:"messages" validate:"required"`
	HasMore  bool           `json:"hasMore"`
}

// ParticipantsEvent replaces the room roster wholesale.
type ParticipantsEvent struct {
	Room         string            `json:"room"`
	Participants map[string]string `json:"participants" validate:"required"`
}

// ReadEvent marks a set of messages as read by one user.
type ReadEvent struct {
	UserID     string   `json:"userId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"required"`
	TS         int64    `json:"ts"`
}

// ReactionUpdateEvent carries the server-authoritative reaction state for
// one message. It replaces any local optimistic state.
type ReactionUpdateEvent struct {
	MessageID string              `json:"messageId" validate:"required"`
	Reactions map[string][]string `json:"reactions"`
}

// SessionEndedEvent tells the client its session is no longer valid.
type SessionEndedEvent struct {
	Reason string `json:"reason,omitempty"`
}

// StateEvent represents a connection state change.
type StateEvent struct {
	OldState Status
	NewState Status
	Error    error // optional error that caused the state change
}
