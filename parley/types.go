package parley

import "encoding/json"

const (
	ProtocolVersion = 1

	inboundHello    = "hello"
	inboundJoin     = "join"
	inboundLeave    = "leave"
	inboundMsg      = "msg"
	inboundReaction = "reaction"
	inboundHistory  = "history"

	outboundEvent = "event"
	outboundError = "error"

	eventMessage          = "message"
	eventPreviousMessages = "previous_messages"
	eventParticipants     = "participants_update"
	eventMessagesRead     = "messages_read"
	eventReactionUpdate   = "reaction_update"
	eventSessionEnded     = "session_ended"
)

// Inbound represents the envelope from client to server.
type Inbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Outbound is the envelope server -> client.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// HelloPayload initiates the session.
type HelloPayload struct {
	Protocol int    `json:"protocol,omitempty"`
	Token    string `json:"token,omitempty"`
	User     string `json:"user,omitempty"`
}

// JoinPayload subscribes to (or leaves) a room.
type JoinPayload struct {
	Room string `json:"room"`
}

// MsgPayload publishes a message to a room. ID is client-generated so the
// sender can recognize its own message when the server echoes it back.
type MsgPayload struct {
	Room     string `json:"room"`
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	FileName string `json:"fileName,omitempty"`
	TS       int64  `json:"ts"`
}

// ReactionOp distinguishes add and remove intents on the wire.
type ReactionOp string

const (
	ReactionAdd    ReactionOp = "add"
	ReactionRemove ReactionOp = "remove"
)

// ReactionPayload toggles a reaction on a message.
type ReactionPayload struct {
	Room      string     `json:"room"`
	MessageID string     `json:"messageId"`
	Reaction  string     `json:"reaction"`
	Op        ReactionOp `json:"op"`
}

// HistoryPayload requests a page of older messages. Before is a unix-milli
// timestamp; zero asks for the newest page.
type HistoryPayload struct {
	Room   string `json:"room"`
	Before int64  `json:"before,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Error describes a protocol error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// UnmarshalData decodes RawMessage into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
