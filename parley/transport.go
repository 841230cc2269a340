package parley

import "context"

// OutgoingMessage is a submission handed to the transport. ID is assigned
// by the submitter before dispatch.
type OutgoingMessage struct {
	ID       string
	Room     string
	Kind     string
	Text     string
	FileName string
	TS       int64
}

// Transport is the outbound contract the sync engine consumes. The Client
// implements it over WebSocket; tests substitute a fake.
type Transport interface {
	Status() Status
	Connected() bool
	JoinRoom(ctx context.Context, room string) error
	LeaveRoom(ctx context.Context, room string) error
	PublishMessage(ctx context.Context, msg OutgoingMessage) error
	PublishReaction(ctx context.Context, room, messageID, symbol string, op ReactionOp) error
	RequestHistory(ctx context.Context, room string, before int64, limit int) error
}

// EventSink receives inbound envelopes and connection lifecycle signals.
// A Session attaches itself to a Client as its sink.
type EventSink interface {
	HandleEnvelope(out Outbound)
	HandleDisconnect(err error)
	HandleReconnected()
}
