package parley

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeTransport records outbound intents and lets tests flip connectivity
// and inject emit failures.
type fakeTransport struct {
	connected bool
	status    Status

	joins     []string
	leaves    []string
	published []OutgoingMessage
	reactions []ReactionPayload
	histories []HistoryPayload

	reactionErr error
	historyErr  error
	joinErr     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, status: StatusConnected}
}

func (f *fakeTransport) Status() Status  { return f.status }
func (f *fakeTransport) Connected() bool { return f.connected }

func (f *fakeTransport) setConnected(v bool) {
	f.connected = v
	if v {
		f.status = StatusConnected
	} else {
		f.status = StatusDisconnected
	}
}

func (f *fakeTransport) JoinRoom(_ context.Context, room string) error {
	if !f.connected {
		return NewError(ErrorNotConnected, "not connected")
	}
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, room)
	return nil
}

func (f *fakeTransport) LeaveRoom(_ context.Context, room string) error {
	if !f.connected {
		return NewError(ErrorNotConnected, "not connected")
	}
	f.leaves = append(f.leaves, room)
	return nil
}

func (f *fakeTransport) PublishMessage(_ context.Context, msg OutgoingMessage) error {
	if !f.connected {
		return NewError(ErrorNotConnected, "not connected")
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeTransport) PublishReaction(_ context.Context, room, messageID, symbol string, op ReactionOp) error {
	if !f.connected {
		return NewError(ErrorNotConnected, "not connected")
	}
	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, ReactionPayload{
		Room: room, MessageID: messageID, Reaction: symbol, Op: op,
	})
	return nil
}

func (f *fakeTransport) RequestHistory(_ context.Context, room string, before int64, limit int) error {
	if !f.connected {
		return NewError(ErrorNotConnected, "not connected")
	}
	if f.historyErr != nil {
		return f.historyErr
	}
	f.histories = append(f.histories, HistoryPayload{Room: room, Before: before, Limit: limit})
	return nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func eventEnvelope(t *testing.T, event string, payload any) Outbound {
	t.Helper()
	return Outbound{Type: outboundEvent, Event: event, Data: mustJSON(t, payload)}
}
