package parley

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// pipeline normalizes inbound events into store mutations. It is the single
// ingestion entry point: live messages, history batches, reaction deltas
// and read receipts all pass through here, so there is exactly one place
// where wire shape is checked and admission control applies.
type pipeline struct {
	store    *Store
	validate *validator.Validate

	// initialLoaded latches after the first history batch so callers can
	// distinguish first paint from an older page.
	initialLoaded bool
}

func newPipeline(store *Store) *pipeline {
	return &pipeline{
		store:    store,
		validate: validator.New(),
	}
}

// historyResult describes the outcome of a history batch ingestion.
type historyResult struct {
	Initial  bool // this was the first batch since room entry (or retry)
	Accepted int
	HasMore  bool
}

// LiveMessage admits a single live message. Duplicates and malformed
// payloads are dropped silently; redelivery is expected transport
// behavior, not a fault.
func (p *pipeline) LiveMessage(raw json.RawMessage) bool {
	var ev MessageEvent
	if err := UnmarshalData(raw, &ev); err != nil {
		return false
	}
	return p.store.Admit(messageFromEvent(ev))
}

// History validates and admits a paginated batch. A payload that is not a
// well-formed batch raises ErrorMalformedPayload; the caller surfaces it
// as a non-fatal notice and stops paginating until retried.
func (p *pipeline) History(raw json.RawMessage) (historyResult, error) {
	var ev HistoryEvent
	if err := UnmarshalData(raw, &ev); err != nil {
		return historyResult{}, WrapError(ErrorMalformedPayload, "history batch is not iterable", err)
	}
	if err := p.validate.Struct(&ev); err != nil {
		return historyResult{}, WrapError(ErrorMalformedPayload, "history batch failed shape validation", err)
	}

	msgs := make([]Message, 0, len(ev.Messages))
	for _, me := range ev.Messages {
		msgs = append(msgs, messageFromEvent(me))
	}
	accepted := p.store.AdmitBatch(msgs, ev.HasMore)

	initial := !p.initialLoaded
	p.initialLoaded = true
	return historyResult{Initial: initial, Accepted: accepted, HasMore: ev.HasMore}, nil
}

// ReactionDelta replaces the reaction map of the target message wholesale.
// This is the authoritative reconciliation path: it always overrides any
// optimistic local state for that message.
func (p *pipeline) ReactionDelta(raw json.RawMessage) (ReactionUpdateEvent, error) {
	var ev ReactionUpdateEvent
	if err := UnmarshalData(raw, &ev); err != nil {
		return ev, WrapError(ErrorMalformedPayload, "reaction delta is malformed", err)
	}
	if err := p.validate.Struct(&ev); err != nil {
		return ev, WrapError(ErrorMalformedPayload, "reaction delta failed shape validation", err)
	}
	p.store.UpdateOne(ev.MessageID, func(m Message) Message {
		m.Reactions = ev.Reactions
		return m
	})
	return ev, nil
}

// ReadReceipts adds a reader entry to every listed message, unless that
// user already read it: readers are monotonic.
func (p *pipeline) ReadReceipts(raw json.RawMessage) error {
	var ev ReadEvent
	if err := UnmarshalData(raw, &ev); err != nil {
		return WrapError(ErrorMalformedPayload, "read receipt batch is malformed", err)
	}
	if err := p.validate.Struct(&ev); err != nil {
		return WrapError(ErrorMalformedPayload, "read receipt batch failed shape validation", err)
	}
	for _, id := range ev.MessageIDs {
		p.store.UpdateOne(id, func(m Message) Message {
			if m.ReadBy(ev.UserID) {
				return m
			}
			m.Readers = append(m.Readers, Reader{UserID: ev.UserID, ReadAt: ev.TS})
			return m
		})
	}
	return nil
}

// InitialLoaded reports whether the first-paint batch already arrived.
func (p *pipeline) InitialLoaded() bool {
	return p.initialLoaded
}

// ResetInitialLatch re-arms the one-shot latch; used by retry so the next
// batch counts as an initial load again.
func (p *pipeline) ResetInitialLatch() {
	p.initialLoaded = false
}
