package parley

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveMessageAdmitsOnce(t *testing.T) {
	p := newPipeline(NewStore())
	raw := json.RawMessage(`{"id":"m1","room":"general","senderId":"u1","kind":"text","text":"hi","ts":100}`)

	assert.True(t, p.LiveMessage(raw))
	assert.False(t, p.LiveMessage(raw), "redelivery must be dropped silently")
	assert.Equal(t, 1, p.store.Len())
}

func TestLiveMessageDropsMalformedSilently(t *testing.T) {
	p := newPipeline(NewStore())
	assert.False(t, p.LiveMessage(json.RawMessage(`"not an object"`)))
	assert.False(t, p.LiveMessage(json.RawMessage(`{"room":"general"}`)), "missing id")
	assert.Equal(t, 0, p.store.Len())
}

func TestHistoryRejectsNonIterablePayload(t *testing.T) {
	p := newPipeline(NewStore())

	_, err := p.History(json.RawMessage(`{"messages":"oops","hasMore":true}`))
	require.Error(t, err)
	var pe *ParleyError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorMalformedPayload, pe.Code)
	assert.False(t, p.InitialLoaded(), "rejected batch must not trip the latch")
}

func TestHistoryRejectsMissingMessages(t *testing.T) {
	p := newPipeline(NewStore())
	_, err := p.History(json.RawMessage(`{"hasMore":true}`))
	require.Error(t, err)
	assert.Equal(t, ErrorMalformedPayload, CodeOf(err))
}

func TestHistoryInitialLoadLatch(t *testing.T) {
	p := newPipeline(NewStore())

	res, err := p.History(mustJSON(t, HistoryEvent{
		Messages: []MessageEvent{{ID: "m1", TS: 10}},
		HasMore:  true,
	}))
	require.NoError(t, err)
	assert.True(t, res.Initial)

	res, err = p.History(mustJSON(t, HistoryEvent{
		Messages: []MessageEvent{{ID: "m0", TS: 5}},
		HasMore:  false,
	}))
	require.NoError(t, err)
	assert.False(t, res.Initial, "latch is one-shot")

	p.ResetInitialLatch()
	res, err = p.History(mustJSON(t, HistoryEvent{Messages: []MessageEvent{}, HasMore: false}))
	require.NoError(t, err)
	assert.True(t, res.Initial, "retry re-arms the latch")
}

func TestHistoryEmptyBatchIsValid(t *testing.T) {
	p := newPipeline(NewStore())
	res, err := p.History(json.RawMessage(`{"messages":[],"hasMore":false}`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accepted)
	assert.False(t, p.store.HasMoreOlder())
}

func TestReactionDeltaReplacesWholesale(t *testing.T) {
	store := NewStore()
	p := newPipeline(store)
	m := msg("m1", 10)
	m.Reactions = map[string][]string{"👍": {"u1"}, "🎉": {"u2"}}
	require.True(t, store.Admit(m))

	ev, err := p.ReactionDelta(mustJSON(t, ReactionUpdateEvent{
		MessageID: "m1",
		Reactions: map[string][]string{"👍": {"u3"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.MessageID)

	got, ok := store.Get("m1")
	require.True(t, ok)
	assert.Equal(t, map[string][]string{"👍": {"u3"}}, got.Reactions, "delta replaces, never merges")
}

func TestReactionDeltaRequiresMessageID(t *testing.T) {
	p := newPipeline(NewStore())
	_, err := p.ReactionDelta(json.RawMessage(`{"reactions":{}}`))
	require.Error(t, err)
	assert.Equal(t, ErrorMalformedPayload, CodeOf(err))
}

func TestReadReceiptsAreMonotonic(t *testing.T) {
	store := NewStore()
	p := newPipeline(store)
	require.True(t, store.Admit(msg("m1", 10)))
	require.True(t, store.Admit(msg("m2", 20)))

	require.NoError(t, p.ReadReceipts(mustJSON(t, ReadEvent{
		UserID: "u1", MessageIDs: []string{"m1", "m2"}, TS: 100,
	})))
	// Re-marking with a later timestamp must be a no-op.
	require.NoError(t, p.ReadReceipts(mustJSON(t, ReadEvent{
		UserID: "u1", MessageIDs: []string{"m1"}, TS: 200,
	})))

	got, ok := store.Get("m1")
	require.True(t, ok)
	require.Len(t, got.Readers, 1)
	assert.Equal(t, Reader{UserID: "u1", ReadAt: 100}, got.Readers[0])
}

func TestReadReceiptsUnknownIDIsNoop(t *testing.T) {
	store := NewStore()
	p := newPipeline(store)
	require.NoError(t, p.ReadReceipts(mustJSON(t, ReadEvent{
		UserID: "u1", MessageIDs: []string{"ghost"}, TS: 100,
	})))
	assert.Equal(t, 0, store.Len())
}
