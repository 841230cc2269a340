package parley

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPagerFixture() (*Store, *pipeline, *fakeTransport, *paginator) {
	store := NewStore()
	pipe := newPipeline(store)
	tr := newFakeTransport()
	pager := newPaginator(store, pipe, tr, "general", 25)
	return store, pipe, tr, pager
}

func TestInitialLoadRequestsNewestPage(t *testing.T) {
	_, _, tr, pager := newPagerFixture()

	require.NoError(t, pager.InitialLoad(context.Background()))

	require.Len(t, tr.histories, 1)
	assert.Equal(t, HistoryPayload{Room: "general", Before: 0, Limit: 25}, tr.histories[0])
}

func TestLoadOlderKeyedByOldestMessage(t *testing.T) {
	store, _, tr, pager := newPagerFixture()
	store.Admit(msg("old", 100))
	store.Admit(msg("new", 200))

	require.NoError(t, pager.LoadOlder(context.Background()))

	require.Len(t, tr.histories, 1)
	assert.Equal(t, int64(100), tr.histories[0].Before)
}

func TestLoadOlderNoopWhileInFlight(t *testing.T) {
	_, _, tr, pager := newPagerFixture()

	require.NoError(t, pager.LoadOlder(context.Background()))
	require.NoError(t, pager.LoadOlder(context.Background()))

	assert.Len(t, tr.histories, 1, "second request suppressed while one is in flight")
}

func TestLoadOlderNoopWhenExhausted(t *testing.T) {
	store, _, tr, pager := newPagerFixture()
	store.SetHasMoreOlder(false)

	require.NoError(t, pager.LoadOlder(context.Background()))
	assert.Empty(t, tr.histories)
}

func TestLoadOlderResumesAfterBatchLands(t *testing.T) {
	_, pipe, tr, pager := newPagerFixture()

	require.NoError(t, pager.LoadOlder(context.Background()))
	_, err := pipe.History(mustJSON(t, HistoryEvent{
		Messages: []MessageEvent{{ID: "m1", TS: 10}},
		HasMore:  true,
	}))
	require.NoError(t, err)
	pager.Landed()

	require.NoError(t, pager.LoadOlder(context.Background()))
	assert.Len(t, tr.histories, 2)
	assert.Equal(t, int64(10), tr.histories[1].Before)
}

func TestRetryResetsBookkeeping(t *testing.T) {
	store, pipe, tr, pager := newPagerFixture()

	// First load lands and exhausts history.
	require.NoError(t, pager.InitialLoad(context.Background()))
	_, err := pipe.History(mustJSON(t, HistoryEvent{
		Messages: []MessageEvent{{ID: "m1", TS: 10}},
		HasMore:  false,
	}))
	require.NoError(t, err)
	pager.Landed()
	require.True(t, pipe.InitialLoaded())
	require.False(t, store.HasMoreOlder())

	require.NoError(t, pager.Retry(context.Background()))

	assert.False(t, pipe.InitialLoaded(), "retry re-arms the initial-load latch")
	assert.True(t, store.HasMoreOlder(), "retry re-enables pagination")
	assert.Equal(t, 1, pager.attempts)
	require.Len(t, tr.histories, 2)

	// The redelivered initial page must not duplicate entries.
	_, err = pipe.History(mustJSON(t, HistoryEvent{
		Messages: []MessageEvent{{ID: "m1", TS: 10}},
		HasMore:  false,
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestCancelStopsDeferredWork(t *testing.T) {
	_, _, _, pager := newPagerFixture()

	fired := make(chan struct{}, 1)
	pager.Defer(5*time.Millisecond, func() { fired <- struct{}{} })
	pager.Cancel()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("deferred work ran after cancel")
	default:
	}
}
