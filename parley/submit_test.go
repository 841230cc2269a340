package parley

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTextAssignsIDAndTimestamp(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	require.NoError(t, sub.SendText(context.Background(), "hello"))

	require.Len(t, tr.published, 1)
	got := tr.published[0]
	assert.NotEmpty(t, got.ID)
	assert.NotZero(t, got.TS)
	assert.Equal(t, KindText, got.Kind)
	assert.Equal(t, "general", got.Room)
}

func TestSendNotConnected(t *testing.T) {
	tr := newFakeTransport()
	tr.setConnected(false)
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	err := sub.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, ErrorNotConnected, CodeOf(err))
}

func TestDuplicateSubmissionWindow(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	now := time.Unix(1000, 0)
	sub.now = func() time.Time { return now }

	require.NoError(t, sub.SendText(context.Background(), "hello"))
	require.NoError(t, sub.SendText(context.Background(), "hello"), "duplicate is suppressed, not surfaced")
	assert.Len(t, tr.published, 1)

	// A different payload inside the window goes through.
	require.NoError(t, sub.SendText(context.Background(), "other"))
	assert.Len(t, tr.published, 2)

	// The same payload after the window goes through.
	now = now.Add(time.Second)
	require.NoError(t, sub.SendText(context.Background(), "hello"))
	assert.Len(t, tr.published, 3)
}

func TestDuplicateWindowKeyedOnFileName(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	now := time.Unix(1000, 0)
	sub.now = func() time.Time { return now }

	require.NoError(t, sub.SendFile(context.Background(), "report.pdf"))
	require.NoError(t, sub.SendFile(context.Background(), "report.pdf"))
	assert.Len(t, tr.published, 1)
	assert.Equal(t, KindFile, tr.published[0].Kind)
}

func TestFailedSendDoesNotPoisonWindow(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	tr.setConnected(false)
	require.Error(t, sub.SendText(context.Background(), "hello"))

	tr.setConnected(true)
	require.NoError(t, sub.SendText(context.Background(), "hello"))
	assert.Len(t, tr.published, 1)
}

func TestResetClearsWindow(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	now := time.Unix(1000, 0)
	sub.now = func() time.Time { return now }

	require.NoError(t, sub.SendText(context.Background(), "hello"))
	sub.Reset()
	require.NoError(t, sub.SendText(context.Background(), "hello"))
	assert.Len(t, tr.published, 2)
}

func TestDuplicateCarriesCodeInternally(t *testing.T) {
	tr := newFakeTransport()
	sub := newSubmitter(tr, "general", 700*time.Millisecond)

	now := time.Unix(1000, 0)
	sub.now = func() time.Time { return now }

	require.NoError(t, sub.SendText(context.Background(), "hello"))

	err := sub.dispatch(context.Background(), OutgoingMessage{
		Room: "general", Kind: KindText, Text: "hello",
	}, "hello")
	assert.Equal(t, ErrorDuplicateSubmission, CodeOf(err))
	assert.NoError(t, suppressDuplicate(err), "the code never reaches callers")
	assert.Len(t, tr.published, 1)
}
