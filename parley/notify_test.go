package parley

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierStoreUpdated(t *testing.T) {
	n := NewNotifier()
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := n.Subscribe(ctx, TopicStoreUpdated)
	require.NoError(t, err)

	n.StoreUpdated("general", 7)

	select {
	case msg := <-updates:
		assert.Equal(t, "7", string(msg.Payload))
		assert.Equal(t, "general", msg.Metadata.Get(metaKeyRoom))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no store update published")
	}
}

func TestSessionPublishesOnEffectiveChange(t *testing.T) {
	_, s := newSessionFixture()
	require.NoError(t, s.Setup(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := s.Notifier().Subscribe(ctx, TopicStoreUpdated)
	require.NoError(t, err)

	s.HandleEnvelope(liveMessage(t, "m1", 10))
	select {
	case msg := <-updates:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("admitted message must publish an update")
	}

	// A redelivered duplicate is rejected by admission control and must
	// not publish.
	s.HandleEnvelope(liveMessage(t, "m1", 10))
	select {
	case <-updates:
		t.Fatal("duplicate delivery must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}
