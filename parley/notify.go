package parley

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topics the presentation layer can subscribe to instead of polling.
const (
	// TopicStoreUpdated carries the store revision as its payload whenever
	// the synchronized log effectively changed.
	TopicStoreUpdated = "parley.store.updated"

	// TopicConnectionState carries the connection status string.
	TopicConnectionState = "parley.connection.state"

	// TopicNotice carries user-visible, non-fatal status messages
	// (reaction failures, pagination failures, reconnect banners).
	TopicNotice = "parley.notice"
)

// Metadata keys set on published messages.
const (
	metaKeyRoom     = "room"
	metaKeyRevision = "revision"
)

// Notifier bridges engine state changes onto an in-memory pub/sub so UI
// code can react to store updates without holding the session lock.
type Notifier struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// NewNotifier initializes an in-memory GoChannel pub/sub.
func NewNotifier() *Notifier {
	logger := watermill.NopLogger{}
	goChannel := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
	return &Notifier{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
	}
}

// StoreUpdated publishes the new revision. Identity-preserving no-op
// mutations never reach this point, so subscribers can treat every
// delivery as a real change.
func (n *Notifier) StoreUpdated(room string, revision uint64) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(strconv.FormatUint(revision, 10)))
	msg.Metadata.Set(metaKeyRoom, room)
	msg.Metadata.Set(metaKeyRevision, strconv.FormatUint(revision, 10))
	_ = n.pub.Publish(TopicStoreUpdated, msg)
}

// ConnectionState publishes a status transition.
func (n *Notifier) ConnectionState(s Status) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(s.String()))
	_ = n.pub.Publish(TopicConnectionState, msg)
}

// Notice publishes a user-visible, non-fatal status line.
func (n *Notifier) Notice(room, text string) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(text))
	msg.Metadata.Set(metaKeyRoom, room)
	_ = n.pub.Publish(TopicNotice, msg)
}

// Subscribe returns a channel of messages for topic. Consumers must Ack
// each message.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return n.sub.Subscribe(ctx, topic)
}

// Close shuts the underlying pub/sub down.
func (n *Notifier) Close() error {
	return n.pub.Close()
}
