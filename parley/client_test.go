package parley

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendNotConnected(t *testing.T) {
	c := NewClient(DefaultConfig())

	err := c.PublishMessage(context.Background(), OutgoingMessage{Room: "general", Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, ErrorNotConnected, CodeOf(err))

	err = c.JoinRoom(context.Background(), "general")
	assert.Equal(t, ErrorNotConnected, CodeOf(err))
}

func TestClientConnectRequiresURL(t *testing.T) {
	c := NewClient(DefaultConfig())
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrorInvalidConfig, CodeOf(err))
}

func TestClientInitialStatus(t *testing.T) {
	c := NewClient(DefaultConfig())
	assert.Equal(t, StatusChecking, c.Status())
	assert.False(t, c.Connected())
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusChecking:     "checking",
		StatusConnecting:   "connecting",
		StatusConnected:    "connected",
		StatusDisconnected: "disconnected",
		StatusError:        "error",
		Status(99):         "unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func TestIsExpectedDisconnect(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, isExpectedDisconnect(context.Background(), nil))
	assert.True(t, isExpectedDisconnect(cancelled, errors.New("anything")))
	assert.True(t, isExpectedDisconnect(context.Background(), io.EOF))
	assert.True(t, isExpectedDisconnect(context.Background(), context.Canceled))
	assert.False(t, isExpectedDisconnect(context.Background(), errors.New("broken pipe")))
}

func TestErrorTaxonomy(t *testing.T) {
	base := NewError(ErrorNotConnected, "down")
	wrapped := WrapError(ErrorConnection, "send failed", base)

	assert.True(t, errors.Is(wrapped, &ParleyError{Code: ErrorConnection}))
	assert.Equal(t, ErrorConnection, CodeOf(wrapped))
	assert.True(t, IsConnectionError(wrapped))
	assert.False(t, IsFatal(wrapped))
	assert.True(t, IsFatal(NewError(ErrorSessionExpired, "bye")))
}

func TestFromProtocolError(t *testing.T) {
	pe := FromProtocolError(&Error{Code: "session_expired", Msg: "token expired"})
	require.NotNil(t, pe)
	assert.Equal(t, ErrorSessionExpired, pe.Code)
	assert.True(t, IsProtocolError(pe))

	assert.Nil(t, FromProtocolError(nil))
	assert.Equal(t, ErrorUnknown, ParseErrorCode("wat"))
}

func TestSendRejectsUnencodablePayload(t *testing.T) {
	c := NewClient(DefaultConfig())
	c.status = StatusConnected

	err := c.send(context.Background(), Inbound{Type: inboundMsg, Data: make(chan int)})
	require.Error(t, err)
	assert.Equal(t, ErrorSerialization, CodeOf(err))
}
