package parley

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/parley-chat/parley-go/parley/internal"

	"github.com/coder/websocket"
)

// Client is the WebSocket transport and connection monitor. It owns the
// read/write loops, tracks connection status, and re-dials on drops. Room
// synchronization lives in Session; the client only moves envelopes.
type Client struct {
	cfg     Config
	logger  Logger
	conn    *internal.Conn
	rawConn *websocket.Conn
	writeCh chan json.RawMessage
	onState func(StateEvent)
	sink    EventSink

	mu     sync.Mutex
	status Status
	closed bool
	cancel context.CancelFunc
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
// Set timeouts to 0 to disable them.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		logger:  noopLogger{},
		writeCh: make(chan json.RawMessage, 16),
		status:  StatusChecking,
	}
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// OnStateChanged registers a callback for connection status transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) { c.onState = fn }

// AttachSink registers the event sink receiving inbound envelopes and
// lifecycle signals. At most one sink is active; attaching replaces the
// previous one.
func (c *Client) AttachSink(s EventSink) {
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connected reports whether the transport can accept outbound intents.
func (c *Client) Connected() bool {
	return c.Status() == StatusConnected
}

// Connect dials the server, sends hello, and starts internal loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return NewError(ErrorInvalidConfig, "already connected")
	}
	c.closed = false
	c.mu.Unlock()

	if c.cfg.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	if _, err := url.Parse(c.cfg.URL); err != nil {
		return WrapError(ErrorInvalidConfig, "invalid URL", err)
	}

	c.setStatus(StatusConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setStatus(StatusError, err)
		return err
	}
	c.setStatus(StatusConnected, nil)
	return nil
}

// dial performs one connection attempt: dial, hello handshake, loops.
func (c *Client) dial(ctx context.Context) error {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return WrapError(ErrorConnection, "dial failed", err)
	}

	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	hello := Inbound{
		Type: inboundHello,
		Data: HelloPayload{
			Protocol: ProtocolVersion,
			Token:    c.cfg.Token,
			User:     c.cfg.UserID,
		},
	}
	if err := conn.Write(ctx, hello); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake error")
		return WrapError(ErrorConnection, "hello failed", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.rawConn = ws
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(runCtx, conn)
	go c.writeLoop(runCtx, conn)
	return nil
}

// JoinRoom subscribes to a room.
func (c *Client) JoinRoom(ctx context.Context, room string) error {
	return c.send(ctx, Inbound{Type: inboundJoin, Data: JoinPayload{Room: room}})
}

// LeaveRoom unsubscribes from a room.
func (c *Client) LeaveRoom(ctx context.Context, room string) error {
	return c.send(ctx, Inbound{Type: inboundLeave, Data: JoinPayload{Room: room}})
}

// PublishMessage sends a message to a room.
func (c *Client) PublishMessage(ctx context.Context, msg OutgoingMessage) error {
	return c.send(ctx, Inbound{Type: inboundMsg, Data: MsgPayload{
		Room:     msg.Room,
		ID:       msg.ID,
		Kind:     msg.Kind,
		Text:     msg.Text,
		FileName: msg.FileName,
		TS:       msg.TS,
	}})
}

// PublishReaction emits an add/remove reaction intent.
func (c *Client) PublishReaction(ctx context.Context, room, messageID, symbol string, op ReactionOp) error {
	return c.send(ctx, Inbound{Type: inboundReaction, Data: ReactionPayload{
		Room:      room,
		MessageID: messageID,
		Reaction:  symbol,
		Op:        op,
	}})
}

// RequestHistory asks for a page of messages older than before.
func (c *Client) RequestHistory(ctx context.Context, room string, before int64, limit int) error {
	return c.send(ctx, Inbound{Type: inboundHistory, Data: HistoryPayload{
		Room:   room,
		Before: before,
		Limit:  limit,
	}})
}

// Close shuts down the client and closes the WebSocket.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.mu.Unlock()
	c.setStatus(StatusDisconnected, nil)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

// send encodes the envelope and queues the frame for the write loop.
// Encoding up front keeps payload errors out of the connection-drop path.
func (c *Client) send(ctx context.Context, in Inbound) error {
	if !c.Connected() {
		return NewError(ErrorNotConnected, "not connected")
	}

	frame, err := json.Marshal(in)
	if err != nil {
		return WrapError(ErrorSerialization, "cannot encode envelope", err)
	}

	select {
	case c.writeCh <- json.RawMessage(frame):
		return nil
	case <-ctx.Done():
		return WrapError(ErrorTimeout, "send cancelled", ctx.Err())
	}
}

func (c *Client) readLoop(ctx context.Context, conn *internal.Conn) {
	for {
		var out Outbound
		if err := conn.Read(ctx, &out); err != nil {
			if isExpectedDisconnect(ctx, err) {
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			c.onDrop(err)
			return
		}
		c.dispatch(out)
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *internal.Conn) {
	for {
		select {
		case frame := <-c.writeCh:
			if err := conn.Write(ctx, frame); err != nil {
				if isExpectedDisconnect(ctx, err) {
					return
				}
				c.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				c.onDrop(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(out Outbound) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return
	}
	sink.HandleEnvelope(out)
}

// onDrop handles an unexpected connection loss: one loop wins the race to
// tear down, notify the sink, and start reconnecting.
func (c *Client) onDrop(err error) {
	c.mu.Lock()
	if c.closed || c.status != StatusConnected {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	sink := c.sink
	c.mu.Unlock()

	c.setStatus(StatusDisconnected, err)
	if sink != nil {
		sink.HandleDisconnect(err)
	}
	if c.cfg.AutoReconnect && c.cfg.MaxReconnectTries > 0 {
		go c.reconnectLoop()
	}
}

// reconnectLoop re-dials with doubling backoff until it succeeds, the
// client is closed, or the attempt budget is exhausted.
func (c *Client) reconnectLoop() {
	delay := c.cfg.ReconnectInterval
	if delay <= 0 {
		delay = 2 * time.Second
	}
	for attempt := 1; attempt <= c.cfg.MaxReconnectTries; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		c.setStatus(StatusConnecting, nil)
		c.logger.Info("reconnecting", map[string]any{"attempt": attempt})
		if err := c.dial(context.Background()); err != nil {
			c.setStatus(StatusDisconnected, err)
			delay *= 2
			if c.cfg.MaxReconnectDelay > 0 && delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}

		c.setStatus(StatusConnected, nil)
		c.mu.Lock()
		sink := c.sink
		c.mu.Unlock()
		if sink != nil {
			sink.HandleReconnected()
		}
		return
	}
	c.setStatus(StatusError, NewError(ErrorConnection, "reconnect attempts exhausted"))
}

func (c *Client) setStatus(s Status, err error) {
	c.mu.Lock()
	old := c.status
	if old == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	onState := c.onState
	c.mu.Unlock()

	if onState != nil {
		onState(StateEvent{OldState: old, NewState: s, Error: err})
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
