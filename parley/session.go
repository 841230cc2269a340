package parley

import (
	"context"
	"sync"
	"time"
)

// Session synchronizes one room's message log against the server's event
// stream. It owns the store, the ingestion pipeline, the reaction
// coordinator and the paginator, and it is the room lifecycle controller:
// setup and cleanup pass through here and nowhere else.
//
// All mutations are serialized behind one mutex owned by the session, so
// handlers observe run-to-completion semantics: transport events are
// applied in delivery order and user operations never interleave with a
// half-applied event.
type Session struct {
	cfg      Config
	tr       Transport
	log      Logger
	store    *Store
	pipe     *pipeline
	react    *reactionCoordinator
	pager    *paginator
	submit   *submitter
	notifier *Notifier

	mu           sync.Mutex
	roomID       string
	participants map[string]string
	lc           lifecycle
	listening    bool // live-event listeners attached
	closed       bool // liveness: set on unmount, checked by every continuation
	notice       string
	lastRev      uint64
	pending      []func() // callbacks queued under the lock, run after release

	onSessionEnded func(reason string)
	onNotice       func(text string)
	onInitialLoad  func()
}

// NewSession builds a session for one room over the given transport.
func NewSession(tr Transport, cfg Config, room string) *Session {
	store := NewStore()
	pipe := newPipeline(store)
	return &Session{
		cfg:      cfg,
		tr:       tr,
		log:      noopLogger{},
		store:    store,
		pipe:     pipe,
		react:    newReactionCoordinator(store, tr, room, cfg.UserID),
		pager:    newPaginator(store, pipe, tr, room, cfg.HistoryPageSize),
		submit:   newSubmitter(tr, room, cfg.DuplicateWindow),
		notifier: NewNotifier(),
		roomID:   room,
	}
}

// Session creates a room session bound to this client and attaches it as
// the client's event sink.
func (c *Client) Session(room string) *Session {
	s := NewSession(c, c.cfg, room)
	s.log = c.logger
	c.AttachSink(s)
	return s
}

// SetLogger overrides the session logger.
func (s *Session) SetLogger(l Logger) {
	if l != nil {
		s.log = l
	}
}

// OnSessionEnded registers the callback invoked after a forced cleanup
// when the server ends the session (logout/redirect belongs there).
func (s *Session) OnSessionEnded(fn func(reason string)) {
	s.mu.Lock()
	s.onSessionEnded = fn
	s.mu.Unlock()
}

// OnNotice registers a callback for user-visible, non-fatal status lines.
func (s *Session) OnNotice(fn func(text string)) {
	s.mu.Lock()
	s.onNotice = fn
	s.mu.Unlock()
}

// OnInitialLoad registers a callback fired once when the first history
// batch after room entry (or retry) has been admitted.
func (s *Session) OnInitialLoad(fn func()) {
	s.mu.Lock()
	s.onInitialLoad = fn
	s.mu.Unlock()
}

// Notifier exposes the pub/sub bridge the presentation layer subscribes to.
func (s *Session) Notifier() *Notifier {
	return s.notifier
}

// Setup joins the room, attaches the live-event listeners and triggers the
// initial history load. Ignored while already initializing or ready;
// failures leave the session uninitialized and retriable.
func (s *Session) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(ErrorDisconnected, "session closed")
	}
	err := s.setupLocked(ctx)
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	return err
}

func (s *Session) setupLocked(ctx context.Context) error {
	if !s.lc.canSetup() {
		s.log.Debug("setup ignored", map[string]any{
			"room":         s.roomID,
			"initializing": s.lc.initializing,
			"ready":        s.lc.setupDone,
			"cleaning":     s.lc.cleaning,
		})
		return nil
	}
	s.lc.initializing = true

	// Attaching is idempotent by construction: dispatch funnels through
	// HandleEnvelope, so there is exactly one registration per event kind
	// no matter how many reconnects pass through here.
	s.listening = true

	err := s.tr.JoinRoom(ctx, s.roomID)
	if err == nil {
		err = s.pager.InitialLoad(ctx)
	}
	if err != nil {
		s.lc.initializing = false
		s.listening = false
		s.noticeLocked("failed to join room: " + err.Error())
		return err
	}

	s.lc.initializing = false
	s.lc.setupDone = true
	s.log.Info("room ready", map[string]any{"room": s.roomID})
	return nil
}

// Cleanup tears session state down according to reason. Re-entrant calls
// while a cleanup is in flight are dropped.
func (s *Session) Cleanup(ctx context.Context, reason CleanupReason) {
	s.mu.Lock()
	s.cleanupLocked(ctx, reason)
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
}

func (s *Session) cleanupLocked(ctx context.Context, reason CleanupReason) {
	if s.lc.cleaning {
		return
	}
	s.lc.cleaning = true
	defer func() { s.lc.cleaning = false }()

	s.pager.Cancel()
	s.react.Clear()
	s.submit.Reset()

	// Reconnect keeps listeners attached; the resumed room reuses the
	// same registration.
	if reason != CleanupReconnect {
		s.listening = false
	}

	switch reason {
	case CleanupManual, CleanupError:
		s.store.Reset()
		s.pipe.ResetInitialLatch()
		s.notice = ""
		if s.tr.Connected() {
			if err := s.tr.LeaveRoom(ctx, s.roomID); err != nil {
				s.log.Warn("leave room failed", map[string]any{"room": s.roomID, "error": err.Error()})
			}
		}
	case CleanupDisconnect:
		// Store and seen-id set survive: a reconnect resumes history
		// rather than replacing it.
		s.noticeLocked("connection lost, retrying")
	case CleanupUnmount:
		s.store.ResetSeen()
	case CleanupReconnect:
	}

	s.lc.initializing = false
	s.lc.setupDone = false
	s.log.Debug("cleanup done", map[string]any{"room": s.roomID, "reason": string(reason)})
}

// Close is the unmount path: full teardown plus the liveness flag, after
// which every pending continuation is a no-op.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cleanupLocked(ctx, CleanupUnmount)
	s.closed = true
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	_ = s.notifier.Close()
}

// Messages returns the current log snapshot. The slice is replaced, never
// mutated, on change, so callers may compare identities across calls.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Revision is the store's monotonic mutation counter.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Revision()
}

// Room returns the current room snapshot.
func (s *Session) Room() Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := make(map[string]string, len(s.participants))
	for id, name := range s.participants {
		participants[id] = name
	}
	return Room{ID: s.roomID, Participants: participants}
}

// Status reports the transport connection status.
func (s *Session) Status() Status {
	return s.tr.Status()
}

// Notice returns the current user-visible status line, empty when clear.
func (s *Session) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// InitialLoaded reports whether the first history batch landed.
func (s *Session) InitialLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.InitialLoaded()
}

// HasMoreOlder reports whether older pages remain.
func (s *Session) HasMoreOlder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.HasMoreOlder()
}

// AddReaction optimistically applies the current user's reaction and emits
// the add intent. Non-fatal failures are also surfaced as a notice.
func (s *Session) AddReaction(ctx context.Context, messageID, symbol string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(ErrorDisconnected, "session closed")
	}
	err := s.react.Add(ctx, messageID, symbol)
	if err != nil {
		s.noticeLocked("could not add reaction")
	}
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	return err
}

// RemoveReaction optimistically removes the reaction and emits the remove
// intent.
func (s *Session) RemoveReaction(ctx context.Context, messageID, symbol string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(ErrorDisconnected, "session closed")
	}
	err := s.react.Remove(ctx, messageID, symbol)
	if err != nil {
		s.noticeLocked("could not remove reaction")
	}
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	return err
}

// LoadOlder requests the next older history page.
func (s *Session) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(ErrorDisconnected, "session closed")
	}
	return s.pager.LoadOlder(ctx)
}

// Retry clears pagination bookkeeping and re-issues the initial load.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(ErrorDisconnected, "session closed")
	}
	s.notice = ""
	err := s.pager.Retry(ctx)
	s.maybeNotifyLocked()
	return err
}

// SendMessage submits a text message.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(ErrorDisconnected, "session closed")
	}
	return s.submit.SendText(ctx, text)
}

// SendFile submits a file message referencing an already-uploaded file.
func (s *Session) SendFile(ctx context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(ErrorDisconnected, "session closed")
	}
	return s.submit.SendFile(ctx, fileName)
}

// HandleEnvelope is the inbound entry point called by the transport's read
// loop. Events are applied in delivery order.
func (s *Session) HandleEnvelope(out Outbound) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.handleEnvelopeLocked(out)
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
}

func (s *Session) handleEnvelopeLocked(out Outbound) {
	if out.Type == outboundError {
		if out.Error == nil {
			return
		}
		if ParseErrorCode(out.Error.Code) == ErrorSessionExpired {
			s.cleanupLocked(context.Background(), CleanupError)
			s.queueSessionEndedLocked(out.Error.Msg)
			return
		}
		s.log.Warn("server error", map[string]any{"error": out.Error.Error()})
		s.noticeLocked(out.Error.Msg)
		return
	}

	if out.Event == eventSessionEnded {
		var ev SessionEndedEvent
		_ = UnmarshalData(out.Data, &ev)
		s.cleanupLocked(context.Background(), CleanupError)
		s.queueSessionEndedLocked(ev.Reason)
		return
	}

	if !s.listening {
		return
	}

	switch out.Event {
	case eventMessage:
		if !s.pipe.LiveMessage(out.Data) {
			s.log.Debug("message dropped by admission control", nil)
		}

	case eventPreviousMessages:
		s.pager.Landed()
		res, err := s.pipe.History(out.Data)
		if err != nil {
			// Non-fatal: surface a notice and stop paginating until the
			// caller retries.
			s.log.Warn("history batch rejected", map[string]any{"error": err.Error()})
			s.noticeLocked("could not load messages")
			s.store.SetHasMoreOlder(false)
			return
		}
		s.log.Debug("history admitted", map[string]any{
			"accepted": res.Accepted,
			"initial":  res.Initial,
			"hasMore":  res.HasMore,
		})
		if res.Initial && s.onInitialLoad != nil {
			fn := s.onInitialLoad
			s.pending = append(s.pending, fn)
		}

	case eventParticipants:
		var ev ParticipantsEvent
		if err := UnmarshalData(out.Data, &ev); err != nil {
			s.log.Warn("participants update malformed", map[string]any{"error": err.Error()})
			return
		}
		s.participants = ev.Participants

	case eventMessagesRead:
		if err := s.pipe.ReadReceipts(out.Data); err != nil {
			s.log.Warn("read receipts rejected", map[string]any{"error": err.Error()})
		}

	case eventReactionUpdate:
		ev, err := s.pipe.ReactionDelta(out.Data)
		if err != nil {
			s.log.Warn("reaction delta rejected", map[string]any{"error": err.Error()})
			return
		}
		s.react.Reconcile(ev.MessageID)
	}
}

// HandleDisconnect reacts to a transport-level drop.
func (s *Session) HandleDisconnect(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.Warn("transport dropped", map[string]any{"error": err.Error()})
	}
	s.cleanupLocked(context.Background(), CleanupDisconnect)
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	s.notifier.ConnectionState(StatusDisconnected)
}

// HandleReconnected re-runs room setup after a successful reconnect.
func (s *Session) HandleReconnected() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cleanupLocked(context.Background(), CleanupReconnect)
	s.notice = ""
	err := s.setupLocked(context.Background())
	if err != nil {
		s.log.Error("room re-setup failed", map[string]any{"error": err.Error()})
		// One deferred attempt; cleanup cancels it if the room goes away
		// first.
		delay := s.cfg.ReconnectInterval
		if delay <= 0 {
			delay = 2 * time.Second
		}
		s.pager.Defer(delay, func() {
			if err := s.Setup(context.Background()); err == nil {
				s.notifier.ConnectionState(StatusConnected)
			}
		})
	}
	s.maybeNotifyLocked()
	fns := s.drainLocked()
	s.mu.Unlock()
	fire(fns)
	// The connected banner clears only once the room is actually resumed;
	// a failed re-setup keeps the transition pending for the retry.
	if err == nil {
		s.notifier.ConnectionState(StatusConnected)
	}
}

// noticeLocked records a user-visible status line and fans it out. The
// registered callback is queued, not invoked, so it may re-enter the
// session (e.g. call Retry or read Messages) without deadlocking.
func (s *Session) noticeLocked(text string) {
	s.notice = text
	if s.onNotice != nil {
		fn := s.onNotice
		s.pending = append(s.pending, func() { fn(text) })
	}
	s.notifier.Notice(s.roomID, text)
}

func (s *Session) queueSessionEndedLocked(reason string) {
	if s.onSessionEnded == nil {
		return
	}
	fn := s.onSessionEnded
	s.pending = append(s.pending, func() { fn(reason) })
}

// drainLocked hands back the queued callbacks; the caller runs them via
// fire after releasing the mutex.
func (s *Session) drainLocked() []func() {
	fns := s.pending
	s.pending = nil
	return fns
}

func fire(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// maybeNotifyLocked publishes a store update when the revision moved.
func (s *Session) maybeNotifyLocked() {
	rev := s.store.Revision()
	if rev == s.lastRev {
		return
	}
	s.lastRev = rev
	s.notifier.StoreUpdated(s.roomID, rev)
}
