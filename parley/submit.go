package parley

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// submitter dispatches outbound messages. A per-submission lock keeps a
// second dispatch from starting while one is in flight, and a short
// time-window guard keyed on content (or file name) suppresses accidental
// rapid double-submits. Suppressed duplicates are not surfaced as errors.
type submitter struct {
	tr     Transport
	room   string
	window time.Duration

	mu     sync.Mutex // per-submission lock
	recent map[string]time.Time
	now    func() time.Time
}

func newSubmitter(tr Transport, room string, window time.Duration) *submitter {
	if window <= 0 {
		window = DefaultConfig().DuplicateWindow
	}
	return &submitter{
		tr:     tr,
		room:   room,
		window: window,
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SendText dispatches a text message with a client-generated id.
func (s *submitter) SendText(ctx context.Context, text string) error {
	return suppressDuplicate(s.dispatch(ctx, OutgoingMessage{
		Room: s.room,
		Kind: KindText,
		Text: text,
	}, text))
}

// SendFile dispatches a file message. Upload mechanics are the caller's
// concern; the engine only synchronizes the resulting log entry.
func (s *submitter) SendFile(ctx context.Context, fileName string) error {
	return suppressDuplicate(s.dispatch(ctx, OutgoingMessage{
		Room:     s.room,
		Kind:     KindFile,
		FileName: fileName,
	}, fileName))
}

// suppressDuplicate swallows the duplicate-submission code: the guard
// fired on purpose, so callers see success rather than an error.
func suppressDuplicate(err error) error {
	if CodeOf(err) == ErrorDuplicateSubmission {
		return nil
	}
	return err
}

func (s *submitter) dispatch(ctx context.Context, msg OutgoingMessage, dupKey string) error {
	if !s.tr.Connected() {
		return NewError(ErrorNotConnected, "cannot send while disconnected")
	}
	if !s.mu.TryLock() {
		return NewError(ErrorDuplicateSubmission, "submission already in flight")
	}
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.recent[dupKey]; ok && now.Sub(last) < s.window {
		return NewError(ErrorDuplicateSubmission, "repeat within duplicate window")
	}
	s.recent[dupKey] = now

	msg.ID = uuid.NewString()
	msg.TS = now.UnixMilli()
	if err := s.tr.PublishMessage(ctx, msg); err != nil {
		delete(s.recent, dupKey)
		return WrapError(ErrorConnection, "message send failed", err)
	}
	return nil
}

// Reset clears the duplicate-submission window.
func (s *submitter) Reset() {
	s.recent = make(map[string]time.Time)
}
