package parley

import (
	"context"
	"time"
)

// paginator requests older history pages on demand and tracks whether a
// request is in flight. Results arrive asynchronously through the
// pipeline's history path; the owning Session clears the in-flight flag
// when a batch lands or ingestion fails.
type paginator struct {
	store *Store
	pipe  *pipeline
	tr    Transport
	room  string
	limit int

	inFlight bool
	attempts int
	timer    *time.Timer // pending deferred retry, cancelled on cleanup
}

func newPaginator(store *Store, pipe *pipeline, tr Transport, room string, limit int) *paginator {
	if limit <= 0 {
		limit = DefaultConfig().HistoryPageSize
	}
	return &paginator{store: store, pipe: pipe, tr: tr, room: room, limit: limit}
}

// InitialLoad requests the newest history page after room entry.
func (p *paginator) InitialLoad(ctx context.Context) error {
	if p.inFlight {
		return nil
	}
	p.attempts++
	if err := p.tr.RequestHistory(ctx, p.room, 0, p.limit); err != nil {
		return err
	}
	p.inFlight = true
	return nil
}

// LoadOlder requests the page preceding the oldest known message. No-op
// while a load is in flight or when the server said there is nothing
// older. The hasMoreOlder flag never regresses from false back to true
// here; only an explicit Retry re-enables it.
func (p *paginator) LoadOlder(ctx context.Context) error {
	if p.inFlight || !p.store.HasMoreOlder() {
		return nil
	}
	before := int64(0)
	if oldest, ok := p.store.Oldest(); ok {
		before = oldest.Timestamp
	}
	p.attempts++
	if err := p.tr.RequestHistory(ctx, p.room, before, p.limit); err != nil {
		return err
	}
	p.inFlight = true
	return nil
}

// Retry resets attempt counters, the initial-load latch and the seen-id
// set, then re-issues the initial load: a clean resumption after an
// ingestion error.
func (p *paginator) Retry(ctx context.Context) error {
	p.Cancel()
	p.attempts = 0
	p.inFlight = false
	p.pipe.ResetInitialLatch()
	p.store.ResetSeen()
	p.store.SetHasMoreOlder(true)
	return p.InitialLoad(ctx)
}

// Landed marks the in-flight request as answered.
func (p *paginator) Landed() {
	p.inFlight = false
}

// Cancel stops any pending deferred retry timer.
func (p *paginator) Cancel() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.inFlight = false
}

// Defer schedules fn after d, replacing any previously scheduled retry.
func (p *paginator) Defer(d time.Duration, fn func()) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, fn)
}
