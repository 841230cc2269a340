package parley

import "sort"

// Store is the ordered, deduplicated message log: the single source of
// truth rendered by the presentation layer. It is not safe for concurrent
// use on its own; the owning Session serializes access.
//
// The seen-id set gates admission: a message id is applied at most once no
// matter how many times the transport redelivers it. The set is cleared
// only by an explicit reset (manual cleanup or retry), never by a
// disconnect, so a reconnect-triggered resend of history stays idempotent.
type Store struct {
	msgs         []Message
	seen         map[string]struct{}
	revision     uint64
	hasMoreOlder bool
}

// NewStore returns an empty store that assumes more history exists until a
// batch says otherwise.
func NewStore() *Store {
	return &Store{
		seen:         make(map[string]struct{}),
		hasMoreOlder: true,
	}
}

// Admit inserts candidate unless it is malformed (empty id) or its id was
// already admitted. Returns true when the message entered the store.
func (s *Store) Admit(candidate Message) bool {
	if candidate.ID == "" {
		return false
	}
	if _, dup := s.seen[candidate.ID]; dup {
		return false
	}
	s.seen[candidate.ID] = struct{}{}
	next := make([]Message, len(s.msgs), len(s.msgs)+1)
	copy(next, s.msgs)
	s.msgs = append(next, candidate)
	s.sortByTimestamp()
	s.revision++
	return true
}

// AdmitBatch admits every candidate, preserving relative order among the
// accepted ones, then runs a single sort and a single last-write-wins
// dedup pass keyed by id. The dedup pass repairs any transient divergence
// between the seen-id set and the store contents; admission control should
// make it a no-op in practice. hasMore updates the pagination flag.
// Returns the number of candidates accepted.
func (s *Store) AdmitBatch(candidates []Message, hasMore bool) int {
	accepted := 0
	next := make([]Message, len(s.msgs), len(s.msgs)+len(candidates))
	copy(next, s.msgs)
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		if _, dup := s.seen[c.ID]; dup {
			continue
		}
		s.seen[c.ID] = struct{}{}
		next = append(next, c)
		accepted++
	}
	s.msgs = next
	s.sortByTimestamp()
	s.dedupByID()
	s.hasMoreOlder = hasMore
	s.revision++
	return accepted
}

// UpdateOne locates a message by id and applies transform to a clone of
// it. When the result equals the current message the store is left
// untouched, slice identity included, so reference-equality change
// detection downstream sees no change. Unknown ids are a silent no-op.
func (s *Store) UpdateOne(id string, transform func(Message) Message) {
	for i := range s.msgs {
		if s.msgs[i].ID != id {
			continue
		}
		next := transform(s.msgs[i].Clone())
		if next.Equal(s.msgs[i]) {
			return
		}
		replaced := make([]Message, len(s.msgs))
		copy(replaced, s.msgs)
		replaced[i] = next
		s.msgs = replaced
		s.revision++
		return
	}
}

// Get returns a deep copy of the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return s.msgs[i].Clone(), true
		}
	}
	return Message{}, false
}

// Snapshot returns the current log. Callers must treat it as read-only;
// the slice is replaced, never mutated, on change.
func (s *Store) Snapshot() []Message {
	return s.msgs
}

// Revision is a monotonic counter bumped on every effective mutation.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Len reports the number of admitted messages.
func (s *Store) Len() int {
	return len(s.msgs)
}

// Oldest returns the earliest message, used to key history requests.
func (s *Store) Oldest() (Message, bool) {
	if len(s.msgs) == 0 {
		return Message{}, false
	}
	return s.msgs[0].Clone(), true
}

// HasMoreOlder reports whether further history requests are meaningful.
func (s *Store) HasMoreOlder() bool {
	return s.hasMoreOlder
}

// SetHasMoreOlder overrides the continuation flag. Used to optimistically
// stop pagination after an ingestion error, and by retry to re-enable it.
func (s *Store) SetHasMoreOlder(v bool) {
	if s.hasMoreOlder == v {
		return
	}
	s.hasMoreOlder = v
	s.revision++
}

// Reset clears the log and the seen-id set: the full reset used by manual
// cleanup before navigating away.
func (s *Store) Reset() {
	s.msgs = nil
	s.seen = make(map[string]struct{})
	s.hasMoreOlder = true
	s.revision++
}

// ResetSeen clears only the admission bookkeeping. Retry uses this so a
// re-issued initial load is not rejected wholesale; the resulting id
// collisions are repaired by AdmitBatch's dedup pass.
func (s *Store) ResetSeen() {
	s.seen = make(map[string]struct{})
}

// sortByTimestamp orders ascending by timestamp; the stable sort keeps
// arrival order for ties. Missing timestamps are zero and sort first.
func (s *Store) sortByTimestamp() {
	sort.SliceStable(s.msgs, func(i, j int) bool {
		return s.msgs[i].Timestamp < s.msgs[j].Timestamp
	})
}

// dedupByID keeps the last occurrence for any id collision.
func (s *Store) dedupByID() {
	index := make(map[string]int, len(s.msgs))
	out := make([]Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		if at, dup := index[m.ID]; dup {
			out[at] = m
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	s.msgs = out
}
