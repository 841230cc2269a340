package parley

import "context"

// pendingKey identifies one in-flight reaction intent.
type pendingKey struct {
	messageID string
	symbol    string
}

// reactionCoordinator applies optimistic reaction changes, emits the
// matching intent, and rolls back on emit failure. Server reaction deltas
// arriving through the pipeline always win over pending optimistic state.
//
// Toggle semantics live in the caller: a repeated Add for a present
// user/symbol is a no-op here; the UI layer decides when presence means
// the user intended removal.
type reactionCoordinator struct {
	store  *Store
	tr     Transport
	room   string
	userID string

	// pending holds the pre-optimistic snapshot per intent, for rollback.
	pending map[pendingKey]Message
}

func newReactionCoordinator(store *Store, tr Transport, room, userID string) *reactionCoordinator {
	return &reactionCoordinator{
		store:   store,
		tr:      tr,
		room:    room,
		userID:  userID,
		pending: make(map[pendingKey]Message),
	}
}

// Add optimistically records the current user under symbol and emits an
// add intent. Preconditions: the transport must be connected, else
// ErrorNotConnected with no local mutation; a user already present under
// that symbol makes this a no-op.
func (rc *reactionCoordinator) Add(ctx context.Context, messageID, symbol string) error {
	if !rc.tr.Connected() {
		return NewError(ErrorNotConnected, "cannot react while disconnected")
	}
	msg, ok := rc.store.Get(messageID)
	if !ok {
		return nil
	}
	if msg.HasReaction(symbol, rc.userID) {
		return nil
	}

	key := pendingKey{messageID: messageID, symbol: symbol}
	err := optimistically(
		func() Message { return msg },
		func() {
			rc.pending[key] = msg
			rc.store.UpdateOne(messageID, func(m Message) Message {
				if m.Reactions == nil {
					m.Reactions = make(map[string][]string)
				}
				m.Reactions[symbol] = append(m.Reactions[symbol], rc.userID)
				return m
			})
		},
		func() error {
			return rc.tr.PublishReaction(ctx, rc.room, messageID, symbol, ReactionAdd)
		},
		rc.rollback(key),
	)
	if err != nil {
		return WrapError(ErrorConnection, "reaction add failed", err)
	}
	return nil
}

// Remove optimistically filters the current user out of the symbol's set
// and emits a remove intent, regardless of prior presence.
func (rc *reactionCoordinator) Remove(ctx context.Context, messageID, symbol string) error {
	msg, ok := rc.store.Get(messageID)
	if !ok {
		return nil
	}

	key := pendingKey{messageID: messageID, symbol: symbol}
	err := optimistically(
		func() Message { return msg },
		func() {
			rc.pending[key] = msg
			rc.store.UpdateOne(messageID, func(m Message) Message {
				users := m.Reactions[symbol]
				kept := users[:0]
				for _, id := range users {
					if id != rc.userID {
						kept = append(kept, id)
					}
				}
				if len(kept) == 0 {
					delete(m.Reactions, symbol)
				} else {
					m.Reactions[symbol] = kept
				}
				return m
			})
		},
		func() error {
			return rc.tr.PublishReaction(ctx, rc.room, messageID, symbol, ReactionRemove)
		},
		rc.rollback(key),
	)
	if err != nil {
		return WrapError(ErrorConnection, "reaction remove failed", err)
	}
	return nil
}

// Reconcile drops pending bookkeeping for a message once the server's
// authoritative delta has been applied by the pipeline.
func (rc *reactionCoordinator) Reconcile(messageID string) {
	for key := range rc.pending {
		if key.messageID == messageID {
			delete(rc.pending, key)
		}
	}
}

// Clear drops all rollback bookkeeping; cleanup calls this for every
// reason.
func (rc *reactionCoordinator) Clear() {
	rc.pending = make(map[pendingKey]Message)
}

// rollback restores the message to its last known-good snapshot.
func (rc *reactionCoordinator) rollback(key pendingKey) func(Message) {
	return func(prior Message) {
		delete(rc.pending, key)
		rc.store.UpdateOne(key.messageID, func(m Message) Message {
			m.Reactions = prior.Clone().Reactions
			return m
		})
	}
}
