package parley

// MessageKind distinguishes text and file messages. The content itself is
// opaque to the sync engine.
const (
	KindText = "text"
	KindFile = "file"
)

// Reader records one user having read a message. A user appears at most
// once per message; re-marking is a no-op.
type Reader struct {
	UserID string `json:"userId"`
	ReadAt int64  `json:"readAt"`
}

// Message is a single entry in the synchronized log.
type Message struct {
	ID        string              `json:"id"`
	Room      string              `json:"room"`
	Sender    string              `json:"senderId"`
	Kind      string              `json:"kind"`
	Text      string              `json:"text"`
	FileName  string              `json:"fileName,omitempty"`
	Timestamp int64               `json:"ts"` // unix millis; zero sorts as epoch
	Reactions map[string][]string `json:"reactions,omitempty"`
	Readers   []Reader            `json:"readers,omitempty"`
}

// messageFromEvent converts a wire event into a store entry.
func messageFromEvent(ev MessageEvent) Message {
	return Message{
		ID:        ev.ID,
		Room:      ev.Room,
		Sender:    ev.Sender,
		Kind:      ev.Kind,
		Text:      ev.Text,
		FileName:  ev.FileName,
		Timestamp: ev.TS,
		Reactions: ev.Reactions,
		Readers:   ev.Readers,
	}
}

// Clone returns a deep copy. Transforms passed to the store receive clones
// so shared maps are never mutated in place.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for sym, users := range m.Reactions {
			out.Reactions[sym] = append([]string(nil), users...)
		}
	}
	if m.Readers != nil {
		out.Readers = append([]Reader(nil), m.Readers...)
	}
	return out
}

// Equal reports whether two messages carry the same state. Reaction user
// sets compare order-insensitively; reader lists compare in order.
func (m Message) Equal(other Message) bool {
	if m.ID != other.ID || m.Room != other.Room || m.Sender != other.Sender ||
		m.Kind != other.Kind || m.Text != other.Text || m.FileName != other.FileName ||
		m.Timestamp != other.Timestamp {
		return false
	}
	if len(m.Readers) != len(other.Readers) {
		return false
	}
	for i := range m.Readers {
		if m.Readers[i] != other.Readers[i] {
			return false
		}
	}
	return reactionsEqual(m.Reactions, other.Reactions)
}

// HasReaction reports whether userID reacted to this message with symbol.
func (m Message) HasReaction(symbol, userID string) bool {
	for _, id := range m.Reactions[symbol] {
		if id == userID {
			return true
		}
	}
	return false
}

// ReadBy reports whether userID already has a reader entry.
func (m Message) ReadBy(userID string) bool {
	for _, r := range m.Readers {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func reactionsEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for sym, users := range a {
		if !sameUserSet(users, b[sym]) {
			return false
		}
	}
	return true
}

func sameUserSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
		if set[id] < 0 {
			return false
		}
	}
	return true
}
