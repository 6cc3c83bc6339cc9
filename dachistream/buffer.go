package dachistream

import "sync"

// OverflowPolicy decides what happens to an incoming message once the
// optional buffer cap is reached.
type OverflowPolicy string

const (
	// OverflowDropOldest evicts the front of the buffer to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowDropNewest discards the incoming message.
	OverflowDropNewest OverflowPolicy = "drop_newest"
)

// buffer is the cycle-scoped accumulation of chat messages. Messages only
// leave it via clear() at a cycle boundary (or cap eviction when a maximum
// size is configured, which is off by default).
//
// userOrder tracks the first-seen order of user ids: Go map iteration order
// is randomized, and the most_active tie-break depends on which user was
// counted first.
type buffer struct {
	mu        sync.Mutex
	messages  []ChatMessage
	userCount map[string]int
	userOrder []string

	max      int // 0 = unbounded
	overflow OverflowPolicy
}

func newBuffer(max int, overflow OverflowPolicy) *buffer {
	return &buffer{
		userCount: make(map[string]int),
		max:       max,
		overflow:  overflow,
	}
}

// add appends msg, maintaining the per-user tally. Returns false when a
// drop-newest cap discarded the message.
func (b *buffer) add(msg ChatMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.messages) >= b.max {
		if b.overflow == OverflowDropNewest {
			return false
		}
		evicted := b.messages[0]
		b.messages = b.messages[1:]
		if evicted.UserID != "" {
			if b.userCount[evicted.UserID] <= 1 {
				delete(b.userCount, evicted.UserID)
			} else {
				b.userCount[evicted.UserID]--
			}
		}
	}
	b.messages = append(b.messages, msg)
	if msg.UserID != "" {
		if _, seen := b.userCount[msg.UserID]; !seen {
			b.userOrder = append(b.userOrder, msg.UserID)
		}
		b.userCount[msg.UserID]++
	}
	return true
}

// len reports the current message count.
func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// snapshot returns a copy of the buffered messages for monitoring.
func (b *buffer) snapshot() []ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChatMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

// bufferView is a consistent copy of the whole buffer taken for selection.
type bufferView struct {
	messages  []ChatMessage
	userCount map[string]int
	userOrder []string
}

func (b *buffer) view() bufferView {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := bufferView{
		messages:  make([]ChatMessage, len(b.messages)),
		userCount: make(map[string]int, len(b.userCount)),
		userOrder: make([]string, len(b.userOrder)),
	}
	copy(v.messages, b.messages)
	copy(v.userOrder, b.userOrder)
	for id, n := range b.userCount {
		v.userCount[id] = n
	}
	return v
}

// clear atomically resets messages, counts, and first-seen order.
func (b *buffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
	b.userCount = make(map[string]int)
	b.userOrder = nil
}
