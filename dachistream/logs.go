package dachistream

import (
	"sync"
	"time"
)

// logCapacity bounds the in-memory log ring; oldest entries are silently
// dropped once full.
const logCapacity = 100

type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (r *logRing) append(typ LogType, message string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, LogEntry{
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Message:   message,
		Data:      data,
	})
	if n := len(r.entries) - logCapacity; n > 0 {
		r.entries = r.entries[n:]
	}
}

// list returns a copy, oldest-first (most-recent-last).
func (r *logRing) list() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
