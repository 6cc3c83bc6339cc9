package server

import (
	"sync"

	"github.com/onnwee/dachi-stream/backend/dachistream"
)

// Broadcaster fans engine state snapshots out to SSE subscribers. Publish is
// registered as the engine's onStatusChange observer, so connected clients
// stay in sync without polling.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan dachistream.State]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan dachistream.State]struct{})}
}

// Publish sends a snapshot to all subscribers. Slow subscribers drop updates
// instead of blocking the engine.
func (b *Broadcaster) Publish(st dachistream.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// Subscribe returns a channel of snapshots and a cancel func.
func (b *Broadcaster) Subscribe() (<-chan dachistream.State, func()) {
	ch := make(chan dachistream.State, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}
