package dachistream

import (
	"fmt"
	"sync"
	"testing"
)

func countInvariantHolds(t *testing.T, b *buffer) {
	t.Helper()
	v := b.view()
	sum := 0
	for _, n := range v.userCount {
		sum += n
	}
	attributed := 0
	for _, m := range v.messages {
		if m.UserID != "" {
			attributed++
		}
	}
	if sum != attributed {
		t.Fatalf("count invariant broken: sum(counts)=%d, attributed messages=%d", sum, attributed)
	}
}

func TestBufferCountInvariant(t *testing.T) {
	b := newBuffer(0, OverflowDropOldest)
	b.add(userMsg("u1", "alice", "one"))
	b.add(anonMsg("whisper"))
	b.add(userMsg("u2", "bob", "two"))
	b.add(userMsg("u1", "alice", "three"))
	countInvariantHolds(t, b)

	v := b.view()
	if v.userCount["u1"] != 2 || v.userCount["u2"] != 1 {
		t.Errorf("unexpected counts: %v", v.userCount)
	}
	if len(v.userOrder) != 2 || v.userOrder[0] != "u1" || v.userOrder[1] != "u2" {
		t.Errorf("unexpected first-seen order: %v", v.userOrder)
	}
}

func TestBufferClearIdempotent(t *testing.T) {
	b := newBuffer(0, OverflowDropOldest)
	b.add(userMsg("u1", "alice", "one"))
	b.clear()
	if b.len() != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", b.len())
	}
	b.clear()
	if b.len() != 0 {
		t.Fatalf("expected empty buffer after second clear, got %d", b.len())
	}
	countInvariantHolds(t, b)
}

func TestBufferConcurrentAddAndClear(t *testing.T) {
	b := newBuffer(0, OverflowDropOldest)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.add(userMsg(fmt.Sprintf("u%d", n), "user", fmt.Sprintf("m%d", j)))
				if j%25 == 0 {
					b.clear()
				}
			}
		}(i)
	}
	wg.Wait()
	countInvariantHolds(t, b)
}

func TestBufferDropOldest(t *testing.T) {
	b := newBuffer(3, OverflowDropOldest)
	b.add(userMsg("u1", "alice", "one"))
	b.add(userMsg("u2", "bob", "two"))
	b.add(userMsg("u3", "carol", "three"))
	b.add(userMsg("u4", "dave", "four"))
	msgs := b.snapshot()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Username != "bob" || msgs[2].Username != "dave" {
		t.Errorf("expected oldest evicted, got %v", msgs)
	}
	countInvariantHolds(t, b)
	if _, ok := b.view().userCount["u1"]; ok {
		t.Errorf("evicted user still counted")
	}
}

func TestBufferDropNewest(t *testing.T) {
	b := newBuffer(2, OverflowDropNewest)
	b.add(userMsg("u1", "alice", "one"))
	b.add(userMsg("u2", "bob", "two"))
	if b.add(userMsg("u3", "carol", "three")) {
		t.Errorf("expected drop-newest to reject the incoming message")
	}
	msgs := b.snapshot()
	if len(msgs) != 2 || msgs[1].Username != "bob" {
		t.Errorf("unexpected buffer contents: %v", msgs)
	}
	countInvariantHolds(t, b)
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	b := newBuffer(0, OverflowDropOldest)
	b.add(userMsg("u1", "alice", "one"))
	snap := b.snapshot()
	snap[0].Message = "mutated"
	if b.snapshot()[0].Message != "one" {
		t.Errorf("snapshot mutation leaked into buffer")
	}
}
