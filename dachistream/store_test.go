package dachistream

import (
	"context"
	"sync"
)

// fakeStore is an in-package Storage double. testutil.MemoryStore can't be
// used here without an import cycle.
type fakeStore struct {
	mu            sync.Mutex
	settings      []Settings
	insights      []UserInsight
	profiles      []UserProfile
	history       []StoredChatMessage
	err           error
	settingsCalls int
}

func (f *fakeStore) GetSettings(ctx context.Context) ([]Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingsCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Settings, len(f.settings))
	copy(out, f.settings)
	return out, nil
}

func (f *fakeStore) GetUserInsight(ctx context.Context, userID string) (*UserInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.insights {
		if f.insights[i].UserID == userID {
			in := f.insights[i]
			return &in, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetAllUserInsights(ctx context.Context) ([]UserInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]UserInsight, len(f.insights))
	copy(out, f.insights)
	return out, nil
}

func (f *fakeStore) GetChatMessages(ctx context.Context, limit int) ([]StoredChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]StoredChatMessage, n)
	copy(out, f.history[:n])
	return out, nil
}

func (f *fakeStore) GetAllUserProfiles(ctx context.Context) ([]UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]UserProfile, len(f.profiles))
	copy(out, f.profiles)
	return out, nil
}

func enabledSettings(strategy string) []Settings {
	return []Settings{{
		DachipoolEnabled:     true,
		SelectionStrategy:    strategy,
		CycleIntervalSeconds: 15,
	}}
}

func userMsg(id, user, text string) ChatMessage {
	return ChatMessage{ID: id + "-" + text, UserID: id, Username: user, Message: text, Channel: "testchan"}
}

func anonMsg(text string) ChatMessage {
	return ChatMessage{ID: "anon-" + text, Username: "justinfan", Message: text, Channel: "testchan"}
}
