// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"sync"

	"github.com/onnwee/dachi-stream/backend/dachistream"
)

// MemoryStore is an in-memory dachistream.Storage for tests. Zero value is
// usable; fields may be mutated between cycles. Err, when set, is returned
// from every lookup.
type MemoryStore struct {
	mu       sync.Mutex
	Settings []dachistream.Settings
	Insights []dachistream.UserInsight
	Profiles []dachistream.UserProfile
	History  []dachistream.StoredChatMessage // most-recent-first
	Err      error

	SettingsCalls int
}

func (m *MemoryStore) GetSettings(ctx context.Context) ([]dachistream.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettingsCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]dachistream.Settings, len(m.Settings))
	copy(out, m.Settings)
	return out, nil
}

func (m *MemoryStore) GetUserInsight(ctx context.Context, userID string) (*dachistream.UserInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Insights {
		if m.Insights[i].UserID == userID {
			in := m.Insights[i]
			return &in, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetAllUserInsights(ctx context.Context) ([]dachistream.UserInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]dachistream.UserInsight, len(m.Insights))
	copy(out, m.Insights)
	return out, nil
}

func (m *MemoryStore) GetChatMessages(ctx context.Context, limit int) ([]dachistream.StoredChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	n := len(m.History)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]dachistream.StoredChatMessage, n)
	copy(out, m.History[:n])
	return out, nil
}

func (m *MemoryStore) GetAllUserProfiles(ctx context.Context) ([]dachistream.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]dachistream.UserProfile, len(m.Profiles))
	copy(out, m.Profiles)
	return out, nil
}

// SetErr swaps the forced lookup error.
func (m *MemoryStore) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}
