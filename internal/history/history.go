// Package history keeps the per-user conversation the agent sees as context.
package history

import (
	"context"
	"sync"
	"time"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists conversations keyed by user id. Implementations keep at most
// their configured number of most recent turns per user.
type Store interface {
	Append(ctx context.Context, userID string, turns ...Turn) error
	// Recent returns up to limit most recent turns, oldest first. limit <= 0
	// returns everything kept.
	Recent(ctx context.Context, userID string, limit int) ([]Turn, error)
	Clear(ctx context.Context, userID string) error
}

// DefaultMaxTurns bounds a conversation when no limit is configured.
const DefaultMaxTurns = 20

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]Turn
}

func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{maxTurns: maxTurns, turns: map[string][]Turn{}}
}

func (m *MemoryStore) Append(_ context.Context, userID string, turns ...Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(m.turns[userID], turns...)
	if len(all) > m.maxTurns {
		all = append([]Turn(nil), all[len(all)-m.maxTurns:]...)
	}
	m.turns[userID] = all
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]Turn(nil), all...), nil
}

func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, userID)
	return nil
}
