package memory

import (
	"context"
	"fmt"
	"sync"
)

// ConversationMemory layers a per-pair in-process ring over the persistent
// store. Writes go to both; reads come from the ring and fall back to the
// store after a restart, so the ring warms back up transparently.
type ConversationMemory struct {
	store Store

	mu       sync.Mutex
	rings    map[string]*turnRing
	capacity int
}

func NewConversationMemory(store Store, ringCapacity int) *ConversationMemory {
	if ringCapacity <= 0 {
		ringCapacity = 50
	}
	return &ConversationMemory{
		store:    store,
		rings:    make(map[string]*turnRing),
		capacity: ringCapacity,
	}
}

func pairKey(userID, channelID string) string {
	return userID + "\x00" + channelID
}

// Record persists a turn and mirrors it into the pair's ring.
func (m *ConversationMemory) Record(ctx context.Context, t Turn) error {
	if err := m.store.AppendTurn(ctx, t); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(t.UserID, t.ChannelID)
	ring, ok := m.rings[key]
	if !ok {
		ring = newTurnRing(m.capacity)
		m.rings[key] = ring
	}
	ring.push(t)
	return nil
}

// Recent returns up to limit newest turns for a pair in chronological
// order. An empty ring (fresh process) is rehydrated from the store first.
func (m *ConversationMemory) Recent(ctx context.Context, userID, channelID string, limit int) ([]Turn, error) {
	key := pairKey(userID, channelID)

	m.mu.Lock()
	ring, ok := m.rings[key]
	m.mu.Unlock()
	if ok {
		return ring.last(limit), nil
	}

	turns, err := m.store.RecentTurns(ctx, userID, channelID, m.capacity)
	if err != nil {
		return nil, fmt.Errorf("rehydrate recent turns: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ring, ok = m.rings[key]
	if !ok {
		ring = newTurnRing(m.capacity)
		for _, t := range turns {
			ring.push(t)
		}
		m.rings[key] = ring
	}
	return ring.last(limit), nil
}

// Forget drops every ring. Used after a full reset so stale windows do not
// survive the wipe.
func (m *ConversationMemory) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rings = make(map[string]*turnRing)
}
