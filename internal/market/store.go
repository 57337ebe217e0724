package market

import (
	"slices"
	"sync"
	"time"

	"crypto-market-feed/internal/model"
)

// Store is the single owner of the current snapshot and connection state.
// Every write replaces the snapshot wholesale.
type Store struct {
	mu        sync.RWMutex
	snapshot  model.MarketSnapshot
	state     model.ConnectionState
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{
		snapshot: model.MarketSnapshot{},
		state:    model.Disconnected,
	}
}

// Replace overwrites the current snapshot.
func (s *Store) Replace(snapshot model.MarketSnapshot) {
	snapshot = cloneSnapshot(snapshot)

	s.mu.Lock()
	s.snapshot = snapshot
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Offer applies a polled snapshot together with the state it implies, unless
// the stream is currently authoritative.
func (s *Store) Offer(snapshot model.MarketSnapshot, state model.ConnectionState) bool {
	snapshot = cloneSnapshot(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.ConnectedStreaming {
		return false
	}
	s.snapshot = snapshot
	s.state = state
	s.updatedAt = time.Now()
	return true
}

// Snapshot returns a copy of the current snapshot. It is never nil.
func (s *Store) Snapshot() model.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snapshot)
}

func (s *Store) SetState(state model.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// CompareAndSetState moves to `to` only if the current state is `from`.
func (s *Store) CompareAndSetState(from, to model.ConnectionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Store) State() model.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UpdatedAt is the zero time until the first snapshot lands.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func cloneSnapshot(snapshot model.MarketSnapshot) model.MarketSnapshot {
	if snapshot == nil {
		return model.MarketSnapshot{}
	}
	return slices.Clone(snapshot)
}
