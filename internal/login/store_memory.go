package login

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a bounded working set of recent attempts per user.
// When a user's history exceeds the cap the oldest entries are evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	byUser   map[string][]Attempt
	capacity int
}

// NewMemoryStore creates a memory store keeping at most capacity attempts
// per user. A non-positive capacity defaults to 1000.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		byUser:   make(map[string][]Attempt),
		capacity: capacity,
	}
}

// Append stores one attempt, evicting the oldest when over capacity.
func (s *MemoryStore) Append(ctx context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.byUser[a.UserID], *a)
	if len(list) > s.capacity {
		list = list[len(list)-s.capacity:]
	}
	s.byUser[a.UserID] = list
	return nil
}

// FindByUserSince returns a user's attempts at or after since, newest first.
func (s *MemoryStore) FindByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	var out []Attempt
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Timestamp.Before(since) {
			continue
		}
		out = append(out, list[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LastSuccessful returns the most recent successful attempt, or nil.
func (s *MemoryStore) LastSuccessful(ctx context.Context, userID string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Success {
			a := list[i]
			return &a, nil
		}
	}
	return nil, nil
}

// CountFailures counts failed attempts for a user and IP at or after since.
func (s *MemoryStore) CountFailures(ctx context.Context, userID, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.byUser[userID] {
		if !a.Success && a.IP == ip && !a.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}
