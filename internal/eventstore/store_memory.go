package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riskwatch/riskwatch/internal/common/errors"
)

// MemoryStore is an in-memory event and alert store for tests and
// single-node use.
type MemoryStore struct {
	mu     sync.RWMutex
	events []SecurityEvent
	alerts []SecurityAlert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendEvent stores a copy of the event.
func (s *MemoryStore) AppendEvent(ctx context.Context, ev *SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

// AppendAlert stores a copy of the alert.
func (s *MemoryStore) AppendAlert(ctx context.Context, al *SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *al)
	return nil
}

// QueryEventsByUser returns a user's events at or after since, newest first.
func (s *MemoryStore) QueryEventsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SecurityEvent
	for _, ev := range s.events {
		if ev.UserID == userID && !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// QueryAlertsByUser returns a user's alerts at or after since, newest first.
func (s *MemoryStore) QueryAlertsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SecurityAlert
	for _, al := range s.alerts {
		if al.UserID == userID && !al.Timestamp.Before(since) {
			out = append(out, al)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResolveEvent marks an event resolved and records remediation actions.
func (s *MemoryStore) ResolveEvent(ctx context.Context, eventID string, actions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].EventID == eventID {
			s.events[i].Resolved = true
			s.events[i].Actions = actions
			return nil
		}
	}
	return errors.NotFound("security event")
}

// MarkAlertRead flips an alert's read flag.
func (s *MemoryStore) MarkAlertRead(ctx context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].AlertID == alertID {
			s.alerts[i].Read = true
			return nil
		}
	}
	return errors.NotFound("security alert")
}
