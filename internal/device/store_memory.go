package device

import (
	"context"
	"sort"
	"sync"

	"github.com/riskwatch/riskwatch/internal/common/errors"
)

// MemoryStore is an in-memory device store for tests and single-node use.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]Record
}

// NewMemoryStore creates an empty in-memory device store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]Record)}
}

// Upsert stores a copy of the record keyed by device ID.
func (s *MemoryStore) Upsert(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[rec.DeviceID] = *rec
	return nil
}

// FindByID returns a device by its ID.
func (s *MemoryStore) FindByID(ctx context.Context, deviceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[deviceID]
	if !ok {
		return nil, errors.DeviceNotFound(deviceID)
	}
	return &rec, nil
}

// FindByUser returns a user's devices, most recently active first.
func (s *MemoryStore) FindByUser(ctx context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []Record
	for _, rec := range s.devices {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastActiveAt.After(recs[j].LastActiveAt)
	})
	return recs, nil
}

// FindByFingerprint returns all devices with the given fingerprint hash.
func (s *MemoryStore) FindByFingerprint(ctx context.Context, fp string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []Record
	for _, rec := range s.devices {
		if rec.Fingerprint == fp {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastActiveAt.After(recs[j].LastActiveAt)
	})
	return recs, nil
}
