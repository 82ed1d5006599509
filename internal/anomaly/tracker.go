package anomaly

import (
	"sync"
	"time"
)

// FailureTracker keeps an in-memory sliding window of failure timestamps
// per key. It serves the pre-authentication path where no user identity
// exists yet and only the source IP can key the window. The durable
// attempt store stays authoritative for per-user windows.
type FailureTracker struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	window   time.Duration
}

// NewFailureTracker creates a tracker with the given sliding window.
func NewFailureTracker(window time.Duration) *FailureTracker {
	return &FailureTracker{
		failures: make(map[string][]time.Time),
		window:   window,
	}
}

// Record adds a failure for key at time t and returns how many failures
// remain inside the trailing window ending at t.
func (t *FailureTracker) Record(key string, at time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := append(t.failures[key], at)
	list = prune(list, at.Add(-t.window))
	t.failures[key] = list
	return len(list)
}

// Count returns the number of failures for key inside the trailing window
// ending at now, pruning expired entries as a side effect.
func (t *FailureTracker) Count(key string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := prune(t.failures[key], now.Add(-t.window))
	if len(list) == 0 {
		delete(t.failures, key)
	} else {
		t.failures[key] = list
	}
	return len(list)
}

// Reset clears the window for key, typically after a successful login.
func (t *FailureTracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, key)
}

func prune(list []time.Time, cutoff time.Time) []time.Time {
	kept := list[:0]
	for _, ts := range list {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
