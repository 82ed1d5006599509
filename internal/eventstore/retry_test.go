package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/riskwatch/riskwatch/internal/common/errors"
)

// flakyStore fails the first failures appends, then delegates.
type flakyStore struct {
	Store
	failures int
	appends  int
}

func (f *flakyStore) AppendEvent(ctx context.Context, ev *SecurityEvent) error {
	f.appends++
	if f.appends <= f.failures {
		return errors.New("connection reset")
	}
	return f.Store.AppendEvent(ctx, ev)
}

func TestDurableStoreRetriesTransientFailures(t *testing.T) {
	inner := &flakyStore{Store: NewMemoryStore(), failures: 2}
	s := NewDurableStore(inner, zap.NewNop())

	err := s.AppendEvent(context.Background(), &SecurityEvent{
		EventID:   "ev-1",
		UserID:    "user1",
		EventType: EventSuspiciousLogin,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("append failed despite retries: %v", err)
	}
	if inner.appends != 3 {
		t.Errorf("append attempts = %d, want 3", inner.appends)
	}

	evs, err := s.QueryEventsByUser(context.Background(), "user1", time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("event not durably recorded, got %d", len(evs))
	}
}

func TestDurableStoreSurfacesExhaustedRetries(t *testing.T) {
	inner := &flakyStore{Store: NewMemoryStore(), failures: 100}
	s := NewDurableStore(inner, zap.NewNop())

	err := s.AppendEvent(context.Background(), &SecurityEvent{EventID: "ev-1", UserID: "user1"})
	if err == nil {
		t.Fatal("exhausted retries must fail the request, not drop the event silently")
	}
	if !apperrors.IsErrorCode(err, apperrors.ErrDatabase) {
		t.Errorf("unexpected error type: %v", err)
	}
	if inner.appends != 3 {
		t.Errorf("append attempts = %d, want 3", inner.appends)
	}
}

func TestDurableStoreStopsOnCancelledContext(t *testing.T) {
	inner := &flakyStore{Store: NewMemoryStore(), failures: 100}
	s := NewDurableStore(inner, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AppendEvent(ctx, &SecurityEvent{EventID: "ev-1", UserID: "user1"})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if inner.appends != 1 {
		t.Errorf("append attempts after cancel = %d, want 1", inner.appends)
	}
}
