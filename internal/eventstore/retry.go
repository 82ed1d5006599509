package eventstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/common/logger"
)

const (
	appendMaxRetries   = 3
	appendInitialDelay = 100 * time.Millisecond
)

// DurableStore wraps a Store and retries failed appends with exponential
// backoff. An event must never be silently dropped; once retries exhaust
// the failure surfaces to the caller as fatal for that request. Reads and
// updates pass through unretried.
type DurableStore struct {
	inner  Store
	logger *zap.Logger
}

// NewDurableStore wraps inner with append retry behavior.
func NewDurableStore(inner Store, log *zap.Logger) *DurableStore {
	return &DurableStore{
		inner:  inner,
		logger: logger.WithComponent(log, "event-store"),
	}
}

// AppendEvent stores an event, retrying on failure.
func (s *DurableStore) AppendEvent(ctx context.Context, ev *SecurityEvent) error {
	err := s.withRetry(ctx, "append event", func() error {
		return s.inner.AppendEvent(ctx, ev)
	})
	if err != nil {
		return errors.DatabaseError("append security event", err)
	}
	return nil
}

// AppendAlert stores an alert, retrying on failure.
func (s *DurableStore) AppendAlert(ctx context.Context, al *SecurityAlert) error {
	err := s.withRetry(ctx, "append alert", func() error {
		return s.inner.AppendAlert(ctx, al)
	})
	if err != nil {
		return errors.DatabaseError("append security alert", err)
	}
	return nil
}

// QueryEventsByUser passes through to the wrapped store.
func (s *DurableStore) QueryEventsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityEvent, error) {
	return s.inner.QueryEventsByUser(ctx, userID, since, limit)
}

// QueryAlertsByUser passes through to the wrapped store.
func (s *DurableStore) QueryAlertsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityAlert, error) {
	return s.inner.QueryAlertsByUser(ctx, userID, since, limit)
}

// ResolveEvent passes through to the wrapped store.
func (s *DurableStore) ResolveEvent(ctx context.Context, eventID string, actions []string) error {
	return s.inner.ResolveEvent(ctx, eventID, actions)
}

// MarkAlertRead passes through to the wrapped store.
func (s *DurableStore) MarkAlertRead(ctx context.Context, alertID string) error {
	return s.inner.MarkAlertRead(ctx, alertID)
}

func (s *DurableStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := appendInitialDelay
	for attempt := 1; attempt <= appendMaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("store append failed",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt == appendMaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
