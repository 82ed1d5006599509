// Package device owns the registry of known devices per user: registration,
// fingerprint verification, and explicit trust and revocation state.
package device

import (
	"context"
	"time"

	"github.com/riskwatch/riskwatch/internal/fingerprint"
	"github.com/riskwatch/riskwatch/internal/geo"
)

// Record is a registered device for a user. Fingerprint is immutable once
// set. IsTrusted starts false and only an explicit trust action sets it.
// Records are never hard-deleted; revocation clears IsActive and the row
// stays for audit.
type Record struct {
	DeviceID          string                 `json:"device_id"`
	UserID            string                 `json:"user_id"`
	Fingerprint       string                 `json:"fingerprint"`
	DeviceType        fingerprint.DeviceType `json:"device_type"`
	Browser           string                 `json:"browser"`
	OS                string                 `json:"os"`
	Name              string                 `json:"name"`
	LastKnownIP       string                 `json:"last_known_ip"`
	LastKnownLocation geo.Location           `json:"last_known_location,omitempty"`
	IsActive          bool                   `json:"is_active"`
	IsTrusted         bool                   `json:"is_trusted"`
	CreatedAt         time.Time              `json:"created_at"`
	LastActiveAt      time.Time              `json:"last_active_at"`
}

// Store is the persistence boundary for device records. Implementations
// must order FindByUser results by last_active_at descending.
type Store interface {
	Upsert(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, deviceID string) (*Record, error)
	FindByUser(ctx context.Context, userID string) ([]Record, error)
	FindByFingerprint(ctx context.Context, fp string) ([]Record, error)
}

// SessionInvalidator terminates a device's active sessions. The session
// subsystem is external; revocation calls out through this boundary and
// treats failures as non-fatal.
type SessionInvalidator interface {
	InvalidateDevice(ctx context.Context, userID, deviceID string) error
}

// NoopSessionInvalidator is used when no session subsystem is wired
type NoopSessionInvalidator struct{}

// InvalidateDevice does nothing
func (NoopSessionInvalidator) InvalidateDevice(ctx context.Context, userID, deviceID string) error {
	return nil
}
