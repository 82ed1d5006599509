// Package login records authentication attempt telemetry and serves the
// recent-history queries the anomaly and assessment layers read from.
package login

import (
	"context"
	"time"

	"github.com/riskwatch/riskwatch/internal/geo"
)

// Attempt is one observed authentication attempt. Reason carries the
// authenticator's failure code and is empty on success.
type Attempt struct {
	AttemptID string       `json:"attempt_id"`
	UserID    string       `json:"user_id"`
	DeviceID  string       `json:"device_id,omitempty"`
	IP        string       `json:"ip"`
	Location  geo.Location `json:"location,omitempty"`
	UserAgent string       `json:"user_agent,omitempty"`
	Success   bool         `json:"success"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Store is the persistence boundary for login attempts.
type Store interface {
	Append(ctx context.Context, a *Attempt) error
	FindByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Attempt, error)
	LastSuccessful(ctx context.Context, userID string) (*Attempt, error)
	CountFailures(ctx context.Context, userID, ip string, since time.Time) (int, error)
}
