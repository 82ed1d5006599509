// Package eventstore is the durable, queryable log of security events and
// alerts. Events are append-only; only resolution state and actions may be
// updated after the fact, and alerts are mutable only in their read flag.
package eventstore

import (
	"context"
	"time"

	"github.com/riskwatch/riskwatch/internal/geo"
)

// EventType classifies a security event.
type EventType string

const (
	EventSuspiciousLogin  EventType = "suspicious_login"
	EventMultipleFailures EventType = "multiple_failures"
	EventUnusualLocation  EventType = "unusual_location"
	EventDeviceChange     EventType = "device_change"
	EventSessionHijack    EventType = "session_hijack"
	EventBruteForce       EventType = "brute_force"
	EventAccountTakeover  EventType = "account_takeover"
)

// Severity grades events and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertCategory classifies a security alert.
type AlertCategory string

const (
	CategoryAuthentication AlertCategory = "authentication"
	CategoryDevice         AlertCategory = "device"
	CategoryLocation       AlertCategory = "location"
	CategoryBehavior       AlertCategory = "behavior"
	CategorySystem         AlertCategory = "system"
)

// EventDetails carries the structured context of a security event.
type EventDetails struct {
	IP           string       `json:"ip,omitempty"`
	Location     geo.Location `json:"location,omitempty"`
	FailureCount int          `json:"failure_count,omitempty"`
	RiskScore    int          `json:"risk_score,omitempty"`
	Indicators   []string     `json:"indicators,omitempty"`
}

// SecurityEvent is one entry in the append-only event log.
type SecurityEvent struct {
	EventID   string       `json:"event_id"`
	UserID    string       `json:"user_id"`
	DeviceID  string       `json:"device_id,omitempty"`
	EventType EventType    `json:"event_type"`
	Severity  Severity     `json:"severity"`
	Details   EventDetails `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
	Resolved  bool         `json:"resolved"`
	Actions   []string     `json:"actions,omitempty"`
}

// SecurityAlert is a user-facing notification persisted alongside events.
type SecurityAlert struct {
	AlertID            string        `json:"alert_id"`
	UserID             string        `json:"user_id"`
	Title              string        `json:"title"`
	Message            string        `json:"message"`
	Severity           Severity      `json:"severity"`
	Category           AlertCategory `json:"category"`
	Timestamp          time.Time     `json:"timestamp"`
	Read               bool          `json:"read"`
	ActionRequired     bool          `json:"action_required"`
	RecommendedActions []string      `json:"recommended_actions,omitempty"`
}

// Store is the persistence boundary for events and alerts. Query results
// are sorted descending by timestamp.
type Store interface {
	AppendEvent(ctx context.Context, ev *SecurityEvent) error
	AppendAlert(ctx context.Context, al *SecurityAlert) error
	QueryEventsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityEvent, error)
	QueryAlertsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityAlert, error)
	ResolveEvent(ctx context.Context, eventID string, actions []string) error
	MarkAlertRead(ctx context.Context, alertID string) error
}
