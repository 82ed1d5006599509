package anomaly

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/geo"
	"github.com/riskwatch/riskwatch/internal/login"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxFailedAttempts:    5,
		BruteForceWindowMin:  60,
		LowThreshold:         30,
		MediumThreshold:      60,
		HighThreshold:        80,
		SuspiciousLocationKm: 100,
		EventWindowDays:      7,
	}
}

func seedFailures(t *testing.T, attempts login.Store, userID, ip string, n int, start time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := attempts.Append(context.Background(), &login.Attempt{
			AttemptID: fmt.Sprintf("%s-%d-%d", ip, start.UnixNano(), i),
			UserID:    userID,
			IP:        ip,
			Success:   false,
			Timestamp: start.Add(time.Duration(i) * 2 * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed failure: %v", err)
		}
	}
}

func TestDetectBruteForceThreshold(t *testing.T) {
	attempts := login.NewMemoryStore(0)
	events := eventstore.NewMemoryStore()
	d := NewDetector(attempts, events, testRiskConfig(), zap.NewNop())

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := base.Add(10 * time.Minute)

	// One below the threshold: no detection, no event.
	seedFailures(t, attempts, "user1", "1.2.3.4", 4, base)
	hit, err := d.DetectBruteForce(context.Background(), "user1", "1.2.3.4", at)
	if err != nil {
		t.Fatalf("DetectBruteForce: %v", err)
	}
	if hit {
		t.Error("4 failures triggered detection, threshold is 5")
	}
	evs, _ := events.QueryEventsByUser(context.Background(), "user1", time.Time{}, 10)
	if len(evs) != 0 {
		t.Fatalf("event appended below threshold: %+v", evs)
	}

	// The fifth failure within ten minutes trips it.
	seedFailures(t, attempts, "user1", "1.2.3.4", 1, base.Add(9*time.Minute))
	hit, err = d.DetectBruteForce(context.Background(), "user1", "1.2.3.4", at)
	if err != nil {
		t.Fatalf("DetectBruteForce: %v", err)
	}
	if !hit {
		t.Fatal("5 failures in window not detected")
	}

	evs, _ = events.QueryEventsByUser(context.Background(), "user1", time.Time{}, 10)
	if len(evs) != 1 {
		t.Fatalf("expected exactly one brute_force event, got %d", len(evs))
	}
	if evs[0].EventType != eventstore.EventBruteForce {
		t.Errorf("event type = %s", evs[0].EventType)
	}
	if evs[0].Severity != eventstore.SeverityHigh {
		t.Errorf("severity = %s, want high", evs[0].Severity)
	}
	if evs[0].Details.FailureCount != 5 {
		t.Errorf("failure count = %d, want 5", evs[0].Details.FailureCount)
	}
}

func TestDetectBruteForceIgnoresOtherIPs(t *testing.T) {
	attempts := login.NewMemoryStore(0)
	events := eventstore.NewMemoryStore()
	d := NewDetector(attempts, events, testRiskConfig(), zap.NewNop())

	base := time.Now().UTC().Add(-20 * time.Minute)
	seedFailures(t, attempts, "user1", "1.2.3.4", 3, base)
	seedFailures(t, attempts, "user1", "5.6.7.8", 3, base)

	hit, err := d.DetectBruteForce(context.Background(), "user1", "1.2.3.4", time.Now().UTC())
	if err != nil {
		t.Fatalf("DetectBruteForce: %v", err)
	}
	if hit {
		t.Error("failures from a different IP counted toward the pair window")
	}
}

func TestEvaluateEmitsSuspiciousLoginEvent(t *testing.T) {
	attempts := login.NewMemoryStore(0)
	events := eventstore.NewMemoryStore()
	d := NewDetector(attempts, events, testRiskConfig(), zap.NewNop())

	now := time.Now().UTC()
	prev := &login.Attempt{
		AttemptID: "prev",
		UserID:    "user2",
		IP:        "10.0.0.1",
		Location:  geo.Location{Country: "Canada", City: "Toronto"},
		Success:   true,
		Timestamp: now.Add(-time.Hour),
	}
	if err := attempts.Append(context.Background(), prev); err != nil {
		t.Fatal(err)
	}

	verdict, err := d.Evaluate(context.Background(), EvalInput{
		UserID:    "user2",
		DeviceID:  "dev-new",
		NewDevice: true,
		PriorDevices: []device.Record{{
			DeviceID:          "dev-old",
			UserID:            "user2",
			IsActive:          true,
			LastKnownLocation: geo.Location{Country: "Canada", City: "Toronto"},
		}},
		Attempt: login.Attempt{
			AttemptID: "current",
			UserID:    "user2",
			IP:        "203.0.113.50",
			Location:  geo.Location{Country: "Russia", City: "Moscow"},
			Success:   true,
			Timestamp: now,
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !verdict.IsSuspicious {
		t.Fatalf("verdict not suspicious: %+v", verdict)
	}

	evs, _ := events.QueryEventsByUser(context.Background(), "user2", time.Time{}, 10)
	if len(evs) != 1 {
		t.Fatalf("expected one suspicious_login event, got %d", len(evs))
	}
	if evs[0].EventType != eventstore.EventSuspiciousLogin {
		t.Errorf("event type = %s", evs[0].EventType)
	}
	if evs[0].Details.RiskScore != verdict.RiskScore {
		t.Errorf("event risk score = %d, verdict = %d", evs[0].Details.RiskScore, verdict.RiskScore)
	}
}

func TestEvaluateBenignLoginEmitsNothing(t *testing.T) {
	attempts := login.NewMemoryStore(0)
	events := eventstore.NewMemoryStore()
	d := NewDetector(attempts, events, testRiskConfig(), zap.NewNop())

	verdict, err := d.Evaluate(context.Background(), EvalInput{
		UserID:    "user3",
		DeviceID:  "dev-first",
		NewDevice: true,
		Attempt: login.Attempt{
			AttemptID: "first",
			UserID:    "user3",
			IP:        "192.0.2.10",
			Success:   true,
			Timestamp: time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if verdict.RiskScore != 0 || verdict.IsSuspicious {
		t.Errorf("first login verdict = %+v, want zero score", verdict)
	}

	evs, _ := events.QueryEventsByUser(context.Background(), "user3", time.Time{}, 10)
	if len(evs) != 0 {
		t.Errorf("benign login appended events: %+v", evs)
	}
}
