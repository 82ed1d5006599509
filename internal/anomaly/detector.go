package anomaly

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/login"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

// historyLimit bounds how many recent attempts feed the baseline.
const historyLimit = 200

// EvalInput is one login to evaluate, together with the facts the caller
// already holds from the registration step. PriorDevices is the user's
// device list as it stood before this login touched the registry.
type EvalInput struct {
	UserID       string
	DeviceID     string
	NewDevice    bool
	PriorDevices []device.Record
	Attempt      login.Attempt
}

// Detector evaluates logins against per-user baselines read from the
// attempt store and emits security events for suspicious activity.
type Detector struct {
	attempts login.Store
	events   eventstore.Store
	cfg      config.RiskConfig
	tracker  *FailureTracker
	logger   *zap.Logger
}

// NewDetector creates a detector over the given stores.
func NewDetector(attempts login.Store, events eventstore.Store, cfg config.RiskConfig, log *zap.Logger) *Detector {
	return &Detector{
		attempts: attempts,
		events:   events,
		cfg:      cfg,
		tracker:  NewFailureTracker(cfg.BruteForceWindow()),
		logger:   logger.WithComponent(log, "anomaly-detector"),
	}
}

// Evaluate scores one login against the user's baseline. When the verdict
// is suspicious a suspicious_login event is appended; failure to append is
// returned to the caller rather than swallowed.
func (d *Detector) Evaluate(ctx context.Context, in EvalInput) (Verdict, error) {
	obs, err := d.observe(ctx, in)
	if err != nil {
		return Verdict{}, err
	}

	verdict := Score(obs, d.cfg.SuspiciousLocationKm)
	if !verdict.IsSuspicious {
		return verdict, nil
	}

	severity := eventstore.SeverityMedium
	if verdict.RiskScore >= highSeverityScore {
		severity = eventstore.SeverityHigh
	}
	ev := &eventstore.SecurityEvent{
		EventID:   uuid.New().String(),
		UserID:    in.UserID,
		DeviceID:  in.DeviceID,
		EventType: eventstore.EventSuspiciousLogin,
		Severity:  severity,
		Details: eventstore.EventDetails{
			IP:         in.Attempt.IP,
			Location:   in.Attempt.Location,
			RiskScore:  verdict.RiskScore,
			Indicators: verdict.Reasons,
		},
		Timestamp: in.Attempt.Timestamp,
	}
	if err := d.events.AppendEvent(ctx, ev); err != nil {
		return Verdict{}, err
	}
	metrics.AnomaliesFlaggedTotal.WithLabelValues(string(severity)).Inc()

	d.logger.Warn("suspicious login",
		zap.String("user_id", in.UserID),
		zap.String("device_id", in.DeviceID),
		zap.Int("risk_score", verdict.RiskScore),
		zap.Strings("reasons", verdict.Reasons))
	return verdict, nil
}

// DetectBruteForce checks the trailing window of failures for a user and
// IP pair. Reaching the threshold appends one brute_force event for this
// evaluation and returns true.
func (d *Detector) DetectBruteForce(ctx context.Context, userID, ip string, at time.Time) (bool, error) {
	since := at.Add(-d.cfg.BruteForceWindow())
	count, err := d.attempts.CountFailures(ctx, userID, ip, since)
	if err != nil {
		return false, err
	}
	if count < d.cfg.MaxFailedAttempts {
		return false, nil
	}

	ev := &eventstore.SecurityEvent{
		EventID:   uuid.New().String(),
		UserID:    userID,
		EventType: eventstore.EventBruteForce,
		Severity:  eventstore.SeverityHigh,
		Details: eventstore.EventDetails{
			IP:           ip,
			FailureCount: count,
			Indicators:   []string{"failure threshold reached in trailing window"},
		},
		Timestamp: at,
	}
	if err := d.events.AppendEvent(ctx, ev); err != nil {
		return false, err
	}
	metrics.BruteForceDetectionsTotal.Inc()

	d.logger.Warn("brute force detected",
		zap.String("user_id", userID),
		zap.String("ip", ip),
		zap.Int("failure_count", count))
	return true, nil
}

// RecordAnonymousFailure tracks a pre-authentication failure keyed only
// by source IP and reports whether the IP crossed the failure threshold.
func (d *Detector) RecordAnonymousFailure(ip string, at time.Time) bool {
	return d.tracker.Record(ip, at) >= d.cfg.MaxFailedAttempts
}

// ResetAnonymousFailures clears the IP-keyed window after a success.
func (d *Detector) ResetAnonymousFailures(ip string) {
	d.tracker.Reset(ip)
}

func (d *Detector) observe(ctx context.Context, in EvalInput) (Observation, error) {
	obs := Observation{
		IP:          in.Attempt.IP,
		Location:    in.Attempt.Location,
		Hour:        in.Attempt.Timestamp.UTC().Hour(),
		KnownDevice: !in.NewDevice,
	}

	for _, rec := range in.PriorDevices {
		if !rec.IsActive {
			continue
		}
		obs.PriorDeviceCount++
		if !rec.LastKnownLocation.IsZero() {
			obs.DeviceLocations = append(obs.DeviceLocations, rec.LastKnownLocation)
		}
	}

	weekAgo := in.Attempt.Timestamp.Add(-7 * 24 * time.Hour)
	history, err := d.attempts.FindByUserSince(ctx, in.UserID, weekAgo, historyLimit)
	if err != nil {
		return Observation{}, err
	}

	// The attempt under evaluation is already recorded; exclude it so the
	// baseline only reflects what came before.
	var hours []int
	hourAgo := in.Attempt.Timestamp.Add(-time.Hour)
	for _, a := range history {
		if a.AttemptID == in.Attempt.AttemptID {
			continue
		}
		if a.Success {
			if obs.LastSuccessIP == "" {
				obs.LastSuccessIP = a.IP
				obs.LastLocation = a.Location
			}
			hours = append(hours, a.Timestamp.UTC().Hour())
		} else if !a.Timestamp.Before(hourAgo) {
			obs.RecentFailures++
		}
	}
	obs.MeanLoginHour, obs.HasLoginHistory = MeanLoginHour(hours)
	return obs, nil
}
