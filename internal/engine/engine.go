// Package engine orchestrates the risk pipeline for one login: device
// registration, attempt recording, anomaly evaluation, brute force
// detection, and risk recomputation.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/anomaly"
	"github.com/riskwatch/riskwatch/internal/assessment"
	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/fingerprint"
	"github.com/riskwatch/riskwatch/internal/geo"
	"github.com/riskwatch/riskwatch/internal/login"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

// LoginInput is the telemetry for one observed authentication attempt.
// Reason is the authenticator's failure code, if it reported one.
type LoginInput struct {
	UserID    string              `json:"user_id"`
	IP        string              `json:"ip"`
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	Timestamp time.Time           `json:"timestamp,omitempty"`
	Signals   fingerprint.Signals `json:"signals"`
	Location  geo.Location        `json:"location,omitempty"`
}

// LoginResult is the verdict for one processed login.
type LoginResult struct {
	AttemptID  string                 `json:"attempt_id"`
	Device     *device.Record         `json:"device"`
	NewDevice  bool                   `json:"new_device"`
	Verdict    anomaly.Verdict        `json:"verdict"`
	BruteForce bool                   `json:"brute_force"`
	Assessment *assessment.Assessment `json:"assessment"`
}

// Service runs the end-to-end pipeline. Logins for different users are
// processed in parallel; logins for the same user are serialized through
// a per-user lock so the recompute that follows each append reads its own
// write.
type Service struct {
	registry *device.Registry
	detector *anomaly.Detector
	risk     *assessment.Engine
	attempts login.Store
	resolver geo.Resolver
	cfg      config.RiskConfig
	logger   *zap.Logger

	userLocks sync.Map
}

// New creates the pipeline service. resolver may be nil when no GeoIP
// database is configured.
func New(registry *device.Registry, detector *anomaly.Detector, risk *assessment.Engine,
	attempts login.Store, resolver geo.Resolver, cfg config.RiskConfig, log *zap.Logger) *Service {
	return &Service{
		registry: registry,
		detector: detector,
		risk:     risk,
		attempts: attempts,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.WithComponent(log, "risk-pipeline"),
	}
}

// ProcessLogin runs the full pipeline for one attempt. Store failures are
// fatal for the request; an attempt is never partially recorded and a
// scoring failure is never reported as low risk.
func (s *Service) ProcessLogin(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.UserID == "" {
		return nil, errors.ValidationError("userId is required")
	}
	if in.IP == "" {
		return nil, errors.ValidationError("ip is required")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	if in.Location.IsZero() && s.resolver != nil {
		if loc, err := s.resolver.Resolve(in.IP); err == nil {
			in.Location = loc
		}
	}

	unlock := s.lockUser(in.UserID)
	defer unlock()

	// Snapshot the device list before registration touches it so the
	// location baseline predates this login.
	prior, err := s.registry.List(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	rec, isNew, err := s.registry.Register(ctx, in.UserID, in.IP, in.Location, in.Signals)
	if err != nil {
		return nil, err
	}

	attempt := login.Attempt{
		AttemptID: uuid.New().String(),
		UserID:    in.UserID,
		DeviceID:  rec.DeviceID,
		IP:        in.IP,
		Location:  in.Location,
		UserAgent: in.Signals.UserAgent,
		Success:   in.Success,
		Reason:    in.Reason,
		Timestamp: in.Timestamp,
	}
	if err := s.attempts.Append(ctx, &attempt); err != nil {
		return nil, errors.DatabaseError("record login attempt", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues(outcome(in.Success)).Inc()

	result := &LoginResult{
		AttemptID: attempt.AttemptID,
		Device:    rec,
		NewDevice: isNew,
	}

	if !in.Success {
		bruteForce, err := s.detector.DetectBruteForce(ctx, in.UserID, in.IP, in.Timestamp)
		if err != nil {
			return nil, errors.ScoringFailed("brute force detection", err)
		}
		result.BruteForce = bruteForce
	}

	verdict, err := s.detector.Evaluate(ctx, anomaly.EvalInput{
		UserID:       in.UserID,
		DeviceID:     rec.DeviceID,
		NewDevice:    isNew,
		PriorDevices: prior,
		Attempt:      attempt,
	})
	if err != nil {
		return nil, errors.ScoringFailed("anomaly evaluation", err)
	}
	result.Verdict = verdict

	riskAssessment, err := s.risk.Recompute(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	result.Assessment = riskAssessment

	s.logger.Info("login processed",
		zap.String("user_id", in.UserID),
		zap.String("device_id", rec.DeviceID),
		zap.Bool("success", in.Success),
		zap.Bool("suspicious", verdict.IsSuspicious),
		zap.Bool("brute_force", result.BruteForce),
		zap.Int("risk_score", riskAssessment.OverallRiskScore))
	return result, nil
}

// ProcessAnonymousFailure records a failed attempt with no resolvable
// user identity and reports whether the source IP crossed the failure
// threshold. The attempt is appended with an empty user id so the
// IP-keyed window survives restarts and stays visible to audit queries.
func (s *Service) ProcessAnonymousFailure(ctx context.Context, ip string, at time.Time, reason string) (bool, error) {
	if ip == "" {
		return false, errors.ValidationError("ip is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	attempt := login.Attempt{
		AttemptID: uuid.New().String(),
		IP:        ip,
		Success:   false,
		Reason:    reason,
		Timestamp: at,
	}
	if err := s.attempts.Append(ctx, &attempt); err != nil {
		return false, errors.DatabaseError("record anonymous attempt", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()

	if s.detector.RecordAnonymousFailure(ip, at) {
		s.logger.Warn("anonymous failure threshold reached", zap.String("ip", ip))
		return true, nil
	}

	// The tracker is process-local; the store answers for failures that
	// predate this process.
	n, err := s.attempts.CountFailures(ctx, "", ip, at.Add(-s.cfg.BruteForceWindow()))
	if err != nil {
		return false, errors.DatabaseError("count anonymous failures", err)
	}
	if n >= s.cfg.MaxFailedAttempts {
		s.logger.Warn("anonymous failure threshold reached", zap.String("ip", ip))
		return true, nil
	}
	return false, nil
}

func (s *Service) lockUser(userID string) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
