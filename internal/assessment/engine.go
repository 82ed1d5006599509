package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

const (
	eventQueryLimit    = 500
	assessmentCacheTTL = 24 * time.Hour
)

// Notifier delivers a persisted alert to external channels.
type Notifier interface {
	Send(ctx context.Context, al *eventstore.SecurityAlert)
}

// Engine computes and holds the current risk assessment per user. The
// event log is authoritative; the held snapshot is a cache that every
// recomputation supersedes.
type Engine struct {
	events   eventstore.Store
	notifier Notifier
	cfg      config.RiskConfig
	redis    *redis.Client
	logger   *zap.Logger

	mu      sync.RWMutex
	current map[string]*Assessment
}

// NewEngine creates a risk assessment engine. redis and notifier may be nil.
func NewEngine(events eventstore.Store, notifier Notifier, cfg config.RiskConfig, redisClient *redis.Client, log *zap.Logger) *Engine {
	return &Engine{
		events:   events,
		notifier: notifier,
		cfg:      cfg,
		redis:    redisClient,
		logger:   logger.WithComponent(log, "risk-engine"),
		current:  make(map[string]*Assessment),
	}
}

// Recompute rebuilds a user's assessment from the trailing event window.
// High and critical outcomes persist a SecurityAlert and hand it to the
// notifier. Inability to read the event log is surfaced as a scoring
// failure, never as a low-risk verdict.
func (e *Engine) Recompute(ctx context.Context, userID string) (*Assessment, error) {
	if userID == "" {
		return nil, errors.ValidationError("userId is required")
	}

	since := time.Now().UTC().Add(-e.cfg.EventWindow())
	events, err := e.events.QueryEventsByUser(ctx, userID, since, eventQueryLimit)
	if err != nil {
		return nil, errors.ScoringFailed("query event window", err)
	}

	factors := ComputeFactors(events)
	score := ScoreFactors(factors)
	level := ClassifyLevel(score, e.cfg)

	assessment := &Assessment{
		UserID:           userID,
		OverallRiskScore: score,
		RiskLevel:        level,
		Factors:          factors,
		Recommendations:  Recommendations(level),
		LastUpdated:      time.Now().UTC(),
	}

	e.mu.Lock()
	e.current[userID] = assessment
	e.mu.Unlock()
	e.cachePut(ctx, assessment)
	metrics.RiskRecomputesTotal.WithLabelValues(string(level)).Inc()

	if level == LevelHigh || level == LevelCritical {
		if err := e.raiseAlert(ctx, assessment); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("risk recomputed",
		zap.String("user_id", userID),
		zap.Int("score", score),
		zap.String("level", string(level)),
		zap.Int("event_count", len(events)))
	return assessment, nil
}

// Current returns the held assessment for a user, recomputing when none
// exists yet in this process or in the cache.
func (e *Engine) Current(ctx context.Context, userID string) (*Assessment, error) {
	e.mu.RLock()
	a, ok := e.current[userID]
	e.mu.RUnlock()
	if ok {
		return a, nil
	}
	if cached := e.cacheGet(ctx, userID); cached != nil {
		e.mu.Lock()
		e.current[userID] = cached
		e.mu.Unlock()
		return cached, nil
	}
	return e.Recompute(ctx, userID)
}

func (e *Engine) raiseAlert(ctx context.Context, a *Assessment) error {
	al := &eventstore.SecurityAlert{
		AlertID: uuid.New().String(),
		UserID:  a.UserID,
		Title:   fmt.Sprintf("Elevated account risk: %s", a.RiskLevel),
		Message: fmt.Sprintf(
			"The account risk score is %d (%s) based on security activity in the last %d days.",
			a.OverallRiskScore, a.RiskLevel, e.cfg.EventWindowDays),
		Severity:           eventstore.Severity(a.RiskLevel),
		Category:           eventstore.CategoryAuthentication,
		Timestamp:          a.LastUpdated,
		ActionRequired:     true,
		RecommendedActions: a.Recommendations,
	}
	if err := e.events.AppendAlert(ctx, al); err != nil {
		return err
	}
	if e.notifier != nil {
		e.notifier.Send(ctx, al)
	}
	return nil
}

func (e *Engine) cacheGet(ctx context.Context, userID string) *Assessment {
	if e.redis == nil {
		return nil
	}
	data, err := e.redis.Get(ctx, assessmentCacheKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	var a Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	return &a
}

func (e *Engine) cachePut(ctx context.Context, a *Assessment) {
	if e.redis == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := e.redis.Set(ctx, assessmentCacheKey(a.UserID), data, assessmentCacheTTL).Err(); err != nil {
		e.logger.Debug("assessment cache write failed", zap.Error(err))
	}
}

func assessmentCacheKey(userID string) string {
	return fmt.Sprintf("riskwatch:assessment:%s", userID)
}
