package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/fingerprint"
	"github.com/riskwatch/riskwatch/internal/geo"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

const deviceCacheTTL = 15 * time.Minute

// Registry manages device lifecycle for users. It wraps a Store with a
// Redis hot cache for by-ID lookups and notifies the session subsystem
// on revocation.
type Registry struct {
	store    Store
	redis    *redis.Client
	sessions SessionInvalidator
	logger   *zap.Logger
}

// NewRegistry creates a device registry. redis and sessions may be nil.
func NewRegistry(store Store, redisClient *redis.Client, sessions SessionInvalidator, log *zap.Logger) *Registry {
	if sessions == nil {
		sessions = NoopSessionInvalidator{}
	}
	return &Registry{
		store:    store,
		redis:    redisClient,
		sessions: sessions,
		logger:   logger.WithComponent(log, "device-registry"),
	}
}

// Register records a device for a user from its raw signals. If the user
// already has an active device with the same fingerprint the existing
// record is refreshed and returned instead of creating a duplicate.
func (r *Registry) Register(ctx context.Context, userID, ip string, loc geo.Location, signals fingerprint.Signals) (*Record, bool, error) {
	if userID == "" {
		return nil, false, errors.ValidationError("userId is required")
	}

	fp := fingerprint.Generate(signals)
	if fp.Degraded {
		r.logger.Warn("degraded fingerprint",
			zap.String("user_id", userID),
			zap.Strings("missing_signals", fp.Missing))
	}

	existing, err := r.store.FindByFingerprint(ctx, fp.Hash)
	if err != nil {
		return nil, false, errors.DatabaseError("find device by fingerprint", err)
	}
	for i := range existing {
		if existing[i].UserID != userID || !existing[i].IsActive {
			continue
		}
		rec := existing[i]
		rec.LastActiveAt = time.Now().UTC()
		rec.LastKnownIP = ip
		if !loc.IsZero() {
			rec.LastKnownLocation = loc
		}
		if err := r.store.Upsert(ctx, &rec); err != nil {
			return nil, false, errors.DatabaseError("refresh device", err)
		}
		r.cachePut(ctx, &rec)
		return &rec, false, nil
	}

	now := time.Now().UTC()
	rec := &Record{
		DeviceID:          uuid.New().String(),
		UserID:            userID,
		Fingerprint:       fp.Hash,
		DeviceType:        fingerprint.ClassifyDevice(signals.UserAgent),
		Browser:           fingerprint.ParseBrowser(signals.UserAgent),
		OS:                fingerprint.ParseOS(signals.UserAgent),
		Name:              fingerprint.DeviceName(signals.UserAgent),
		LastKnownIP:       ip,
		LastKnownLocation: loc,
		IsActive:          true,
		IsTrusted:         false,
		CreatedAt:         now,
		LastActiveAt:      now,
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		return nil, false, errors.DatabaseError("register device", err)
	}
	r.cachePut(ctx, rec)
	metrics.DevicesRegisteredTotal.Inc()

	r.logger.Info("device registered",
		zap.String("user_id", userID),
		zap.String("device_id", rec.DeviceID),
		zap.String("device_type", string(rec.DeviceType)))
	return rec, true, nil
}

// Verify checks a presented fingerprint against a registered device. It
// returns false for unknown, revoked, or mismatching devices. A match
// refreshes the device's last-active timestamp.
func (r *Registry) Verify(ctx context.Context, deviceID, presentedFP string) (bool, error) {
	rec, err := r.Get(ctx, deviceID)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if !rec.IsActive {
		return false, nil
	}
	if rec.Fingerprint != presentedFP {
		r.logger.Warn("fingerprint mismatch",
			zap.String("device_id", deviceID),
			zap.String("user_id", rec.UserID))
		return false, nil
	}

	rec.LastActiveAt = time.Now().UTC()
	if err := r.store.Upsert(ctx, rec); err != nil {
		return false, errors.DatabaseError("touch device", err)
	}
	r.cachePut(ctx, rec)
	return true, nil
}

// Trust marks a device as explicitly trusted by the user.
func (r *Registry) Trust(ctx context.Context, userID, deviceID string) (*Record, error) {
	rec, err := r.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, errors.DeviceRevoked(deviceID)
	}
	rec.IsTrusted = true
	if err := r.store.Upsert(ctx, rec); err != nil {
		return nil, errors.DatabaseError("trust device", err)
	}
	r.cachePut(ctx, rec)
	r.logger.Info("device trusted",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID))
	return rec, nil
}

// Revoke deactivates a device and asks the session subsystem to drop its
// sessions. The record stays in the store for audit. Revoking an already
// revoked device is a no-op.
func (r *Registry) Revoke(ctx context.Context, userID, deviceID string) (*Record, error) {
	rec, err := r.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return rec, nil
	}
	rec.IsActive = false
	rec.IsTrusted = false
	if err := r.store.Upsert(ctx, rec); err != nil {
		return nil, errors.DatabaseError("revoke device", err)
	}
	r.cachePut(ctx, rec)

	if err := r.sessions.InvalidateDevice(ctx, userID, deviceID); err != nil {
		r.logger.Error("session invalidation failed",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}

	r.logger.Info("device revoked",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID))
	return rec, nil
}

// List returns all of a user's devices, revoked ones included, most
// recently active first.
func (r *Registry) List(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, errors.ValidationError("userId is required")
	}
	recs, err := r.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, errors.DatabaseError("list devices", err)
	}
	return recs, nil
}

// Get fetches a device by ID, consulting the Redis cache first.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Record, error) {
	if rec := r.cacheGet(ctx, deviceID); rec != nil {
		return rec, nil
	}
	rec, err := r.store.FindByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	r.cachePut(ctx, rec)
	return rec, nil
}

func (r *Registry) ownedDevice(ctx context.Context, userID, deviceID string) (*Record, error) {
	if userID == "" {
		return nil, errors.ValidationError("userId is required")
	}
	rec, err := r.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, errors.DeviceNotFound(deviceID)
	}
	return rec, nil
}

func (r *Registry) cacheGet(ctx context.Context, deviceID string) *Record {
	if r.redis == nil {
		return nil
	}
	data, err := r.redis.Get(ctx, deviceCacheKey(deviceID)).Bytes()
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return &rec
}

func (r *Registry) cachePut(ctx context.Context, rec *Record) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, deviceCacheKey(rec.DeviceID), data, deviceCacheTTL).Err(); err != nil {
		r.logger.Debug("device cache write failed", zap.Error(err))
	}
}

func deviceCacheKey(deviceID string) string {
	return fmt.Sprintf("riskwatch:device:%s", deviceID)
}
