package device

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riskwatch/riskwatch/internal/common/errors"
)

// PostgresStore persists device records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed device store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitializeSchema creates the devices table if it does not exist.
func (s *PostgresStore) InitializeSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS devices (
			device_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			device_type VARCHAR(20) NOT NULL,
			browser VARCHAR(100),
			os VARCHAR(100),
			name VARCHAR(200),
			last_known_ip VARCHAR(45),
			country VARCHAR(100),
			city VARCHAR(100),
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT true,
			is_trusted BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_devices_user ON devices(user_id, last_active_at DESC);
		CREATE INDEX IF NOT EXISTS idx_devices_fingerprint ON devices(fingerprint);
	`)
	return err
}

// Upsert inserts or updates a device record by its ID.
func (s *PostgresStore) Upsert(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (
			device_id, user_id, fingerprint, device_type, browser, os, name,
			last_known_ip, country, city, latitude, longitude,
			is_active, is_trusted, created_at, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (device_id) DO UPDATE SET
			last_known_ip = EXCLUDED.last_known_ip,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_active = EXCLUDED.is_active,
			is_trusted = EXCLUDED.is_trusted,
			last_active_at = EXCLUDED.last_active_at
	`, rec.DeviceID, rec.UserID, rec.Fingerprint, rec.DeviceType, rec.Browser, rec.OS,
		rec.Name, rec.LastKnownIP, rec.LastKnownLocation.Country, rec.LastKnownLocation.City,
		rec.LastKnownLocation.Latitude, rec.LastKnownLocation.Longitude,
		rec.IsActive, rec.IsTrusted, rec.CreatedAt, rec.LastActiveAt)
	return err
}

// FindByID returns a single device record.
func (s *PostgresStore) FindByID(ctx context.Context, deviceID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, deviceSelect+` WHERE device_id = $1`, deviceID)
	rec, err := scanDevice(row)
	if err == pgx.ErrNoRows {
		return nil, errors.DeviceNotFound(deviceID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByUser returns all devices for a user, most recently active first.
func (s *PostgresStore) FindByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, deviceSelect+`
		WHERE user_id = $1 ORDER BY last_active_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

// FindByFingerprint returns all devices carrying a fingerprint hash.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, fp string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, deviceSelect+`
		WHERE fingerprint = $1 ORDER BY last_active_at DESC`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

const deviceSelect = `
	SELECT device_id, user_id, fingerprint, device_type, browser, os, name,
	       last_known_ip, country, city, latitude, longitude,
	       is_active, is_trusted, created_at, last_active_at
	FROM devices`

func scanDevice(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.DeviceID, &rec.UserID, &rec.Fingerprint, &rec.DeviceType,
		&rec.Browser, &rec.OS, &rec.Name, &rec.LastKnownIP,
		&rec.LastKnownLocation.Country, &rec.LastKnownLocation.City,
		&rec.LastKnownLocation.Latitude, &rec.LastKnownLocation.Longitude,
		&rec.IsActive, &rec.IsTrusted, &rec.CreatedAt, &rec.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectDevices(rows pgx.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
