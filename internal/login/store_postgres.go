package login

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists login attempts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed attempt store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitializeSchema creates the login_attempts table if it does not exist.
func (s *PostgresStore) InitializeSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS login_attempts (
			attempt_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			device_id UUID,
			ip VARCHAR(45) NOT NULL,
			country VARCHAR(100),
			city VARCHAR(100),
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			user_agent TEXT,
			success BOOLEAN NOT NULL,
			reason VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_user_time ON login_attempts(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_attempts_user_ip ON login_attempts(user_id, ip, created_at DESC);
	`)
	return err
}

// Append stores one attempt.
func (s *PostgresStore) Append(ctx context.Context, a *Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO login_attempts (
			attempt_id, user_id, device_id, ip, country, city, latitude, longitude,
			user_agent, success, reason, created_at
		) VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)
	`, a.AttemptID, a.UserID, a.DeviceID, a.IP,
		a.Location.Country, a.Location.City, a.Location.Latitude, a.Location.Longitude,
		a.UserAgent, a.Success, a.Reason, a.Timestamp)
	return err
}

// FindByUserSince returns a user's attempts at or after since, newest first.
func (s *PostgresStore) FindByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Attempt, error) {
	rows, err := s.pool.Query(ctx, attemptSelect+`
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// LastSuccessful returns the most recent successful attempt for a user,
// or nil when there is none.
func (s *PostgresStore) LastSuccessful(ctx context.Context, userID string) (*Attempt, error) {
	row := s.pool.QueryRow(ctx, attemptSelect+`
		WHERE user_id = $1 AND success = true
		ORDER BY created_at DESC
		LIMIT 1`, userID)
	a, err := scanAttempt(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountFailures counts failed attempts for a user and IP at or after since.
func (s *PostgresStore) CountFailures(ctx context.Context, userID, ip string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE user_id = $1 AND ip = $2 AND success = false AND created_at >= $3
	`, userID, ip, since).Scan(&n)
	return n, err
}

const attemptSelect = `
	SELECT attempt_id, user_id, COALESCE(device_id::text, ''), ip,
	       country, city, latitude, longitude, user_agent, success,
	       COALESCE(reason, ''), created_at
	FROM login_attempts`

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	err := row.Scan(&a.AttemptID, &a.UserID, &a.DeviceID, &a.IP,
		&a.Location.Country, &a.Location.City, &a.Location.Latitude, &a.Location.Longitude,
		&a.UserAgent, &a.Success, &a.Reason, &a.Timestamp)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAttempts(rows pgx.Rows) ([]Attempt, error) {
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
