package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riskwatch/riskwatch/internal/common/errors"
)

// PostgresStore persists security events and alerts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed event store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitializeSchema creates the event and alert tables if they do not exist.
func (s *PostgresStore) InitializeSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS security_events (
			event_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			device_id VARCHAR(64),
			event_type VARCHAR(40) NOT NULL,
			severity VARCHAR(10) NOT NULL,
			details JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT false,
			actions JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_events_user_time ON security_events(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_type ON security_events(event_type);

		CREATE TABLE IF NOT EXISTS security_alerts (
			alert_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			title VARCHAR(200) NOT NULL,
			message TEXT NOT NULL,
			severity VARCHAR(10) NOT NULL,
			category VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			read BOOLEAN NOT NULL DEFAULT false,
			action_required BOOLEAN NOT NULL DEFAULT false,
			recommended_actions JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_user_time ON security_alerts(user_id, created_at DESC);
	`)
	return err
}

// AppendEvent stores one security event.
func (s *PostgresStore) AppendEvent(ctx context.Context, ev *SecurityEvent) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(actionsOrEmpty(ev.Actions))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO security_events (
			event_id, user_id, device_id, event_type, severity, details,
			created_at, resolved, actions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.EventID, ev.UserID, ev.DeviceID, ev.EventType, ev.Severity,
		details, ev.Timestamp, ev.Resolved, actions)
	return err
}

// AppendAlert stores one security alert.
func (s *PostgresStore) AppendAlert(ctx context.Context, al *SecurityAlert) error {
	actions, err := json.Marshal(actionsOrEmpty(al.RecommendedActions))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO security_alerts (
			alert_id, user_id, title, message, severity, category,
			created_at, read, action_required, recommended_actions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, al.AlertID, al.UserID, al.Title, al.Message, al.Severity, al.Category,
		al.Timestamp, al.Read, al.ActionRequired, actions)
	return err
}

// QueryEventsByUser returns a user's events at or after since, newest first.
func (s *PostgresStore) QueryEventsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, user_id, COALESCE(device_id, ''), event_type, severity,
		       details, created_at, resolved, actions
		FROM security_events
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecurityEvent
	for rows.Next() {
		var ev SecurityEvent
		var details, actions []byte
		if err := rows.Scan(&ev.EventID, &ev.UserID, &ev.DeviceID, &ev.EventType,
			&ev.Severity, &details, &ev.Timestamp, &ev.Resolved, &actions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &ev.Details); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &ev.Actions); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// QueryAlertsByUser returns a user's alerts at or after since, newest first.
func (s *PostgresStore) QueryAlertsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]SecurityAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT alert_id, user_id, title, message, severity, category,
		       created_at, read, action_required, recommended_actions
		FROM security_alerts
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecurityAlert
	for rows.Next() {
		var al SecurityAlert
		var actions []byte
		if err := rows.Scan(&al.AlertID, &al.UserID, &al.Title, &al.Message,
			&al.Severity, &al.Category, &al.Timestamp, &al.Read,
			&al.ActionRequired, &actions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &al.RecommendedActions); err != nil {
			return nil, err
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

// ResolveEvent marks an event as resolved and records remediation actions.
func (s *PostgresStore) ResolveEvent(ctx context.Context, eventID string, actions []string) error {
	data, err := json.Marshal(actionsOrEmpty(actions))
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE security_events SET resolved = true, actions = $2
		WHERE event_id = $1`, eventID, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("security event")
	}
	return nil
}

// MarkAlertRead flips an alert's read flag.
func (s *PostgresStore) MarkAlertRead(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE security_alerts SET read = true WHERE alert_id = $1`, alertID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("security alert")
	}
	return nil
}

func actionsOrEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
