// Package alert delivers persisted security alerts to external
// notification channels. Delivery is best-effort: the stored alert is the
// source of truth and channel failures never roll it back.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/eventstore"
)

// NotificationSink delivers one alert over a single channel.
type NotificationSink interface {
	Name() string
	Send(ctx context.Context, al *eventstore.SecurityAlert) error
}

const (
	webhookMaxRetries    = 3
	webhookRetryInterval = 2 * time.Second
)

// WebhookSink posts alerts as JSON to a configured endpoint, retrying
// transient failures a few times before giving up.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given endpoint.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the channel in logs and metrics.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the alert payload to the webhook endpoint.
func (s *WebhookSink) Send(ctx context.Context, al *eventstore.SecurityAlert) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":                  al.AlertID,
		"user_id":             al.UserID,
		"title":               al.Title,
		"message":             al.Message,
		"severity":            string(al.Severity),
		"category":            string(al.Category),
		"action_required":     al.ActionRequired,
		"recommended_actions": al.RecommendedActions,
		"created_at":          al.Timestamp,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= webhookMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "RiskWatch-AlertDispatcher/1.0")

		resp, err := s.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		if attempt < webhookMaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(webhookRetryInterval):
			}
		}
	}
	return lastErr
}

// EmailSink notifies the security team mailbox over SMTP.
type EmailSink struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
}

// NewEmailSink creates an SMTP sink from service configuration.
func NewEmailSink(cfg *config.Config) *EmailSink {
	return &EmailSink{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		username:   cfg.SMTPUsername,
		password:   cfg.SMTPPassword,
		from:       cfg.SMTPFrom,
		recipients: cfg.Alerts.SecurityTeamEmail,
	}
}

// Name identifies the channel in logs and metrics.
func (s *EmailSink) Name() string { return "email" }

// Send mails the alert to the configured security team recipients.
func (s *EmailSink) Send(ctx context.Context, al *eventstore.SecurityAlert) error {
	if len(s.recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", s.from)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(s.recipients, ", "))
	fmt.Fprintf(&body, "Subject: [%s] %s\r\n", strings.ToUpper(string(al.Severity)), al.Title)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "%s\r\n\r\nUser: %s\r\nCategory: %s\r\nRaised: %s\r\n",
		al.Message, al.UserID, al.Category, al.Timestamp.Format(time.RFC3339))
	if len(al.RecommendedActions) > 0 {
		body.WriteString("\r\nRecommended actions:\r\n")
		for _, action := range al.RecommendedActions {
			fmt.Fprintf(&body, "  - %s\r\n", action)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	return smtp.SendMail(addr, auth, s.from, s.recipients, []byte(body.String()))
}

// LogSink stands in for channels without a wired provider, such as push
// and SMS; deliveries are recorded in the service log only.
type LogSink struct {
	channel string
	logger  *zap.Logger
}

// NewLogSink creates a log-only sink for the named channel.
func NewLogSink(channel string, log *zap.Logger) *LogSink {
	return &LogSink{channel: channel, logger: log}
}

// Name identifies the channel in logs and metrics.
func (s *LogSink) Name() string { return s.channel }

// Send records the delivery in the service log.
func (s *LogSink) Send(ctx context.Context, al *eventstore.SecurityAlert) error {
	s.logger.Info("alert delivery",
		zap.String("channel", s.channel),
		zap.String("alert_id", al.AlertID),
		zap.String("user_id", al.UserID),
		zap.String("severity", string(al.Severity)),
		zap.String("title", al.Title))
	return nil
}
