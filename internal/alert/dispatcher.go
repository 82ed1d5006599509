package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/common/logger"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/metrics"
)

const dispatchTimeout = 30 * time.Second

// Dispatcher fans a persisted alert out to its notification sinks without
// blocking the caller. Channel failures are logged and swallowed.
type Dispatcher struct {
	sinks  []NotificationSink
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []NotificationSink, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger.WithComponent(log, "alert-dispatcher"),
	}
}

// SinksFromConfig assembles the sink set selected by configuration.
func SinksFromConfig(cfg *config.Config, log *zap.Logger) []NotificationSink {
	var sinks []NotificationSink
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout))
	}
	if cfg.Alerts.EmailEnabled && cfg.SMTPHost != "" {
		sinks = append(sinks, NewEmailSink(cfg))
	}
	if cfg.Alerts.PushEnabled {
		sinks = append(sinks, NewLogSink("push", log))
	}
	if cfg.Alerts.SMSEnabled {
		sinks = append(sinks, NewLogSink("sms", log))
	}
	return sinks
}

// Send delivers the alert on every sink in the background and returns
// immediately. The alert is already persisted; nothing here can fail the
// originating request.
func (d *Dispatcher) Send(ctx context.Context, al *eventstore.SecurityAlert) {
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink NotificationSink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()

			if err := sink.Send(ctx, al); err != nil {
				metrics.AlertsDispatchedTotal.WithLabelValues(sink.Name(), "failed").Inc()
				d.logger.Error("alert delivery failed",
					zap.String("alert_id", al.AlertID),
					zap.Error(errors.DispatchFailed(sink.Name(), err)))
				return
			}
			metrics.AlertsDispatchedTotal.WithLabelValues(sink.Name(), "sent").Inc()
			d.logger.Info("alert delivered",
				zap.String("channel", sink.Name()),
				zap.String("alert_id", al.AlertID))
		}(sink)
	}
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
