package notify

import (
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

// Dispatcher is the delivery boundary for alert notifications. Actual
// delivery (email, webhook) lives outside this system; implementations
// here only have to accept the event.
type Dispatcher interface {
	AlertTriggered(alert *core.CertificateAlert, rule *core.MonitoringRule)
}

// LogDispatcher records notification events in the log and delivers
// nothing. It stands in for real channels in the single-node deployment.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) AlertTriggered(alert *core.CertificateAlert, rule *core.MonitoringRule) {
	d.logger.Info("alert notification",
		zap.String("alert_id", alert.ID),
		zap.String("domain", alert.Domain),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Bool("browser", rule.Notifications.Browser),
		zap.Bool("email", rule.Notifications.Email),
	)
}
