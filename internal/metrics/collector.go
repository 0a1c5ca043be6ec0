package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pvieira/domain-sentry/internal/core"
)

// Collector holds the Prometheus instruments for the monitoring engine.
// It registers against an injected registry so tests can build isolated
// collectors.
type Collector struct {
	checkDuration      *prometheus.HistogramVec
	checksTotal        *prometheus.CounterVec
	certDaysToExpiry   *prometheus.GaugeVec
	securityScore      *prometheus.GaugeVec
	responseTime       *prometheus.GaugeVec
	alertsActive       *prometheus.GaugeVec
	rateLimitDenials   *prometheus.CounterVec
	historyEntriesLive prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentry_check_duration_seconds",
				Help:    "Duration of domain health checks in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"domain", "type"},
		),
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_checks_total",
				Help: "Total number of checks by outcome status",
			},
			[]string{"domain", "type", "status"},
		),
		certDaysToExpiry: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentry_certificate_days_until_expiry",
				Help: "Days until the domain's certificate expires",
			},
			[]string{"domain"},
		),
		securityScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentry_security_header_score",
				Help: "Security header score (0-100)",
			},
			[]string{"domain"},
		),
		responseTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentry_response_time_milliseconds",
				Help: "Most recent HTTP response time per location",
			},
			[]string{"domain", "location"},
		),
		alertsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentry_alerts_active",
				Help: "Unresolved alerts by severity",
			},
			[]string{"severity"},
		),
		rateLimitDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_rate_limit_denials_total",
				Help: "Admissions denied by the rate limiter",
			},
			[]string{"category"},
		),
		historyEntriesLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentry_history_entries",
				Help: "History entries currently held in memory",
			},
		),
	}
}

func (c *Collector) RecordCheck(domain string, typ core.CheckType, status core.HealthStatus, duration time.Duration) {
	c.checkDuration.WithLabelValues(domain, string(typ)).Observe(duration.Seconds())
	c.checksTotal.WithLabelValues(domain, string(typ), string(status)).Inc()
}

func (c *Collector) RecordCertificate(snap *core.CertificateSnapshot) {
	c.certDaysToExpiry.WithLabelValues(snap.Domain).Set(float64(snap.DaysUntilExpiry))
}

func (c *Collector) RecordSecurityScore(analysis *core.SecurityHeadersAnalysis) {
	c.securityScore.WithLabelValues(analysis.Domain).Set(float64(analysis.Score))
}

func (c *Collector) RecordPerformance(m *core.PerformanceMetrics) {
	c.responseTime.WithLabelValues(m.Domain, m.Location).Set(m.ResponseTime)
}

func (c *Collector) SetActiveAlerts(bySeverity map[core.Severity]int) {
	for _, sev := range []core.Severity{core.SeverityLow, core.SeverityMedium, core.SeverityHigh, core.SeverityCritical} {
		c.alertsActive.WithLabelValues(string(sev)).Set(float64(bySeverity[sev]))
	}
}

func (c *Collector) RecordRateLimitDenial(category string) {
	c.rateLimitDenials.WithLabelValues(category).Inc()
}

func (c *Collector) SetHistorySize(n int) {
	c.historyEntriesLive.Set(float64(n))
}
