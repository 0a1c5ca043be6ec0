package core

import (
	"time"
)

type CheckType string

const (
	CheckTypeCertificate CheckType = "certificate"
	CheckTypeSecurity    CheckType = "security"
	CheckTypePerformance CheckType = "performance"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
	StatusUnknown  HealthStatus = "unknown"
)

// statusRank orders statuses from best to worst so that rollups can take
// the worst of a set. Unknown sits between warning and healthy: missing
// data is worse than a passing check but better than a known problem.
var statusRank = map[HealthStatus]int{
	StatusHealthy:  0,
	StatusUnknown:  1,
	StatusWarning:  2,
	StatusCritical: 3,
}

// WorstStatus returns the worst status among the given ones, or unknown
// when none are given.
func WorstStatus(statuses ...HealthStatus) HealthStatus {
	worst := StatusUnknown
	found := false
	for _, s := range statuses {
		if !found || statusRank[s] > statusRank[worst] {
			worst = s
			found = true
		}
	}
	return worst
}

type MonitoringRule struct {
	ID                 string               `json:"id"`
	Domain             string               `json:"domain"`
	Enabled            bool                 `json:"enabled"`
	CheckIntervalHours int                  `json:"check_interval_hours"`
	AlertThresholds    AlertThresholds      `json:"alert_thresholds"`
	Notifications      NotificationSettings `json:"notification_settings"`
	CreatedAt          time.Time            `json:"created_at"`
	LastChecked        *time.Time           `json:"last_checked,omitempty"`
}

type AlertThresholds struct {
	// DaysBeforeExpiry holds the expiry warning thresholds, kept sorted
	// ascending by the rule store.
	DaysBeforeExpiry        []int `json:"days_before_expiry"`
	EnableChangeDetection   bool  `json:"enable_change_detection"`
	EnableInvalidCertAlerts bool  `json:"enable_invalid_cert_alerts"`
}

type NotificationSettings struct {
	Browser bool   `json:"browser"`
	Email   bool   `json:"email"`
	Webhook string `json:"webhook,omitempty"`
}

// CertificateSnapshot is the result of a single TLS probe. It is never
// stored directly; history entries carry a copy.
type CertificateSnapshot struct {
	Domain          string    `json:"domain"`
	Subject         string    `json:"subject"`
	Issuer          string    `json:"issuer"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	Fingerprint     string    `json:"fingerprint"`
	SerialNumber    string    `json:"serial_number"`
	DNSNames        []string  `json:"dns_names"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	Valid           bool      `json:"valid"`
}

type HeaderCheck struct {
	Present        bool   `json:"present"`
	Secure         bool   `json:"secure"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation,omitempty"`
}

type SecurityHeadersAnalysis struct {
	Domain          string                 `json:"domain"`
	Timestamp       time.Time              `json:"timestamp"`
	Score           int                    `json:"overall_score"`
	Grade           string                 `json:"grade"`
	Headers         map[string]HeaderCheck `json:"headers"`
	Recommendations []string               `json:"recommendations"`
	Vulnerabilities []string               `json:"vulnerabilities"`
}

// PerformanceMetrics holds one timed HTTP round trip. All durations are
// milliseconds; the four splits sum to TotalTime. A ResponseTime of zero
// marks a failed measurement.
type PerformanceMetrics struct {
	Domain         string    `json:"domain"`
	Timestamp      time.Time `json:"timestamp"`
	Location       string    `json:"location"`
	ResponseTime   float64   `json:"response_time_ms"`
	FirstByteTime  float64   `json:"first_byte_time_ms"`
	DNSLookupTime  float64   `json:"dns_lookup_time_ms"`
	ConnectionTime float64   `json:"connection_time_ms"`
	DownloadTime   float64   `json:"download_time_ms"`
	TotalTime      float64   `json:"total_time_ms"`
	HTTPStatus     int       `json:"http_status"`
	ContentSize    int64     `json:"content_size_bytes"`
	RedirectCount  int       `json:"redirect_count"`
	ResolvedIPs    []string  `json:"resolved_ips,omitempty"`
}

// HistoryEntry is the append-only check record. Data is a tagged union:
// exactly one of Certificate, Security, Performance is set, matching Type.
type HistoryEntry struct {
	Domain      string                   `json:"domain"`
	Type        CheckType                `json:"type"`
	Timestamp   time.Time                `json:"timestamp"`
	Status      HealthStatus             `json:"status"`
	Certificate *CertificateSnapshot     `json:"certificate,omitempty"`
	Security    *SecurityHeadersAnalysis `json:"security,omitempty"`
	Performance *PerformanceMetrics      `json:"performance,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type DashboardMetrics struct {
	TotalDomains     int                  `json:"total_domains"`
	DomainsByStatus  map[HealthStatus]int `json:"domains_by_status"`
	AvgResponseTime  float64              `json:"avg_response_time_ms"`
	AvgSecurityScore float64              `json:"avg_security_score"`
	ActiveAlerts     int                  `json:"active_alerts"`
	AlertsBySeverity map[Severity]int     `json:"alerts_by_severity"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// DomainOverview is one row of the dashboard domain listing.
type DomainOverview struct {
	Domain          string       `json:"domain"`
	Status          HealthStatus `json:"status"`
	LastChecked     *time.Time   `json:"last_checked,omitempty"`
	DaysUntilExpiry *int         `json:"days_until_expiry,omitempty"`
	SecurityGrade   string       `json:"security_grade,omitempty"`
	ResponseTime    *float64     `json:"response_time_ms,omitempty"`
}

// WhoisInfo is registration data for a domain, informational only.
type WhoisInfo struct {
	Domain       string     `json:"domain"`
	Registrar    string     `json:"registrar"`
	CreatedDate  *time.Time `json:"created_date,omitempty"`
	UpdatedDate  *time.Time `json:"updated_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	DaysToExpiry int        `json:"days_to_expiry"`
	Status       []string   `json:"status"`
}
