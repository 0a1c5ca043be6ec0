package core

import "time"

type AlertType string

const (
	AlertTypeExpiration AlertType = "expiration"
	AlertTypeRenewal    AlertType = "renewal"
	AlertTypeChange     AlertType = "change"
	AlertTypeInvalid    AlertType = "invalid"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities so dedup can escalate without downgrading.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// MoreSevere reports whether a outranks b.
func MoreSevere(a, b Severity) bool {
	return severityRank[a] > severityRank[b]
}

// Expiry severity buckets. These are fixed policy, hand-tuned in the
// original system; do not derive them from rule thresholds.
const (
	expiryBucketLow    = 14 // crossed threshold above this: low
	expiryBucketMedium = 7  // crossed threshold above this: medium
	expiryBucketHigh   = 1  // crossed threshold above this: high, at or below: critical
)

// ExpirySeverity maps the smallest crossed expiry threshold to a severity.
func ExpirySeverity(smallestCrossed int) Severity {
	switch {
	case smallestCrossed > expiryBucketLow:
		return SeverityLow
	case smallestCrossed > expiryBucketMedium:
		return SeverityMedium
	case smallestCrossed > expiryBucketHigh:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// CertificateAlert is the alert lifecycle record. Lifecycle is
// triggered -> acknowledged -> resolved, with resolve allowed without a
// prior acknowledge. Resolved and deleted are terminal.
type CertificateAlert struct {
	ID              string     `json:"id"`
	Domain          string     `json:"domain"`
	Type            AlertType  `json:"alert_type"`
	Severity        Severity   `json:"severity"`
	Message         string     `json:"message"`
	TriggeredAt     time.Time  `json:"triggered_at"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
	Acknowledged    bool       `json:"acknowledged"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the alert reached its terminal resolved state.
func (a *CertificateAlert) Resolved() bool {
	return a.ResolvedAt != nil
}
