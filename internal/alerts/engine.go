package alerts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
	"github.com/pvieira/domain-sentry/internal/metrics"
	"github.com/pvieira/domain-sentry/internal/notify"
	"github.com/pvieira/domain-sentry/internal/probe"
)

var (
	ErrNotFound      = errors.New("alert not found")
	ErrTerminalState = errors.New("alert is in a terminal state")
)

// certMemo remembers the last certificate seen per domain so change and
// renewal detection can compare against it.
type certMemo struct {
	fingerprint string
	validTo     time.Time
}

type alertRecord struct {
	alert *core.CertificateAlert
	// expiryThreshold is the smallest rule threshold the unresolved
	// expiration alert currently reflects; a crossing of a smaller one
	// escalates in place.
	expiryThreshold int
}

// Engine owns all alert writes. It evaluates check results against rule
// thresholds, keeps at most one unresolved alert per (domain, type) pair,
// and drives the triggered -> acknowledged -> resolved lifecycle.
type Engine struct {
	mu         sync.Mutex
	alerts     map[string]*alertRecord
	lastSeen   map[string]certMemo
	logger     *zap.Logger
	dispatcher notify.Dispatcher
	collector  *metrics.Collector
	now        func() time.Time
}

func NewEngine(logger *zap.Logger, dispatcher notify.Dispatcher, collector *metrics.Collector) *Engine {
	return &Engine{
		alerts:     make(map[string]*alertRecord),
		lastSeen:   make(map[string]certMemo),
		logger:     logger,
		dispatcher: dispatcher,
		collector:  collector,
		now:        time.Now,
	}
}

// Evaluate processes one certificate check outcome for a rule. Exactly one
// of snap and probeErr is set. It returns the alerts created or escalated
// by this evaluation.
func (e *Engine) Evaluate(rule *core.MonitoringRule, snap *core.CertificateSnapshot, probeErr error) []*core.CertificateAlert {
	e.mu.Lock()
	var emitted []*core.CertificateAlert

	if probeErr != nil {
		if rule.AlertThresholds.EnableInvalidCertAlerts {
			if a := e.upsertInvalid(rule.Domain, probeErr); a != nil {
				emitted = append(emitted, a)
			}
		}
	} else if snap != nil {
		if a := e.evaluateExpiry(rule, snap); a != nil {
			emitted = append(emitted, a)
		}
		if rule.AlertThresholds.EnableChangeDetection {
			if a := e.evaluateChange(rule.Domain, snap); a != nil {
				emitted = append(emitted, a)
			}
		}
		e.lastSeen[rule.Domain] = certMemo{fingerprint: snap.Fingerprint, validTo: snap.ValidTo}
	}

	counts := e.activeBySeverityLocked()
	e.mu.Unlock()

	if e.collector != nil {
		e.collector.SetActiveAlerts(counts)
	}
	if e.dispatcher != nil {
		for _, a := range emitted {
			e.dispatcher.AlertTriggered(a, rule)
		}
	}
	return emitted
}

func (e *Engine) upsertInvalid(domain string, probeErr error) *core.CertificateAlert {
	message := fmt.Sprintf("certificate check failed: %v", probeErr)
	if pe, ok := probe.AsError(probeErr); ok {
		switch pe.Kind {
		case probe.ErrNoCertificate:
			message = "server presented no certificate"
		case probe.ErrTimeout:
			message = "certificate check timed out"
		case probe.ErrConnection:
			message = "could not connect for certificate check"
		}
	}

	if rec := e.findUnresolvedLocked(domain, core.AlertTypeInvalid); rec != nil {
		rec.alert.Message = message
		rec.alert.TriggeredAt = e.now()
		return nil
	}
	return e.createLocked(&core.CertificateAlert{
		Domain:   domain,
		Type:     core.AlertTypeInvalid,
		Severity: core.SeverityCritical,
		Message:  message,
	}, 0)
}

func (e *Engine) evaluateExpiry(rule *core.MonitoringRule, snap *core.CertificateSnapshot) *core.CertificateAlert {
	thresholds := rule.AlertThresholds.DaysBeforeExpiry
	if len(thresholds) == 0 {
		return nil
	}
	maxThreshold := thresholds[len(thresholds)-1]
	if snap.DaysUntilExpiry > maxThreshold {
		return nil
	}

	// Smallest crossed threshold decides severity; thresholds are sorted
	// ascending by the rule store.
	crossed := maxThreshold
	for _, t := range thresholds {
		if snap.DaysUntilExpiry <= t {
			crossed = t
			break
		}
	}

	days := snap.DaysUntilExpiry
	severity := core.ExpirySeverity(crossed)
	message := fmt.Sprintf("certificate for %s expires in %d days", snap.Domain, days)
	if days <= 0 {
		message = fmt.Sprintf("certificate for %s has expired", snap.Domain)
	}

	if rec := e.findUnresolvedLocked(rule.Domain, core.AlertTypeExpiration); rec != nil {
		rec.alert.Message = message
		rec.alert.DaysUntilExpiry = &days
		rec.alert.TriggeredAt = e.now()
		if crossed < rec.expiryThreshold {
			rec.expiryThreshold = crossed
			if core.MoreSevere(severity, rec.alert.Severity) {
				rec.alert.Severity = severity
			}
			return rec.alert
		}
		return nil
	}

	alert := e.createLocked(&core.CertificateAlert{
		Domain:          rule.Domain,
		Type:            core.AlertTypeExpiration,
		Severity:        severity,
		Message:         message,
		DaysUntilExpiry: &days,
	}, crossed)
	return alert
}

func (e *Engine) evaluateChange(domain string, snap *core.CertificateSnapshot) *core.CertificateAlert {
	memo, seen := e.lastSeen[domain]
	if !seen || memo.fingerprint == snap.Fingerprint {
		return nil
	}

	// A new fingerprint with a later expiry is a renewal; anything else
	// is an unexplained change.
	alertType := core.AlertTypeChange
	severity := core.SeverityMedium
	message := fmt.Sprintf("certificate for %s changed unexpectedly", domain)
	if snap.ValidTo.After(memo.validTo) {
		alertType = core.AlertTypeRenewal
		severity = core.SeverityLow
		message = fmt.Sprintf("certificate for %s was renewed, now valid until %s", domain, snap.ValidTo.Format("2006-01-02"))
	}

	if rec := e.findUnresolvedLocked(domain, alertType); rec != nil {
		rec.alert.Message = message
		rec.alert.TriggeredAt = e.now()
		return nil
	}
	return e.createLocked(&core.CertificateAlert{
		Domain:   domain,
		Type:     alertType,
		Severity: severity,
		Message:  message,
	}, 0)
}

func (e *Engine) createLocked(alert *core.CertificateAlert, expiryThreshold int) *core.CertificateAlert {
	alert.ID = uuid.New().String()
	alert.TriggeredAt = e.now()
	e.alerts[alert.ID] = &alertRecord{alert: alert, expiryThreshold: expiryThreshold}

	e.logger.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("domain", alert.Domain),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
	)
	return alert
}

func (e *Engine) findUnresolvedLocked(domain string, typ core.AlertType) *alertRecord {
	for _, rec := range e.alerts {
		if rec.alert.Domain == domain && rec.alert.Type == typ && !rec.alert.Resolved() {
			return rec
		}
	}
	return nil
}

// List returns alerts, optionally filtered by domain, newest first.
func (e *Engine) List(domain string) []*core.CertificateAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*core.CertificateAlert, 0, len(e.alerts))
	for _, rec := range e.alerts {
		if domain != "" && rec.alert.Domain != domain {
			continue
		}
		cp := *rec.alert
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out
}

// Acknowledge marks an alert as seen. Terminal alerts reject it.
func (e *Engine) Acknowledge(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if rec.alert.Resolved() {
		return ErrTerminalState
	}
	if !rec.alert.Acknowledged {
		now := e.now()
		rec.alert.Acknowledged = true
		rec.alert.AcknowledgedAt = &now
	}
	return nil
}

// Resolve closes the alert. A prior acknowledge is not required, and
// resolving twice is a no-op.
func (e *Engine) Resolve(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if !rec.alert.Resolved() {
		now := e.now()
		rec.alert.ResolvedAt = &now
	}
	return nil
}

// Delete removes the alert record entirely.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(e.alerts, id)
	return nil
}

// ActiveBySeverity counts unresolved alerts per severity.
func (e *Engine) ActiveBySeverity() map[core.Severity]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeBySeverityLocked()
}

func (e *Engine) activeBySeverityLocked() map[core.Severity]int {
	counts := make(map[core.Severity]int)
	for _, rec := range e.alerts {
		if !rec.alert.Resolved() {
			counts[rec.alert.Severity]++
		}
	}
	return counts
}

// ActiveCount is the total number of unresolved alerts.
func (e *Engine) ActiveCount() int {
	total := 0
	for _, n := range e.ActiveBySeverity() {
		total += n
	}
	return total
}
