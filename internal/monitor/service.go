package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pvieira/domain-sentry/internal/alerts"
	"github.com/pvieira/domain-sentry/internal/core"
	"github.com/pvieira/domain-sentry/internal/history"
	"github.com/pvieira/domain-sentry/internal/metrics"
	"github.com/pvieira/domain-sentry/internal/ratelimit"
	"github.com/pvieira/domain-sentry/internal/rules"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRateLimited  = errors.New("rate limited")
)

// Probe interfaces, satisfied by internal/probe. The service accepts
// interfaces so check cycles can run against fakes in tests.
type CertificateFetcher interface {
	Fetch(ctx context.Context, domain string) (*core.CertificateSnapshot, error)
}

type HeaderAnalyzer interface {
	Analyze(ctx context.Context, domain string) (*core.SecurityHeadersAnalysis, error)
}

type PerformanceMeasurer interface {
	MeasureMany(ctx context.Context, domain string, locations []string) []*core.PerformanceMetrics
}

// Outcome is the result of one domain's check cycle. Failures of single
// probes land in Errors; they never abort the cycle or its siblings.
type Outcome struct {
	RuleID    string                   `json:"rule_id"`
	Domain    string                   `json:"domain"`
	Status    core.HealthStatus        `json:"status"`
	NewAlerts []*core.CertificateAlert `json:"new_alerts"`
	Errors    []string                 `json:"errors,omitempty"`
	CheckedAt time.Time                `json:"checked_at"`
}

type Config struct {
	CheckTimeout  time.Duration
	MaxConcurrent int
	ProbesPerSec  float64
	ProbeBurst    int
	Locations     []string
}

// Service orchestrates check cycles: rule -> probes (rate limited) ->
// alert engine + history. Writes for one domain are serialized by a
// per-domain lock; different domains proceed in parallel.
type Service struct {
	rules     *rules.Store
	alerts    *alerts.Engine
	history   *history.Store
	limiter   *ratelimit.Limiter
	collector *metrics.Collector
	logger    *zap.Logger

	certProbe   CertificateFetcher
	headerProbe HeaderAnalyzer
	perfProbe   PerformanceMeasurer

	pacer *rate.Limiter
	cfg   Config

	lockMu      sync.Mutex
	domainLocks map[string]*sync.Mutex
}

func NewService(
	ruleStore *rules.Store,
	alertEngine *alerts.Engine,
	historyStore *history.Store,
	limiter *ratelimit.Limiter,
	collector *metrics.Collector,
	certProbe CertificateFetcher,
	headerProbe HeaderAnalyzer,
	perfProbe PerformanceMeasurer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.ProbesPerSec <= 0 {
		cfg.ProbesPerSec = 5
	}
	if cfg.ProbeBurst <= 0 {
		cfg.ProbeBurst = 10
	}
	if len(cfg.Locations) == 0 {
		cfg.Locations = []string{"default"}
	}
	return &Service{
		rules:       ruleStore,
		alerts:      alertEngine,
		history:     historyStore,
		limiter:     limiter,
		collector:   collector,
		logger:      logger,
		certProbe:   certProbe,
		headerProbe: headerProbe,
		perfProbe:   perfProbe,
		pacer:       rate.NewLimiter(rate.Limit(cfg.ProbesPerSec), cfg.ProbeBurst),
		cfg:         cfg,
		domainLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) domainLock(domain string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.domainLocks[domain]
	if !ok {
		mu = &sync.Mutex{}
		s.domainLocks[domain] = mu
	}
	return mu
}

// CheckRule runs one check cycle for a rule, subject to rate-limiter
// admission on the domain key.
func (s *Service) CheckRule(ctx context.Context, ruleID string) (*Outcome, error) {
	rule, ok := s.rules.Get(ruleID)
	if !ok {
		return nil, ErrRuleNotFound
	}
	if !s.limiter.Admit("check:" + rule.Domain) {
		return nil, ErrRateLimited
	}
	return s.runCycle(ctx, rule), nil
}

// CheckAll fans out over all enabled rules with bounded concurrency. One
// domain's failure never aborts its siblings; every rule yields an
// outcome, in rule order.
func (s *Service) CheckAll(ctx context.Context) []*Outcome {
	enabled := s.rules.Enabled()
	outcomes := make([]*Outcome, len(enabled))

	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for i, rule := range enabled {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rule *core.MonitoringRule) {
			defer wg.Done()
			defer func() { <-sem }()

			if !s.limiter.Admit("check:" + rule.Domain) {
				outcomes[i] = &Outcome{
					RuleID:    rule.ID,
					Domain:    rule.Domain,
					Status:    core.StatusUnknown,
					CheckedAt: time.Now(),
					Errors:    []string{"rate limited"},
				}
				return
			}
			outcomes[i] = s.runCycle(ctx, rule)
		}(i, rule)
	}
	wg.Wait()
	return outcomes
}

func (s *Service) runCycle(ctx context.Context, rule *core.MonitoringRule) *Outcome {
	mu := s.domainLock(rule.Domain)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	defer cancel()

	outcome := &Outcome{
		RuleID:    rule.ID,
		Domain:    rule.Domain,
		CheckedAt: time.Now(),
	}
	var statuses []core.HealthStatus

	statuses = append(statuses, s.checkCertificate(ctx, rule, outcome))
	statuses = append(statuses, s.checkHeaders(ctx, rule, outcome))
	statuses = append(statuses, s.checkPerformance(ctx, rule, outcome)...)

	outcome.Status = core.WorstStatus(statuses...)
	s.rules.MarkChecked(rule.ID, outcome.CheckedAt)
	if s.collector != nil {
		s.collector.SetHistorySize(s.history.Size())
	}

	s.logger.Debug("check cycle finished",
		zap.String("domain", rule.Domain),
		zap.String("status", string(outcome.Status)),
		zap.Int("new_alerts", len(outcome.NewAlerts)),
	)
	return outcome
}

func (s *Service) checkCertificate(ctx context.Context, rule *core.MonitoringRule, outcome *Outcome) core.HealthStatus {
	// TLS probes carry their own, stricter admission ceiling. A denied
	// admission skips the probe without touching alert state.
	if !s.limiter.Admit("ssl:" + rule.Domain) {
		outcome.Errors = append(outcome.Errors, "certificate probe rate limited")
		return core.StatusUnknown
	}

	if err := s.pacer.Wait(ctx); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return core.StatusUnknown
	}

	start := time.Now()
	snap, err := s.certProbe.Fetch(ctx, rule.Domain)

	entry := core.HistoryEntry{
		Domain:    rule.Domain,
		Type:      core.CheckTypeCertificate,
		Timestamp: time.Now(),
	}
	if err != nil {
		entry.Status = core.StatusCritical
		entry.Error = err.Error()
		outcome.Errors = append(outcome.Errors, err.Error())
	} else {
		entry.Status = statusForCertificate(snap)
		entry.Certificate = snap
		if s.collector != nil {
			s.collector.RecordCertificate(snap)
		}
	}
	s.history.Append(entry)
	if s.collector != nil {
		s.collector.RecordCheck(rule.Domain, core.CheckTypeCertificate, entry.Status, time.Since(start))
	}

	outcome.NewAlerts = append(outcome.NewAlerts, s.alerts.Evaluate(rule, snap, err)...)
	return entry.Status
}

func (s *Service) checkHeaders(ctx context.Context, rule *core.MonitoringRule, outcome *Outcome) core.HealthStatus {
	if err := s.pacer.Wait(ctx); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return core.StatusUnknown
	}

	start := time.Now()
	analysis, err := s.headerProbe.Analyze(ctx, rule.Domain)

	entry := core.HistoryEntry{
		Domain:    rule.Domain,
		Type:      core.CheckTypeSecurity,
		Timestamp: time.Now(),
	}
	if err != nil {
		entry.Status = core.StatusUnknown
		entry.Error = err.Error()
		outcome.Errors = append(outcome.Errors, err.Error())
	} else {
		entry.Status = statusForSecurity(analysis)
		entry.Security = analysis
		if s.collector != nil {
			s.collector.RecordSecurityScore(analysis)
		}
	}
	s.history.Append(entry)
	if s.collector != nil {
		s.collector.RecordCheck(rule.Domain, core.CheckTypeSecurity, entry.Status, time.Since(start))
	}
	return entry.Status
}

func (s *Service) checkPerformance(ctx context.Context, rule *core.MonitoringRule, outcome *Outcome) []core.HealthStatus {
	if err := s.pacer.Wait(ctx); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return []core.HealthStatus{core.StatusUnknown}
	}

	start := time.Now()
	results := s.perfProbe.MeasureMany(ctx, rule.Domain, s.cfg.Locations)

	statuses := make([]core.HealthStatus, 0, len(results))
	for _, m := range results {
		if m == nil {
			continue
		}
		entry := core.HistoryEntry{
			Domain:      rule.Domain,
			Type:        core.CheckTypePerformance,
			Timestamp:   time.Now(),
			Status:      statusForPerformance(m),
			Performance: m,
		}
		if m.ResponseTime <= 0 {
			entry.Error = "measurement failed"
			outcome.Errors = append(outcome.Errors, "performance measurement failed at "+m.Location)
		}
		s.history.Append(entry)
		statuses = append(statuses, entry.Status)
		if s.collector != nil {
			s.collector.RecordPerformance(m)
		}
	}
	if s.collector != nil {
		s.collector.RecordCheck(rule.Domain, core.CheckTypePerformance, core.WorstStatus(statuses...), time.Since(start))
	}
	return statuses
}

// Dashboard merges the history rollup with live alert counts. It reads
// only from the stores; no probes run.
func (s *Service) Dashboard() *core.DashboardMetrics {
	dm := s.history.Dashboard()
	dm.AlertsBySeverity = s.alerts.ActiveBySeverity()
	for _, n := range dm.AlertsBySeverity {
		dm.ActiveAlerts += n
	}
	return dm
}

// Status classification cut points, fixed policy.
const (
	certWarnDays   = 30
	certCritDays   = 7
	securityWarn   = 80
	securityCrit   = 50
	perfSlowMillis = 2000
)

func statusForCertificate(snap *core.CertificateSnapshot) core.HealthStatus {
	switch {
	case !snap.Valid, snap.DaysUntilExpiry <= certCritDays:
		return core.StatusCritical
	case snap.DaysUntilExpiry <= certWarnDays:
		return core.StatusWarning
	default:
		return core.StatusHealthy
	}
}

func statusForSecurity(analysis *core.SecurityHeadersAnalysis) core.HealthStatus {
	switch {
	case analysis.Score >= securityWarn:
		return core.StatusHealthy
	case analysis.Score >= securityCrit:
		return core.StatusWarning
	default:
		return core.StatusCritical
	}
}

func statusForPerformance(m *core.PerformanceMetrics) core.HealthStatus {
	switch {
	case m.ResponseTime <= 0, m.HTTPStatus >= 400:
		return core.StatusCritical
	case m.ResponseTime > perfSlowMillis:
		return core.StatusWarning
	default:
		return core.StatusHealthy
	}
}
