package rules

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

// Schema defaults applied when a create request leaves fields unset.
const defaultCheckIntervalHours = 24

var defaultDaysBeforeExpiry = []int{1, 7, 14, 30}

// Store holds monitoring rules in memory. It is the single writer for
// rule records; callers get defensive copies.
type Store struct {
	mu     sync.RWMutex
	rules  map[string]*core.MonitoringRule
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		rules:  make(map[string]*core.MonitoringRule),
		logger: logger,
	}
}

// CreateInput carries the caller-supplied part of a new rule. Unset
// pointers fall back to schema defaults.
type CreateInput struct {
	Domain          string                     `json:"domain"`
	Enabled         *bool                      `json:"enabled,omitempty"`
	CheckInterval   *int                       `json:"check_interval_hours,omitempty"`
	AlertThresholds *core.AlertThresholds      `json:"alert_thresholds,omitempty"`
	Notifications   *core.NotificationSettings `json:"notification_settings,omitempty"`
}

func (s *Store) Create(in CreateInput) *core.MonitoringRule {
	rule := &core.MonitoringRule{
		ID:                 uuid.New().String(),
		Domain:             in.Domain,
		Enabled:            true,
		CheckIntervalHours: defaultCheckIntervalHours,
		AlertThresholds: core.AlertThresholds{
			DaysBeforeExpiry:        append([]int(nil), defaultDaysBeforeExpiry...),
			EnableChangeDetection:   true,
			EnableInvalidCertAlerts: true,
		},
		Notifications: core.NotificationSettings{Browser: true},
		CreatedAt:     time.Now(),
	}

	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.CheckInterval != nil && *in.CheckInterval > 0 {
		rule.CheckIntervalHours = *in.CheckInterval
	}
	if in.AlertThresholds != nil {
		rule.AlertThresholds = *in.AlertThresholds
		if len(rule.AlertThresholds.DaysBeforeExpiry) == 0 {
			rule.AlertThresholds.DaysBeforeExpiry = append([]int(nil), defaultDaysBeforeExpiry...)
		}
	}
	if in.Notifications != nil {
		rule.Notifications = *in.Notifications
	}
	sort.Ints(rule.AlertThresholds.DaysBeforeExpiry)

	s.mu.Lock()
	s.rules[rule.ID] = rule
	s.mu.Unlock()

	s.logger.Info("monitoring rule created",
		zap.String("rule_id", rule.ID),
		zap.String("domain", rule.Domain),
	)
	return copyRule(rule)
}

func (s *Store) Get(id string) (*core.MonitoringRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, false
	}
	return copyRule(rule), true
}

// UpdatePatch carries a partial update; nil fields are left untouched.
type UpdatePatch struct {
	Enabled         *bool                      `json:"enabled,omitempty"`
	CheckInterval   *int                       `json:"check_interval_hours,omitempty"`
	AlertThresholds *core.AlertThresholds      `json:"alert_thresholds,omitempty"`
	Notifications   *core.NotificationSettings `json:"notification_settings,omitempty"`
}

func (s *Store) Update(id string, patch UpdatePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return false
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.CheckInterval != nil && *patch.CheckInterval > 0 {
		rule.CheckIntervalHours = *patch.CheckInterval
	}
	if patch.AlertThresholds != nil {
		rule.AlertThresholds = *patch.AlertThresholds
		sort.Ints(rule.AlertThresholds.DaysBeforeExpiry)
	}
	if patch.Notifications != nil {
		rule.Notifications = *patch.Notifications
	}
	return true
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	return true
}

// List returns rules, optionally filtered by domain, ordered by creation.
func (s *Store) List(domain string) []*core.MonitoringRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.MonitoringRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if domain != "" && rule.Domain != domain {
			continue
		}
		out = append(out, copyRule(rule))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Enabled returns all enabled rules.
func (s *Store) Enabled() []*core.MonitoringRule {
	all := s.List("")
	out := all[:0]
	for _, rule := range all {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

// MarkChecked records the completion time of a check cycle for the rule.
func (s *Store) MarkChecked(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule, ok := s.rules[id]; ok {
		checked := t
		rule.LastChecked = &checked
	}
}

func copyRule(r *core.MonitoringRule) *core.MonitoringRule {
	cp := *r
	cp.AlertThresholds.DaysBeforeExpiry = append([]int(nil), r.AlertThresholds.DaysBeforeExpiry...)
	if r.LastChecked != nil {
		t := *r.LastChecked
		cp.LastChecked = &t
	}
	return &cp
}
