package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Store is the append-only time-series store for check results. Entries
// are bucketed per domain and kept ordered by timestamp.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]core.HistoryEntry
	logger  *zap.Logger
	now     func() time.Time
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string][]core.HistoryEntry),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Store) Append(entry core.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.entries[entry.Domain]
	// Appends arrive in time order in practice; keep the invariant anyway.
	if n := len(bucket); n > 0 && entry.Timestamp.Before(bucket[n-1].Timestamp) {
		idx := sort.Search(n, func(i int) bool { return bucket[i].Timestamp.After(entry.Timestamp) })
		bucket = append(bucket, core.HistoryEntry{})
		copy(bucket[idx+1:], bucket[idx:])
		bucket[idx] = entry
	} else {
		bucket = append(bucket, entry)
	}
	s.entries[entry.Domain] = bucket
}

// History returns entries for a domain, optionally filtered by check type,
// no older than sinceDays, ordered by timestamp ascending.
func (s *Store) History(domain string, typ core.CheckType, sinceDays int) []core.HistoryEntry {
	cutoff := s.now().AddDate(0, 0, -sinceDays)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.HistoryEntry
	for _, entry := range s.entries[domain] {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		if typ != "" && entry.Type != typ {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// TimeSeries extracts one numeric metric from the stored entries of a
// given type. Metric names follow the JSON field names of the entry data.
func (s *Store) TimeSeries(domain string, typ core.CheckType, metric string, sinceDays int) ([]core.TimeSeriesPoint, error) {
	entries := s.History(domain, typ, sinceDays)
	points := make([]core.TimeSeriesPoint, 0, len(entries))
	for _, entry := range entries {
		value, ok, err := extractMetric(entry, metric)
		if err != nil {
			return nil, err
		}
		if ok {
			points = append(points, core.TimeSeriesPoint{Timestamp: entry.Timestamp, Value: value})
		}
	}
	return points, nil
}

func extractMetric(entry core.HistoryEntry, metric string) (float64, bool, error) {
	switch entry.Type {
	case core.CheckTypeCertificate:
		if entry.Certificate == nil {
			return 0, false, nil
		}
		if metric == "days_until_expiry" {
			return float64(entry.Certificate.DaysUntilExpiry), true, nil
		}
	case core.CheckTypeSecurity:
		if entry.Security == nil {
			return 0, false, nil
		}
		if metric == "overall_score" {
			return float64(entry.Security.Score), true, nil
		}
	case core.CheckTypePerformance:
		if entry.Performance == nil {
			return 0, false, nil
		}
		p := entry.Performance
		switch metric {
		case "response_time":
			return p.ResponseTime, true, nil
		case "first_byte_time":
			return p.FirstByteTime, true, nil
		case "dns_lookup_time":
			return p.DNSLookupTime, true, nil
		case "connection_time":
			return p.ConnectionTime, true, nil
		case "download_time":
			return p.DownloadTime, true, nil
		case "total_time":
			return p.TotalTime, true, nil
		case "content_size":
			return float64(p.ContentSize), true, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %s for type %s", ErrUnknownMetric, metric, entry.Type)
}

// Latest returns the most recent entry of the given type for a domain.
func (s *Store) Latest(domain string, typ core.CheckType) (core.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.entries[domain]
	for i := len(bucket) - 1; i >= 0; i-- {
		if bucket[i].Type == typ {
			return bucket[i], true
		}
	}
	return core.HistoryEntry{}, false
}

// Domains lists all domains with recorded history, sorted.
func (s *Store) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for domain, bucket := range s.entries {
		if len(bucket) > 0 {
			out = append(out, domain)
		}
	}
	sort.Strings(out)
	return out
}

// Overview summarizes the latest state of every monitored domain. Each
// domain's status is the worst of its three most recent per-type statuses.
func (s *Store) Overview() []core.DomainOverview {
	domains := s.Domains()
	out := make([]core.DomainOverview, 0, len(domains))
	for _, domain := range domains {
		out = append(out, s.domainOverview(domain))
	}
	return out
}

func (s *Store) domainOverview(domain string) core.DomainOverview {
	row := core.DomainOverview{Domain: domain, Status: core.StatusUnknown}

	var statuses []core.HealthStatus
	var latest time.Time
	for _, typ := range []core.CheckType{core.CheckTypeCertificate, core.CheckTypeSecurity, core.CheckTypePerformance} {
		entry, ok := s.Latest(domain, typ)
		if !ok {
			continue
		}
		statuses = append(statuses, entry.Status)
		if entry.Timestamp.After(latest) {
			latest = entry.Timestamp
		}
		switch typ {
		case core.CheckTypeCertificate:
			if entry.Certificate != nil {
				days := entry.Certificate.DaysUntilExpiry
				row.DaysUntilExpiry = &days
			}
		case core.CheckTypeSecurity:
			if entry.Security != nil {
				row.SecurityGrade = entry.Security.Grade
			}
		case core.CheckTypePerformance:
			if entry.Performance != nil {
				rt := entry.Performance.ResponseTime
				row.ResponseTime = &rt
			}
		}
	}
	if len(statuses) > 0 {
		row.Status = core.WorstStatus(statuses...)
		row.LastChecked = &latest
	}
	return row
}

// Dashboard aggregates status counts and averages over the most recent
// entry per domain per type. It is recomputed on every read.
func (s *Store) Dashboard() *core.DashboardMetrics {
	overview := s.Overview()

	dm := &core.DashboardMetrics{
		TotalDomains: len(overview),
		DomainsByStatus: map[core.HealthStatus]int{
			core.StatusHealthy:  0,
			core.StatusWarning:  0,
			core.StatusCritical: 0,
			core.StatusUnknown:  0,
		},
		GeneratedAt: s.now(),
	}

	var responseSum float64
	var responseN int
	var scoreSum, scoreN int
	for _, row := range overview {
		dm.DomainsByStatus[row.Status]++
		if row.ResponseTime != nil && *row.ResponseTime > 0 {
			responseSum += *row.ResponseTime
			responseN++
		}
		if entry, ok := s.Latest(row.Domain, core.CheckTypeSecurity); ok && entry.Security != nil {
			scoreSum += entry.Security.Score
			scoreN++
		}
	}
	if responseN > 0 {
		dm.AvgResponseTime = responseSum / float64(responseN)
	}
	if scoreN > 0 {
		dm.AvgSecurityScore = float64(scoreSum) / float64(scoreN)
	}
	return dm
}

// Cleanup deletes entries older than maxAgeDays and returns the count.
func (s *Store) Cleanup(maxAgeDays int) int {
	cutoff := s.now().AddDate(0, 0, -maxAgeDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for domain, bucket := range s.entries {
		idx := sort.Search(len(bucket), func(i int) bool { return !bucket[i].Timestamp.Before(cutoff) })
		if idx == 0 {
			continue
		}
		removed += idx
		remaining := append([]core.HistoryEntry(nil), bucket[idx:]...)
		if len(remaining) == 0 {
			delete(s.entries, domain)
		} else {
			s.entries[domain] = remaining
		}
	}
	if removed > 0 {
		s.logger.Info("history cleanup", zap.Int("removed", removed), zap.Int("max_age_days", maxAgeDays))
	}
	return removed
}

// DeleteDomain drops all history for a domain.
func (s *Store) DeleteDomain(domain string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries[domain])
	delete(s.entries, domain)
	return n
}

// Size is the total number of stored entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, bucket := range s.entries {
		total += len(bucket)
	}
	return total
}
