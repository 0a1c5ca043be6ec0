package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

func newTestStore() (*Store, time.Time) {
	s := NewStore(zap.NewNop())
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, now
}

func perfEntry(domain string, at time.Time, responseTime float64) core.HistoryEntry {
	return core.HistoryEntry{
		Domain:    domain,
		Type:      core.CheckTypePerformance,
		Timestamp: at,
		Status:    core.StatusHealthy,
		Performance: &core.PerformanceMetrics{
			Domain:       domain,
			Timestamp:    at,
			Location:     "default",
			ResponseTime: responseTime,
			TotalTime:    responseTime,
		},
	}
}

func certEntry(domain string, at time.Time, days int, status core.HealthStatus) core.HistoryEntry {
	return core.HistoryEntry{
		Domain:    domain,
		Type:      core.CheckTypeCertificate,
		Timestamp: at,
		Status:    status,
		Certificate: &core.CertificateSnapshot{
			Domain:          domain,
			DaysUntilExpiry: days,
			Valid:           days > 0,
		},
	}
}

func securityEntry(domain string, at time.Time, score int) core.HistoryEntry {
	return core.HistoryEntry{
		Domain:    domain,
		Type:      core.CheckTypeSecurity,
		Timestamp: at,
		Status:    core.StatusHealthy,
		Security: &core.SecurityHeadersAnalysis{
			Domain: domain,
			Score:  score,
			Grade:  "B",
		},
	}
}

func TestHistoryOrderAndFilters(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.Add(-2*time.Hour), 100))
	s.Append(certEntry("example.com", now.Add(-1*time.Hour), 42, core.StatusHealthy))
	s.Append(perfEntry("example.com", now.Add(-30*time.Minute), 200))
	s.Append(perfEntry("other.com", now.Add(-30*time.Minute), 300))

	all := s.History("example.com", "", 7)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.Before(all[1].Timestamp))
	assert.True(t, all[1].Timestamp.Before(all[2].Timestamp))

	perf := s.History("example.com", core.CheckTypePerformance, 7)
	assert.Len(t, perf, 2)
}

func TestHistorySinceDaysCutoff(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.AddDate(0, 0, -10), 100))
	s.Append(perfEntry("example.com", now.AddDate(0, 0, -2), 200))

	recent := s.History("example.com", "", 7)
	require.Len(t, recent, 1)
	assert.Equal(t, 200.0, recent[0].Performance.ResponseTime)
}

func TestTimeSeriesExtraction(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.Add(-3*time.Hour), 100))
	s.Append(perfEntry("example.com", now.Add(-2*time.Hour), 200))
	s.Append(certEntry("example.com", now.Add(-1*time.Hour), 42, core.StatusHealthy))

	points, err := s.TimeSeries("example.com", core.CheckTypePerformance, "response_time", 7)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 100.0, points[0].Value)
	assert.Equal(t, 200.0, points[1].Value)

	days, err := s.TimeSeries("example.com", core.CheckTypeCertificate, "days_until_expiry", 7)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 42.0, days[0].Value)

	_, err = s.TimeSeries("example.com", core.CheckTypePerformance, "bogus", 7)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestCleanup(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.AddDate(0, 0, -40), 100))
	s.Append(perfEntry("example.com", now.AddDate(0, 0, -5), 200))
	s.Append(perfEntry("stale.com", now.AddDate(0, 0, -60), 300))

	removed := s.Cleanup(30)
	assert.Equal(t, 2, removed)

	assert.Len(t, s.History("example.com", "", 90), 1)
	assert.Empty(t, s.History("stale.com", "", 90))
	assert.Equal(t, []string{"example.com"}, s.Domains())
}

func TestExportImportRoundTrip(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.Add(-2*time.Hour), 100))
	s.Append(certEntry("example.com", now.Add(-1*time.Hour), 42, core.StatusHealthy))
	s.Append(perfEntry("other.com", now.Add(-1*time.Hour), 300))

	snap := s.Export("example.com")
	require.Len(t, snap.Entries, 1)

	dst, _ := newTestStore()
	imported, skipped, err := dst.Import(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Zero(t, skipped)
	assert.Equal(t, s.History("example.com", "", 7), dst.History("example.com", "", 7))

	// Importing the same snapshot again replaces, not duplicates.
	_, _, err = dst.Import(snap)
	require.NoError(t, err)
	assert.Len(t, dst.History("example.com", "", 7), 2)
}

func TestImportIsAllOrNothingPerDomain(t *testing.T) {
	s, now := newTestStore()

	good := perfEntry("good.com", now.Add(-time.Hour), 100)
	bad := perfEntry("bad.com", now.Add(-time.Hour), 100)
	bad.Domain = "mismatched.com" // entry domain must match its bucket

	snap := &Snapshot{
		Version: snapshotVersion,
		Entries: map[string][]core.HistoryEntry{
			"good.com": {good},
			"bad.com":  {bad},
		},
	}

	imported, skipped, err := s.Import(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
	assert.Len(t, s.History("good.com", "", 7), 1)
	assert.Empty(t, s.History("bad.com", "", 7))
}

func TestImportRejectsBadSnapshots(t *testing.T) {
	s, now := newTestStore()

	_, _, err := s.Import(nil)
	assert.Error(t, err)

	noTimestamp := perfEntry("example.com", time.Time{}, 100)
	_, _, err = s.Import(&Snapshot{Entries: map[string][]core.HistoryEntry{
		"example.com": {noTimestamp},
	}})
	assert.Error(t, err)

	badType := perfEntry("example.com", now, 100)
	badType.Type = "bogus"
	_, _, err = s.Import(&Snapshot{Entries: map[string][]core.HistoryEntry{
		"example.com": {badType},
	}})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.Add(-time.Hour), 100))
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, s.Save(path))

	restored, _ := newTestStore()
	require.NoError(t, restored.Load(path))
	assert.Len(t, restored.History("example.com", "", 7), 1)

	// Missing file is not an error.
	fresh, _ := newTestStore()
	assert.NoError(t, fresh.Load(filepath.Join(t.TempDir(), "absent.json")))
}

func TestDashboardWorstStatusWins(t *testing.T) {
	s, now := newTestStore()
	s.Append(certEntry("example.com", now.Add(-2*time.Hour), 3, core.StatusCritical))
	s.Append(securityEntry("example.com", now.Add(-1*time.Hour), 85))
	s.Append(perfEntry("example.com", now.Add(-30*time.Minute), 150))
	s.Append(perfEntry("fine.com", now.Add(-30*time.Minute), 250))

	dm := s.Dashboard()
	assert.Equal(t, 2, dm.TotalDomains)
	assert.Equal(t, 1, dm.DomainsByStatus[core.StatusCritical])
	assert.Equal(t, 1, dm.DomainsByStatus[core.StatusHealthy])
	assert.Equal(t, 200.0, dm.AvgResponseTime)
	assert.Equal(t, 85.0, dm.AvgSecurityScore)
}

func TestDeleteDomain(t *testing.T) {
	s, now := newTestStore()
	s.Append(perfEntry("example.com", now.Add(-time.Hour), 100))
	s.Append(perfEntry("other.com", now.Add(-time.Hour), 100))

	assert.Equal(t, 1, s.DeleteDomain("example.com"))
	assert.Empty(t, s.History("example.com", "", 7))
	assert.Equal(t, []string{"other.com"}, s.Domains())
}
