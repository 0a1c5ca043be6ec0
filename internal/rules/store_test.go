package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestCreateAppliesDefaults(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{Domain: "example.com"})

	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "example.com", rule.Domain)
	assert.True(t, rule.Enabled)
	assert.Equal(t, 24, rule.CheckIntervalHours)
	assert.Equal(t, []int{1, 7, 14, 30}, rule.AlertThresholds.DaysBeforeExpiry)
	assert.True(t, rule.AlertThresholds.EnableChangeDetection)
	assert.True(t, rule.AlertThresholds.EnableInvalidCertAlerts)
	assert.True(t, rule.Notifications.Browser)
	assert.Nil(t, rule.LastChecked)
}

func TestCreateMergesSuppliedFields(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{
		Domain:        "example.com",
		Enabled:       boolPtr(false),
		CheckInterval: intPtr(6),
		AlertThresholds: &core.AlertThresholds{
			DaysBeforeExpiry: []int{60, 5, 20},
		},
	})

	assert.False(t, rule.Enabled)
	assert.Equal(t, 6, rule.CheckIntervalHours)
	assert.Equal(t, []int{5, 20, 60}, rule.AlertThresholds.DaysBeforeExpiry, "thresholds are kept sorted")
	assert.False(t, rule.AlertThresholds.EnableChangeDetection)
}

func TestUpdatePartial(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{Domain: "example.com"})

	require.True(t, s.Update(rule.ID, UpdatePatch{Enabled: boolPtr(false)}))

	got, ok := s.Get(rule.ID)
	require.True(t, ok)
	assert.False(t, got.Enabled)
	// Untouched fields survive the patch.
	assert.Equal(t, 24, got.CheckIntervalHours)
	assert.Equal(t, []int{1, 7, 14, 30}, got.AlertThresholds.DaysBeforeExpiry)

	assert.False(t, s.Update("unknown-id", UpdatePatch{Enabled: boolPtr(true)}))
}

func TestRemove(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{Domain: "example.com"})

	require.True(t, s.Remove(rule.ID))
	_, ok := s.Get(rule.ID)
	assert.False(t, ok)
	assert.False(t, s.Remove(rule.ID))
}

func TestListFilterAndEnabled(t *testing.T) {
	s := NewStore(zap.NewNop())
	s.Create(CreateInput{Domain: "a.com"})
	s.Create(CreateInput{Domain: "b.com"})
	s.Create(CreateInput{Domain: "b.com", Enabled: boolPtr(false)})

	assert.Len(t, s.List(""), 3)
	assert.Len(t, s.List("b.com"), 2)
	assert.Len(t, s.Enabled(), 2)
}

func TestMarkChecked(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{Domain: "example.com"})

	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	s.MarkChecked(rule.ID, at)

	got, ok := s.Get(rule.ID)
	require.True(t, ok)
	require.NotNil(t, got.LastChecked)
	assert.Equal(t, at, *got.LastChecked)
}

func TestCopiesAreDefensive(t *testing.T) {
	s := NewStore(zap.NewNop())
	rule := s.Create(CreateInput{Domain: "example.com"})

	rule.AlertThresholds.DaysBeforeExpiry[0] = 99
	got, ok := s.Get(rule.ID)
	require.True(t, ok)
	assert.Equal(t, []int{1, 7, 14, 30}, got.AlertThresholds.DaysBeforeExpiry)
}
