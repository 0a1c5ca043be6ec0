package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	l := New(cfg, zap.NewNop())
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestAdmitDeniesOverLimit(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: time.Minute, DefaultLimit: 3})

	for i := 0; i < 3; i++ {
		require.True(t, l.Admit("check:example.com"), "admission %d should pass", i+1)
	}
	assert.False(t, l.Admit("check:example.com"), "admission over the limit should be denied")

	// Other keys are unaffected.
	assert.True(t, l.Admit("check:other.com"))
}

func TestWindowReset(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: time.Minute, DefaultLimit: 1})

	require.True(t, l.Admit("check:example.com"))
	require.False(t, l.Admit("check:example.com"))

	*now = now.Add(61 * time.Second)
	assert.True(t, l.Admit("check:example.com"), "a new window should admit again")
	assert.False(t, l.Admit("check:example.com"), "the reset window counts from zero")
}

func TestSSLKeysUseStricterCeiling(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: time.Minute, DefaultLimit: 20, SSLLimit: 5})

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit("ssl:example.com"))
	}
	assert.False(t, l.Admit("ssl:example.com"))

	// The default category still has headroom.
	for i := 0; i < 20; i++ {
		require.True(t, l.Admit("check:example.com"))
	}
	assert.False(t, l.Admit("check:example.com"))
}

func TestOnDeniedHook(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: time.Minute, DefaultLimit: 1, SSLLimit: 1})

	var categories []string
	l.OnDenied(func(category string) { categories = append(categories, category) })

	l.Admit("ssl:example.com")
	l.Admit("ssl:example.com")
	l.Admit("check:example.com")
	l.Admit("check:example.com")

	assert.Equal(t, []string{"ssl", "default"}, categories)
}

func TestSweepEvictsIdleRecords(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: time.Minute, Grace: time.Minute, DefaultLimit: 5})

	l.Admit("check:stale.com")
	*now = now.Add(90 * time.Second)
	l.Admit("check:fresh.com")

	*now = now.Add(45 * time.Second) // stale is now 135s idle, past window+grace
	assert.Equal(t, 1, l.Sweep())

	l.mu.Lock()
	_, staleKept := l.records["check:stale.com"]
	_, freshKept := l.records["check:fresh.com"]
	l.mu.Unlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}

func TestRetryAfterMatchesWindow(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: 30 * time.Second})
	assert.Equal(t, 30*time.Second, l.RetryAfter())
}
