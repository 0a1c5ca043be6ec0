package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category prefix for keys subject to the stricter TLS-probe ceiling.
const sslKeyPrefix = "ssl:"

type record struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Limiter is a per-key sliding-window admission gate. The window resets
// when its start ages past the configured duration; keys tagged with the
// ssl: prefix get a stricter ceiling than the default. Admit never errors,
// it only answers yes or no.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record

	window       time.Duration
	grace        time.Duration
	defaultLimit int
	sslLimit     int

	logger *zap.Logger
	now    func() time.Time

	onDenied func(category string)
}

type Config struct {
	Window       time.Duration
	Grace        time.Duration
	DefaultLimit int
	SSLLimit     int
}

func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = cfg.Window
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.SSLLimit <= 0 {
		cfg.SSLLimit = 5
	}
	return &Limiter{
		records:      make(map[string]*record),
		window:       cfg.Window,
		grace:        cfg.Grace,
		defaultLimit: cfg.DefaultLimit,
		sslLimit:     cfg.SSLLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// OnDenied installs a hook called with the key's category whenever an
// admission is refused.
func (l *Limiter) OnDenied(fn func(category string)) {
	l.onDenied = fn
}

// Admit records one admission attempt for the key and reports whether it
// is allowed within the current window.
func (l *Limiter) Admit(key string) bool {
	now := l.now()
	limit := l.defaultLimit
	category := "default"
	if strings.HasPrefix(key, sslKeyPrefix) {
		limit = l.sslLimit
		category = "ssl"
	}

	l.mu.Lock()
	rec, ok := l.records[key]
	if !ok {
		rec = &record{windowStart: now}
		l.records[key] = rec
	}
	if now.Sub(rec.windowStart) > l.window {
		rec.count = 0
		rec.windowStart = now
	}
	rec.lastSeen = now

	allowed := rec.count < limit
	if allowed {
		rec.count++
	}
	l.mu.Unlock()

	if !allowed {
		l.logger.Debug("rate limit exceeded", zap.String("key", key), zap.Int("limit", limit))
		if l.onDenied != nil {
			l.onDenied(category)
		}
	}
	return allowed
}

// RetryAfter is the fixed hint callers surface when an admission is
// refused.
func (l *Limiter) RetryAfter() time.Duration {
	return l.window
}

// Sweep evicts records idle longer than window + grace and returns the
// eviction count.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-(l.window + l.grace))

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, rec := range l.records {
		if rec.lastSeen.Before(cutoff) {
			delete(l.records, key)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a background ticker until ctx is cancelled.
// The sweep interval should be much longer than the window.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * l.window
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.Debug("rate limiter sweep", zap.Int("evicted", n))
				}
			}
		}
	}()
}
