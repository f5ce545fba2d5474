// Package ratelimit provides the in-memory, per-client-IP fixed-window rate
// limiter the gateway applies to unauthenticated endpoints. State is
// process-local and non-persistent: a restart resets all counters. This is a
// coarse abuse guard, not a strict quota.
package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

// Default limits match the original deployment: 100 requests per 60 second
// window, swept every 120 seconds.
const (
	DefaultWindow        = 60 * time.Second
	DefaultMaxRequests   = 100
	DefaultSweepInterval = 120 * time.Second
)

// Config configures a Limiter. Zero fields fall back to the defaults above.
type Config struct {
	// Window is the fixed window length.
	Window time.Duration
	// MaxRequests is the number of requests allowed per window per IP.
	MaxRequests int
	// SweepInterval is how often the janitor removes stale entries.
	SweepInterval time.Duration
	// Retention is how long an idle entry survives before the janitor drops
	// it. Defaults to twice the window.
	Retention time.Duration
}

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	Allowed bool
	// Remaining is the number of requests left in the current window.
	Remaining int
	// RetryAfter is the time until the current window ends. Only meaningful
	// on deny.
	RetryAfter time.Duration
}

// limits holds the hot-reloadable part of the configuration. It is swapped
// atomically so in-flight checks always see a consistent (window, max) pair.
type limits struct {
	window time.Duration
	max    int
}

type entry struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Limiter is a sharded table of per-IP fixed-window counters. Checks for one
// IP lock only that IP's shard, so the janitor and concurrent checks on
// other IPs never contend on a global lock.
type Limiter struct {
	limits        atomic.Pointer[limits]
	retention     time.Duration
	sweepInterval time.Duration
	shards        [shardCount]shard
	logger        *slog.Logger

	now func() time.Time
}

// New creates a Limiter with the given configuration.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	max := cfg.MaxRequests
	if max <= 0 {
		max = DefaultMaxRequests
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 2 * window
	}

	l := &Limiter{
		retention:     retention,
		sweepInterval: sweepInterval,
		logger:        logger,
		now:           time.Now,
	}
	l.limits.Store(&limits{window: window, max: max})
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}
	return l
}

// SetLimits replaces the window length and per-window maximum. Entries keep
// their current window start; the new limits apply from the next check.
func (l *Limiter) SetLimits(window time.Duration, max int) {
	if window <= 0 || max <= 0 {
		return
	}
	l.limits.Store(&limits{window: window, max: max})
}

// Check records one request from ip and decides whether it is allowed. Once
// the window has elapsed the entry resets to a fresh window with count 1;
// within a window the count never exceeds the maximum (a denied request is
// not counted).
func (l *Limiter) Check(ip string) Decision {
	lim := l.limits.Load()
	now := l.now()

	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ip]
	if !ok || now.Sub(e.windowStart) >= lim.window {
		s.entries[ip] = &entry{windowStart: now, count: 1}
		return Decision{Allowed: true, Remaining: lim.max - 1}
	}

	if e.count < lim.max {
		e.count++
		return Decision{Allowed: true, Remaining: lim.max - e.count}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: e.windowStart.Add(lim.window).Sub(now),
	}
}

// Sweep removes entries idle beyond the retention threshold and returns how
// many were dropped. It locks one shard at a time, so requests for IPs in
// other shards proceed untouched.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.retention)
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for ip, e := range s.entries {
			if e.windowStart.Before(cutoff) {
				delete(s.entries, ip)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps stale entries on the configured interval until ctx is canceled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("rate limit sweep",
					slog.Int("removed", removed),
					slog.Int("tracked", l.TrackedIPs()))
			}
		}
	}
}

// TrackedIPs returns the number of IPs currently tracked.
func (l *Limiter) TrackedIPs() int {
	total := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

func (l *Limiter) shardFor(ip string) *shard {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return &l.shards[h.Sum32()%shardCount]
}
