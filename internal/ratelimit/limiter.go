// Package ratelimit provides a sliding-window request limiter keyed by
// client identity and endpoint category.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/kimhsiao/photosync/internal/config"
	"github.com/kimhsiao/photosync/internal/logging"
)

var (
	// denialsTotal — requests denied by the limiter, per category.
	denialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photosync_ratelimit_denials_total",
		Help: "Total requests denied by the rate limiter",
	}, []string{"category"})

	// sweepRemovedTotal — stale entries dropped by the cleanup sweep.
	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photosync_ratelimit_sweep_removed_total",
		Help: "Total per-client windows removed by the cleanup sweep",
	})
)

type windowKey struct {
	client   string
	category string
}

// window is one client/category timestamp log. Each window has its own lock
// so concurrent requests from different clients never contend. dead marks a
// window the sweep has removed from the map; a request holding a stale
// pointer must not record into it.
type window struct {
	mu    sync.Mutex
	dead  bool
	times []time.Time
}

// Limiter enforces per-category sliding-window rules. When disabled it
// allows everything and keeps no state.
type Limiter struct {
	enabled   bool
	rules     map[string]config.RateRule
	retention time.Duration
	sweepTick time.Duration

	mu      sync.RWMutex // guards the entries map, not the windows
	entries map[windowKey]*window

	now func() time.Time
	log *logrus.Entry
}

// New creates a limiter from configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		enabled:   cfg.Enabled,
		rules:     cfg.Rules,
		retention: cfg.Retention,
		sweepTick: cfg.SweepInterval,
		entries:   make(map[windowKey]*window),
		now:       time.Now,
		log:       logging.WithComponent("ratelimit"),
	}
}

// Allow records and admits the request unless the client has exhausted the
// category's window. On denial nothing is recorded and retryAfter hints when
// the oldest counted request leaves the window.
func (l *Limiter) Allow(client, category string) (bool, time.Duration) {
	if !l.enabled {
		return true, 0
	}

	rule, ok := l.rules[category]
	if !ok {
		rule = l.rules["default"]
	}
	if rule.MaxRequests < 1 {
		// No usable rule; never lock a client out on misconfiguration.
		return true, 0
	}

	key := windowKey{client: client, category: category}
	now := l.now()
	cutoff := now.Add(-rule.Window)

	for {
		w := l.entry(key)
		w.mu.Lock()
		if w.dead {
			// The sweep dropped this window between map lookup and lock;
			// retry against a fresh entry so the request is counted.
			w.mu.Unlock()
			continue
		}

		w.times = pruneBefore(w.times, cutoff)
		if len(w.times) >= rule.MaxRequests {
			retryAfter := w.times[0].Add(rule.Window).Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			w.mu.Unlock()
			denialsTotal.WithLabelValues(category).Inc()
			return false, retryAfter
		}

		w.times = append(w.times, now)
		w.mu.Unlock()
		return true, 0
	}
}

// entry returns the window for the key, creating it on first use.
func (l *Limiter) entry(key windowKey) *window {
	l.mu.RLock()
	w, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.entries[key]; ok {
		return w
	}
	w = &window{}
	l.entries[key] = w
	return w
}

// Start runs the periodic cleanup sweep until ctx fires. The sweep holds
// each window's lock only while pruning that window, so it never stalls
// request handling.
func (l *Limiter) Start(ctx context.Context) {
	if !l.enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(l.sweepTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := l.Sweep()
				if removed > 0 {
					l.log.WithField("removed", removed).Debug("sweep dropped stale windows")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep prunes timestamps older than the retention horizon and drops
// now-empty windows. It returns the number of windows removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.retention)

	l.mu.RLock()
	keys := make([]windowKey, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	l.mu.RUnlock()

	removed := 0
	for _, key := range keys {
		l.mu.RLock()
		w, ok := l.entries[key]
		l.mu.RUnlock()
		if !ok {
			continue
		}

		w.mu.Lock()
		w.times = pruneBefore(w.times, cutoff)
		empty := len(w.times) == 0
		w.mu.Unlock()

		if empty {
			l.mu.Lock()
			// Re-check under the write lock; a request may have landed
			// between the prune and here.
			w.mu.Lock()
			if len(w.times) == 0 {
				w.dead = true
				delete(l.entries, key)
				removed++
			}
			w.mu.Unlock()
			l.mu.Unlock()
		}
	}

	if removed > 0 {
		sweepRemovedTotal.Add(float64(removed))
	}
	return removed
}

// size returns the number of tracked windows (for tests).
func (l *Limiter) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	return append(times[:0], times[idx:]...)
}
