// Package ratelimit tracks server-advertised request quotas per scope.
//
// The game-statistics API advertises its quotas in response headers:
// an application-wide set and a per-endpoint-method set, each a
// comma-separated list of "count:windowSeconds" pairs, for example
// "20:1,100:120". The limiter mirrors those buckets with sliding
// windows and suspends callers before a request would breach one,
// so throttling is proactive rather than a reaction to 429s.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// Header names used by the API for limit descriptors.
const (
	HeaderAppLimit     = "X-App-Rate-Limit"
	HeaderAppCount     = "X-App-Rate-Limit-Count"
	HeaderMethodLimit  = "X-Method-Rate-Limit"
	HeaderMethodCount  = "X-Method-Rate-Limit-Count"
	HeaderRetryAfter   = "Retry-After"
	appScope           = "app"
)

// bucket is one sliding-window quota: at most limit requests inside
// any rolling window. stamps holds reservation times, oldest first.
type bucket struct {
	limit  int
	window time.Duration
	stamps []time.Time
}

// prune drops reservations that have left the window.
// Must be called with the limiter lock held.
func (b *bucket) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	expired := 0
	for _, s := range b.stamps {
		if !s.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	b.stamps = b.stamps[expired:]
}

// nextFree returns the instant the bucket will have capacity again.
// Zero time means it has capacity now.
func (b *bucket) nextFree(now time.Time) time.Time {
	b.prune(now)
	if len(b.stamps) < b.limit {
		return time.Time{}
	}
	return b.stamps[0].Add(b.window)
}

// Limiter tracks per-scope request budgets. Scopes are the whole
// application plus one per endpoint+method. All check-and-reserve
// operations are serialized under one mutex so two concurrent jobs
// cannot double-spend the same budget.
type Limiter struct {
	mu      sync.Mutex
	scopes  map[string][]*bucket
	// uncapped per-scope request counts for scopes that never
	// advertised limits; surfaced via Stats only
	observed map[string]int

	timeNow func() time.Time
	after   func(d time.Duration) <-chan time.Time
}

// New creates a limiter with the real clock.
func New() *Limiter {
	return NewWithClock(time.Now, time.After)
}

// NewWithClock creates a limiter with an injectable clock and timer,
// for deterministic tests.
func NewWithClock(timeNow func() time.Time, after func(d time.Duration) <-chan time.Time) *Limiter {
	return &Limiter{
		scopes:   make(map[string][]*bucket),
		observed: make(map[string]int),
		timeNow:  timeNow,
		after:    after,
	}
}

// methodScope builds the scope key for an endpoint+method pair.
func methodScope(endpoint, method string) string {
	return method + " " + endpoint
}

// RecordLimits parses limit-descriptor headers from a response and
// updates the corresponding scopes. Safe to call with partial or
// missing headers; absent headers are a no-op for their scope.
func (l *Limiter) RecordLimits(hdr http.Header, endpoint, method string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.applyScope(appScope, hdr.Get(HeaderAppLimit), hdr.Get(HeaderAppCount), now)
	l.applyScope(methodScope(endpoint, method), hdr.Get(HeaderMethodLimit), hdr.Get(HeaderMethodCount), now)
}

// applyScope reconciles one scope against server-reported limits and
// usage counts. Must be called with the lock held.
func (l *Limiter) applyScope(scope, limitHdr, countHdr string, now time.Time) {
	if limitHdr == "" {
		return
	}

	limits, err := parsePairs(limitHdr)
	if err != nil || len(limits) == 0 {
		return
	}
	counts, _ := parsePairs(countHdr) // count header may be absent

	buckets := l.scopes[scope]
	var next []*bucket
	for _, spec := range limits {
		window := time.Duration(spec.window) * time.Second
		b := findBucket(buckets, window)
		if b == nil {
			b = &bucket{window: window}
		}
		b.limit = spec.count

		// The server count is authoritative when higher than our
		// local view: another consumer of the same key may be
		// spending the budget too. Pad with stamps at now so the
		// sliding window stays conservative.
		b.prune(now)
		if c := countFor(counts, spec.window); c > len(b.stamps) {
			for i := len(b.stamps); i < c; i++ {
				b.stamps = append(b.stamps, now)
			}
		}
		next = append(next, b)
	}
	l.scopes[scope] = next
}

// Wait suspends the caller until both the application scope and the
// endpoint+method scope have capacity, then reserves one request in
// every bucket of both scopes atomically. Returns early with the
// context error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, endpoint, method string) error {
	scopes := []string{appScope, methodScope(endpoint, method)}

	for {
		l.mu.Lock()
		now := l.timeNow()

		var until time.Time
		for _, scope := range scopes {
			for _, b := range l.scopes[scope] {
				if free := b.nextFree(now); !free.IsZero() && free.After(until) {
					until = free
				}
			}
		}

		if until.IsZero() {
			// Capacity everywhere: reserve in all buckets while
			// still holding the lock, so the check-and-reserve
			// is atomic across scopes.
			for _, scope := range scopes {
				for _, b := range l.scopes[scope] {
					b.stamps = append(b.stamps, now)
				}
			}
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		wait := until.Sub(now)
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "rate limit wait cancelled")
		case <-l.after(wait):
		}
	}
}

// RecordSuccess notes a completed request for scopes that have never
// advertised limits, keeping Stats meaningful before the first
// header-bearing response arrives.
func (l *Limiter) RecordSuccess(endpoint, method string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, scope := range []string{appScope, methodScope(endpoint, method)} {
		if len(l.scopes[scope]) == 0 {
			l.observed[scope]++
		}
	}
}

// ScopeStats describes the tightest bucket of one scope.
type ScopeStats struct {
	Limit    int
	Window   time.Duration
	InWindow int
}

// Stats returns current usage for the application scope and the given
// endpoint+method scope. Scopes without advertised limits report a
// zero Limit and the locally observed request count.
func (l *Limiter) Stats(endpoint, method string) (app, meth ScopeStats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	return l.scopeStats(appScope, now), l.scopeStats(methodScope(endpoint, method), now)
}

func (l *Limiter) scopeStats(scope string, now time.Time) ScopeStats {
	buckets := l.scopes[scope]
	if len(buckets) == 0 {
		return ScopeStats{InWindow: l.observed[scope]}
	}

	// Report the bucket closest to exhaustion
	var stats ScopeStats
	worst := -1.0
	for _, b := range buckets {
		b.prune(now)
		used := float64(len(b.stamps)) / float64(b.limit)
		if used > worst {
			worst = used
			stats = ScopeStats{Limit: b.limit, Window: b.window, InWindow: len(b.stamps)}
		}
	}
	return stats
}

type limitPair struct {
	count  int
	window int
}

// parsePairs parses a "count:window,count:window" descriptor.
func parsePairs(raw string) ([]limitPair, error) {
	if raw == "" {
		return nil, nil
	}

	var pairs []limitPair
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, errors.Newf("malformed limit descriptor %q", part)
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "malformed limit count %q", fields[0])
		}
		window, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "malformed limit window %q", fields[1])
		}
		if count <= 0 || window <= 0 {
			return nil, errors.Newf("non-positive limit descriptor %q", part)
		}
		pairs = append(pairs, limitPair{count: count, window: window})
	}
	return pairs, nil
}

func findBucket(buckets []*bucket, window time.Duration) *bucket {
	for _, b := range buckets {
		if b.window == window {
			return b
		}
	}
	return nil
}

func countFor(counts []limitPair, window int) int {
	for _, c := range counts {
		if c.window == window {
			return c.count
		}
	}
	return 0
}
