package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Rule allows Limit requests per Window for a method+path combination.
// Unused capacity refills continuously, so bursts up to Limit are allowed.
type Rule struct {
	Method string
	Path   string
	Limit  int
	Window time.Duration
}

func (r Rule) key() string { return r.Method + ":" + r.Path }

// Result contains rate limit status for a request.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	RetryIn   time.Duration
}

type entry struct {
	ruleKey  string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per IP+method+path.
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule // key: "METHOD:PATH"
	entries map[string]*entry
	clock   Clock
}

// NewLimiter creates a Limiter with the given rules.
func NewLimiter(rules []Rule) *Limiter {
	ruleMap := make(map[string]Rule, len(rules))
	for _, r := range rules {
		ruleMap[r.key()] = r
	}
	return &Limiter{
		rules:   ruleMap,
		entries: make(map[string]*entry),
		clock:   realClock{},
	}
}

// SetClock replaces the time source.
func (l *Limiter) SetClock(c Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = c
}

func perWindow(rule Rule) rate.Limit {
	return rate.Limit(float64(rule.Limit) / rule.Window.Seconds())
}

// Allow checks whether a request from ip to method+path is allowed.
// If no rule matches the method+path, it returns (Result{}, true).
func (l *Limiter) Allow(ip, method, path string) (Result, bool) {
	ruleKey := method + ":" + path
	rule, ok := l.rules[ruleKey]
	if !ok {
		return Result{}, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	key := ip + ":" + ruleKey

	e, exists := l.entries[key]
	if !exists {
		e = &entry{ruleKey: ruleKey, limiter: rate.NewLimiter(perWindow(rule), rule.Limit)}
		l.entries[key] = e
	}
	e.lastSeen = now

	res := e.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
		res.CancelAt(now)
		return Result{
			Limit:     rule.Limit,
			Remaining: 0,
			ResetAt:   resetAt(e.limiter, rule, now),
			RetryIn:   delay,
		}, false
	}

	return Result{
		Limit:     rule.Limit,
		Remaining: remaining(e.limiter, now),
		ResetAt:   resetAt(e.limiter, rule, now),
	}, true
}

func remaining(lim *rate.Limiter, now time.Time) int {
	tokens := lim.TokensAt(now)
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// resetAt is when the bucket will be full again.
func resetAt(lim *rate.Limiter, rule Rule, now time.Time) time.Time {
	missing := float64(rule.Limit) - lim.TokensAt(now)
	if missing <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / float64(perWindow(rule)) * float64(time.Second)))
}

// Cleanup drops buckets idle for at least a full window; they would be full
// again anyway. Call periodically to prevent unbounded growth.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for key, e := range l.entries {
		rule, ok := l.rules[e.ruleKey]
		if !ok || now.Sub(e.lastSeen) >= rule.Window {
			delete(l.entries, key)
		}
	}
}

// Len reports how many buckets are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
