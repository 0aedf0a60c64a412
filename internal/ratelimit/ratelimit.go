// Package ratelimit provides the per-(agent, follower) message rate limiter.
//
// Like the cache, it is an explicit injected service. The fixed-window
// counter is deliberately simple: the goal is stopping runaway loops and
// spam floods, not precise traffic shaping.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults for the fixed window.
const (
	DefaultWindow      = time.Minute
	DefaultMaxMessages = 10
)

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter is consulted once per inbound message.
type Limiter interface {
	Check(key string) Decision
}

// FollowerKey builds the canonical rate key for a conversation.
func FollowerKey(agentID, followerID string) string {
	return agentID + "|" + followerID
}

type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter allows at most max messages per key per window.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	size    time.Duration
	max     int
	now     func() time.Time
}

// NewFixedWindowLimiter creates a limiter; non-positive arguments use defaults.
func NewFixedWindowLimiter(size time.Duration, max int) *FixedWindowLimiter {
	if size <= 0 {
		size = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &FixedWindowLimiter{
		windows: make(map[string]*window),
		size:    size,
		max:     max,
		now:     time.Now,
	}
}

// Check counts the message against the key's current window.
func (l *FixedWindowLimiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.size {
		l.windows[key] = &window{start: now, count: 1}
		return Decision{Allowed: true}
	}
	w.count++
	if w.count > l.max {
		return Decision{Allowed: false, Reason: "too many messages, slow down"}
	}
	return Decision{Allowed: true}
}
