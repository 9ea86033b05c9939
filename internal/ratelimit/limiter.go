// Package ratelimit enforces per-actor command cooldowns.
package ratelimit

import (
	"sync"
	"time"
)

type key struct {
	actor string
	class string
}

// Limiter tracks the last accepted invocation per (actor, command class)
// and denies invocations arriving inside the cooldown window. The check
// and the timestamp update happen under one lock, so a single actor cannot
// race past the cooldown with concurrent commands.
type Limiter struct {
	mu        sync.Mutex
	last      map[key]time.Time
	cooldowns map[string]time.Duration // per command class
	fallback  time.Duration            // for classes with no explicit cooldown
	clock     func() time.Time
}

// New creates a Limiter. cooldowns maps command class to its window;
// classes not present use fallback.
func New(cooldowns map[string]time.Duration, fallback time.Duration) *Limiter {
	cp := make(map[string]time.Duration, len(cooldowns))
	for class, d := range cooldowns {
		cp[class] = d
	}
	return &Limiter{
		last:      make(map[key]time.Time),
		cooldowns: cp,
		fallback:  fallback,
		clock:     time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (l *Limiter) WithClock(clock func() time.Time) *Limiter {
	l.clock = clock
	return l
}

// Allow records an invocation of class by actor if the cooldown has
// elapsed. When denied, it returns the remaining wait and false; the
// recorded timestamp is not updated, so a denied call does not extend
// the window.
func (l *Limiter) Allow(actor, class string) (time.Duration, bool) {
	cooldown, ok := l.cooldowns[class]
	if !ok {
		cooldown = l.fallback
	}
	if cooldown <= 0 {
		return 0, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	k := key{actor: actor, class: class}

	if prev, seen := l.last[k]; seen {
		if elapsed := now.Sub(prev); elapsed < cooldown {
			return cooldown - elapsed, false
		}
	}

	l.last[k] = now
	return 0, true
}
