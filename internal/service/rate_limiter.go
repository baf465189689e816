package service

import (
	"sync"
	"time"
)

// EventRateLimiter limita la frecuencia de eventos por clave (dirección + evento).
type EventRateLimiter interface {
	Allow(key string) bool
}

// RateLimitKey arma la clave de un evento de una dirección. La dirección se
// usa tal cual llega: " bob" y "bob" son usuarios distintos.
func RateLimitKey(address, event string) string {
	return address + "|" + event
}

type memoryRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryRateLimiter crea un rate limiter de ventana deslizante en memoria.
func NewMemoryRateLimiter(window time.Duration, max int) EventRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *memoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

type unlimited struct{}

// NewUnlimitedRateLimiter deja pasar todo; se usa con RATE_LIMIT_MAX=0.
func NewUnlimitedRateLimiter() EventRateLimiter { return unlimited{} }

func (unlimited) Allow(string) bool { return true }
