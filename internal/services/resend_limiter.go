package services

import (
	"sync"
	"time"
)

// ResendLimiter throttles OTP resends per email with a fixed time window.
type ResendLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewResendLimiter(window time.Duration) *ResendLimiter {
	return &ResendLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether a resend for key is permitted. When allowed, the
// window restarts; when denied, the remaining wait is returned.
func (l *ResendLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if sent, ok := l.last[key]; ok {
		if elapsed := now.Sub(sent); elapsed < l.window {
			return false, l.window - elapsed
		}
	}
	l.last[key] = now
	return true, 0
}

// Reset clears the window for key, e.g. after a successful verification.
func (l *ResendLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, key)
}
