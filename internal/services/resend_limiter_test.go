package services

import (
	"testing"
	"time"
)

func TestResendLimiterBlocksWithinWindow(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewResendLimiter(60 * time.Second)
	l.now = func() time.Time { return current }

	if ok, _ := l.Allow("a@example.com"); !ok {
		t.Fatalf("first resend should be allowed")
	}

	current = current.Add(30 * time.Second)
	ok, wait := l.Allow("a@example.com")
	if ok {
		t.Fatalf("resend inside the window should be blocked")
	}
	if wait != 30*time.Second {
		t.Fatalf("expected 30s remaining, got %v", wait)
	}

	current = current.Add(31 * time.Second)
	if ok, _ := l.Allow("a@example.com"); !ok {
		t.Fatalf("resend after the window should be allowed")
	}
}

func TestResendLimiterKeysAreIndependent(t *testing.T) {
	l := NewResendLimiter(time.Minute)

	if ok, _ := l.Allow("a@example.com"); !ok {
		t.Fatalf("first key should be allowed")
	}
	if ok, _ := l.Allow("b@example.com"); !ok {
		t.Fatalf("second key should not share the first key's window")
	}
}

func TestResendLimiterReset(t *testing.T) {
	l := NewResendLimiter(time.Minute)

	l.Allow("a@example.com")
	l.Reset("a@example.com")
	if ok, _ := l.Allow("a@example.com"); !ok {
		t.Fatalf("resend after reset should be allowed")
	}
}
