package ratelimiter

import (
	"errors"
	"testing"
	"time"
)

// TestCooldownGate checks that two checks within the cooldown
// window, first Ok, second Err(remaining>0).
func TestCooldownGate(t *testing.T) {
	l := New(30 * time.Second)
	base := time.Now()

	if err := l.CheckAt(base); err != nil {
		t.Fatalf("first Check = %v, want nil", err)
	}

	err := l.CheckAt(base.Add(time.Second))
	var cooldownErr *CooldownError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("second Check = %v, want *CooldownError", err)
	}
	if cooldownErr.Remaining <= 0 {
		t.Fatalf("Remaining = %v, want > 0", cooldownErr.Remaining)
	}
}

func TestCooldownGateReopensAfterWindow(t *testing.T) {
	l := New(30 * time.Second)
	base := time.Now()

	if err := l.CheckAt(base); err != nil {
		t.Fatalf("first Check = %v", err)
	}
	if err := l.CheckAt(base.Add(31 * time.Second)); err != nil {
		t.Fatalf("Check after cooldown elapsed = %v, want nil", err)
	}
}

func TestDefaultCooldownUsedWhenZero(t *testing.T) {
	l := New(0)
	base := time.Now()
	_ = l.CheckAt(base)
	err := l.CheckAt(base.Add(time.Millisecond))
	var cooldownErr *CooldownError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if cooldownErr.Remaining > DefaultCooldown {
		t.Fatalf("Remaining = %v, should not exceed DefaultCooldown", cooldownErr.Remaining)
	}
}
