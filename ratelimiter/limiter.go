// Package ratelimiter implements the faucet's single global cooldown
// gate: one slot, no per-client tracking, anti-abuse only. It is built on
// golang.org/x/time/rate configured as a 1-token bucket that refills
// exactly once per cooldown — the same shape as "last-fire timestamp
// plus elapsed check" but with the arithmetic and clock handling
// delegated to a maintained library instead of hand-rolled.
package ratelimiter

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is the faucet's default cooldown window.
const DefaultCooldown = 30 * time.Second

// CooldownError is returned by Check when the gate is still closed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("faucet on cooldown, %s remaining", e.Remaining)
}

// Limiter is the faucet's single-slot cooldown gate.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter with the given cooldown. A zero cooldown uses
// DefaultCooldown.
func New(cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(cooldown), 1)}
}

// Check reports whether the faucet may fire right now. On success the
// cooldown slot is consumed; on failure it returns a CooldownError
// naming how much longer the caller must wait.
func (l *Limiter) Check() error {
	return l.CheckAt(time.Now())
}

// CheckAt is Check with an explicit reference time, so callers (and
// tests) can drive the gate deterministically.
func (l *Limiter) CheckAt(now time.Time) error {
	r := l.rl.ReserveN(now, 1)
	if !r.OK() {
		// Cannot happen with burst=1 and n=1, but fail closed rather than
		// silently allowing the faucet to fire.
		return &CooldownError{Remaining: DefaultCooldown}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &CooldownError{Remaining: delay}
	}
	return nil
}
