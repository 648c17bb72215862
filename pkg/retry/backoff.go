package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to apply before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay caps the computed delay; zero means uncapped
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid a thundering-herd cadence (0.0 to 1.0)
	JitterFactor float64
	// OnlyGrowJitter keeps the jitter strictly additive instead of symmetric
	OnlyGrowJitter bool
}

// NextDelay calculates the delay for the given attempt
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		if eb.OnlyGrowJitter {
			delay += rand.Float64() * jitter
		} else {
			delay += (rand.Float64() * 2 * jitter) - jitter
		}
	}

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset resets the backoff to initial state
func (eb *ExponentialBackoff) Reset() {}

// LoginBackoff is the retry policy for interactive logins:
// baseDelay * 2^(attempt-1) with up to 20% additive jitter. The attempt
// budget is enforced by the caller, not the strategy.
func LoginBackoff(baseDelay time.Duration) *ExponentialBackoff {
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &ExponentialBackoff{
		BaseDelay:      baseDelay,
		Multiplier:     2.0,
		JitterFactor:   0.2,
		OnlyGrowJitter: true,
	}
}

// RateLimitBackoff is the recovery policy for throttle signals:
// 60s * 2^(attempt-1) with up to 10% additive jitter, never exceeding
// 15 minutes. It never exhausts on its own; escalation to the fallback
// path is a separate orchestrator decision.
func RateLimitBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:      60 * time.Second,
		MaxDelay:       15 * time.Minute,
		Multiplier:     2.0,
		JitterFactor:   0.1,
		OnlyGrowJitter: true,
	}
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset resets the backoff (no-op for constant backoff)
func (cb *ConstantBackoff) Reset() {}

// HumanDelay returns a gaussian-smoothed random duration between min and
// max, imitating organic pacing. Samples outside the bounds are clamped.
func HumanDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	mean := float64(min+max) / 2
	// three sigmas on each side of the mean land inside the bounds
	stddev := float64(max-min) / 6
	d := time.Duration(rand.NormFloat64()*stddev + mean)
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
