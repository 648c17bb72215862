package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "xscraper/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // no jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{1, 100 * time.Millisecond, "first attempt"},
		{2, 200 * time.Millisecond, "second attempt"},
		{3, 400 * time.Millisecond, "third attempt"},
		{4, 800 * time.Millisecond, "fourth attempt"},
		{5, 1 * time.Second, "fifth attempt (capped at max)"},
		{6, 1 * time.Second, "sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("expected %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestRateLimitBackoffCeiling(t *testing.T) {
	backoff := RateLimitBackoff()

	for _, attempt := range []int{1, 2, 5, 10, 20, 63} {
		delay := backoff.NextDelay(attempt)
		if delay > 15*time.Minute {
			t.Errorf("attempt %d: delay %v exceeds 15 minute ceiling", attempt, delay)
		}
		if delay < 60*time.Second {
			t.Errorf("attempt %d: delay %v below base delay", attempt, delay)
		}
	}
}

func TestLoginBackoffJitterBounds(t *testing.T) {
	backoff := LoginBackoff(2 * time.Second)

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(3)
		// base 2s doubled twice = 8s, plus up to 20% jitter
		if delay < 8*time.Second || delay > 9600*time.Millisecond {
			t.Fatalf("delay %v outside [8s, 9.6s]", delay)
		}
	}
}

func TestHumanDelayBounds(t *testing.T) {
	min, max := 500*time.Millisecond, 2*time.Second
	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		d := HumanDelay(min, max)
		if d < min || d > max {
			t.Fatalf("delay %v outside [%v, %v]", d, min, max)
		}
		seen[d] = true
	}
	if len(seen) < 2 {
		t.Error("expected varied delays, got a constant")
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "connection reset")
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errs.New(errs.ErrorTypeConfiguration, "missing credentials")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestWaitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > time.Second {
		t.Error("wait did not return promptly on cancellation")
	}
}
