package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Strategy: BackoffExponential}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Strategy: BackoffLinear}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	err := Retry(ctx, cfg, func() error { return errors.New("boom") })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryConfig_Delay_Linear(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Strategy: BackoffLinear}
	if d := cfg.Delay(1); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", d)
	}
	if d := cfg.Delay(3); d != 300*time.Millisecond {
		t.Errorf("expected 300ms, got %v", d)
	}
}

func TestRetryConfig_Delay_ExponentialCapsAtMax(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Strategy: BackoffExponential}
	if d := cfg.Delay(10); d != 300*time.Millisecond {
		t.Errorf("expected capped at 300ms, got %v", d)
	}
}

func TestRetryConfig_Delay_AdaptiveScalesWithLoad(t *testing.T) {
	cfg := &RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Strategy:     BackoffAdaptive,
		LoadFunc:     func() float64 { return 100 },
	}
	// attempt 1: base = 100ms * 2^0 = 100ms, adaptive multiplies by (1+100/100)=2 -> 200ms
	if d := cfg.Delay(1); d != 200*time.Millisecond {
		t.Errorf("expected 200ms under full load, got %v", d)
	}
}

func TestRetryWithBreaker_OpenBreakerShortCircuits(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, HalfOpenDelay: time.Hour})
	b.Allow()
	b.RecordResult(errors.New("trip it"))

	calls := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	err := RetryWithBreaker(context.Background(), cfg, b, func() error {
		calls++
		return nil
	})

	if err == nil {
		t.Fatal("expected error from open breaker")
	}
	if calls != 0 {
		t.Errorf("expected fn never called while breaker open, got %d calls", calls)
	}
}
