package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/voicecouncil/council/internal/errs"
)

// BackoffStrategy names the delay curve between retry attempts.
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
	BackoffAdaptive    BackoffStrategy = "adaptive"
)

// RetryConfig configures Retry. SystemLoad, read at call time via
// LoadFunc, only matters for BackoffAdaptive.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Strategy      BackoffStrategy
	LoadFunc      func() float64 // returns system load in [0,100]; used by adaptive backoff
}

// DefaultRetryConfig returns exponential backoff with three attempts.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     BackoffExponential,
	}
}

// Delay computes the backoff delay before attempt N (1-indexed: the
// delay that precedes attempt N+1), capped at MaxDelay.
func (c *RetryConfig) Delay(attempt int) time.Duration {
	var d time.Duration
	switch c.Strategy {
	case BackoffLinear:
		d = c.InitialDelay * time.Duration(attempt)
	case BackoffAdaptive:
		load := 0.0
		if c.LoadFunc != nil {
			load = c.LoadFunc()
		}
		exp := float64(c.InitialDelay) * pow2(attempt-1)
		d = time.Duration(exp * (1 + load/100))
	default: // exponential
		d = time.Duration(float64(c.InitialDelay) * pow2(attempt-1))
	}
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

func pow2(n int) float64 {
	if n <= 0 {
		return 1
	}
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

// Retry runs fn up to MaxAttempts times, sleeping per Delay between
// attempts, and aborts promptly on context cancellation.
func Retry(ctx context.Context, cfg *RetryConfig, fn func() error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("resilience: %d attempts exhausted, last error: %v: %w", cfg.MaxAttempts, lastErr, errs.ErrRequestTimeout)
}

// RetryWithBreaker combines Retry with a Breaker: each attempt checks
// Allow() first and reports the outcome via RecordResult.
func RetryWithBreaker(ctx context.Context, cfg *RetryConfig, b *Breaker, fn func() error) error {
	return Retry(ctx, cfg, func() error {
		if !b.Allow() {
			return errs.ErrServerCircuitOpen
		}
		err := fn()
		b.RecordResult(err)
		return err
	})
}
