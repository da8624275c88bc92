package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 3, HalfOpenDelay: time.Hour})

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("attempt %d: expected closed breaker to allow", i)
		}
		b.RecordResult(errors.New("boom"))
	}

	if b.State() != StateOpen {
		t.Errorf("expected open after %d consecutive failures, got %s", 3, b.State())
	}
	if b.Allow() {
		t.Error("expected open breaker to refuse calls")
	}
}

func TestBreaker_HalfOpenAfterDelay(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, HalfOpenDelay: 20 * time.Millisecond})

	b.Allow()
	b.RecordResult(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe to be allowed after delay")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half-open, got %s", b.State())
	}

	// a second concurrent probe must be refused
	if b.Allow() {
		t.Error("expected second half-open probe to be refused")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, HalfOpenDelay: 10 * time.Millisecond})

	b.Allow()
	b.RecordResult(errors.New("boom"))
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	b.RecordResult(nil)

	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
	if b.ConsecutiveFailures() != 0 {
		t.Errorf("expected failure counter reset, got %d", b.ConsecutiveFailures())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, HalfOpenDelay: 10 * time.Millisecond})

	b.Allow()
	b.RecordResult(errors.New("boom"))
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	b.RecordResult(errors.New("still broken"))

	if b.State() != StateOpen {
		t.Errorf("expected re-opened after failed probe, got %s", b.State())
	}
}

func TestBreaker_NonCountingErrorIsIgnored(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:             "t",
		FailureThreshold: 1,
		HalfOpenDelay:    time.Hour,
		Classifier:       func(err error) bool { return false },
	})

	b.Allow()
	b.RecordResult(errors.New("user error, not infra"))

	if b.State() != StateClosed {
		t.Errorf("expected classifier to suppress trip, got %s", b.State())
	}
}
