// Package resilience supplies the circuit breaker and retry/backoff
// primitives; the MCP coordinator's connection pool uses the breaker.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
)

// State mirrors the three-state circuit breaker machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier decides whether an error should count toward the
// consecutive-failure counter. Errors representing caller mistakes
// (invalid input, not-found) should not trip the breaker.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts everything except input/not-found errors
// as a breaker-tripping failure.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	return !errs.IsNotFound(err) && !errors.Is(err, errs.ErrInputInvalid)
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	HalfOpenDelay    time.Duration // time open before allowing a probe
	Classifier       ErrorClassifier
}

// DefaultBreakerConfig resolves this engine's Open Question on circuit
// breaker defaults: 5 consecutive failures, 30s half-open delay.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		HalfOpenDelay:    30 * time.Second,
		Classifier:       DefaultErrorClassifier,
	}
}

// Breaker is a per-connection consecutive-failure circuit breaker: closed
// allows all calls, open refuses all calls until HalfOpenDelay elapses,
// half-open allows exactly one probe call to decide the next transition.
type Breaker struct {
	mu                  sync.Mutex
	cfg                 BreakerConfig
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    bool
	log                 *clog.Logger
}

// NewBreaker builds a Breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.HalfOpenDelay <= 0 {
		cfg.HalfOpenDelay = 30 * time.Second
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultErrorClassifier
	}
	return &Breaker{cfg: cfg, state: StateClosed, log: clog.New("resilience.breaker").With(cfg.Name)}
}

// Allow reports whether a call may proceed, transitioning open→half-open
// once HalfOpenDelay has elapsed. Only one probe is admitted at a time
// while half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.HalfOpenDelay {
			b.transition(StateHalfOpen)
			b.halfOpenInFlight = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// Ready reports whether a call would currently be admitted, without the
// state mutation Allow performs. Use this to filter or rank candidates
// before picking one to actually call through Allow — calling Allow
// itself during selection would consume the single half-open probe slot
// before the chosen candidate ever gets to use it.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Since(b.openedAt) >= b.cfg.HalfOpenDelay
	case StateHalfOpen:
		return !b.halfOpenInFlight
	default:
		return false
	}
}

// RecordResult updates the breaker state machine from a call outcome.
// Pass the raw error; non-counting errors (per the classifier) leave the
// breaker untouched.
func (b *Breaker) RecordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.halfOpenInFlight = false
	}

	if err == nil {
		b.consecutiveFailures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return
	}

	if !b.cfg.Classifier(err) {
		return
	}

	b.consecutiveFailures++
	if b.state == StateHalfOpen {
		b.transition(StateOpen)
		b.openedAt = time.Now()
		return
	}
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
		b.openedAt = time.Now()
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if from != to {
		b.log.Info("circuit breaker state change", clog.Fields{"from": from.String(), "to": to.String()})
	}
}

// State returns the current state for inspection/metrics.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
