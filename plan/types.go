// Package plan builds and executes orchestration plans: a phase
// definition is expanded into a ToolStep DAG, assigned to voices by
// expertise, and run under one of four execution strategies with a
// fallback ladder when quality drops below the phase's threshold.
package plan

import (
	"time"

	"github.com/voicecouncil/council/voice"
)

// ErrorTolerance selects the default fallback menu for a phase.
type ErrorTolerance string

const (
	ToleranceStrict   ErrorTolerance = "strict"
	ToleranceModerate ErrorTolerance = "moderate"
	ToleranceLenient  ErrorTolerance = "lenient"
)

// ExecutionMode names the strategy used to run a phase's steps.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
	ModePipeline   ExecutionMode = "pipeline"
	ModeAdaptive   ExecutionMode = "adaptive"
)

// FallbackStrategy names one rung of the fallback ladder tried, in
// order, when a plan's success rate drops below its quality threshold.
type FallbackStrategy string

const (
	FallbackRetry               FallbackStrategy = "retry"
	FallbackAlternativeServer   FallbackStrategy = "alternative-server"
	FallbackAlternativeCapability FallbackStrategy = "alternative-capability"
	FallbackSkip                FallbackStrategy = "skip"
	FallbackFail                FallbackStrategy = "fail"
)

// Phase is the input to CreateOrchestrationPlan: what capabilities must
// run, how, and the bar the plan must clear to count as successful.
type Phase struct {
	Name                string
	RequiredCapabilities []string
	ExecutionMode       ExecutionMode
	ErrorTolerance      ErrorTolerance
	MaxExecutionTime    time.Duration
	QualityThreshold    float64 // 0..1 minimum successRate
	Dependencies        map[string][]string // capability -> capabilities it depends on
	FallbackStrategies  []FallbackStrategy  // overrides the error-tolerance default menu
}

// ToolStep is one capability assigned to one voice within a plan.
type ToolStep struct {
	ID           string
	Capability   string
	VoiceID      string
	Dependencies []string
	Deadline     time.Duration
	Shared       bool // result is inserted into the collaboration session for dependents
}

// Plan is the output of CreateOrchestrationPlan: a DAG of steps ready
// for ExecuteOrchestrationPlan.
type Plan struct {
	ID      string
	Phase   Phase
	Steps   []ToolStep
	Session *Session
	Voices  []voice.Voice // the candidate pool CreateOrchestrationPlan assigned from, kept for alternative-capability fallback
}

// StepResult is what executing one ToolStep produces.
type StepResult struct {
	StepID        string
	Success       bool
	Content       any
	Error         string
	ExecutionTime time.Duration
}

// Result is the outcome of ExecuteOrchestrationPlan.
type Result struct {
	PlanID      string
	StepResults map[string]StepResult
	SuccessRate float64
	Passed      bool
	FallbacksUsed []FallbackStrategy
}

// defaultFallbackMenu implements the error-tolerance→fallback-menu rule.
func defaultFallbackMenu(tol ErrorTolerance) []FallbackStrategy {
	switch tol {
	case ToleranceStrict:
		return []FallbackStrategy{FallbackRetry}
	case ToleranceLenient:
		return []FallbackStrategy{FallbackSkip}
	default: // moderate
		return []FallbackStrategy{FallbackAlternativeServer}
	}
}
