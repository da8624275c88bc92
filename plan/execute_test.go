package plan

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeExecutor fails every step whose ID is in fail, and records each
// step it actually ran (for asserting skip/cascade behavior).
type fakeExecutor struct {
	mu  sync.Mutex
	fail map[string]bool
	ran  map[string]int
}

func newFakeExecutor(fail ...string) *fakeExecutor {
	f := &fakeExecutor{fail: make(map[string]bool), ran: make(map[string]int)}
	for _, id := range fail {
		f.fail[id] = true
	}
	return f
}

func (f *fakeExecutor) ExecuteStep(ctx context.Context, step ToolStep, session *Session) StepResult {
	f.mu.Lock()
	f.ran[step.ID]++
	f.mu.Unlock()

	if f.fail[step.ID] {
		return StepResult{Success: false, Error: "boom"}
	}
	return StepResult{Success: true, Content: "ok:" + step.ID}
}

func (f *fakeExecutor) runCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ran[id]
}

func basicPhase(mode ExecutionMode) Phase {
	return Phase{
		Name:                 "test-phase",
		RequiredCapabilities: []string{"a", "b", "c", "d"},
		Dependencies: map[string][]string{
			"b": {"a"},
			"c": {"a"},
			"d": {"b", "c"},
		},
		ExecutionMode:    mode,
		ErrorTolerance:   ToleranceModerate,
		MaxExecutionTime: time.Second,
		QualityThreshold: 1.0,
	}
}

func buildTestPlan(t *testing.T, p *Planner, mode ExecutionMode) Plan {
	t.Helper()
	plan, err := p.CreateOrchestrationPlan(basicPhase(mode), testVoices(), nil)
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}
	return plan
}

func TestExecuteOrchestrationPlan_SequentialAllSucceed(t *testing.T) {
	p := NewPlanner()
	plan := buildTestPlan(t, p, ModeSequential)
	exec := newFakeExecutor()

	result, err := p.ExecuteOrchestrationPlan(context.Background(), plan.ID, exec)
	if err != nil {
		t.Fatalf("ExecuteOrchestrationPlan: %v", err)
	}
	if !result.Passed || result.SuccessRate != 1 {
		t.Fatalf("expected all steps to pass, got %+v", result)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if exec.runCount(id) != 1 {
			t.Errorf("expected step %q to run exactly once, ran %d times", id, exec.runCount(id))
		}
	}
}

func TestRunParallel_CascadesSkipOnFailure(t *testing.T) {
	p := NewPlanner()
	plan := buildTestPlan(t, p, ModeParallel)
	exec := newFakeExecutor("a")

	results := runParallel(context.Background(), plan, exec)
	if results["a"].Success {
		t.Fatal("expected 'a' to fail")
	}
	// b, c, d all depend (directly or transitively) on a and should never run.
	for _, id := range []string{"b", "c", "d"} {
		if exec.runCount(id) != 0 {
			t.Errorf("expected step %q to be skipped (never run), ran %d times", id, exec.runCount(id))
		}
		if r := results[id]; r.Success || r.Error == "" {
			t.Errorf("expected %q recorded as a skipped failure, got %+v", id, r)
		}
	}
}

func TestRunPipeline_TerminatesWithCascadingFailure(t *testing.T) {
	p := NewPlanner()
	plan := buildTestPlan(t, p, ModePipeline)
	exec := newFakeExecutor("a")

	done := make(chan map[string]StepResult, 1)
	go func() { done <- runPipeline(context.Background(), plan, exec) }()

	select {
	case results := <-done:
		if len(results) != 4 {
			t.Fatalf("expected all 4 steps recorded (3 skipped + 1 failed), got %d: %+v", len(results), results)
		}
		for _, id := range []string{"b", "c", "d"} {
			if r := results[id]; r.Success {
				t.Errorf("expected %q skipped after 'a' fails, got %+v", id, r)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runPipeline deadlocked: never terminated after a cascading failure")
	}
}

func TestExecuteOrchestrationPlan_SharedStepFeedsSession(t *testing.T) {
	p := NewPlanner()
	phase := Phase{
		Name:                 "shared-phase",
		RequiredCapabilities: []string{"a", "b"},
		Dependencies:         map[string][]string{"b": {"a"}},
		ExecutionMode:        ModeSequential,
		MaxExecutionTime:     time.Second,
		QualityThreshold:     1.0,
	}
	plan, err := p.CreateOrchestrationPlan(phase, testVoices(), map[string]any{"shared": []string{"a"}})
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}

	exec := newFakeExecutor()
	if _, err := p.ExecuteOrchestrationPlan(context.Background(), plan.ID, exec); err != nil {
		t.Fatalf("ExecuteOrchestrationPlan: %v", err)
	}
	v, ok := plan.Session.Get("a")
	if !ok || v != "ok:a" {
		t.Errorf("expected shared step 'a' result in the session, got (%v, %v)", v, ok)
	}
}

func TestResolveAdaptiveMode_Thresholds(t *testing.T) {
	highLatency := &phaseStats{}
	highLatency.record(6*time.Second, false)
	if got := resolveAdaptiveMode(highLatency); got != ModeParallel {
		t.Errorf("expected ModeParallel for high latency, got %v", got)
	}

	highErrors := &phaseStats{}
	for i := 0; i < 10; i++ {
		highErrors.record(time.Millisecond, i < 5)
	}
	if got := resolveAdaptiveMode(highErrors); got != ModeSequential {
		t.Errorf("expected ModeSequential for high error rate, got %v", got)
	}

	healthy := &phaseStats{}
	healthy.record(time.Millisecond, false)
	if got := resolveAdaptiveMode(healthy); got != ModePipeline {
		t.Errorf("expected ModePipeline when healthy, got %v", got)
	}
}

func TestExecuteOrchestrationPlan_UnknownPlanErrors(t *testing.T) {
	p := NewPlanner()
	if _, err := p.ExecuteOrchestrationPlan(context.Background(), "does-not-exist", newFakeExecutor()); err == nil {
		t.Fatal("expected an error looking up an unknown plan ID")
	}
}
