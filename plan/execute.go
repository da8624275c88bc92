package plan

import (
	"context"
	"sync"
	"time"

	"github.com/voicecouncil/council/internal/clog"
)

// StepExecutor is the opaque interface ExecuteOrchestrationPlan drives
// one ToolStep through. Concrete MCP dispatch lives outside this
// package — plan only needs a step run to a StepResult.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, step ToolStep, session *Session) StepResult
}

// phaseStats is the rolling sample ExecuteOrchestrationPlan feeds after
// every run, and what the adaptive strategy reads before choosing.
type phaseStats struct {
	mu         sync.Mutex
	samples    []time.Duration
	failures   int
	total      int
}

const phaseStatsWindow = 20

func (s *phaseStats) record(d time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, d)
	if len(s.samples) > phaseStatsWindow {
		s.samples = s.samples[len(s.samples)-phaseStatsWindow:]
	}
	s.total++
	if failed {
		s.failures++
	}
}

func (s *phaseStats) avgLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.samples {
		sum += d
	}
	return sum / time.Duration(len(s.samples))
}

func (s *phaseStats) errorRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return 0
	}
	return float64(s.failures) / float64(s.total)
}

func (p *Planner) statsFor(phaseName string) *phaseStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.perf[phaseName]
	if !ok {
		s = &phaseStats{}
		p.perf[phaseName] = s
	}
	return s
}

// ExecuteOrchestrationPlan runs the stored plan identified by planID
// under its execution mode (resolving "adaptive" from recent phase
// performance), then validates the result against the phase's quality
// threshold, invoking the fallback ladder if it falls short.
func (p *Planner) ExecuteOrchestrationPlan(ctx context.Context, planID string, executor StepExecutor) (Result, error) {
	plan, err := p.lookupPlan(planID)
	if err != nil {
		return Result{}, err
	}

	stats := p.statsFor(plan.Phase.Name)
	mode := plan.Phase.ExecutionMode
	if mode == ModeAdaptive {
		mode = resolveAdaptiveMode(stats)
	}

	start := time.Now()
	results := p.runMode(ctx, mode, plan, executor)
	elapsed := time.Since(start)

	result := validate(plan, results)
	stats.record(elapsed, !result.Passed)

	if !result.Passed {
		result = p.applyFallback(ctx, plan, executor, result)
	}

	p.log.Info("plan execution complete", clog.Fields{
		"plan_id":      plan.ID,
		"phase":        plan.Phase.Name,
		"mode":         mode,
		"success_rate": result.SuccessRate,
		"passed":       result.Passed,
	})
	return result, nil
}

// resolveAdaptiveMode: >5s avg latency → parallel; else >10% error rate
// → sequential; else pipeline.
func resolveAdaptiveMode(stats *phaseStats) ExecutionMode {
	if stats.avgLatency() > 5*time.Second {
		return ModeParallel
	}
	if stats.errorRate() > 0.1 {
		return ModeSequential
	}
	return ModePipeline
}

func (p *Planner) runMode(ctx context.Context, mode ExecutionMode, plan Plan, executor StepExecutor) map[string]StepResult {
	switch mode {
	case ModeSequential:
		return runSequential(ctx, plan, executor)
	case ModeParallel:
		return runParallel(ctx, plan, executor)
	default: // pipeline
		return runPipeline(ctx, plan, executor)
	}
}

func runStep(ctx context.Context, plan Plan, executor StepExecutor, step ToolStep) StepResult {
	stepCtx := ctx
	var cancel context.CancelFunc
	if step.Deadline > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, step.Deadline)
		defer cancel()
	}
	result := executor.ExecuteStep(stepCtx, step, plan.Session)
	result.StepID = step.ID
	if step.Shared && result.Success {
		plan.Session.Put(step.ID, result.Content)
	}
	return result
}

// runSequential executes the topological order one step at a time,
// stopping the chain below any step that fails (its dependents are
// recorded as skipped rather than attempted).
func runSequential(ctx context.Context, plan Plan, executor StepExecutor) map[string]StepResult {
	d := newDAG(plan.Steps)
	byID := stepsByID(plan.Steps)
	results := make(map[string]StepResult, len(plan.Steps))

	for _, id := range d.topologicalOrder() {
		if !d.dependenciesDoneFor(id) {
			results[id] = StepResult{StepID: id, Success: false, Error: "skipped: dependency failed"}
			d.markFailed(id)
			continue
		}
		d.markRunning(id)
		r := runStep(ctx, plan, executor, byID[id])
		results[id] = r
		if r.Success {
			d.markCompleted(id)
		} else {
			d.markFailed(id)
		}
	}
	return results
}

// runParallel executes dependency-free waves concurrently, waiting for
// the whole wave before starting the next.
func runParallel(ctx context.Context, plan Plan, executor StepExecutor) map[string]StepResult {
	d := newDAG(plan.Steps)
	byID := stepsByID(plan.Steps)
	results := make(map[string]StepResult, len(plan.Steps))
	var mu sync.Mutex

	for _, wave := range d.executionLevels() {
		var wg sync.WaitGroup
		for _, id := range wave {
			if !d.dependenciesDoneFor(id) {
				mu.Lock()
				results[id] = StepResult{StepID: id, Success: false, Error: "skipped: dependency failed"}
				mu.Unlock()
				d.markFailed(id)
				continue
			}
			wg.Add(1)
			d.markRunning(id)
			go func(step ToolStep) {
				defer wg.Done()
				r := runStep(ctx, plan, executor, step)
				mu.Lock()
				results[step.ID] = r
				mu.Unlock()
				if r.Success {
					d.markCompleted(step.ID)
				} else {
					d.markFailed(step.ID)
				}
			}(byID[id])
		}
		wg.Wait()
	}
	return results
}

// runPipeline maintains the ready set and races every ready step to
// first completion, launching newly-unblocked steps as each finishes. A
// failed step cascades a skip to its dependents (mirroring sequential
// and parallel), which are recorded as skipped without ever launching.
func runPipeline(ctx context.Context, plan Plan, executor StepExecutor) map[string]StepResult {
	d := newDAG(plan.Steps)
	byID := stepsByID(plan.Steps)
	results := make(map[string]StepResult, len(plan.Steps))

	type done struct {
		id string
		r  StepResult
	}
	doneCh := make(chan done, len(plan.Steps))
	launched := make(map[string]bool, len(plan.Steps))

	launch := func(id string) {
		launched[id] = true
		d.markRunning(id)
		go func(step ToolStep) {
			r := runStep(ctx, plan, executor, step)
			doneCh <- done{id: step.ID, r: r}
		}(byID[id])
	}

	recordSkipped := func() {
		for _, id := range d.skippedIDs() {
			if launched[id] {
				continue
			}
			launched[id] = true
			results[id] = StepResult{StepID: id, Success: false, Error: "skipped: dependency failed"}
		}
	}

	for _, id := range d.readyNodes() {
		launch(id)
	}
	recordSkipped()

	for len(results) < len(plan.Steps) {
		finished := <-doneCh
		results[finished.id] = finished.r
		if finished.r.Success {
			d.markCompleted(finished.id)
		} else {
			d.markFailed(finished.id)
		}
		recordSkipped()
		for _, id := range d.readyNodes() {
			if !launched[id] {
				launch(id)
			}
		}
	}
	return results
}

func stepsByID(steps []ToolStep) map[string]ToolStep {
	out := make(map[string]ToolStep, len(steps))
	for _, s := range steps {
		out[s.ID] = s
	}
	return out
}

// dependenciesDoneFor is a read-only convenience wrapper the strategies
// use to decide whether to skip a node its dag already marked skipped.
func (d *dag) dependenciesDoneFor(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	if n.status == nodeSkipped {
		return false
	}
	return d.dependenciesDone(n)
}

// validate computes successRate and whether the plan cleared its
// phase's quality threshold.
func validate(plan Plan, results map[string]StepResult) Result {
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	total := len(results)
	rate := 1.0
	if total > 0 {
		rate = float64(successful) / float64(total)
	}
	return Result{
		PlanID:      plan.ID,
		StepResults: results,
		SuccessRate: rate,
		Passed:      rate >= plan.Phase.QualityThreshold,
	}
}
