package plan

import (
	"context"

	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/voice"
)

// applyFallback walks the fallback ladder (phase.FallbackStrategies, or
// the error-tolerance default menu) until the plan clears its quality
// threshold or the ladder runs out.
func (p *Planner) applyFallback(ctx context.Context, plan Plan, executor StepExecutor, result Result) Result {
	ladder := plan.Phase.FallbackStrategies
	if len(ladder) == 0 {
		ladder = defaultFallbackMenu(plan.Phase.ErrorTolerance)
	}

	for _, strategy := range ladder {
		result.FallbacksUsed = append(result.FallbacksUsed, strategy)

		switch strategy {
		case FallbackRetry, FallbackAlternativeServer:
			result = p.retryFailedSteps(ctx, plan, executor, result)
		case FallbackAlternativeCapability:
			result = p.retryWithAlternativeVoice(ctx, plan, executor, result)
		case FallbackSkip:
			result = skipFailedSteps(plan, result)
		case FallbackFail:
			// ladder explicitly stops here; leave result as the last attempt.
		}

		if result.Passed {
			break
		}
		if strategy == FallbackFail {
			break
		}
	}

	p.log.Warn("plan fallback ladder invoked", clog.Fields{
		"plan_id":  plan.ID,
		"ladder":   ladder,
		"passed":   result.Passed,
	})
	return result
}

func failedStepIDs(results map[string]StepResult) []string {
	var ids []string
	for id, r := range results {
		if !r.Success {
			ids = append(ids, id)
		}
	}
	return ids
}

// retryFailedSteps re-runs every currently-failing step once. This
// covers both "retry" and "alternative-server": the plan package has no
// visibility into which server a step's executor picked, so the retry
// itself is what gives the executor's own connection pool the chance to
// route around whatever connection tripped its breaker last time.
func (p *Planner) retryFailedSteps(ctx context.Context, plan Plan, executor StepExecutor, result Result) Result {
	byID := stepsByID(plan.Steps)
	for _, id := range failedStepIDs(result.StepResults) {
		step, ok := byID[id]
		if !ok {
			continue
		}
		r := runStep(ctx, plan, executor, step)
		result.StepResults[id] = r
	}
	return recompute(plan, result)
}

// retryWithAlternativeVoice reassigns each failing step to the next-best
// voice (excluding whichever voice it was already assigned to) and
// retries once more.
func (p *Planner) retryWithAlternativeVoice(ctx context.Context, plan Plan, executor StepExecutor, result Result) Result {
	byID := stepsByID(plan.Steps)
	for _, id := range failedStepIDs(result.StepResults) {
		step, ok := byID[id]
		if !ok {
			continue
		}
		alt := nextBestVoiceExcluding(step.Capability, plan.Voices, step.VoiceID)
		if alt == "" || alt == step.VoiceID {
			continue
		}
		step.VoiceID = alt
		r := runStep(ctx, plan, executor, step)
		result.StepResults[id] = r
	}
	return recompute(plan, result)
}

func nextBestVoiceExcluding(capability string, voices []voice.Voice, exclude string) string {
	bestID := ""
	bestScore := -1.0
	for _, v := range voices {
		if v.ID == exclude {
			continue
		}
		score := tierScore(capability, v) + v.Weights.Performance*30 + v.Weights.Reliability*20
		if score > bestScore {
			bestScore = score
			bestID = v.ID
		}
	}
	return bestID
}

// skipFailedSteps drops failing steps from the success-rate denominator
// entirely, matching the "lenient" tolerance's default menu.
func skipFailedSteps(plan Plan, result Result) Result {
	total := 0
	successful := 0
	for id, r := range result.StepResults {
		if !r.Success {
			r.Error = "skipped by fallback"
			result.StepResults[id] = r
			continue
		}
		total++
		successful++
	}
	if total == 0 {
		result.SuccessRate = 1
	} else {
		result.SuccessRate = float64(successful) / float64(total)
	}
	result.Passed = result.SuccessRate >= plan.Phase.QualityThreshold
	return result
}

func recompute(plan Plan, result Result) Result {
	successful := 0
	for _, r := range result.StepResults {
		if r.Success {
			successful++
		}
	}
	total := len(result.StepResults)
	rate := 1.0
	if total > 0 {
		rate = float64(successful) / float64(total)
	}
	result.SuccessRate = rate
	result.Passed = rate >= plan.Phase.QualityThreshold
	return result
}
