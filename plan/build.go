package plan

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
	"github.com/voicecouncil/council/voice"
)

const (
	expertTierScore    = 100.0
	preferredTierScore = 50.0
	expertThreshold    = 0.8
)

// Planner owns created plans (keyed by ID, for executeOrchestrationPlan's
// planId lookup) and the rolling per-phase performance samples the
// adaptive execution strategy reads.
type Planner struct {
	mu    sync.Mutex
	plans map[string]Plan
	perf  map[string]*phaseStats
	log   *clog.Logger
}

// NewPlanner builds an empty Planner.
func NewPlanner() *Planner {
	return &Planner{
		plans: make(map[string]Plan),
		perf:  make(map[string]*phaseStats),
		log:   clog.New("plan"),
	}
}

// CreateOrchestrationPlan builds one ToolStep per phase.RequiredCapabilities,
// assigning each to the best-scoring voice in voices, and opens the
// plan's collaboration session. requirements may carry a "shared" entry
// (a []string of capability names) marking their ToolStep.Shared so
// dependents see the result through the session.
func (p *Planner) CreateOrchestrationPlan(phase Phase, voices []voice.Voice, requirements map[string]any) (Plan, error) {
	if len(phase.RequiredCapabilities) == 0 {
		return Plan{}, errs.New("plan.CreateOrchestrationPlan", "InputInvalid", errs.ErrInputInvalid)
	}
	if len(voices) == 0 {
		return Plan{}, errs.New("plan.CreateOrchestrationPlan", "InputInvalid", errs.ErrInputInvalid)
	}

	shared := sharedCapabilities(requirements)
	perStepDeadline := phase.MaxExecutionTime / time.Duration(len(phase.RequiredCapabilities))

	steps := make([]ToolStep, 0, len(phase.RequiredCapabilities))
	for _, cap := range phase.RequiredCapabilities {
		assignee := bestVoiceFor(cap, voices)
		steps = append(steps, ToolStep{
			ID:           cap,
			Capability:   cap,
			VoiceID:      assignee,
			Dependencies: phase.Dependencies[cap],
			Deadline:     perStepDeadline,
			Shared:       shared[cap],
		})
	}

	plan := Plan{
		ID:      uuid.NewString(),
		Phase:   phase,
		Steps:   steps,
		Session: newSession(),
		Voices:  append([]voice.Voice(nil), voices...),
	}

	p.mu.Lock()
	p.plans[plan.ID] = plan
	p.mu.Unlock()

	return plan, nil
}

// lookupPlan returns the stored plan for planID.
func (p *Planner) lookupPlan(planID string) (Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[planID]
	if !ok {
		return Plan{}, errs.New("plan.ExecuteOrchestrationPlan", "NotFound", errs.ErrNotFound).WithID(planID)
	}
	return plan, nil
}

func sharedCapabilities(requirements map[string]any) map[string]bool {
	out := make(map[string]bool)
	raw, ok := requirements["shared"]
	if !ok {
		return out
	}
	list, ok := raw.([]string)
	if !ok {
		return out
	}
	for _, c := range list {
		out[c] = true
	}
	return out
}

// bestVoiceFor implements the spec's assignment score: expert (highest
// base tier) > preferred > default, plus performance weight·30 and
// reliability weight·20. Ties fall to the first voice in input order.
func bestVoiceFor(capability string, voices []voice.Voice) string {
	bestID := ""
	bestScore := -1.0
	for _, v := range voices {
		score := tierScore(capability, v) + v.Weights.Performance*30 + v.Weights.Reliability*20
		if score > bestScore {
			bestScore = score
			bestID = v.ID
		}
	}
	return bestID
}

func tierScore(capability string, v voice.Voice) float64 {
	if v.ExpertiseLevel >= expertThreshold && hasSpecialization(v, capability) {
		return expertTierScore
	}
	if containsStr(v.PreferredCapabilities, capability) {
		return preferredTierScore
	}
	return v.ExpertiseLevel * 10
}

func hasSpecialization(v voice.Voice, capability string) bool {
	return containsStr(v.Specializations, capability) || v.Domain == capability
}

func containsStr(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
