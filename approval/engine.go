package approval

import (
	"context"
	"sync"

	"github.com/voicecouncil/council/internal/clog"
)

// Engine runs the full approval state machine: risk assessment, policy
// evaluation, and — when a rule or threshold requires it — interactive
// confirmation. It keeps a per-process history of results.
type Engine struct {
	mu        sync.Mutex
	policies  map[SandboxMode]Policy
	confirmer *Confirmer
	log       *clog.Logger
	history   []ApprovalResult
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithConfirmer overrides the default confirmer (useful for tests).
func WithConfirmer(c *Confirmer) EngineOption {
	return func(e *Engine) { e.confirmer = c }
}

// WithPolicies overrides the built-in policy table.
func WithPolicies(policies map[SandboxMode]Policy) EngineOption {
	return func(e *Engine) { e.policies = policies }
}

// NewEngine builds an Engine with the built-in policies and a registry
// of closed predicates.
func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		policies: BuiltinPolicies(reg),
		log:      clog.New("approval"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestApproval runs operation through received → risk-assessed →
// rule-evaluated → (auto-approved | user-prompted | denied). Any
// internal failure yields a denied result — approval fails closed.
func (e *Engine) RequestApproval(ctx context.Context, op Operation, opCtx OperationContext) ApprovalResult {
	result := e.requestApproval(ctx, op, opCtx)
	e.mu.Lock()
	e.history = append(e.history, result)
	e.mu.Unlock()
	return result
}

func (e *Engine) requestApproval(ctx context.Context, op Operation, opCtx OperationContext) ApprovalResult {
	risk := AssessRisk(op, opCtx)

	policy, ok := e.policies[opCtx.SandboxMode]
	if !ok {
		e.log.Error("no policy for sandbox mode", clog.Fields{"mode": opCtx.SandboxMode})
		return ApprovalResult{
			Status:  StatusDenied,
			Granted: false,
			Reason:  "no approval policy configured for sandbox mode " + string(opCtx.SandboxMode),
		}
	}

	action, reason := policy.Evaluate(PredicateInput{Operation: op, Context: opCtx, Risk: risk})

	switch action {
	case ActionAutoApprove:
		return ApprovalResult{
			Status:       StatusApproved,
			Granted:      true,
			Reason:       reason,
			AutoApproved: true,
		}
	case ActionDeny:
		return ApprovalResult{
			Status:  StatusDenied,
			Granted: false,
			Reason:  reason,
		}
	case ActionRequireConfirmation:
		return e.confirm(ctx, op, risk, reason)
	default:
		return ApprovalResult{
			Status:  StatusDenied,
			Granted: false,
			Reason:  "unrecognized action " + string(action),
		}
	}
}

func (e *Engine) confirm(ctx context.Context, op Operation, risk RiskAssessment, policyReason string) ApprovalResult {
	if e.confirmer == nil {
		e.log.Warn("confirmation required but no confirmer configured; failing closed", clog.Fields{"operation": op.Type})
		return ApprovalResult{Status: StatusDenied, Granted: false, Reason: "confirmation required, no confirmer available"}
	}

	granted, reason := e.confirmer.Confirm(ctx, op, risk)
	if !granted {
		return ApprovalResult{Status: StatusDenied, Granted: false, Reason: reason}
	}
	return ApprovalResult{
		Status:  StatusApproved,
		Granted: true,
		Reason:  policyReason,
	}
}

// History returns a copy of the results recorded so far.
func (e *Engine) History() []ApprovalResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ApprovalResult, len(e.history))
	copy(out, e.history)
	return out
}
