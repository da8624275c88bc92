package approval

import (
	"fmt"
	"strings"
	"sync"
)

// PredicateInput is the only state a Predicate may observe: the
// operation under review, its context, and its risk assessment.
type PredicateInput struct {
	Operation Operation
	Context   OperationContext
	Risk      RiskAssessment
}

// Predicate is a side-effect-free condition over a PredicateInput. There
// is deliberately no interpreted expression language here — conditions
// are Go functions registered by name, so a rule can never do more than
// what a registered predicate does.
type Predicate func(PredicateInput) bool

// Registry is a closed set of named predicates. It is the only mechanism
// Policy rules use to reference conditions, so the condition language
// can never grow an eval facility by accident.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewRegistry returns a Registry pre-populated with the built-in
// predicates every policy needs.
func NewRegistry() *Registry {
	r := &Registry{predicates: make(map[string]Predicate)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a named predicate.
func (r *Registry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

// Lookup resolves name to a Predicate and reports whether it exists.
// Callers decide what an unknown name means: Named evaluates it as a
// non-match that falls through to the next rule or the thresholds, while
// MustCondition panics and LoadPolicies returns an error, so a typo in a
// policy table or file surfaces before any evaluation.
func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	return p, ok
}

// Named wraps Lookup as a Predicate for direct use inside a Rule; an
// unknown name always evaluates false rather than panicking or erroring.
func (r *Registry) Named(name string) Predicate {
	return func(in PredicateInput) bool {
		p, ok := r.Lookup(name)
		if !ok {
			return false
		}
		return Safe(p)(in)
	}
}

// Safe wraps a Predicate so that a panicking condition is treated as a
// non-match rather than crashing rule evaluation.
func Safe(p Predicate) Predicate {
	return func(in PredicateInput) (result bool) {
		defer func() {
			if recover() != nil {
				result = false
			}
		}()
		return p(in)
	}
}

func (r *Registry) registerBuiltins() {
	r.predicates["risk-at-least"] = func(in PredicateInput) bool {
		return levelRank(in.Risk.Level) >= levelRank(RiskMedium)
	}
	r.predicates["risk-critical"] = func(in PredicateInput) bool {
		return in.Risk.Level == RiskCritical
	}
	r.predicates["target-in-workspace"] = func(in PredicateInput) bool {
		return strings.HasPrefix(in.Operation.Target, in.Context.WorkspaceRoot)
	}
	r.predicates["target-outside-workspace"] = func(in PredicateInput) bool {
		return in.Context.WorkspaceRoot != "" && !strings.HasPrefix(in.Operation.Target, in.Context.WorkspaceRoot)
	}
	r.predicates["sandbox-read-only"] = func(in PredicateInput) bool {
		return in.Context.SandboxMode == SandboxReadOnly
	}
	r.predicates["sandbox-full-access"] = func(in PredicateInput) bool {
		return in.Context.SandboxMode == SandboxFullAccess
	}
	r.predicates["always"] = func(PredicateInput) bool { return true }
}

func levelRank(l RiskLevel) int {
	switch l {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// MustCondition builds a Predicate from a registry name, panicking at
// policy-construction time (not evaluation time) if the name is unknown
// — so a policy-table typo is caught immediately rather than silently
// treated as non-match.
func MustCondition(r *Registry, name string) Predicate {
	if _, ok := r.Lookup(name); !ok {
		panic(fmt.Sprintf("approval: unknown predicate %q", name))
	}
	return r.Named(name)
}
