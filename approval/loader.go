package approval

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/voicecouncil/council/internal/errs"
)

// RuleDef is a Rule's serializable shape: Condition is a name looked up
// in the Registry at load time rather than a Go function, so a policy
// file can never reference anything beyond the closed predicate set.
type RuleDef struct {
	OperationType OperationType `yaml:"operation_type"`
	Condition     string        `yaml:"condition"`
	Action        Action        `yaml:"action"`
	Reason        string        `yaml:"reason"`
	Priority      int           `yaml:"priority"`
}

// PolicyDef is a Policy's serializable shape.
type PolicyDef struct {
	Name                         string    `yaml:"name"`
	AutoApproveThreshold         float64   `yaml:"auto_approve_threshold"`
	RequireConfirmationThreshold float64   `yaml:"require_confirmation_threshold"`
	Rules                        []RuleDef `yaml:"rules"`
}

// PolicyFile is the top-level shape of a policy rule file: one PolicyDef
// per SandboxMode it applies to.
type PolicyFile struct {
	Policies map[SandboxMode]PolicyDef `yaml:"policies"`
}

// LoadPolicies parses a policy rule file and resolves each rule's named
// condition against reg, the same registry BuiltinPolicies draws from.
// An unknown condition name fails the load rather than being silently
// skipped: a policy file typo should surface at startup, not at the
// first evaluation that happens to hit it.
func LoadPolicies(reg *Registry, data []byte) (map[SandboxMode]Policy, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errs.New("approval.LoadPolicies", "InputInvalid", err)
	}

	out := make(map[SandboxMode]Policy, len(file.Policies))
	for mode, def := range file.Policies {
		policy, err := resolvePolicy(reg, def)
		if err != nil {
			return nil, errs.New("approval.LoadPolicies", "InputInvalid", err).WithID(string(mode))
		}
		out[mode] = policy
	}
	return out, nil
}

func resolvePolicy(reg *Registry, def PolicyDef) (Policy, error) {
	rules := make([]Rule, 0, len(def.Rules))
	for _, rd := range def.Rules {
		cond, ok := reg.Lookup(rd.Condition)
		if !ok {
			return Policy{}, fmt.Errorf("unknown condition %q in policy %q", rd.Condition, def.Name)
		}
		rules = append(rules, Rule{
			OperationType: rd.OperationType,
			Condition:     cond,
			Action:        rd.Action,
			Reason:        rd.Reason,
			Priority:      rd.Priority,
		})
	}
	return Policy{
		Name:                         def.Name,
		AutoApproveThreshold:         def.AutoApproveThreshold,
		RequireConfirmationThreshold: def.RequireConfirmationThreshold,
		Rules:                        rules,
	}, nil
}
