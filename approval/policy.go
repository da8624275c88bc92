package approval

import "sort"

// Evaluate runs the rule-evaluation step of the state machine: filter
// rules by operation type, try them in priority order, and fall back to
// the policy's thresholds when nothing matches.
func (p Policy) Evaluate(in PredicateInput) (Action, string) {
	rules := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.OperationType == in.Operation.Type {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	for _, r := range rules {
		if r.Condition == nil {
			continue
		}
		if Safe(r.Condition)(in) {
			return r.Action, r.Reason
		}
	}

	score := in.Risk.Score
	switch {
	case score <= p.AutoApproveThreshold:
		return ActionAutoApprove, "score within auto-approve threshold"
	case score <= p.RequireConfirmationThreshold:
		return ActionRequireConfirmation, "score within confirmation threshold"
	default:
		return ActionDeny, "score exceeds confirmation threshold"
	}
}

// BuiltinPolicies returns the three sandbox-mode-keyed policies, with
// rules drawn from reg.
func BuiltinPolicies(reg *Registry) map[SandboxMode]Policy {
	systemDelete := Rule{
		OperationType: OpFileDelete,
		Condition:     MustCondition(reg, "always"),
		Action:        ActionRequireConfirmation,
		Reason:        "file deletion always requires confirmation",
		Priority:      10,
	}
	outsideWorkspaceWrite := Rule{
		OperationType: OpFileWrite,
		Condition:     MustCondition(reg, "target-outside-workspace"),
		Action:        ActionDeny,
		Reason:        "writes outside the workspace are denied",
		Priority:      20,
	}
	criticalCommand := Rule{
		OperationType: OpCommandExec,
		Condition:     MustCondition(reg, "risk-critical"),
		Action:        ActionDeny,
		Reason:        "critical-risk command is denied",
		Priority:      15,
	}
	elevatedCommand := Rule{
		OperationType: OpCommandExec,
		Condition:     MustCondition(reg, "risk-at-least"),
		Action:        ActionRequireConfirmation,
		Reason:        "elevated-risk command requires confirmation",
		Priority:      5,
	}

	readOnly := Policy{
		Name:                         "read-only",
		AutoApproveThreshold:         5,
		RequireConfirmationThreshold: 10,
		Rules: []Rule{
			{
				OperationType: OpFileWrite,
				Condition:     MustCondition(reg, "sandbox-read-only"),
				Action:        ActionDeny,
				Reason:        "writes are not permitted in read-only sandbox",
				Priority:      100,
			},
			{
				OperationType: OpFileDelete,
				Condition:     MustCondition(reg, "sandbox-read-only"),
				Action:        ActionDeny,
				Reason:        "deletes are not permitted in read-only sandbox",
				Priority:      100,
			},
			{
				OperationType: OpCommandExec,
				Condition:     MustCondition(reg, "sandbox-read-only"),
				Action:        ActionDeny,
				Reason:        "commands are not permitted in read-only sandbox",
				Priority:      100,
			},
		},
	}

	workspaceWrite := Policy{
		Name:                         "workspace-write",
		AutoApproveThreshold:         8,
		RequireConfirmationThreshold: 20,
		Rules:                        []Rule{outsideWorkspaceWrite, systemDelete, criticalCommand, elevatedCommand},
	}

	fullAccess := Policy{
		Name:                         "full-access",
		AutoApproveThreshold:         12,
		RequireConfirmationThreshold: 25,
		Rules:                        []Rule{systemDelete, criticalCommand, elevatedCommand},
	}

	return map[SandboxMode]Policy{
		SandboxReadOnly:       readOnly,
		SandboxWorkspaceWrite: workspaceWrite,
		SandboxFullAccess:     fullAccess,
	}
}
