package approval

import "strings"

var baseSeverity = map[OperationType]float64{
	OpFileRead:       2,
	OpFileWrite:      5,
	OpFileDelete:     8,
	OpCommandExec:    7,
	OpNetworkAccess:  6,
	OpGitOperation:   4,
	OpPackageInstall: 7,
	OpCodeGeneration: 3,
	OpFineTuning:     6,
}

var sandboxBase = map[SandboxMode]float64{
	SandboxReadOnly:       1,
	SandboxWorkspaceWrite: 3,
	SandboxFullAccess:     6,
}

var systemPaths = []string{
	"/etc", "/bin", "/usr/bin", "/System", `C:\Windows`, `C:\Program Files`,
}

var dangerousTokens = []string{"rm", "del", "format", "sudo", "chmod", "chown"}
var networkTokens = []string{"curl", "wget", "nc", "netcat"}
var scriptExecutors = []string{"python", "node", "powershell", "bash", "sh"}

const (
	systemPathSeverity   = 9
	outsideRootSeverity  = 6
	hiddenSegmentSeverity = 4
	dangerousTokenSeverity = 9
	networkTokenSeverity   = 6
	scriptExecutorSeverity = 5
)

const (
	thresholdCritical = 25
	thresholdHigh     = 15
	thresholdMedium   = 8
)

// AssessRisk sums severities from the four factor sources and maps the
// total to a RiskLevel.
func AssessRisk(op Operation, ctx OperationContext) RiskAssessment {
	var factors []RiskFactor
	score := 0.0

	if sev, ok := baseSeverity[op.Type]; ok {
		score += sev
		factors = append(factors, RiskFactor{
			Category:    "operation-type",
			Severity:    sev,
			Description: "base severity for " + string(op.Type),
		})
	}

	for _, f := range targetPathFactors(op.Target, ctx.WorkspaceRoot) {
		score += f.Severity
		factors = append(factors, f)
	}

	if sev, ok := sandboxBase[ctx.SandboxMode]; ok {
		score += sev
		factors = append(factors, RiskFactor{
			Category:    "sandbox-mode",
			Severity:    sev,
			Description: "sandbox mode " + string(ctx.SandboxMode),
		})
	}

	if op.Type == OpCommandExec {
		for _, f := range commandContentFactors(op.Target, op.Description) {
			score += f.Severity
			factors = append(factors, f)
		}
	}

	return RiskAssessment{
		Level:           levelForScore(score),
		Score:           score,
		Factors:         factors,
		Recommendations: recommendationsFor(factors),
	}
}

func targetPathFactors(target, workspaceRoot string) []RiskFactor {
	var factors []RiskFactor

	for _, p := range systemPaths {
		if strings.Contains(target, p) {
			factors = append(factors, RiskFactor{
				Category:    "target-path",
				Severity:    systemPathSeverity,
				Description: "target intersects system path " + p,
				Mitigation:  "restrict to workspace paths",
			})
			break
		}
	}

	if workspaceRoot != "" && target != "" && !strings.HasPrefix(target, workspaceRoot) {
		factors = append(factors, RiskFactor{
			Category:    "target-path",
			Severity:    outsideRootSeverity,
			Description: "target is outside workspaceRoot",
		})
	}

	if strings.Contains(target, "/.") || strings.Contains(target, `\.`) {
		factors = append(factors, RiskFactor{
			Category:    "target-path",
			Severity:    hiddenSegmentSeverity,
			Description: "target contains a hidden/config path segment",
		})
	}

	return factors
}

func commandContentFactors(target, description string) []RiskFactor {
	command := strings.ToLower(target + " " + description)
	var factors []RiskFactor

	for _, tok := range dangerousTokens {
		if containsToken(command, tok) {
			factors = append(factors, RiskFactor{
				Category:    "command-content",
				Severity:    dangerousTokenSeverity,
				Description: "dangerous token " + tok,
				Mitigation:  "require explicit confirmation",
			})
		}
	}
	for _, tok := range networkTokens {
		if containsToken(command, tok) {
			factors = append(factors, RiskFactor{
				Category:    "command-content",
				Severity:    networkTokenSeverity,
				Description: "network token " + tok,
			})
		}
	}
	for _, tok := range scriptExecutors {
		if containsToken(command, tok) {
			factors = append(factors, RiskFactor{
				Category:    "command-content",
				Severity:    scriptExecutorSeverity,
				Description: "script executor " + tok,
			})
		}
	}
	return factors
}

func containsToken(s, tok string) bool {
	for _, word := range strings.Fields(s) {
		word = strings.Trim(word, "\"'();&|")
		if word == tok {
			return true
		}
	}
	return false
}

func levelForScore(score float64) RiskLevel {
	switch {
	case score >= thresholdCritical:
		return RiskCritical
	case score >= thresholdHigh:
		return RiskHigh
	case score >= thresholdMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

func recommendationsFor(factors []RiskFactor) []string {
	var out []string
	for _, f := range factors {
		if f.Mitigation != "" {
			out = append(out, f.Mitigation)
		}
	}
	return out
}
