package voice

import "strings"

var simpleKeywords = []string{
	"hello world", "trivial", "one-liner", "rename variable", "typo",
}

var moderateKeywords = []string{
	"refactor", "optimize", "integrate", "improve", "extend",
}

var complexKeywords = []string{
	"architecture", "distributed", "concurrent", "migrate", "tradeoff",
	"security", "scalable", "scale", "resilient",
}

// specializationKeywords maps a specialization to the prompt keywords
// that bias team composition toward it.
var specializationKeywords = map[string][]string{
	"security":       {"security", "vulnerability", "auth", "encryption"},
	"architect":      {"architecture", "design", "scalable", "tradeoff"},
	"developer":      {"implement", "write", "build", "code"},
	"analyzer":       {"analyze", "review", "audit"},
	"quality":        {"test", "quality", "bug", "fix"},
	"implementation": {"implement", "build", "write", "code"},
	"design":         {"design", "architecture", "pattern"},
	"analysis":       {"analyze", "review", "investigate"},
	"maintainer":     {"maintain", "refactor", "cleanup"},
}

// ClassifyComplexity applies the complexity heuristic: count matches in
// three keyword bags, weight them 3/2/1, then classify against explicit
// overrides for word count and multi-requirement connectors.
func ClassifyComplexity(prompt string) Complexity {
	lower := strings.ToLower(prompt)
	wordCount := len(strings.Fields(lower))

	simple := countMatches(lower, simpleKeywords)
	moderate := countMatches(lower, moderateKeywords)
	complex := countMatches(lower, complexKeywords)

	score := 3*complex + 2*moderate + simple

	if score >= 5 || wordCount > 50 || strings.Contains(lower, " and ") || strings.Contains(lower, ", ") {
		return ComplexityComplex
	}
	if score >= 2 || wordCount > 20 {
		return ComplexityModerate
	}
	return ComplexitySimple
}

func countMatches(lower string, bag []string) int {
	n := 0
	for _, kw := range bag {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// matchedSpecializations returns the specializations whose keyword bias
// fires against the prompt, in a stable, deterministic order.
func matchedSpecializations(prompt string) []string {
	lower := strings.ToLower(prompt)
	order := []string{"security", "architect", "developer", "analyzer", "quality", "implementation", "design", "analysis", "maintainer"}
	var matched []string
	for _, spec := range order {
		for _, kw := range specializationKeywords[spec] {
			if strings.Contains(lower, kw) {
				matched = append(matched, spec)
				break
			}
		}
	}
	return matched
}
