package synthesis

import (
	"math"
	"sort"
	"strings"
)

// domainBoostTokens is the fixed domain set that gives pairwise
// agreement a bounded boost when both responses share tokens from it —
// shared domain vocabulary is a weak signal of agreement even when the
// surrounding wording differs.
var domainBoostTokens = map[string]bool{
	"security": true, "performance": true, "scalability": true,
	"reliability": true, "maintainability": true, "architecture": true,
}

const domainBoostAmount = 0.1
const domainBoostCap = 1.0

// categoricalConflicts lists fixed pairs of mutually-exclusive term
// sets; a paradigm conflict fires when responses split across them.
var categoricalConflicts = []struct {
	category string
	sideA    []string
	sideB    []string
	labelA   string
	labelB   string
}{
	{
		category: "programming paradigm",
		sideA:    []string{"object-oriented", "oop"},
		sideB:    []string{"functional programming", "functional"},
		labelA:   "object-oriented",
		labelB:   "functional programming",
	},
}

// analyzeConflicts computes pairwise Jaccard agreement across responses
// and detects categorical (paradigm-style) conflicts.
func analyzeConflicts(responses []AgentResponse) ([]Conflict, float64) {
	var conflicts []Conflict
	var similarities []float64

	for i := 0; i < len(responses); i++ {
		for j := i + 1; j < len(responses); j++ {
			sim := jaccardSimilarity(responses[i].Content, responses[j].Content)
			similarities = append(similarities, sim)
		}
	}

	for _, cc := range categoricalConflicts {
		sideA := responsesContainingAny(responses, cc.sideA)
		sideB := responsesContainingAny(responses, cc.sideB)
		if len(sideA) > 0 && len(sideB) > 0 {
			conflicts = append(conflicts, Conflict{
				Category:    cc.category,
				Description: cc.labelA + " vs " + cc.labelB,
				Severity:    "medium",
				VoiceIDs:    append(sideA, sideB...),
			})
		}
	}

	agreement := mean(similarities)
	return conflicts, agreement
}

func responsesContainingAny(responses []AgentResponse, terms []string) []string {
	var ids []string
	for _, r := range responses {
		lower := strings.ToLower(r.Content)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				ids = append(ids, r.VoiceID)
				break
			}
		}
	}
	return ids
}

// jaccardSimilarity compares lowercased words of length > 2, with a
// bounded boost when both sides share fixed-domain tokens.
func jaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	union := make(map[string]bool, len(setA)+len(setB))
	for w := range setA {
		union[w] = true
		if setB[w] {
			intersection++
		}
	}
	for w := range setB {
		union[w] = true
	}

	base := 0.0
	if len(union) > 0 {
		base = float64(intersection) / float64(len(union))
	}

	boost := 0.0
	for token := range domainBoostTokens {
		if setA[token] && setB[token] {
			boost += domainBoostAmount
		}
	}

	result := base + boost
	if result > domainBoostCap {
		result = domainBoostCap
	}
	return result
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 1
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	variance := sum / float64(len(xs))
	return math.Sqrt(variance)
}

func sortedVoiceIDs(responses []AgentResponse) []string {
	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.VoiceID)
	}
	sort.Strings(ids)
	return ids
}
