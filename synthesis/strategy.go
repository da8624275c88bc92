package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type strategyOutput struct {
	content    string
	confidence float64
}

func runStrategy(mode Mode, responses []AgentResponse, weights []VoiceWeight, conflicts []Conflict, agreement float64, cfg Config) strategyOutput {
	switch mode {
	case ModeCompetitive:
		return runCompetitive(responses)
	case ModeConsensus:
		return runConsensus(responses, agreement)
	case ModeHierarchical:
		return runHierarchical(responses, weights)
	case ModeDialectical:
		return runDialectical(responses, conflicts, agreement, cfg)
	case ModeCollaborative:
		fallthrough
	default:
		return runCollaborative(responses)
	}
}

// resolveAdaptiveMode implements the adaptive-mode analysis step:
// conflict present → dialectical; high confidence spread → competitive;
// 3+ responses → consensus; else collaborative.
func resolveAdaptiveMode(responses []AgentResponse, conflicts []Conflict) Mode {
	if len(conflicts) > 0 {
		return ModeDialectical
	}
	confidences := make([]float64, len(responses))
	for i, r := range responses {
		confidences[i] = r.NormalizeConfidence()
	}
	if stddev(confidences) > 0.3 {
		return ModeCompetitive
	}
	if len(responses) >= 3 {
		return ModeConsensus
	}
	return ModeCollaborative
}

func runCompetitive(responses []AgentResponse) strategyOutput {
	best := responses[0]
	for _, r := range responses[1:] {
		if r.NormalizeConfidence() > best.NormalizeConfidence() {
			best = r
		}
	}
	return strategyOutput{content: best.Content, confidence: best.NormalizeConfidence()}
}

func runCollaborative(responses []AgentResponse) strategyOutput {
	ordered := append([]AgentResponse(nil), responses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].NormalizeConfidence() > ordered[j].NormalizeConfidence()
	})
	parts := make([]string, len(ordered))
	sum := 0.0
	for i, r := range ordered {
		parts[i] = r.Content
		sum += r.NormalizeConfidence()
	}
	return strategyOutput{
		content:    strings.Join(parts, "\n\n"),
		confidence: sum / float64(len(ordered)),
	}
}

func runConsensus(responses []AgentResponse, agreement float64) strategyOutput {
	type sentenceRef struct {
		text  string
		count int
	}
	var refs []sentenceRef

	for _, r := range responses {
		for _, s := range splitSentences(r.Content) {
			if len(strings.Fields(s)) <= 10 {
				continue
			}
			matched := false
			for i := range refs {
				if jaccardSimilarity(refs[i].text, s) > 0.7 {
					refs[i].count++
					matched = true
					break
				}
			}
			if !matched {
				refs = append(refs, sentenceRef{text: s, count: 1})
			}
		}
	}

	threshold := int(math.Ceil(float64(len(responses)) / 2))
	var shared []string
	for _, ref := range refs {
		if ref.count >= threshold {
			shared = append(shared, ref.text)
		}
	}

	if len(shared) == 0 {
		best := runCompetitive(responses)
		return strategyOutput{content: best.content, confidence: agreement}
	}
	return strategyOutput{content: strings.Join(shared, "\n"), confidence: agreement}
}

func runHierarchical(responses []AgentResponse, weights []VoiceWeight) strategyOutput {
	ordered := append([]AgentResponse(nil), responses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return weightFor(weights, ordered[i].VoiceID) > weightFor(weights, ordered[j].VoiceID)
	})
	parts := make([]string, len(ordered))
	weightedSum := 0.0
	for i, r := range ordered {
		parts[i] = r.Content
		weightedSum += weightFor(weights, r.VoiceID) * r.NormalizeConfidence()
	}
	return strategyOutput{content: strings.Join(parts, "\n\n"), confidence: weightedSum}
}

func runDialectical(responses []AgentResponse, conflicts []Conflict, agreement float64, cfg Config) strategyOutput {
	excerptLen := cfg.DialecticalExcerptLen
	if excerptLen <= 0 {
		excerptLen = 200
	}

	var b strings.Builder
	b.WriteString("## Dialectical Synthesis\n\n")

	b.WriteString("### Perspectives\n\n")
	for _, r := range responses {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", r.VoiceID, excerpt(r.Content, excerptLen)))
	}

	if len(conflicts) > 0 {
		b.WriteString("\n### Conflicts\n\n")
		for _, c := range conflicts {
			b.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", c.Category, c.Severity, c.Description))
		}
	}

	b.WriteString("\n### Synthesis\n\n")
	voiceList := sortedVoiceIDs(responses)
	b.WriteString(fmt.Sprintf("Reconciling the perspectives of %s: ", strings.Join(voiceList, ", ")))
	if len(conflicts) > 0 {
		b.WriteString("the tensions above are resolved by treating each position as valid under different constraints rather than picking a single winner.\n")
	} else {
		b.WriteString("the responses are largely aligned and reinforce a single coherent recommendation.\n")
	}

	return strategyOutput{content: b.String(), confidence: agreement}
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
