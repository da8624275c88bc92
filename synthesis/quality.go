package synthesis

import "strings"

// innovationBag and practicalityBag are fixed lexical bags; a quality
// score on each axis scales with how many bag terms appear in the
// combined output. These bags are English-only by design — the corpus
// gives no basis for a locale-aware tokenizer here.
var innovationBag = []string{
	"novel", "innovative", "creative", "alternative", "new approach",
	"unconventional", "emerging",
}

var practicalityBag = []string{
	"practical", "actionable", "implementable", "step", "concrete",
	"straightforward", "ready to use",
}

const clampMax = 100

// assessQuality scores the combined output on five axes, per spec.md
// §4.5 step 5.
func assessQuality(original string, combined string, strategyConfidence float64) QualityMetrics {
	coherence := clamp(clampMax - absFloat(avgSentenceLength(combined)-50))
	completeness := clamp(wordOverlapFraction(original, combined) * clampMax)
	accuracy := clamp(strategyConfidence * clampMax)
	innovation := clamp(lexicalBagScore(combined, innovationBag))
	practicality := clamp(lexicalBagScore(combined, practicalityBag))

	overall := (coherence + completeness + accuracy + innovation + practicality) / 5
	return QualityMetrics{
		Coherence:    coherence,
		Completeness: completeness,
		Accuracy:     accuracy,
		Innovation:   innovation,
		Practicality: practicality,
		Overall:      overall,
	}
}

func avgSentenceLength(text string) float64 {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len(strings.Fields(s))
	}
	return float64(total) / float64(len(sentences))
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordOverlapFraction(original, combined string) float64 {
	origWords := wordSet(original)
	if len(origWords) == 0 {
		return 1
	}
	combinedWords := wordSet(combined)
	present := 0
	for w := range origWords {
		if combinedWords[w] {
			present++
		}
	}
	return float64(present) / float64(len(origWords))
}

func lexicalBagScore(text string, bag []string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, term := range bag {
		if strings.Contains(lower, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(bag)) * clampMax
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > clampMax {
		return clampMax
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// adaptiveAdjustments returns an AdaptiveAdjustment for every sub-metric
// scoring below 70.
func adaptiveAdjustments(q QualityMetrics) []AdaptiveAdjustment {
	var out []AdaptiveAdjustment
	check := func(name string, score float64, advice string) {
		if score < 70 {
			out = append(out, AdaptiveAdjustment{Metric: name, Score: score, Description: advice})
		}
	}
	check("coherence", q.Coherence, "tighten sentence length toward the 50-word average")
	check("completeness", q.Completeness, "retain more of the original prompt's vocabulary in the output")
	check("accuracy", q.Accuracy, "favor higher-confidence responses in the chosen strategy")
	check("innovation", q.Innovation, "surface more novel or alternative framing")
	check("practicality", q.Practicality, "add concrete, actionable steps")
	return out
}
