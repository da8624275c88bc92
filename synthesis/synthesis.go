package synthesis

import (
	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
)

// Synthesizer runs the synthesis pipeline over a set of agent responses.
type Synthesizer struct {
	log *clog.Logger
}

// New builds a Synthesizer.
func New() *Synthesizer {
	return &Synthesizer{log: clog.New("synthesis")}
}

// Synthesize runs mode resolution, weighting, conflict analysis, the
// selected strategy, quality assessment, and adaptive refinement.
// Any internal error degrades to the spec's fallback result rather than
// propagating — the caller is never denied an answer.
func (s *Synthesizer) Synthesize(responses []AgentResponse, cfg Config) (result Result) {
	if len(responses) == 0 {
		s.log.Error("synthesize called with no responses", clog.Fields{"error": errs.ErrInputInvalid.Error()})
		return fallbackResult(nil)
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("synthesis panicked, returning fallback", clog.Fields{"recovered": r})
			result = fallbackResult(responses)
		}
	}()

	result = s.runOnce(responses, cfg)

	if cfg.EnableAdaptiveSynthesis && result.Quality.Overall < cfg.QualityThreshold {
		maxIter := cfg.MaxIterations
		if maxIter <= 0 {
			maxIter = 3
		}
		result.Adjustments = adaptiveAdjustments(result.Quality)
		for iter := 1; iter < maxIter && result.Quality.Overall < cfg.QualityThreshold; iter++ {
			retry := s.runOnce(responses, cfg)
			retry.Iterations = iter + 1
			if retry.Quality.Overall > result.Quality.Overall {
				retry.Adjustments = adaptiveAdjustments(retry.Quality)
				result = retry
			}
		}
	}

	return result
}

func (s *Synthesizer) runOnce(responses []AgentResponse, cfg Config) Result {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeCollaborative
	}

	conflicts, agreement := analyzeConflicts(responses)

	resolvedMode := mode
	if mode == ModeAdaptive {
		resolvedMode = resolveAdaptiveMode(responses, conflicts)
	}

	weights := computeWeights(responses, cfg.WeightingStrategy)
	output := runStrategy(resolvedMode, responses, weights, conflicts, agreement, cfg)

	original := responses[0].Content
	quality := assessQuality(original, output.content, output.confidence)

	return Result{
		Success:         true,
		CombinedContent: output.content,
		Confidence:      output.confidence,
		Strategy:        resolvedMode,
		Weights:         weights,
		Conflicts:       conflicts,
		AgreementLevel:  agreement,
		Quality:         quality,
		Iterations:      1,
	}
}

// fallbackResult is returned whenever synthesis cannot proceed: the
// caller is never denied an answer, only a degraded one.
func fallbackResult(responses []AgentResponse) Result {
	content := ""
	if len(responses) > 0 {
		content = responses[0].Content
	}
	return Result{
		Success:         false,
		CombinedContent: content,
		Confidence:      0.5,
		Strategy:        ModeCollaborative,
		Quality: QualityMetrics{
			Coherence: 50, Completeness: 50, Accuracy: 50,
			Innovation: 50, Practicality: 50, Overall: 50,
		},
		Iterations: 1,
	}
}
