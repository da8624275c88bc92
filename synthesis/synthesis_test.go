package synthesis

import (
	"strings"
	"testing"
)

func TestSynthesize_EmptyInputFallsBack(t *testing.T) {
	s := New()
	result := s.Synthesize(nil, DefaultConfig())
	if result.Success {
		t.Error("expected success=false for empty input")
	}
	if result.Confidence != 0.5 {
		t.Errorf("expected fallback confidence 0.5, got %v", result.Confidence)
	}
}

func TestSynthesize_SingleResponseCollaborative(t *testing.T) {
	s := New()
	responses := []AgentResponse{{VoiceID: "developer", Content: "func main() {}", Confidence: 0.8}}

	result := s.Synthesize(responses, DefaultConfig())

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Strategy != ModeCollaborative {
		t.Errorf("expected collaborative strategy, got %s", result.Strategy)
	}
	if result.Confidence != responses[0].Confidence {
		t.Errorf("expected confidence %v, got %v", responses[0].Confidence, result.Confidence)
	}
}

func TestSynthesize_CompetitivePicksHighestConfidence(t *testing.T) {
	s := New()
	responses := []AgentResponse{
		{VoiceID: "a", Content: "approach A", Confidence: 0.4},
		{VoiceID: "b", Content: "approach B", Confidence: 0.9},
	}
	cfg := DefaultConfig()
	cfg.Mode = ModeCompetitive

	result := s.Synthesize(responses, cfg)
	if result.CombinedContent != "approach B" {
		t.Errorf("expected approach B to win, got %q", result.CombinedContent)
	}
	if result.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", result.Confidence)
	}
}

func TestSynthesize_DialecticalParadigmConflict(t *testing.T) {
	s := New()
	responses := []AgentResponse{
		{VoiceID: "security", Content: "From a security standpoint, use an object-oriented design with clear access boundaries.", Confidence: 0.8},
		{VoiceID: "architect", Content: "For scalability, a functional programming approach avoids shared mutable state.", Confidence: 0.85},
		{VoiceID: "developer", Content: "Either style works if the team is comfortable with it.", Confidence: 0.6},
	}
	cfg := DefaultConfig()
	cfg.Mode = ModeAdaptive

	result := s.Synthesize(responses, cfg)

	if result.Strategy != ModeDialectical {
		t.Fatalf("expected adaptive to resolve to dialectical, got %s", result.Strategy)
	}
	if !strings.HasPrefix(result.CombinedContent, "## Dialectical Synthesis") {
		t.Errorf("expected dialectical header, got %q", result.CombinedContent[:minInt(40, len(result.CombinedContent))])
	}
	foundParadigm := false
	for _, c := range result.Conflicts {
		if c.Category == "programming paradigm" {
			foundParadigm = true
			if c.Severity != "medium" {
				t.Errorf("expected medium severity, got %s", c.Severity)
			}
		}
	}
	if !foundParadigm {
		t.Error("expected a programming paradigm conflict")
	}
	for _, id := range []string{"security", "architect", "developer"} {
		if !strings.Contains(result.CombinedContent, id) {
			t.Errorf("expected combined content to mention voice %q", id)
		}
	}
}

func TestSynthesize_ConsensusFallsBackWithoutSharedSentences(t *testing.T) {
	s := New()
	responses := []AgentResponse{
		{VoiceID: "a", Content: "This is a completely unrelated statement about gardening techniques.", Confidence: 0.7},
		{VoiceID: "b", Content: "Quantum computing relies on superposition and entanglement principles.", Confidence: 0.6},
		{VoiceID: "c", Content: "The stock market fluctuates based on investor sentiment and news cycles.", Confidence: 0.5},
	}
	cfg := DefaultConfig()
	cfg.Mode = ModeConsensus

	result := s.Synthesize(responses, cfg)
	if result.CombinedContent == "" {
		t.Error("expected non-empty fallback content")
	}
}

func TestSynthesize_AdaptiveRefinementRecordsAdjustments(t *testing.T) {
	s := New()
	responses := []AgentResponse{{VoiceID: "a", Content: "ok", Confidence: 0.2}}
	cfg := DefaultConfig()
	cfg.EnableAdaptiveSynthesis = true
	cfg.QualityThreshold = 99

	result := s.Synthesize(responses, cfg)
	if len(result.Adjustments) == 0 {
		t.Error("expected adaptive adjustments when quality stays below threshold")
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
