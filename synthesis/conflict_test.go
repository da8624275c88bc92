package synthesis

import "testing"

func TestJaccardSimilarity_IdenticalTextIsOne(t *testing.T) {
	if sim := jaccardSimilarity("use dependency injection for testing", "use dependency injection for testing"); sim != 1 {
		t.Errorf("expected similarity 1, got %v", sim)
	}
}

func TestJaccardSimilarity_UnrelatedTextIsLow(t *testing.T) {
	sim := jaccardSimilarity("the cat sat on the mat", "quarterly revenue exceeded projections")
	if sim > 0.2 {
		t.Errorf("expected low similarity, got %v", sim)
	}
}

func TestAnalyzeConflicts_DetectsParadigmSplit(t *testing.T) {
	responses := []AgentResponse{
		{VoiceID: "a", Content: "prefer an object-oriented structure here"},
		{VoiceID: "b", Content: "a functional programming style suits this better"},
	}
	conflicts, _ := analyzeConflicts(responses)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Category != "programming paradigm" {
		t.Errorf("expected programming paradigm category, got %s", conflicts[0].Category)
	}
}

func TestAnalyzeConflicts_NoSplitNoConflict(t *testing.T) {
	responses := []AgentResponse{
		{VoiceID: "a", Content: "use an object-oriented structure"},
		{VoiceID: "b", Content: "object-oriented design fits well here too"},
	}
	conflicts, _ := analyzeConflicts(responses)
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", conflicts)
	}
}
