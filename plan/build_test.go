package plan

import (
	"testing"

	"github.com/voicecouncil/council/voice"
)

func testVoices() []voice.Voice {
	return []voice.Voice{
		{
			ID:              "architect",
			ExpertiseLevel:  0.9,
			Domain:          "design",
			Specializations: []string{"design"},
			Weights:         voice.VoiceWeights{Reliability: 0.8, Performance: 0.2},
		},
		{
			ID:                   "generalist",
			ExpertiseLevel:       0.5,
			PreferredCapabilities: []string{"search"},
			Weights:              voice.VoiceWeights{Reliability: 0.3, Performance: 0.3},
		},
		{
			ID:             "rookie",
			ExpertiseLevel: 0.2,
			Weights:        voice.VoiceWeights{Reliability: 0.1, Performance: 0.1},
		},
	}
}

func TestCreateOrchestrationPlan_AssignsExpertTierFirst(t *testing.T) {
	p := NewPlanner()
	phase := Phase{
		Name:                 "design-phase",
		RequiredCapabilities: []string{"design"},
		MaxExecutionTime:     10 * 1000 * 1000 * 1000, // 10s in ns, avoids importing time here
		QualityThreshold:     0.8,
	}
	plan, err := p.CreateOrchestrationPlan(phase, testVoices(), nil)
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].VoiceID != "architect" {
		t.Fatalf("expected the expert-tier 'architect' assigned to 'design', got %+v", plan.Steps)
	}
}

func TestCreateOrchestrationPlan_AssignsPreferredTierOverDefault(t *testing.T) {
	p := NewPlanner()
	phase := Phase{
		Name:                 "search-phase",
		RequiredCapabilities: []string{"search"},
		MaxExecutionTime:     10 * 1000 * 1000 * 1000,
		QualityThreshold:     0.8,
	}
	plan, err := p.CreateOrchestrationPlan(phase, testVoices(), nil)
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}
	if plan.Steps[0].VoiceID != "generalist" {
		t.Fatalf("expected preferred-tier 'generalist' assigned to 'search', got %+v", plan.Steps)
	}
}

func TestCreateOrchestrationPlan_MarksSharedSteps(t *testing.T) {
	p := NewPlanner()
	phase := Phase{
		Name:                 "shared-phase",
		RequiredCapabilities: []string{"design", "search"},
		MaxExecutionTime:     10 * 1000 * 1000 * 1000,
		QualityThreshold:     0.8,
	}
	plan, err := p.CreateOrchestrationPlan(phase, testVoices(), map[string]any{"shared": []string{"design"}})
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}
	byID := stepsByID(plan.Steps)
	if !byID["design"].Shared {
		t.Error("expected 'design' step marked Shared")
	}
	if byID["search"].Shared {
		t.Error("expected 'search' step not marked Shared")
	}
}

func TestCreateOrchestrationPlan_RejectsEmptyInputs(t *testing.T) {
	p := NewPlanner()
	if _, err := p.CreateOrchestrationPlan(Phase{}, testVoices(), nil); err == nil {
		t.Error("expected error for phase with no required capabilities")
	}
	if _, err := p.CreateOrchestrationPlan(Phase{RequiredCapabilities: []string{"x"}}, nil, nil); err == nil {
		t.Error("expected error for no candidate voices")
	}
}

func TestCreateOrchestrationPlan_StoresPlanForLookup(t *testing.T) {
	p := NewPlanner()
	phase := Phase{RequiredCapabilities: []string{"design"}, MaxExecutionTime: 1, QualityThreshold: 0.5}
	plan, err := p.CreateOrchestrationPlan(phase, testVoices(), nil)
	if err != nil {
		t.Fatalf("CreateOrchestrationPlan: %v", err)
	}
	got, err := p.lookupPlan(plan.ID)
	if err != nil {
		t.Fatalf("lookupPlan: %v", err)
	}
	if got.ID != plan.ID {
		t.Errorf("expected lookupPlan to return the stored plan, got %+v", got)
	}
}
