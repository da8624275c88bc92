// Package voice implements the voice registry and selector: a pool of
// specialized personas, a complexity heuristic over a prompt, and an
// ROI-gated decision between dispatching to one voice or a small team.
package voice

// Voice is an archetype backed by a language-model backend. It is
// immutable during a session; success/quality fields are updated by
// the learning loop.
type Voice struct {
	ID                   string
	DisplayName          string
	Domain               string
	ExpertiseLevel       float64 // 0..1
	SuccessRate          float64
	AverageQuality       float64
	Specializations      []string
	PreferredCapabilities []string
	AvoidedServers       []string
	Weights              VoiceWeights
}

// VoiceWeights captures a voice's own preference profile, distinct from
// the per-synthesis VoiceWeight used by C5.
type VoiceWeights struct {
	Reliability float64
	Performance float64
	Cost        float64
}

// TaskContext is the input to Select.
type TaskContext struct {
	Prompt          string
	Category        string
	EstimatedTokens int
	UserPreference  string // "single", "multi", or "" for no preference
	TimeConstraint  string
}

// Complexity is the outcome of the complexity heuristic.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Mode is whether Select dispatched to a single voice or a team.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// Selection is the result of Select.
type Selection struct {
	Voices              []string
	Mode                Mode
	ExpectedQualityGain float64
	EstimatedOverhead   float64
	ROIScore            float64
	Reasoning           string
}
