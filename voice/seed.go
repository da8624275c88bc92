package voice

import (
	"gopkg.in/yaml.v3"

	"github.com/voicecouncil/council/internal/errs"
)

// SeedWeights is VoiceWeights' serializable shape.
type SeedWeights struct {
	Reliability float64 `yaml:"reliability"`
	Performance float64 `yaml:"performance"`
	Cost        float64 `yaml:"cost"`
}

// SeedVoice is a Voice's serializable shape: the fields a deployment
// configures up front, excluding the learning-loop fields
// (SuccessRate/AverageQuality) that only ever come from
// Registry.UpdatePerformance.
type SeedVoice struct {
	ID                    string      `yaml:"id"`
	DisplayName           string      `yaml:"display_name"`
	Domain                string      `yaml:"domain"`
	ExpertiseLevel        float64     `yaml:"expertise_level"`
	Specializations       []string    `yaml:"specializations"`
	PreferredCapabilities []string    `yaml:"preferred_capabilities"`
	AvoidedServers        []string    `yaml:"avoided_servers"`
	Weights               SeedWeights `yaml:"weights"`
}

// SeedFile is the top-level shape of a voice-registry seed file.
type SeedFile struct {
	Voices []SeedVoice `yaml:"voices"`
}

// LoadRegistry parses a voice-registry seed file and returns a Registry
// populated from it, the declarative counterpart to registering voices
// programmatically one Register call at a time.
func LoadRegistry(data []byte) (*Registry, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errs.New("voice.LoadRegistry", "InputInvalid", err)
	}

	r := NewRegistry()
	for _, sv := range file.Voices {
		r.Register(Voice{
			ID:                    sv.ID,
			DisplayName:           sv.DisplayName,
			Domain:                sv.Domain,
			ExpertiseLevel:        sv.ExpertiseLevel,
			Specializations:       sv.Specializations,
			PreferredCapabilities: sv.PreferredCapabilities,
			AvoidedServers:        sv.AvoidedServers,
			Weights: VoiceWeights{
				Reliability: sv.Weights.Reliability,
				Performance: sv.Weights.Performance,
				Cost:        sv.Weights.Cost,
			},
		})
	}
	return r, nil
}
