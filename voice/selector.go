package voice

import (
	"fmt"
	"strings"

	"github.com/voicecouncil/council/internal/errs"
)

// roiRow is one line of the immutable domain-calibration ROI table.
type roiRow struct {
	qualityGainPct float64
	overheadPct    float64
}

var roiTable = map[Complexity]roiRow{
	ComplexitySimple:   {qualityGainPct: 14.3, overheadPct: 183.3},
	ComplexityModerate: {qualityGainPct: 25.0, overheadPct: 154.5},
	ComplexityComplex:  {qualityGainPct: 35.0, overheadPct: 151.6},
}

const roiThreshold = 0.15

// TeamSizeCap is the standard selector's maximum team size; an
// orchestrator may raise this (never beyond the available voice pool)
// by calling SelectWithCap directly.
const TeamSizeCap = 3

// Selector composes TaskContexts into voice selections against a Registry.
type Selector struct {
	registry *Registry
}

// NewSelector builds a Selector over registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Select runs the complexity heuristic, consults the ROI table, and
// returns either a single best-matching voice or a small team.
func (s *Selector) Select(tc TaskContext) (Selection, error) {
	return s.SelectWithCap(tc, TeamSizeCap)
}

// SelectWithCap is Select with an explicit team-size cap, never exceeding
// the number of voices available in the registry.
func (s *Selector) SelectWithCap(tc TaskContext, teamCap int) (Selection, error) {
	available := s.registry.All()
	if len(available) == 0 {
		return Selection{}, errs.New("voice.Select", "NoSuitableServer", errs.ErrNoSuitableServer)
	}
	if teamCap > len(available) {
		teamCap = len(available)
	}

	complexity := ClassifyComplexity(tc.Prompt)
	row := roiTable[complexity]
	roi := row.qualityGainPct / row.overheadPct

	useMulti := complexity != ComplexitySimple && roi > roiThreshold && tc.UserPreference != "single"

	if !useMulti {
		voiceID := s.bestSingleMatch(tc.Prompt, available)
		return Selection{
			Voices:              []string{voiceID},
			Mode:                ModeSingle,
			ExpectedQualityGain: row.qualityGainPct,
			EstimatedOverhead:   row.overheadPct,
			ROIScore:            roi,
			Reasoning:           fmt.Sprintf("complexity=%s roi=%.2f below threshold or single preferred; dispatching to %s", complexity, roi, voiceID),
		}, nil
	}

	teamSize := 2
	if complexity == ComplexityComplex {
		teamSize = 3
	}
	if teamSize > teamCap {
		teamSize = teamCap
	}

	team := s.composeTeam(tc.Prompt, teamSize, available)
	return Selection{
		Voices:              team,
		Mode:                ModeMulti,
		ExpectedQualityGain: row.qualityGainPct,
		EstimatedOverhead:   row.overheadPct,
		ROIScore:            roi,
		Reasoning:           fmt.Sprintf("complexity=%s roi=%.2f exceeds threshold; team=%s", complexity, roi, strings.Join(team, ",")),
	}, nil
}

// bestSingleMatch picks the voice whose specializations best match the
// prompt's keyword bias, falling back to the highest-expertise voice.
func (s *Selector) bestSingleMatch(prompt string, available []Voice) string {
	for _, spec := range matchedSpecializations(prompt) {
		if v := firstWithSpecialization(available, spec); v != "" {
			return v
		}
	}
	return highestExpertise(available)
}

// composeTeam builds a team of size n: one voice per fired specialization
// bias (moderate pairs, complex pairs + default balanced triad), falling
// back to filling remaining slots with the highest-expertise voices.
func (s *Selector) composeTeam(prompt string, n int, available []Voice) []string {
	fired := matchedSpecializations(prompt)

	var pairs [][]string
	switch {
	case contains(fired, "quality") || contains(fired, "implementation"):
		pairs = append(pairs, []string{"implementation", "quality"})
	case contains(fired, "analysis") || contains(fired, "design"):
		pairs = append(pairs, []string{"analysis", "design"})
	case contains(fired, "security"):
		pairs = append(pairs, []string{"security", "implementation"})
	}

	var team []string
	for _, pair := range pairs {
		for _, spec := range pair {
			if len(team) >= n {
				break
			}
			if v := firstWithSpecialization(available, spec); v != "" && !containsID(team, v) {
				team = append(team, v)
			}
		}
	}

	if len(team) == 0 {
		for _, spec := range []string{"developer", "architect", "maintainer"} {
			if len(team) >= n {
				break
			}
			if v := firstWithSpecialization(available, spec); v != "" && !containsID(team, v) {
				team = append(team, v)
			}
		}
	}

	for len(team) < n {
		next := nextHighestExpertise(available, team)
		if next == "" {
			break
		}
		team = append(team, next)
	}

	return team
}

func firstWithSpecialization(available []Voice, spec string) string {
	for _, v := range available {
		for _, s := range v.Specializations {
			if s == spec {
				return v.ID
			}
		}
	}
	return ""
}

func highestExpertise(available []Voice) string {
	best := ""
	bestScore := -1.0
	for _, v := range available {
		if v.ExpertiseLevel > bestScore {
			bestScore = v.ExpertiseLevel
			best = v.ID
		}
	}
	return best
}

func nextHighestExpertise(available []Voice, exclude []string) string {
	best := ""
	bestScore := -1.0
	for _, v := range available {
		if containsID(exclude, v.ID) {
			continue
		}
		if v.ExpertiseLevel > bestScore {
			bestScore = v.ExpertiseLevel
			best = v.ID
		}
	}
	return best
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

func containsID(list []string, id string) bool {
	return contains(list, id)
}
