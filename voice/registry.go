package voice

import (
	"sync"

	"github.com/voicecouncil/council/internal/errs"
)

// Registry is an in-memory, concurrency-safe pool of voices indexed by
// id, specialization, and domain.
type Registry struct {
	mu             sync.RWMutex
	voices         map[string]*Voice
	bySpecialization map[string][]string // specialization -> voice ids
	byDomain       map[string][]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		voices:           make(map[string]*Voice),
		bySpecialization: make(map[string][]string),
		byDomain:         make(map[string][]string),
	}
}

// Register adds or replaces a voice and rebuilds its index entries.
func (r *Registry) Register(v Voice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unindexLocked(v.ID)
	stored := v
	r.voices[v.ID] = &stored
	for _, s := range v.Specializations {
		r.bySpecialization[s] = appendUnique(r.bySpecialization[s], v.ID)
	}
	r.byDomain[v.Domain] = appendUnique(r.byDomain[v.Domain], v.ID)
}

// Unregister removes a voice from the registry and its indexes.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unindexLocked(id)
	delete(r.voices, id)
}

func (r *Registry) unindexLocked(id string) {
	existing, ok := r.voices[id]
	if !ok {
		return
	}
	for _, s := range existing.Specializations {
		r.bySpecialization[s] = removeID(r.bySpecialization[s], id)
	}
	r.byDomain[existing.Domain] = removeID(r.byDomain[existing.Domain], id)
}

// Get returns a copy of the voice registered under id.
func (r *Registry) Get(id string) (Voice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.voices[id]
	if !ok {
		return Voice{}, errs.New("voice.Get", "NotFound", errs.ErrNotFound)
	}
	return *v, nil
}

// All returns a copy of every registered voice.
func (r *Registry) All() []Voice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Voice, 0, len(r.voices))
	for _, v := range r.voices {
		out = append(out, *v)
	}
	return out
}

// FindBySpecialization returns voices tagged with the given specialization.
func (r *Registry) FindBySpecialization(spec string) []Voice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.bySpecialization[spec]
	out := make([]Voice, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.voices[id]; ok {
			out = append(out, *v)
		}
	}
	return out
}

// UpdatePerformance applies a learning-loop update to successRate and
// averageQuality without touching the rest of the voice's profile.
func (r *Registry) UpdatePerformance(id string, successRate, averageQuality float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.voices[id]
	if !ok {
		return errs.New("voice.UpdatePerformance", "NotFound", errs.ErrNotFound)
	}
	v.SuccessRate = successRate
	v.AverageQuality = averageQuality
	return nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
