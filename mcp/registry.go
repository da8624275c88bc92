package mcp

import (
	"sort"
	"sync"
)

// Discovery is an in-memory index of known MCP servers, queried by
// capability during server selection. Grounded on the capability/name
// index pattern used by the voice registry and the teacher's discovery
// layer: a flat map plus side indexes guarded by one RWMutex.
type Discovery struct {
	mu          sync.RWMutex
	servers     map[string]Server
	byCapability map[string][]string
}

// NewDiscovery builds an empty index.
func NewDiscovery() *Discovery {
	return &Discovery{
		servers:      make(map[string]Server),
		byCapability: make(map[string][]string),
	}
}

// Register adds or replaces a discovered server.
func (d *Discovery) Register(s Server) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, exists := d.servers[s.ID]; exists {
		d.unindexLocked(old)
	}
	d.servers[s.ID] = s
	for _, c := range s.Capabilities {
		d.byCapability[c] = appendUniqueStr(d.byCapability[c], s.ID)
	}
}

func (d *Discovery) unindexLocked(s Server) {
	for _, c := range s.Capabilities {
		d.byCapability[c] = removeStr(d.byCapability[c], s.ID)
	}
}

// query filters registered servers by capability and the minimum
// reliability/performance scores derived from the requesting voice's
// weights.
func (d *Discovery) query(q query) []Server {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var candidateIDs []string
	for _, c := range q.capabilities {
		candidateIDs = append(candidateIDs, d.byCapability[c]...)
	}
	candidateIDs = dedupeStr(candidateIDs)
	sort.Strings(candidateIDs)

	var out []Server
	for _, id := range candidateIDs {
		s := d.servers[id]
		if s.ReliabilityScore < q.minReliability {
			continue
		}
		if s.PerformanceScore < q.minPerformance {
			continue
		}
		out = append(out, s)
	}
	return out
}

func appendUniqueStr(ss []string, v string) []string {
	for _, s := range ss {
		if s == v {
			return ss
		}
	}
	return append(ss, v)
}

func removeStr(ss []string, v string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func dedupeStr(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ToolTable holds the voiceId/capability → tools mapping built by
// registerVoiceTools.
type ToolTable struct {
	mu       sync.RWMutex
	bindings map[string]ToolBinding // keyed by voiceID+"|"+capability
}

func newToolTable() *ToolTable {
	return &ToolTable{bindings: make(map[string]ToolBinding)}
}

func bindingKey(voiceID, capability string) string {
	return voiceID + "|" + capability
}

// Register stores binding, replacing any existing entry for the same
// (voiceId, capability) pair.
func (t *ToolTable) Register(b ToolBinding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings[bindingKey(b.VoiceID, b.Capability)] = b
}

// Lookup returns the tools a voice may invoke for capability.
func (t *ToolTable) Lookup(voiceID, capability string) (ToolBinding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bindings[bindingKey(voiceID, capability)]
	return b, ok
}
