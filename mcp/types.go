// Package mcp coordinates tool invocations a voice issues through the
// model-context-protocol layer: it maps voices to the tools they may
// call, resolves a capability to a discovered server, and executes the
// call behind a per-connection circuit breaker and retry policy.
package mcp

import "time"

// RetryPolicy configures backoff for one request's retries. BackoffStrategy
// mirrors resilience.BackoffStrategy by name so callers never need to
// import resilience directly to build a request.
type RetryPolicy struct {
	MaxRetries      int
	BackoffStrategy string // "linear", "exponential", "adaptive"
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RetryOn         string // "all", "timeout", "server-error", "network-error"
}

// DefaultRetryPolicy mirrors resilience.DefaultRetryConfig's shape.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BackoffStrategy: "exponential",
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		RetryOn:         "all",
	}
}

// MCPVoiceRequest asks the coordinator to execute one capability on
// behalf of a voice.
type MCPVoiceRequest struct {
	RequestID     string
	VoiceID       string
	Phase         string
	Capability    string
	Parameters    map[string]any
	Context       map[string]any
	Priority      int
	Timeout       time.Duration
	RetryPolicy   RetryPolicy
	MinReliability float64
	MaxLatency    time.Duration
}

// MCPVoiceResponse is what handleRequest returns for one capability call.
type MCPVoiceResponse struct {
	RequestID     string
	ServerID      string
	Success       bool
	Content       any
	Error         string
	ExecutionTime time.Duration
	Attempts      int
}

// ToolBinding is one entry of the voice→tools mapping table built by
// registerVoiceTools.
type ToolBinding struct {
	VoiceID    string
	Capability string
	Tools      []string
}

// Server describes one discovered MCP server as known to the
// discovery index consulted during server selection.
type Server struct {
	ID           string
	Capabilities []string
	Category     string
	Tags         []string
	ReliabilityScore float64 // 0..100, compared against the voice's reliability weight x100
	PerformanceScore float64 // 0..100, compared against the voice's performance weight x100
}

// query is the shape built in server-selection step 1.
type query struct {
	capabilities  []string
	minReliability float64
	minPerformance float64
}
