// Package council is the round-based orchestrator: a thin wrapper that
// turns a voice selection into concurrent model-backend dispatches, then
// hands the collected responses to the synthesis engine.
package council

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voicecouncil/council/analytics"
	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
	"github.com/voicecouncil/council/mcp"
	"github.com/voicecouncil/council/memory"
	"github.com/voicecouncil/council/plan"
	"github.com/voicecouncil/council/synthesis"
	"github.com/voicecouncil/council/voice"
)

// Council ties the voice registry/selector, a pool of model backends,
// and the synthesis engine into one deliberation call. MCP/plan are
// optional: a ModelBackend implementation that itself issues tool calls
// on a voice's behalf reaches them through Council.MCP()/Council.Planner()
// rather than Deliberate driving tool use directly — ModelBackend stays
// the single opaque boundary the spec's data flow describes.
type Council struct {
	registry    *voice.Registry
	selector    *voice.Selector
	backends    map[string]ModelBackend
	synthesizer *synthesis.Synthesizer
	memory      *memory.Store        // optional; nil disables learning capture
	mcp         *mcp.Coordinator     // optional; nil if voices issue no tool calls
	planner     *plan.Planner        // optional; nil if this deployment has no orchestration plans
	analytics   *analytics.Analytics // optional; nil disables metrics/event recording
	log         *clog.Logger

	dispatchTimeout time.Duration
}

// Option configures a Council at construction time.
type Option func(*Council)

// WithMemory attaches a memory store so deliberations are recorded as
// learnings that feed the promotion pipeline.
func WithMemory(store *memory.Store) Option {
	return func(c *Council) { c.memory = store }
}

// WithMCP attaches the MCP coordinator voices' tool calls route through.
func WithMCP(coordinator *mcp.Coordinator) Option {
	return func(c *Council) { c.mcp = coordinator }
}

// WithPlanner attaches the orchestration planner for multi-step phases.
func WithPlanner(planner *plan.Planner) Option {
	return func(c *Council) { c.planner = planner }
}

// WithAnalytics attaches the analytics recorder: every Deliberate call
// records a synthesis-duration metric and publishes the corresponding
// lifecycle event.
func WithAnalytics(a *analytics.Analytics) Option {
	return func(c *Council) { c.analytics = a }
}

// WithDispatchTimeout overrides the per-voice backend timeout (default 30s).
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Council) { c.dispatchTimeout = d }
}

// New builds a Council over registry and backends, keyed by voice id.
func New(registry *voice.Registry, backends map[string]ModelBackend, opts ...Option) *Council {
	c := &Council{
		registry:        registry,
		selector:        voice.NewSelector(registry),
		backends:        backends,
		synthesizer:     synthesis.New(),
		log:             clog.New("council"),
		dispatchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliberate runs one round: select a team for tc, dispatch to every
// selected voice's backend concurrently, and synthesize the results.
func (c *Council) Deliberate(ctx context.Context, tc voice.TaskContext, cfg synthesis.Config) (synthesis.Result, error) {
	sessionID := uuid.NewString()
	start := time.Now()

	selection, err := c.selector.Select(tc)
	if err != nil {
		c.log.Error("voice selection failed", clog.Fields{"session_id": sessionID, "error": err})
		return synthesis.Result{}, err
	}

	responses := c.dispatch(ctx, selection.Voices, tc.Prompt)
	if len(responses) == 0 {
		c.log.Error("no voice produced a response", clog.Fields{"session_id": sessionID})
		return synthesis.Result{}, errs.New("council.Deliberate", "BackendError", errs.ErrBackendError)
	}

	result := c.synthesizer.Synthesize(responses, cfg)
	duration := time.Since(start)

	if c.memory != nil {
		c.recordLearning(ctx, sessionID, tc, result, duration)
	}

	if c.analytics != nil {
		c.analytics.RecordSynthesis(ctx, sessionID, float64(duration.Milliseconds()), result.Success)
	}

	c.log.Info("deliberation complete", clog.Fields{
		"session_id": sessionID,
		"mode":       selection.Mode,
		"voices":     selection.Voices,
		"strategy":   result.Strategy,
		"success":    result.Success,
	})

	return result, nil
}

// dispatch fans out prompt to every voice in voiceIDs concurrently and
// collects whatever responses arrive before each backend's deadline. A
// backend error or missing backend simply drops that voice's response
// rather than failing the round — synthesis proceeds with whoever answered.
func (c *Council) dispatch(ctx context.Context, voiceIDs []string, prompt string) []synthesis.AgentResponse {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var responses []synthesis.AgentResponse

	for _, id := range voiceIDs {
		backend, ok := c.backends[id]
		if !ok {
			c.log.Warn("no backend registered for voice", clog.Fields{"voice_id": id})
			continue
		}

		wg.Add(1)
		go func(voiceID string, backend ModelBackend) {
			defer wg.Done()
			resp, err := backend.Complete(ctx, prompt, c.dispatchTimeout)
			if err != nil {
				c.log.Warn("voice backend failed", clog.Fields{"voice_id": voiceID, "error": err})
				return
			}
			mu.Lock()
			responses = append(responses, synthesis.AgentResponse{
				VoiceID:    voiceID,
				Content:    resp.Content,
				Confidence: resp.Confidence,
				TokensUsed: resp.TokensUsed,
			})
			mu.Unlock()
		}(id, backend)
	}

	wg.Wait()
	return responses
}

func (c *Council) recordLearning(ctx context.Context, sessionID string, tc voice.TaskContext, result synthesis.Result, duration time.Duration) {
	learning := memory.Learning{
		SessionID:      sessionID,
		UserInput:      tc.Prompt,
		Intent:         tc.Category,
		TasksCompleted: len(result.Weights),
		Success:        result.Success,
		Duration:       duration,
		Confidence:     result.Confidence,
		CreatedAt:      time.Now(),
	}
	if _, err := c.memory.StoreLearning(ctx, learning); err != nil {
		c.log.Warn("failed to record deliberation learning", clog.Fields{"session_id": sessionID, "error": err})
	}
}

// Registry exposes the underlying voice registry for callers that need
// to register or update voices after construction.
func (c *Council) Registry() *voice.Registry {
	return c.registry
}

// MCP exposes the tool-call coordinator, if one was attached with
// WithMCP, so a ModelBackend implementation can issue tool calls on
// behalf of the voice it is completing for. Returns nil if none was
// configured.
func (c *Council) MCP() *mcp.Coordinator {
	return c.mcp
}

// Planner exposes the orchestration planner, if one was attached with
// WithPlanner. Returns nil if none was configured.
func (c *Council) Planner() *plan.Planner {
	return c.planner
}

// Analytics exposes the attached analytics recorder, if any, so a
// ModelBackend can record its own tool-call/request metrics through the
// same instance Deliberate uses. Returns nil if none was configured.
func (c *Council) Analytics() *analytics.Analytics {
	return c.analytics
}
