package mcp

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
	"github.com/voicecouncil/council/voice"
)

// Caller is the backend a Coordinator invokes once a server has been
// selected. Concrete MCP transports live outside this module.
type Caller interface {
	Call(ctx context.Context, server Server, req MCPVoiceRequest) (any, error)
}

// Coordinator is C7: it maps voices to the tools they may call, resolves
// a capability to a discovered server through the connection pool, and
// executes the call behind that server's circuit breaker and the
// request's retry policy.
type Coordinator struct {
	voices    *voice.Registry
	discovery *Discovery
	tools     *ToolTable
	caller    Caller
	log       *clog.Logger

	poolsMu sync.Mutex
	pools   map[string]*Pool

	loadFunc func() float64 // system load in [0,100]; used by adaptive backoff
}

// CoordinatorOption configures a Coordinator at construction time.
type CoordinatorOption func(*Coordinator)

// WithLoadFunc supplies the system-load sample adaptive backoff
// multiplies into its delay. Omit to treat load as always zero.
func WithLoadFunc(f func() float64) CoordinatorOption {
	return func(c *Coordinator) { c.loadFunc = f }
}

// New builds a Coordinator over voices (for weight lookups during
// strategy selection), discovery (the server index), and caller (the
// transport that actually executes a capability call).
func New(voices *voice.Registry, discovery *Discovery, caller Caller, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		voices:    voices,
		discovery: discovery,
		tools:     newToolTable(),
		caller:    caller,
		log:       clog.New("mcp"),
		pools:     make(map[string]*Pool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterVoiceTools builds the voice→tools mapping table.
func (c *Coordinator) RegisterVoiceTools(b ToolBinding) {
	c.tools.Register(b)
}

// HandleRequest executes one capability on behalf of a voice: it selects
// a server, runs the call under that server's breaker with the
// request's retry policy, and always returns an MCPVoiceResponse — even
// on failure — since a voice's tool call failing is a recorded outcome,
// not a Go error, except for setup errors (unknown voice, no tool binding
// for the capability, no suitable server, every pooled connection's
// breaker open).
func (c *Coordinator) HandleRequest(ctx context.Context, req MCPVoiceRequest) (MCPVoiceResponse, error) {
	v, err := c.voices.Get(req.VoiceID)
	if err != nil {
		return MCPVoiceResponse{}, errs.New("mcp.HandleRequest", "InputInvalid", errs.ErrInputInvalid).WithID(req.VoiceID)
	}
	if _, ok := c.tools.Lookup(req.VoiceID, req.Capability); !ok {
		return MCPVoiceResponse{}, errs.New("mcp.HandleRequest", "InputInvalid", errs.ErrInputInvalid).WithID(req.Capability)
	}

	conn, err := c.selectServer(v, req)
	if err != nil {
		return MCPVoiceResponse{}, err
	}

	start := time.Now()
	resp := c.execute(ctx, conn, req)
	resp.ExecutionTime = time.Since(start)
	resp.RequestID = req.RequestID
	resp.ServerID = conn.server.ID
	return resp, nil
}

// selectServer runs the server-selection algorithm: build a query from
// the voice's weights, filter the discovery index, apply the voice's
// PreferredCapabilities (matched against server IDs and tags) and
// AvoidedServers lists, then consult (creating lazily) the
// per-(voiceId, capability) connection pool.
func (c *Coordinator) selectServer(v voice.Voice, req MCPVoiceRequest) (*connection, error) {
	q := query{
		capabilities:   []string{req.Capability},
		minReliability: v.Weights.Reliability * 100,
		minPerformance: v.Weights.Performance * 100,
	}
	candidates := c.discovery.query(q)
	candidates = filterServers(candidates, v.PreferredCapabilities, v.AvoidedServers)

	if len(candidates) == 0 {
		return nil, errs.New("mcp.selectServer", "NoSuitableServer", errs.ErrNoSuitableServer).WithID(req.Capability)
	}

	pool := c.poolFor(v, req.VoiceID, req.Capability, candidates)
	conn := pool.pick()
	if conn == nil {
		return nil, errs.New("mcp.selectServer", "ServerCircuitOpen", errs.ErrServerCircuitOpen).WithID(req.Capability)
	}
	return conn, nil
}

// filterServers drops any server ID named in avoided, then narrows to the
// servers named in preferred (by ID or tag) when at least one matches;
// if none match, every non-avoided server is kept.
func filterServers(candidates []Server, preferred, avoided []string) []Server {
	avoidSet := make(map[string]bool, len(avoided))
	for _, a := range avoided {
		avoidSet[a] = true
	}
	preferSet := make(map[string]bool, len(preferred))
	for _, p := range preferred {
		preferSet[p] = true
	}

	var out []Server
	for _, s := range candidates {
		if avoidSet[s.ID] {
			continue
		}
		out = append(out, s)
	}
	if len(preferSet) == 0 {
		return out
	}

	var preferredOut []Server
	for _, s := range out {
		if preferSet[s.ID] || containsAnyTag(s.Tags, preferSet) {
			preferredOut = append(preferredOut, s)
		}
	}
	if len(preferredOut) > 0 {
		return preferredOut
	}
	return out
}

func containsAnyTag(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

func (c *Coordinator) poolFor(v voice.Voice, voiceID, capability string, candidates []Server) *Pool {
	key := bindingKey(voiceID, capability)

	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()

	if p, ok := c.pools[key]; ok {
		return p
	}
	p := newPool(key, candidates, strategyFor(v.Weights))
	c.pools[key] = p
	return p
}

// strategyFor dictates the pool's load-balancing policy from the
// voice's weight profile: a voice that mainly cares about reliability
// gets weighted-by-response-time; one that cares about performance gets
// capability-aware; anyone else gets the hybrid least-loaded strategy.
func strategyFor(w voice.VoiceWeights) Strategy {
	switch {
	case w.Reliability >= 0.7:
		return StrategyWeightedResponseTime
	case w.Performance >= 0.7:
		return StrategyCapabilityAware
	default:
		return StrategyHybrid
	}
}

// execute runs the call under conn's breaker with retry/backoff per
// req.RetryPolicy, racing each attempt against req.Timeout.
func (c *Coordinator) execute(ctx context.Context, conn *connection, req MCPVoiceRequest) MCPVoiceResponse {
	policy := req.RetryPolicy
	if policy.MaxRetries <= 0 && policy.BaseDelay <= 0 {
		policy = DefaultRetryPolicy()
	}

	var resp MCPVoiceResponse
	attempts := 0

attemptLoop:
	for attempts = 1; ; attempts++ {
		if !conn.breaker.Allow() {
			resp = MCPVoiceResponse{Success: false, Error: errs.ErrServerCircuitOpen.Error(), Attempts: attempts}
			break
		}

		conn.acquire()
		content, execTime, err := c.callWithTimeout(ctx, conn, req)
		conn.release()
		conn.recordCompletion(err == nil, execTime)

		if err == nil {
			resp = MCPVoiceResponse{Success: true, Content: content, Attempts: attempts}
			break
		}

		if attempts >= retriesFor(policy) || !retryable(policy.RetryOn, err) {
			resp = MCPVoiceResponse{Success: false, Error: err.Error(), Attempts: attempts}
			break
		}

		load := 0.0
		if c.loadFunc != nil {
			load = c.loadFunc()
		}
		delay := backoff(policy, attempts, load)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			resp = MCPVoiceResponse{Success: false, Error: ctx.Err().Error(), Attempts: attempts}
			break attemptLoop
		case <-timer.C:
		}
	}
	return resp
}

func retriesFor(p RetryPolicy) int {
	if p.MaxRetries <= 0 {
		return 1
	}
	return p.MaxRetries
}

// retryable mirrors retryOn's classification; "all" always retries,
// otherwise only resilience-flagged transient errors count.
func retryable(retryOn string, err error) bool {
	if retryOn == "" || retryOn == "all" {
		return true
	}
	return errs.IsRetryable(err)
}

// backoff mirrors resilience.RetryConfig.Delay for the three named
// strategies; adaptive multiplies the exponential curve by 1+load/100.
func backoff(p RetryPolicy, attempt int, load float64) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	var d time.Duration
	switch p.BackoffStrategy {
	case "linear":
		d = base * time.Duration(attempt)
	case "adaptive":
		d = time.Duration(float64(base) * math.Pow(2, float64(attempt-1)) * (1 + load/100))
	default: // exponential
		d = time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// callWithTimeout runs caller.Call under req.Timeout, racing completion
// against the deadline (the Promise/Future race the spec describes).
func (c *Coordinator) callWithTimeout(ctx context.Context, conn *connection, req MCPVoiceRequest) (any, time.Duration, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		content any
		err     error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		content, err := c.caller.Call(cctx, conn.server, req)
		done <- result{content, err}
	}()

	select {
	case r := <-done:
		return r.content, time.Since(start), r.err
	case <-cctx.Done():
		return nil, time.Since(start), errs.ErrRequestTimeout
	}
}

