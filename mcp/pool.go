package mcp

import (
	"sort"
	"sync"
	"time"

	"github.com/voicecouncil/council/internal/errs"
	"github.com/voicecouncil/council/resilience"
)

// Strategy names the load-balancing policy a pool uses to pick among its
// connections, dictated by the requesting voice's weight profile.
type Strategy string

const (
	StrategyWeightedResponseTime Strategy = "weighted-response-time"
	StrategyCapabilityAware      Strategy = "capability-aware"
	StrategyHybrid               Strategy = "hybrid"
)

// connection is one pooled server endpoint: its own circuit breaker plus
// rolling load/latency stats used by the load-balancing strategies.
type connection struct {
	mu              sync.Mutex
	server          Server
	breaker         *resilience.Breaker
	avgResponseTime time.Duration
	inFlight        int
	totalCalls      int
}

func newConnection(s Server) *connection {
	return &connection{
		server:  s,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("mcp.conn." + s.ID)),
	}
}

func (c *connection) recordCompletion(success bool, execTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.totalCalls == 0 {
		c.avgResponseTime = execTime
	} else {
		// exponential moving average keeps the pool reacting to recent
		// latency without forgetting the whole history at once.
		c.avgResponseTime = (c.avgResponseTime*time.Duration(9) + execTime) / 10
	}
	c.totalCalls++
	var err error
	if !success {
		err = errs.ErrBackendError
	}
	c.breaker.RecordResult(err)
}

// Pool is the per-(voiceId, capability) connection pool created lazily
// during server selection, sized to minConnections..maxConnections over
// the discovered candidates.
type Pool struct {
	mu          sync.Mutex
	key         string
	strategy    Strategy
	connections []*connection
	next        int // round-robin cursor for the hybrid tie-breaker
}

const (
	minConnections = 1
	maxConnections = 5
)

// newPool builds a pool over candidates, capped at maxConnections (or
// fewer, if fewer candidates are available), never below minConnections.
func newPool(key string, candidates []Server, strategy Strategy) *Pool {
	n := len(candidates)
	if n > maxConnections {
		n = maxConnections
	}
	if n < minConnections {
		n = minConnections
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	conns := make([]*connection, 0, n)
	for _, s := range candidates[:n] {
		conns = append(conns, newConnection(s))
	}
	return &Pool{key: key, strategy: strategy, connections: conns}
}

// pick selects a connection by strategy, skipping any whose breaker is
// not currently Ready. The actual admission gate (Allow) is left to the
// caller executing against the returned connection.
func (p *Pool) pick() *connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	var usable []*connection
	for _, c := range p.connections {
		if c.breaker.Ready() {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	switch p.strategy {
	case StrategyWeightedResponseTime:
		sort.Slice(usable, func(i, j int) bool {
			return usable[i].avgResponseTime < usable[j].avgResponseTime
		})
		return usable[0]
	case StrategyCapabilityAware:
		sort.Slice(usable, func(i, j int) bool {
			return usable[i].server.PerformanceScore > usable[j].server.PerformanceScore
		})
		return usable[0]
	default: // hybrid: least-loaded, tie-broken by round robin
		loads := make(map[*connection]int, len(usable))
		for _, c := range usable {
			loads[c] = c.loadCount()
		}
		sort.SliceStable(usable, func(i, j int) bool {
			return loads[usable[i]] < loads[usable[j]]
		})
		least := loads[usable[0]]
		var tied []*connection
		for _, c := range usable {
			if loads[c] == least {
				tied = append(tied, c)
			}
		}
		c := tied[p.next%len(tied)]
		p.next++
		return c
	}
}

func (c *connection) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *connection) acquire() {
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
}

func (c *connection) release() {
	c.mu.Lock()
	if c.inFlight > 0 {
		c.inFlight--
	}
	c.mu.Unlock()
}
