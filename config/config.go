// Package config assembles the engine's configuration in three layers of
// increasing priority: built-in defaults, environment variables, and
// functional options passed to New.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every component's settings. Each sub-config mirrors a
// SPEC_FULL.md component so it can be passed straight to that component's
// constructor.
type Config struct {
	Cache      CacheConfig      `json:"cache"`
	Memory     MemoryConfig     `json:"memory"`
	Approval   ApprovalConfig   `json:"approval"`
	Voice      VoiceConfig      `json:"voice"`
	Synthesis  SynthesisConfig  `json:"synthesis"`
	MCP        MCPConfig        `json:"mcp"`
	Plan       PlanConfig       `json:"plan"`
	Analytics  AnalyticsConfig  `json:"analytics"`
	Resilience ResilienceConfig `json:"resilience"`
	Logging    LoggingConfig    `json:"logging"`
}

type CacheConfig struct {
	MaxEntries      int           `json:"max_entries" env:"COUNCIL_CACHE_MAX_ENTRIES" default:"1000"`
	DefaultTTL      time.Duration `json:"default_ttl" env:"COUNCIL_CACHE_TTL" default:"1h"`
	SnapshotDir     string        `json:"snapshot_dir" env:"COUNCIL_CACHE_SNAPSHOT_DIR"`
	SnapshotEnabled bool          `json:"snapshot_enabled" env:"COUNCIL_CACHE_SNAPSHOT_ENABLED" default:"false"`
	RemoteEnabled   bool          `json:"remote_enabled" env:"COUNCIL_CACHE_REMOTE_ENABLED" default:"false"`
	RedisURL        string        `json:"redis_url" env:"COUNCIL_CACHE_REDIS_URL,REDIS_URL"`
	EncryptionKey   string        `json:"-" env:"COUNCIL_CACHE_ENCRYPTION_KEY"`
	CompressMinSize int           `json:"compress_min_size" env:"COUNCIL_CACHE_COMPRESS_MIN_SIZE" default:"1024"`
}

type MemoryConfig struct {
	DSN             string        `json:"dsn" env:"COUNCIL_MEMORY_DSN" default:"file:council.db?cache=shared&_pragma=busy_timeout(5000)"`
	MaxLearnings    int           `json:"max_learnings" env:"COUNCIL_MEMORY_MAX_LEARNINGS" default:"10000"`
	RetentionWindow time.Duration `json:"retention_window" env:"COUNCIL_MEMORY_RETENTION" default:"720h"`
	SweepInterval   time.Duration `json:"sweep_interval" env:"COUNCIL_MEMORY_SWEEP_INTERVAL" default:"1h"`
	LowValueScore   float64       `json:"low_value_score" env:"COUNCIL_MEMORY_LOW_VALUE_SCORE" default:"0.2"`
}

type ApprovalConfig struct {
	DefaultSandboxMode string        `json:"default_sandbox_mode" env:"COUNCIL_APPROVAL_MODE" default:"balanced"`
	ConfirmTimeout     time.Duration `json:"confirm_timeout" env:"COUNCIL_APPROVAL_CONFIRM_TIMEOUT" default:"30s"`
	HighRiskThreshold  float64       `json:"high_risk_threshold" env:"COUNCIL_APPROVAL_HIGH_RISK" default:"0.7"`
	LowRiskThreshold   float64       `json:"low_risk_threshold" env:"COUNCIL_APPROVAL_LOW_RISK" default:"0.3"`
}

type VoiceConfig struct {
	MaxTeamSize    int     `json:"max_team_size" env:"COUNCIL_VOICE_MAX_TEAM_SIZE" default:"5"`
	MinROI         float64 `json:"min_roi" env:"COUNCIL_VOICE_MIN_ROI" default:"1.0"`
	ComplexityBias float64 `json:"complexity_bias" env:"COUNCIL_VOICE_COMPLEXITY_BIAS" default:"1.0"`
}

type SynthesisConfig struct {
	DefaultStrategy        string  `json:"default_strategy" env:"COUNCIL_SYNTHESIS_STRATEGY" default:"collaborative"`
	DefaultWeighting       string  `json:"default_weighting" env:"COUNCIL_SYNTHESIS_WEIGHTING" default:"balanced"`
	ConflictJaccardMin     float64 `json:"conflict_jaccard_min" env:"COUNCIL_SYNTHESIS_CONFLICT_JACCARD_MIN" default:"0.2"`
	DialecticalExcerptLen  int     `json:"dialectical_excerpt_len" env:"COUNCIL_SYNTHESIS_DIALECTICAL_EXCERPT_LEN" default:"200"`
	AdaptiveRefinementMax  int     `json:"adaptive_refinement_max" env:"COUNCIL_SYNTHESIS_ADAPTIVE_MAX" default:"2"`
}

type MCPConfig struct {
	PoolSize          int           `json:"pool_size" env:"COUNCIL_MCP_POOL_SIZE" default:"4"`
	LoadBalance       string        `json:"load_balance" env:"COUNCIL_MCP_LOAD_BALANCE" default:"round_robin"`
	ConnectTimeout    time.Duration `json:"connect_timeout" env:"COUNCIL_MCP_CONNECT_TIMEOUT" default:"5s"`
	RequestTimeout    time.Duration `json:"request_timeout" env:"COUNCIL_MCP_REQUEST_TIMEOUT" default:"30s"`
}

type PlanConfig struct {
	DefaultStrategy  string        `json:"default_strategy" env:"COUNCIL_PLAN_STRATEGY" default:"adaptive"`
	StepTimeout      time.Duration `json:"step_timeout" env:"COUNCIL_PLAN_STEP_TIMEOUT" default:"30s"`
	MaxParallelSteps int           `json:"max_parallel_steps" env:"COUNCIL_PLAN_MAX_PARALLEL" default:"8"`
}

type AnalyticsConfig struct {
	Enabled          bool          `json:"enabled" env:"COUNCIL_ANALYTICS_ENABLED" default:"true"`
	OTELEndpoint     string        `json:"otel_endpoint" env:"COUNCIL_OTEL_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	EventBufferSize  int           `json:"event_buffer_size" env:"COUNCIL_EVENT_BUFFER_SIZE" default:"256"`
	RollupInterval   time.Duration `json:"rollup_interval" env:"COUNCIL_ANALYTICS_ROLLUP_INTERVAL" default:"1m"`
}

type ResilienceConfig struct {
	BreakerFailureThreshold int           `json:"breaker_failure_threshold" env:"COUNCIL_BREAKER_THRESHOLD" default:"5"`
	BreakerHalfOpenDelay    time.Duration `json:"breaker_half_open_delay" env:"COUNCIL_BREAKER_HALF_OPEN_DELAY" default:"30s"`
	RetryMaxAttempts        int           `json:"retry_max_attempts" env:"COUNCIL_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialInterval    time.Duration `json:"retry_initial_interval" env:"COUNCIL_RETRY_INITIAL_INTERVAL" default:"200ms"`
	RetryBackoff            string        `json:"retry_backoff" env:"COUNCIL_RETRY_BACKOFF" default:"exponential"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"COUNCIL_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"COUNCIL_LOG_FORMAT" default:"text"`
}

// Option mutates a Config; options are applied after environment loading,
// giving them the highest priority.
type Option func(*Config)

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxEntries:      1000,
			DefaultTTL:      time.Hour,
			CompressMinSize: 1024,
		},
		Memory: MemoryConfig{
			DSN:             "file:council.db?cache=shared&_pragma=busy_timeout(5000)",
			MaxLearnings:    10000,
			RetentionWindow: 720 * time.Hour,
			SweepInterval:   time.Hour,
			LowValueScore:   0.2,
		},
		Approval: ApprovalConfig{
			DefaultSandboxMode: "balanced",
			ConfirmTimeout:     30 * time.Second,
			HighRiskThreshold:  0.7,
			LowRiskThreshold:   0.3,
		},
		Voice: VoiceConfig{
			MaxTeamSize:    5,
			MinROI:         1.0,
			ComplexityBias: 1.0,
		},
		Synthesis: SynthesisConfig{
			DefaultStrategy:       "collaborative",
			DefaultWeighting:      "balanced",
			ConflictJaccardMin:    0.2,
			DialecticalExcerptLen: 200,
			AdaptiveRefinementMax: 2,
		},
		MCP: MCPConfig{
			PoolSize:       4,
			LoadBalance:    "round_robin",
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Plan: PlanConfig{
			DefaultStrategy:  "adaptive",
			StepTimeout:      30 * time.Second,
			MaxParallelSteps: 8,
		},
		Analytics: AnalyticsConfig{
			Enabled:         true,
			EventBufferSize: 256,
			RollupInterval:  time.Minute,
		},
		Resilience: ResilienceConfig{
			BreakerFailureThreshold: 5,
			BreakerHalfOpenDelay:    30 * time.Second,
			RetryMaxAttempts:        3,
			RetryInitialInterval:    200 * time.Millisecond,
			RetryBackoff:            "exponential",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// New builds a Config from defaults, then environment variables, then the
// supplied options, and validates the result.
func New(opts ...Option) (*Config, error) {
	cfg := Default()
	cfg.loadFromEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv applies the environment layer. It reads only the variables
// named below; the env tags on CompressMinSize, LowValueScore, the
// approval risk thresholds, MinROI, ComplexityBias, ConflictJaccardMin,
// AdaptiveRefinementMax, the MCP timeouts, StepTimeout, MaxParallelSteps,
// EventBufferSize, RollupInterval, RetryMaxAttempts and
// RetryInitialInterval are not read, so those fields keep their default
// or option value.
func (c *Config) loadFromEnv() {
	getEnv := func(names ...string) (string, bool) {
		for _, n := range names {
			if v := os.Getenv(n); v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := getEnv("COUNCIL_CACHE_MAX_ENTRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.MaxEntries = n
		}
	}
	if v, ok := getEnv("COUNCIL_CACHE_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.DefaultTTL = d
		}
	}
	if v, ok := getEnv("COUNCIL_CACHE_SNAPSHOT_DIR"); ok {
		c.Cache.SnapshotDir = v
	}
	if v, ok := getEnv("COUNCIL_CACHE_SNAPSHOT_ENABLED"); ok {
		c.Cache.SnapshotEnabled = parseBool(v)
	}
	if v, ok := getEnv("COUNCIL_CACHE_REMOTE_ENABLED"); ok {
		c.Cache.RemoteEnabled = parseBool(v)
	}
	if v, ok := getEnv("COUNCIL_CACHE_REDIS_URL", "REDIS_URL"); ok {
		c.Cache.RedisURL = v
	}
	if v, ok := getEnv("COUNCIL_CACHE_ENCRYPTION_KEY"); ok {
		c.Cache.EncryptionKey = v
	}

	if v, ok := getEnv("COUNCIL_MEMORY_DSN"); ok {
		c.Memory.DSN = v
	}
	if v, ok := getEnv("COUNCIL_MEMORY_MAX_LEARNINGS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Memory.MaxLearnings = n
		}
	}
	if v, ok := getEnv("COUNCIL_MEMORY_RETENTION"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Memory.RetentionWindow = d
		}
	}
	if v, ok := getEnv("COUNCIL_MEMORY_SWEEP_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Memory.SweepInterval = d
		}
	}

	if v, ok := getEnv("COUNCIL_APPROVAL_MODE"); ok {
		c.Approval.DefaultSandboxMode = v
	}
	if v, ok := getEnv("COUNCIL_APPROVAL_CONFIRM_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Approval.ConfirmTimeout = d
		}
	}

	if v, ok := getEnv("COUNCIL_VOICE_MAX_TEAM_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Voice.MaxTeamSize = n
		}
	}

	if v, ok := getEnv("COUNCIL_SYNTHESIS_STRATEGY"); ok {
		c.Synthesis.DefaultStrategy = v
	}
	if v, ok := getEnv("COUNCIL_SYNTHESIS_WEIGHTING"); ok {
		c.Synthesis.DefaultWeighting = v
	}
	if v, ok := getEnv("COUNCIL_SYNTHESIS_DIALECTICAL_EXCERPT_LEN"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Synthesis.DialecticalExcerptLen = n
		}
	}

	if v, ok := getEnv("COUNCIL_MCP_POOL_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MCP.PoolSize = n
		}
	}
	if v, ok := getEnv("COUNCIL_MCP_LOAD_BALANCE"); ok {
		c.MCP.LoadBalance = v
	}

	if v, ok := getEnv("COUNCIL_PLAN_STRATEGY"); ok {
		c.Plan.DefaultStrategy = v
	}

	if v, ok := getEnv("COUNCIL_ANALYTICS_ENABLED"); ok {
		c.Analytics.Enabled = parseBool(v)
	}
	if v, ok := getEnv("COUNCIL_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		c.Analytics.OTELEndpoint = v
	}

	if v, ok := getEnv("COUNCIL_BREAKER_THRESHOLD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.BreakerFailureThreshold = n
		}
	}
	if v, ok := getEnv("COUNCIL_BREAKER_HALF_OPEN_DELAY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.BreakerHalfOpenDelay = d
		}
	}
	if v, ok := getEnv("COUNCIL_RETRY_BACKOFF"); ok {
		c.Resilience.RetryBackoff = v
	}

	if v, ok := getEnv("COUNCIL_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := getEnv("COUNCIL_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// Validate rejects configurations that would make downstream components
// misbehave rather than fail loudly at construction time.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Memory.MaxLearnings <= 0 {
		return fmt.Errorf("config: memory.max_learnings must be positive, got %d", c.Memory.MaxLearnings)
	}
	if c.Approval.HighRiskThreshold <= c.Approval.LowRiskThreshold {
		return fmt.Errorf("config: approval.high_risk_threshold (%v) must exceed low_risk_threshold (%v)",
			c.Approval.HighRiskThreshold, c.Approval.LowRiskThreshold)
	}
	if c.Voice.MaxTeamSize <= 0 {
		return fmt.Errorf("config: voice.max_team_size must be positive, got %d", c.Voice.MaxTeamSize)
	}
	switch c.Resilience.RetryBackoff {
	case "linear", "exponential", "adaptive":
	default:
		return fmt.Errorf("config: resilience.retry_backoff %q is not one of linear|exponential|adaptive", c.Resilience.RetryBackoff)
	}
	return nil
}

// Functional options, highest-priority layer.

func WithCacheMaxEntries(n int) Option { return func(c *Config) { c.Cache.MaxEntries = n } }
func WithCacheTTL(d time.Duration) Option { return func(c *Config) { c.Cache.DefaultTTL = d } }
func WithCacheSnapshot(dir string) Option {
	return func(c *Config) {
		c.Cache.SnapshotDir = dir
		c.Cache.SnapshotEnabled = dir != ""
	}
}
func WithCacheRemote(redisURL string) Option {
	return func(c *Config) {
		c.Cache.RedisURL = redisURL
		c.Cache.RemoteEnabled = redisURL != ""
	}
}
func WithCacheEncryptionKey(key string) Option {
	return func(c *Config) { c.Cache.EncryptionKey = key }
}
func WithMemoryDSN(dsn string) Option { return func(c *Config) { c.Memory.DSN = dsn } }
func WithApprovalMode(mode string) Option {
	return func(c *Config) { c.Approval.DefaultSandboxMode = mode }
}
func WithVoiceMaxTeamSize(n int) Option { return func(c *Config) { c.Voice.MaxTeamSize = n } }
func WithSynthesisStrategy(strategy string) Option {
	return func(c *Config) { c.Synthesis.DefaultStrategy = strategy }
}
func WithMCPPoolSize(n int) Option { return func(c *Config) { c.MCP.PoolSize = n } }
func WithPlanStrategy(strategy string) Option {
	return func(c *Config) { c.Plan.DefaultStrategy = strategy }
}
func WithAnalyticsEnabled(enabled bool) Option {
	return func(c *Config) { c.Analytics.Enabled = enabled }
}
func WithBreaker(threshold int, halfOpenDelay time.Duration) Option {
	return func(c *Config) {
		c.Resilience.BreakerFailureThreshold = threshold
		c.Resilience.BreakerHalfOpenDelay = halfOpenDelay
	}
}
func WithLogLevel(level string) Option { return func(c *Config) { c.Logging.Level = level } }
func WithLogFormat(format string) Option { return func(c *Config) { c.Logging.Format = format } }
