// Package memory implements the durable memory, learning, and pattern
// store: three relations held in an embedded SQLite database, with
// confidence-weighted retrieval and a learning-to-memory promotion
// pipeline.
package memory

import "time"

// Memory is a single stored fact, keyed by (Key, ProjectPath).
type Memory struct {
	ID          string
	Key         string
	Value       any
	Category    string
	ProjectPath string
	Confidence  float64
	AccessCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
	Tags        []string
}

// Learning records the outcome of one session turn; it may promote one or
// more Memory rows and always updates pattern counters.
type Learning struct {
	ID             string
	SessionID      string
	UserInput      string
	Intent         string
	TasksCompleted int
	Success        bool
	Duration       time.Duration
	Learnings      []string
	Suggestions    []string
	ProjectPath    string
	Confidence     float64
	CreatedAt      time.Time
	Metadata       map[string]any
}

// Pattern is a frequency-counted observation keyed by
// (PatternType, PatternData).
type Pattern struct {
	ID          string
	PatternType string
	PatternData string
	Frequency   int
	Confidence  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSeen    time.Time
}

// SearchOptions filters RetrieveMemories.
type SearchOptions struct {
	Category       string
	ProjectPath    string
	MinConfidence  float64
	Tags           []string
	IncludeExpired bool
	Limit          int
}

// RelevantMemory is the trimmed projection returned by
// RetrieveRelevantMemories.
type RelevantMemory struct {
	Key        string
	Value      any
	Confidence float64
}

// LearningStats aggregates counters across all stored learnings.
type LearningStats struct {
	TotalLearnings int
	SuccessRate    float64
	TopIntents     []IntentCount
	TopPatterns    []PatternCount
}

type IntentCount struct {
	Intent string
	Count  int
}

type PatternCount struct {
	PatternType string
	PatternData string
	Frequency   int
}

// Insights adds a daily trend on top of LearningStats.
type Insights struct {
	LearningStats
	DailyTrend []DayCount
}

type DayCount struct {
	Date  string // YYYY-MM-DD
	Count int
}

// Stats summarizes current relation sizes for observability.
type Stats struct {
	MemoryCount   int
	LearningCount int
	PatternCount  int
}
