package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared&_pragma=busy_timeout(5000)"
	s, err := Open(context.Background(), Config{DSN: dsn, LowValueScore: 0.3, RetentionWindow: 30 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StoreAndRetrieveMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.StoreMemory(ctx, Memory{
		Key:        "project_language",
		Value:      "go",
		Category:   "facts",
		Confidence: 0.9,
		CreatedAt:  time.Now(),
		Tags:       []string{"lang"},
	})
	if err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	memories, err := s.RetrieveMemories(ctx, SearchOptions{Category: "facts"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(memories))
	}
	if memories[0].Value != "go" {
		t.Errorf("expected value 'go', got %v", memories[0].Value)
	}
}

func TestStore_RetrieveMemories_IncrementsAccessCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.StoreMemory(ctx, Memory{Key: "k", Value: "v", Category: "c", Confidence: 0.9, CreatedAt: time.Now()})

	if _, err := s.RetrieveMemories(ctx, SearchOptions{Category: "c"}); err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}

	memories, err := s.RetrieveMemories(ctx, SearchOptions{Category: "c"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	for _, m := range memories {
		if m.ID == id && m.AccessCount < 1 {
			t.Errorf("expected access_count >= 1 after two retrievals, got %d", m.AccessCount)
		}
	}
}

func TestStore_ExpiredMemoriesHiddenByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	created := time.Now().Add(-2 * time.Hour)
	_, err := s.StoreMemory(ctx, Memory{
		Key: "old", Value: "v", Category: "c", Confidence: 0.9,
		CreatedAt: created, ExpiresAt: &expired,
	})
	if err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}

	memories, err := s.RetrieveMemories(ctx, SearchOptions{Category: "c"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(memories) != 0 {
		t.Errorf("expected expired memory to be hidden, got %d", len(memories))
	}

	withExpired, err := s.RetrieveMemories(ctx, SearchOptions{Category: "c", IncludeExpired: true})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(withExpired) != 1 {
		t.Errorf("expected expired memory visible with IncludeExpired, got %d", len(withExpired))
	}
}

func TestStore_StoreMemory_RejectsExpiresBeforeCreated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := time.Now().Add(-time.Hour)
	_, err := s.StoreMemory(ctx, Memory{
		Key: "bad", Value: "v", Category: "c", Confidence: 0.5,
		CreatedAt: time.Now(), ExpiresAt: &bad,
	})
	if err == nil {
		t.Fatal("expected error for expiresAt before createdAt")
	}
}

func TestStore_RetrieveRelevantMemories_DeduplicatesAcrossPasses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.StoreMemory(ctx, Memory{Key: "golang basics", Value: "go is statically typed", Category: "facts", Confidence: 0.9, CreatedAt: time.Now()})
	s.StoreMemory(ctx, Memory{Key: "unrelated", Value: "python is dynamic", Category: "facts", Confidence: 0.95, CreatedAt: time.Now()})

	results, err := s.RetrieveRelevantMemories(ctx, "golang", "", 5)
	if err != nil {
		t.Fatalf("RetrieveRelevantMemories: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one relevant memory")
	}
	seen := map[string]bool{}
	for _, r := range results {
		if seen[r.Key] {
			t.Errorf("duplicate key %q in results", r.Key)
		}
		seen[r.Key] = true
	}
}

func TestStore_StoreLearning_UpsertsPatternsIdempotently(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := Learning{
		SessionID: "s1", UserInput: "do the thing", Intent: "build",
		TasksCompleted: 2, Success: true, Duration: 10 * time.Second,
		Confidence: 0.9, CreatedAt: time.Now(),
	}
	if _, err := s.StoreLearning(ctx, l); err != nil {
		t.Fatalf("StoreLearning: %v", err)
	}
	if _, err := s.StoreLearning(ctx, l); err != nil {
		t.Fatalf("StoreLearning (second): %v", err)
	}

	stats, err := s.GetLearningStats(ctx)
	if err != nil {
		t.Fatalf("GetLearningStats: %v", err)
	}
	if stats.TotalLearnings != 2 {
		t.Errorf("expected 2 learnings, got %d", stats.TotalLearnings)
	}

	found := false
	for _, p := range stats.TopPatterns {
		if p.PatternType == "intent_frequency" && p.PatternData == "build" {
			found = true
			if p.Frequency != 2 {
				t.Errorf("expected frequency 2 for repeated pattern, got %d", p.Frequency)
			}
		}
	}
	if !found {
		t.Error("expected intent_frequency pattern for 'build'")
	}
}

func TestStore_StoreLearning_FailedInsertLeavesNoRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := Learning{
		ID: "dup-learning", SessionID: "s1", UserInput: "do the thing", Intent: "build",
		TasksCompleted: 2, Success: true, Duration: 10 * time.Second,
		Confidence: 0.9, CreatedAt: time.Now(),
	}
	if _, err := s.StoreLearning(ctx, l); err != nil {
		t.Fatalf("StoreLearning: %v", err)
	}

	// A second learning sharing the same primary key conflicts on the
	// insert itself; StoreLearning must roll the whole attempt back
	// rather than leaving a duplicate or partial row behind.
	if _, err := s.StoreLearning(ctx, l); err == nil {
		t.Fatal("expected a primary-key conflict on the duplicate learning id")
	}

	stats, err := s.GetLearningStats(ctx)
	if err != nil {
		t.Fatalf("GetLearningStats: %v", err)
	}
	if stats.TotalLearnings != 1 {
		t.Errorf("expected the failed attempt to leave exactly the first learning, got %d", stats.TotalLearnings)
	}
}

func TestStore_StoreLearning_PromotesConfidentSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := Learning{
		SessionID: "s1", UserInput: "added feature x", Intent: "feature",
		TasksCompleted: 1, Success: true, Duration: time.Second,
		Learnings:  []string{"use context for cancellation", "prefer composition"},
		Confidence: 0.85, CreatedAt: time.Now(),
	}
	if _, err := s.StoreLearning(ctx, l); err != nil {
		t.Fatalf("StoreLearning: %v", err)
	}

	memories, err := s.RetrieveMemories(ctx, SearchOptions{Category: "success_pattern"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("expected promoted success_pattern memory, got %d", len(memories))
	}

	specific, err := s.RetrieveMemories(ctx, SearchOptions{Category: "specific_learning"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(specific) != 2 {
		t.Errorf("expected 2 specific_learning memories, got %d", len(specific))
	}
}

func TestStore_StoreLearning_DoesNotPromoteLowConfidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := Learning{
		SessionID: "s1", UserInput: "tried", Intent: "feature",
		Success: true, Confidence: 0.4, CreatedAt: time.Now(),
	}
	if _, err := s.StoreLearning(ctx, l); err != nil {
		t.Fatalf("StoreLearning: %v", err)
	}

	memories, err := s.RetrieveMemories(ctx, SearchOptions{Category: "success_pattern"})
	if err != nil {
		t.Fatalf("RetrieveMemories: %v", err)
	}
	if len(memories) != 0 {
		t.Errorf("expected no promotion for low-confidence learning, got %d", len(memories))
	}
}
