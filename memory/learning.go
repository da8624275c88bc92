package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
)

const (
	durationFastThreshold   = 30 * time.Second
	durationMediumThreshold = 120 * time.Second
	complexitySimpleMax     = 3
	complexityModerateMax   = 7

	promotionConfidence  = 0.7
	promotionMaxSpecific = 3
	promotionFactor      = 0.8
	promotionExpiry      = 30 * 24 * time.Hour
)

// StoreLearning inserts l, updates pattern counters, and — when the
// learning is confident and successful — promotes it into one or more
// memories, all inside a single transaction: a failure anywhere in the
// sequence rolls the whole thing back, so a learning row never survives
// without its patterns or promotions.
func (s *Store) StoreLearning(ctx context.Context, l Learning) (string, error) {
	if l.ID == "" {
		l.ID = newID("learn")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	learningsJSON, _ := json.Marshal(l.Learnings)
	suggestionsJSON, _ := json.Marshal(l.Suggestions)
	metadataJSON, _ := json.Marshal(l.Metadata)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errs.New("memory.StoreLearning", "PersistenceError", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO learnings (id, session_id, user_input, intent, tasks_completed, success, duration_ms, learnings, suggestions, project_path, confidence, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.SessionID, l.UserInput, l.Intent, l.TasksCompleted, boolToInt(l.Success),
		l.Duration.Milliseconds(), string(learningsJSON), string(suggestionsJSON), l.ProjectPath,
		l.Confidence, l.CreatedAt, string(metadataJSON)); err != nil {
		return "", errs.New("memory.StoreLearning", "PersistenceError", err)
	}

	if err := s.updatePatterns(ctx, tx, l); err != nil {
		return "", errs.New("memory.StoreLearning", "PersistenceError", err)
	}

	if l.Confidence > promotionConfidence && l.Success {
		if err := s.promote(ctx, tx, l); err != nil {
			return "", errs.New("memory.StoreLearning", "PersistenceError", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errs.New("memory.StoreLearning", "PersistenceError", err)
	}

	s.log.Debug("learning stored", clog.Fields{"id": l.ID, "intent": l.Intent, "success": l.Success})
	return l.ID, nil
}

func (s *Store) updatePatterns(ctx context.Context, ex execer, l Learning) error {
	patterns := []struct{ patternType, patternData string }{
		{"intent_frequency", l.Intent},
	}
	if l.Success {
		patterns = append(patterns, struct{ patternType, patternData string }{"success_pattern", l.Intent})
	} else {
		patterns = append(patterns, struct{ patternType, patternData string }{"failure_pattern", l.Intent})
	}

	durationBucket := "slow"
	switch {
	case l.Duration <= durationFastThreshold:
		durationBucket = "fast"
	case l.Duration <= durationMediumThreshold:
		durationBucket = "medium"
	}
	patterns = append(patterns, struct{ patternType, patternData string }{
		"duration_pattern", fmt.Sprintf("%s_%s", l.Intent, durationBucket),
	})

	complexityBucket := "complex"
	switch {
	case l.TasksCompleted <= complexitySimpleMax:
		complexityBucket = "simple"
	case l.TasksCompleted <= complexityModerateMax:
		complexityBucket = "moderate"
	}
	patterns = append(patterns, struct{ patternType, patternData string }{
		"complexity_pattern", fmt.Sprintf("%s_%s", l.Intent, complexityBucket),
	})

	for _, p := range patterns {
		if err := s.upsertPattern(ctx, ex, p.patternType, p.patternData, l.Confidence); err != nil {
			return err
		}
	}
	return nil
}

// upsertPattern is idempotent on (patternType, patternData): it
// increments frequency on conflict or inserts a fresh row with
// frequency=1.
func (s *Store) upsertPattern(ctx context.Context, ex execer, patternType, patternData string, confidence float64) error {
	now := time.Now()
	_, err := ex.ExecContext(ctx, `
		INSERT INTO patterns (id, pattern_type, pattern_data, frequency, confidence, created_at, updated_at, last_seen)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(pattern_type, pattern_data) DO UPDATE SET
			frequency = frequency + 1,
			updated_at = excluded.updated_at,
			last_seen = excluded.last_seen`,
		newID("pat"), patternType, patternData, confidence, now, now, now)
	if err != nil {
		return errs.New("memory.upsertPattern", "PersistenceError", err)
	}
	return nil
}

// promote writes derived memories for a confident, successful learning.
// It never mutates existing memories — promotion is insert-only.
func (s *Store) promote(ctx context.Context, ex execer, l Learning) error {
	now := time.Now()

	if _, err := s.storeMemory(ctx, ex, Memory{
		Key:         fmt.Sprintf("successful_intent_%s", l.Intent),
		Value:       l.UserInput,
		Category:    "success_pattern",
		ProjectPath: l.ProjectPath,
		Confidence:  l.Confidence,
		CreatedAt:   now,
		Tags:        []string{"success", l.Intent, "pattern"},
	}); err != nil {
		return err
	}

	n := len(l.Learnings)
	if n > promotionMaxSpecific {
		n = promotionMaxSpecific
	}
	expiry := now.Add(promotionExpiry)
	for i := 0; i < n; i++ {
		if _, err := s.storeMemory(ctx, ex, Memory{
			Key:         fmt.Sprintf("learning_%d", i),
			Value:       l.Learnings[i],
			Category:    "specific_learning",
			ProjectPath: l.ProjectPath,
			Confidence:  promotionFactor * l.Confidence,
			CreatedAt:   now,
			ExpiresAt:   &expiry,
		}); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetLearningStats aggregates counts, success rate, and top
// intents/patterns across all stored learnings.
func (s *Store) GetLearningStats(ctx context.Context) (LearningStats, error) {
	var stats LearningStats

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(success), 0) FROM learnings")
	var successCount int
	if err := row.Scan(&stats.TotalLearnings, &successCount); err != nil {
		return stats, errs.New("memory.GetLearningStats", "PersistenceError", err)
	}
	if stats.TotalLearnings > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.TotalLearnings)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT intent, COUNT(*) c FROM learnings GROUP BY intent ORDER BY c DESC LIMIT 10`)
	if err != nil {
		return stats, errs.New("memory.GetLearningStats", "PersistenceError", err)
	}
	for rows.Next() {
		var ic IntentCount
		if err := rows.Scan(&ic.Intent, &ic.Count); err != nil {
			rows.Close()
			return stats, errs.New("memory.GetLearningStats", "PersistenceError", err)
		}
		stats.TopIntents = append(stats.TopIntents, ic)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT pattern_type, pattern_data, frequency FROM patterns ORDER BY frequency DESC LIMIT 10`)
	if err != nil {
		return stats, errs.New("memory.GetLearningStats", "PersistenceError", err)
	}
	for rows.Next() {
		var pc PatternCount
		if err := rows.Scan(&pc.PatternType, &pc.PatternData, &pc.Frequency); err != nil {
			rows.Close()
			return stats, errs.New("memory.GetLearningStats", "PersistenceError", err)
		}
		stats.TopPatterns = append(stats.TopPatterns, pc)
	}
	rows.Close()

	return stats, rows.Err()
}

// GetInsights layers a 7-day learning trend on top of GetLearningStats.
func (s *Store) GetInsights(ctx context.Context) (Insights, error) {
	stats, err := s.GetLearningStats(ctx)
	if err != nil {
		return Insights{}, err
	}

	since := time.Now().AddDate(0, 0, -7)
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(created_at) d, COUNT(*) c FROM learnings WHERE created_at >= ? GROUP BY d ORDER BY d`,
		since)
	if err != nil {
		return Insights{}, errs.New("memory.GetInsights", "PersistenceError", err)
	}
	defer rows.Close()

	var trend []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return Insights{}, errs.New("memory.GetInsights", "PersistenceError", err)
		}
		trend = append(trend, dc)
	}

	return Insights{LearningStats: stats, DailyTrend: trend}, rows.Err()
}
