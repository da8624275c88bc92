package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voicecouncil/council/internal/clog"
	"github.com/voicecouncil/council/internal/errs"
)

// Store is the durable relational store over memories, learnings, and
// patterns. It is safe for concurrent use; database/sql pools
// connections internally.
type Store struct {
	db            *sql.DB
	log           *clog.Logger
	lowValueScore float64
	retention     time.Duration
}

// execer is satisfied by both *sql.DB and *sql.Tx, so statement-running
// helpers can run standalone or as part of a caller's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config controls store construction.
type Config struct {
	DSN             string
	LowValueScore   float64 // confidence floor for the startup low-value sweep
	RetentionWindow time.Duration
}

// Open connects to dsn, enables WAL mode, ensures the schema exists, and
// runs the startup sweep (expired memories, plus low-value: confidence <
// LowValueScore, accessCount = 0, created more than 7 days ago).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errs.New("memory.Open", "PersistenceError", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errs.New("memory.Open", "PersistenceError", fmt.Errorf("enable WAL: %w", err))
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errs.New("memory.Open", "PersistenceError", err)
	}

	s := &Store{
		db:            db,
		log:           clog.New("memory"),
		lowValueScore: cfg.LowValueScore,
		retention:     cfg.RetentionWindow,
	}
	if s.lowValueScore <= 0 {
		s.lowValueScore = 0.3
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.startupSweep(ctx); err != nil {
		s.log.Warn("startup sweep failed", clog.Fields{"error": err})
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			category TEXT NOT NULL,
			project_path TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME,
			tags TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_key_project ON memories(key, project_path)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_input TEXT NOT NULL,
			intent TEXT NOT NULL,
			tasks_completed INTEGER NOT NULL,
			success INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			learnings TEXT NOT NULL DEFAULT '[]',
			suggestions TEXT NOT NULL DEFAULT '[]',
			project_path TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_intent ON learnings(intent)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_created_at ON learnings(created_at)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			pattern_type TEXT NOT NULL,
			pattern_data TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 1,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			UNIQUE(pattern_type, pattern_data)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errs.New("memory.ensureSchema", "PersistenceError", err)
		}
	}
	return nil
}

func (s *Store) startupSweep(ctx context.Context) error {
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, now); err != nil {
		return fmt.Errorf("sweep expired: %w", err)
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE confidence < ? AND access_count = 0 AND created_at < ?`,
		s.lowValueScore, cutoff); err != nil {
		return fmt.Errorf("sweep low-value: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.New("memory.Close", "PersistenceError", err)
	}
	return nil
}

// StoreMemory inserts memory and returns its id. ExpiresAt, if set, must
// be after CreatedAt.
func (s *Store) StoreMemory(ctx context.Context, m Memory) (string, error) {
	return s.storeMemory(ctx, s.db, m)
}

// storeMemory is StoreMemory's tx-aware core: ex is either s.db (the
// standalone path) or a *sql.Tx a caller is already driving, so a
// promotion can be folded into the same transaction as the learning
// insert that triggered it.
func (s *Store) storeMemory(ctx context.Context, ex execer, m Memory) (string, error) {
	if m.ExpiresAt != nil && !m.ExpiresAt.After(m.CreatedAt) {
		return "", errs.New("memory.StoreMemory", "InputInvalid", fmt.Errorf("expiresAt must be after createdAt"))
	}
	if m.ID == "" {
		m.ID = newID("mem")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	valueJSON, err := json.Marshal(m.Value)
	if err != nil {
		return "", errs.New("memory.StoreMemory", "InputInvalid", err)
	}
	tagsJSON, _ := json.Marshal(m.Tags)

	_, err = ex.ExecContext(ctx, `
		INSERT INTO memories (id, key, value, category, project_path, confidence, access_count, created_at, updated_at, expires_at, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Key, string(valueJSON), m.Category, m.ProjectPath, m.Confidence, m.AccessCount,
		m.CreatedAt, m.UpdatedAt, m.ExpiresAt, string(tagsJSON))
	if err != nil {
		return "", errs.New("memory.StoreMemory", "PersistenceError", err)
	}

	s.log.Debug("memory stored", clog.Fields{"id": m.ID, "key": m.Key, "category": m.Category})
	return m.ID, nil
}

// RetrieveMemories returns memories matching opts, ordered by
// confidence*(accessCount+1) desc then createdAt desc. Matching rows have
// their access_count incremented and updated_at refreshed.
func (s *Store) RetrieveMemories(ctx context.Context, opts SearchOptions) ([]Memory, error) {
	var where []string
	var args []any

	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.ProjectPath != "" {
		where = append(where, "project_path = ?")
		args = append(args, opts.ProjectPath)
	}
	if opts.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, opts.MinConfidence)
	}
	if !opts.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at >= ?)")
		args = append(args, time.Now())
	}

	query := "SELECT id, key, value, category, project_path, confidence, access_count, created_at, updated_at, expires_at, tags FROM memories"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY confidence * (access_count + 1) DESC, created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New("memory.RetrieveMemories", "PersistenceError", err)
	}
	defer rows.Close()

	memories, err := scanMemories(rows)
	if err != nil {
		return nil, errs.New("memory.RetrieveMemories", "PersistenceError", err)
	}

	if len(opts.Tags) > 0 {
		memories = filterByTags(memories, opts.Tags)
	}

	if len(memories) > 0 {
		ids := make([]string, len(memories))
		for i, m := range memories {
			ids[i] = m.ID
		}
		if err := s.touchAccess(ctx, ids); err != nil {
			s.log.Warn("failed to update access counters", clog.Fields{"error": err})
		}
	}

	return memories, nil
}

func (s *Store) touchAccess(ctx context.Context, ids []string) error {
	now := time.Now()
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, now)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(
		"UPDATE memories SET access_count = access_count + 1, updated_at = ? WHERE id IN (%s)",
		strings.Join(placeholders, ","))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// RetrieveRelevantMemories runs a two-pass lexical match: first
// high-scoring memories containing any query word, then a top-up of
// high-confidence memories, deduplicated by id.
func (s *Store) RetrieveRelevantMemories(ctx context.Context, query, projectPath string, limit int) ([]RelevantMemory, error) {
	words := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{})
	var out []RelevantMemory

	if len(words) > 0 {
		opts := SearchOptions{ProjectPath: projectPath, MinConfidence: 0.5, Limit: limit * 4}
		candidates, err := s.RetrieveMemories(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, m := range candidates {
			if len(out) >= limit {
				break
			}
			if containsAnyWord(m.Key, words) || containsAnyWordInValue(m.Value, words) {
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				out = append(out, RelevantMemory{Key: m.Key, Value: m.Value, Confidence: m.Confidence})
			}
		}
	}

	if len(out) < limit {
		topUp, err := s.RetrieveMemories(ctx, SearchOptions{ProjectPath: projectPath, MinConfidence: 0.7, Limit: limit * 2})
		if err != nil {
			return nil, err
		}
		for _, m := range topUp {
			if len(out) >= limit {
				break
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, RelevantMemory{Key: m.Key, Value: m.Value, Confidence: m.Confidence})
		}
	}

	return out, nil
}

func containsAnyWord(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func containsAnyWordInValue(v any, words []string) bool {
	s, ok := v.(string)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return false
		}
		s = string(b)
	}
	return containsAnyWord(s, words)
}

// Stats reports current relation sizes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories")
	if err := row.Scan(&st.MemoryCount); err != nil {
		return st, errs.New("memory.Stats", "PersistenceError", err)
	}
	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM learnings")
	if err := row.Scan(&st.LearningCount); err != nil {
		return st, errs.New("memory.Stats", "PersistenceError", err)
	}
	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patterns")
	if err := row.Scan(&st.PatternCount); err != nil {
		return st, errs.New("memory.Stats", "PersistenceError", err)
	}
	return st, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		var valueJSON, tagsJSON string
		var expiresAt sql.NullTime

		if err := rows.Scan(&m.ID, &m.Key, &valueJSON, &m.Category, &m.ProjectPath, &m.Confidence,
			&m.AccessCount, &m.CreatedAt, &m.UpdatedAt, &expiresAt, &tagsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(valueJSON), &m.Value); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			m.Tags = nil
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			m.ExpiresAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func filterByTags(memories []Memory, want []string) []Memory {
	var out []Memory
	for _, m := range memories {
		if hasAnyTag(m.Tags, want) {
			out = append(out, m)
		}
	}
	return out
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

var idCounter int64

func newID(prefix string) string {
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), n)
}
