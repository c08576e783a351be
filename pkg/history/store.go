// Package history persists scenario completions in SQLite and serves them
// back as score history.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// ErrNotConfigured is returned by a nil or closed store.
var ErrNotConfigured = errors.New("history: store is not configured")

// Record is one stored completion.
type Record struct {
	ID          int64               `json:"id"`
	SessionID   string              `json:"session_id"`
	ProfileID   string              `json:"profile_id"`
	ScenarioID  string              `json:"scenario_id"`
	Difficulty  scenario.Difficulty `json:"difficulty"`
	Score       int                 `json:"score"`
	Correct     int                 `json:"correct"`
	Total       int                 `json:"total"`
	TimedOut    bool                `json:"timed_out"`
	IsEnhanced  bool                `json:"is_enhanced"`
	ChainType   string              `json:"chain_type,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}

// Summary aggregates a profile's completions.
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Best     int     `json:"best"`
	TimedOut int     `json:"timed_out"`
}

// Store is a SQLite-backed completion log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OnScenarioComplete stores c.
func (s *Store) OnScenarioComplete(ctx context.Context, c engine.Completion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if c.ScenarioID == "" {
		return fmt.Errorf("history: scenario id is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO completions (
	session_id,
	profile_id,
	scenario_id,
	difficulty,
	score,
	correct,
	total,
	timed_out,
	is_enhanced,
	chain_type,
	final_time,
	final_stress,
	final_effectiveness,
	completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		c.SessionID,
		c.ProfileID,
		c.ScenarioID,
		string(c.Difficulty),
		c.Score,
		c.Correct,
		c.Total,
		c.TimedOut,
		c.IsEnhanced,
		c.ChainType,
		c.Resources.Time,
		c.Resources.Stress,
		c.Resources.Effectiveness,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// Scores returns up to limit of the profile's most recent scores, oldest
// first.
func (s *Store) Scores(ctx context.Context, profileID string, limit int) ([]int, error) {
	recs, err := s.Recent(ctx, profileID, limit)
	if err != nil {
		return nil, err
	}
	scores := make([]int, len(recs))
	for i, r := range recs {
		scores[len(recs)-1-i] = r.Score
	}
	return scores, nil
}

// Recent lists up to limit completions for profileID, newest first. An empty
// profileID lists every profile.
func (s *Store) Recent(ctx context.Context, profileID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		return nil, fmt.Errorf("history: limit must be greater than zero")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
	id,
	session_id,
	profile_id,
	scenario_id,
	difficulty,
	score,
	correct,
	total,
	timed_out,
	is_enhanced,
	chain_type,
	completed_at
FROM completions
WHERE ? = '' OR profile_id = ?
ORDER BY completed_at DESC, id DESC
LIMIT ?
`, profileID, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var difficulty string
		var completedAt int64
		if err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.ProfileID,
			&r.ScenarioID,
			&difficulty,
			&r.Score,
			&r.Correct,
			&r.Total,
			&r.TimedOut,
			&r.IsEnhanced,
			&r.ChainType,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		r.Difficulty = scenario.Difficulty(difficulty)
		r.CompletedAt = time.UnixMilli(completedAt).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return records, nil
}

// Summarize aggregates every completion of profileID.
func (s *Store) Summarize(ctx context.Context, profileID string) (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, ErrNotConfigured
	}
	var sum Summary
	var mean sql.NullFloat64
	var best sql.NullInt64
	var timedOut sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), AVG(score), MAX(score), SUM(timed_out)
FROM completions
WHERE profile_id = ?
`, profileID).Scan(&sum.Count, &mean, &best, &timedOut)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize completions: %w", err)
	}
	sum.Mean = mean.Float64
	sum.Best = int(best.Int64)
	sum.TimedOut = int(timedOut.Int64)
	return sum, nil
}

var (
	_ engine.CompletionSink = (*Store)(nil)
	_ engine.ScoreHistory   = (*Store)(nil)
)
