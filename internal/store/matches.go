package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/matching"
)

// timeLayout keeps created_at sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StoredMatch is a match as persisted by a run.
type StoredMatch struct {
	matching.Match
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SaveRun writes all matches of one run in a single transaction.
func (s *Store) SaveRun(ctx context.Context, runID string, matches []matching.Match) error {
	if runID == "" {
		return errors.New("run id is required")
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO matches (run_id, employer_id, employee_id, rank, score, rationale, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(timeLayout)
	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, runID, m.EmployerID, m.EmployeeID, m.Rank, m.Score, m.Rationale, createdAt); err != nil {
			return fmt.Errorf("insert match %s/%s: %w", m.EmployerID, m.EmployeeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.WithRun(s.logger, runID).Info("matches stored", zap.Int("matches", len(matches)))
	return nil
}

// ListByEmployer returns the matches of the most recent run that ranked
// employerID, ordered by rank.
func (s *Store) ListByEmployer(ctx context.Context, employerID string) ([]StoredMatch, error) {
	rows, err := s.pool.QueryContext(ctx, `
SELECT run_id, employer_id, employee_id, rank, score, rationale, created_at
FROM matches
WHERE employer_id = ?
  AND run_id = (
    SELECT run_id FROM matches
    WHERE employer_id = ?
    ORDER BY id DESC
    LIMIT 1
  )
ORDER BY rank ASC;`, employerID, employerID)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []StoredMatch
	for rows.Next() {
		var (
			m       StoredMatch
			created string
		)
		if err := rows.Scan(&m.RunID, &m.EmployerID, &m.EmployeeID, &m.Rank, &m.Score, &m.Rationale, &created); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w for employer %s", ErrNotFound, employerID)
	}

	return out, nil
}
