package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-leaderboard-service/internal/domain"
)

// AttemptStore persists test history rows in the user_test_history table.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

const attemptColumns = `id, user_id, test_name, date_completed, score_percentage, total_questions, correct_answers, attempted_questions`

func (s *AttemptStore) ListAttempts(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM user_test_history ORDER BY date_completed DESC, id`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM user_test_history WHERE user_id=$1 ORDER BY date_completed DESC, id`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.AttemptRecord
	for rows.Next() {
		var a domain.AttemptRecord
		if err := rows.Scan(&a.ID, &a.UserID, &a.TestName, &a.CompletedAt, &a.ScorePercentage,
			&a.TotalQuestions, &a.CorrectAnswers, &a.AttemptedQuestions); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// SaveAttempt upserts by id. The update only applies to the owner's row, so a
// conflicting id from another user affects no rows.
func (s *AttemptStore) SaveAttempt(ctx context.Context, a domain.AttemptRecord) error {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO user_test_history (`+attemptColumns+`, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE SET
    test_name = EXCLUDED.test_name,
    date_completed = EXCLUDED.date_completed,
    score_percentage = EXCLUDED.score_percentage,
    total_questions = EXCLUDED.total_questions,
    correct_answers = EXCLUDED.correct_answers,
    attempted_questions = EXCLUDED.attempted_questions,
    updated_at = now()
WHERE user_test_history.user_id = EXCLUDED.user_id`,
		a.ID, a.UserID, a.TestName, a.CompletedAt, a.ScorePercentage,
		a.TotalQuestions, a.CorrectAnswers, a.AttemptedQuestions)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptConflict
	}
	return nil
}

func (s *AttemptStore) DeleteAttempt(ctx context.Context, userID, attemptID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_test_history WHERE id=$1 AND user_id=$2`, attemptID, userID)
	if err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) ClearAttempts(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_test_history WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	return nil
}
