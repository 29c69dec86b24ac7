package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"velora-scenario-service/internal/domain"
)

// ProgressStore keeps one row per (user, question) in user_progress.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Upsert overwrites the user's previous answer to the same question.
func (s *ProgressStore) Upsert(ctx context.Context, p domain.Progress) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_progress (user_id, question_id, selected_answer_id, composite_score, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, question_id) DO UPDATE
		SET selected_answer_id = EXCLUDED.selected_answer_id,
		    composite_score    = EXCLUDED.composite_score,
		    answered_at        = EXCLUDED.answered_at`,
		p.UserID, p.QuestionID, p.SelectedAnswerID, p.CompositeScore, p.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// ListProgress returns the user's rows joined with their question, scenario and
// track, newest first.
func (s *ProgressStore) ListProgress(ctx context.Context, userID string) ([]domain.ProgressEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.user_id, p.question_id, p.selected_answer_id, p.composite_score, p.answered_at,
		       q.prompt, sc.id, sc.code, sc.title, t.title, t.slug
		FROM user_progress p
		JOIN questions q ON q.id = p.question_id
		JOIN scenarios sc ON sc.id = q.scenario_id
		JOIN tracks t ON t.id = sc.track_id
		WHERE p.user_id = $1
		ORDER BY p.answered_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ProgressEntry, 0)
	for rows.Next() {
		var e domain.ProgressEntry
		if err := rows.Scan(
			&e.UserID, &e.QuestionID, &e.SelectedAnswerID, &e.CompositeScore, &e.AnsweredAt,
			&e.Prompt, &e.ScenarioID, &e.ScenarioCode, &e.ScenarioTitle, &e.TrackTitle, &e.TrackSlug,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		e.AnsweredAt = e.AnsweredAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return entries, nil
}
