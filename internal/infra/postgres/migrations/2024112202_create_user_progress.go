package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createUserProgressSQL = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id            TEXT NOT NULL,
	question_id        TEXT NOT NULL REFERENCES questions (id) ON DELETE CASCADE,
	selected_answer_id TEXT NOT NULL,
	composite_score    INTEGER NOT NULL,
	answered_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, question_id)
);

CREATE INDEX IF NOT EXISTS user_progress_user_answered_idx ON user_progress (user_id, answered_at DESC);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createUserProgressSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS user_progress`)
			return err
		},
	)
}
