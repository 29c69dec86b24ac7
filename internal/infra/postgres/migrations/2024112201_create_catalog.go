package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createCatalogSQL = `
CREATE TABLE IF NOT EXISTS tracks (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	sort_order  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scenarios (
	id            TEXT PRIMARY KEY,
	track_id      TEXT NOT NULL REFERENCES tracks (id) ON DELETE CASCADE,
	code          TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	context       TEXT NOT NULL DEFAULT '',
	assumptions   TEXT[] NOT NULL DEFAULT '{}',
	trigger_event TEXT NOT NULL DEFAULT '',
	difficulty    TEXT NOT NULL CHECK (difficulty IN ('beginner', 'intermediate', 'advanced')),
	sort_order    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
	id          TEXT PRIMARY KEY,
	scenario_id TEXT NOT NULL REFERENCES scenarios (id) ON DELETE CASCADE,
	prompt      TEXT NOT NULL,
	sort_order  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS answer_options (
	id                    TEXT PRIMARY KEY,
	question_id           TEXT NOT NULL REFERENCES questions (id) ON DELETE CASCADE,
	label                 TEXT NOT NULL,
	text                  TEXT NOT NULL,
	is_correct            BOOLEAN NOT NULL DEFAULT FALSE,
	correctness           TEXT NOT NULL CHECK (correctness IN ('correct', 'suboptimal', 'incorrect')),
	legal_accuracy        INTEGER NOT NULL DEFAULT 0,
	market_practice       INTEGER NOT NULL DEFAULT 0,
	risk_awareness        INTEGER NOT NULL DEFAULT 0,
	perspective_awareness INTEGER NOT NULL DEFAULT 0,
	composite             INTEGER NOT NULL DEFAULT 0,
	wrong_explanation     TEXT NOT NULL DEFAULT '',
	UNIQUE (question_id, label)
);

CREATE TABLE IF NOT EXISTS explanations (
	question_id          TEXT PRIMARY KEY REFERENCES questions (id) ON DELETE CASCADE,
	correct_explanation  TEXT NOT NULL,
	lender_perspective   TEXT NOT NULL DEFAULT '',
	borrower_perspective TEXT NOT NULL DEFAULT '',
	learning_outcome     TEXT NOT NULL
);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createCatalogSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS explanations, answer_options, questions, scenarios, tracks`)
			return err
		},
	)
}
