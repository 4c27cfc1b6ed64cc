package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const createCoreTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS quizzes (
	id            TEXT PRIMARY KEY,
	code          VARCHAR(6) NOT NULL UNIQUE,
	title         VARCHAR(100) NOT NULL,
	description   VARCHAR(500),
	status        VARCHAR(20) NOT NULL DEFAULT 'idle',
	created_by_id TEXT REFERENCES users (id),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
	id             BIGSERIAL PRIMARY KEY,
	quiz_id        TEXT NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
	text           VARCHAR(500) NOT NULL,
	options        JSONB NOT NULL,
	correct_answer INT NOT NULL,
	score          INT NOT NULL DEFAULT 10,
	display_order  INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quiz_connections (
	id           BIGSERIAL PRIMARY KEY,
	quiz_id      TEXT NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	connected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (quiz_id, user_id)
);

CREATE TABLE IF NOT EXISTS quiz_participant_scores (
	id                 BIGSERIAL PRIMARY KEY,
	quiz_id            TEXT NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
	user_id            TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	score              INT NOT NULL DEFAULT 0,
	questions_answered INT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ,
	UNIQUE (quiz_id, user_id)
);
`

const dropCoreTablesSQL = `
DROP TABLE IF EXISTS quiz_participant_scores;
DROP TABLE IF EXISTS quiz_connections;
DROP TABLE IF EXISTS questions;
DROP TABLE IF EXISTS quizzes;
DROP TABLE IF EXISTS users;
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createCoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropCoreTablesSQL)
			return err
		},
	)
}
