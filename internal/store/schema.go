package store

import (
	"context"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('student','faculty','hod','admin')),
		approved      BOOLEAN NOT NULL DEFAULT FALSE,
		regd_no       TEXT NOT NULL DEFAULT '',
		batch         TEXT NOT NULL DEFAULT '',
		semester      TEXT NOT NULL DEFAULT '',
		subject       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		subject     TEXT NOT NULL DEFAULT '',
		batch       TEXT NOT NULL DEFAULT '',
		semester    TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id  TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id          TEXT PRIMARY KEY,
		group_id    TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		created_by  TEXT NOT NULL REFERENCES users(id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		deadline    TIMESTAMPTZ NOT NULL,
		max_marks   INTEGER NOT NULL DEFAULT 100 CHECK (max_marks >= 1),
		attachments JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id            TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
		student_id    TEXT NOT NULL REFERENCES users(id),
		submitted_at  TIMESTAMPTZ NOT NULL,
		files         JSONB NOT NULL DEFAULT '[]',
		grade         DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (grade >= 0),
		feedback      TEXT NOT NULL DEFAULT '',
		graded        BOOLEAN NOT NULL DEFAULT FALSE,
		graded_at     TIMESTAMPTZ,
		graded_by     TEXT REFERENCES users(id),
		UNIQUE (assignment_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS polls (
		id              TEXT PRIMARY KEY,
		group_id        TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		created_by      TEXT NOT NULL REFERENCES users(id),
		question        TEXT NOT NULL,
		multiple_choice BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at      TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS poll_options (
		poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		idx     INTEGER NOT NULL,
		text    TEXT NOT NULL,
		PRIMARY KEY (poll_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS poll_votes (
		poll_id      TEXT NOT NULL,
		option_index INTEGER NOT NULL,
		user_id      TEXT NOT NULL REFERENCES users(id),
		voted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (poll_id, option_index, user_id),
		FOREIGN KEY (poll_id, option_index) REFERENCES poll_options(poll_id, idx) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS poll_ballots (
		poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (poll_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id            TEXT PRIMARY KEY,
		group_id      TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		sender_id     TEXT NOT NULL REFERENCES users(id),
		content       TEXT NOT NULL DEFAULT '',
		type          TEXT NOT NULL,
		file_name     TEXT NOT NULL DEFAULT '',
		file_url      TEXT NOT NULL DEFAULT '',
		file_size     BIGINT NOT NULL DEFAULT 0,
		youtube_url   TEXT NOT NULL DEFAULT '',
		assignment_id TEXT REFERENCES assignments(id) ON DELETE SET NULL,
		poll_id       TEXT REFERENCES polls(id) ON DELETE SET NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_group_created_idx ON messages (group_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS message_reads (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		read_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	)`,
}

// Migrate creates the tables and indexes used by the Postgres repositories.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range schema {
		if _, err := db.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
