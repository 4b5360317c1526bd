package db

import (
	"context"
	"fmt"
)

// schema is idempotent; array columns default to empty so set operations
// never see NULL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                    TEXT PRIMARY KEY,
		first_name            TEXT NOT NULL,
		last_name             TEXT NOT NULL,
		username              TEXT NOT NULL UNIQUE,
		email                 TEXT NOT NULL,
		password_hash         TEXT NOT NULL,
		profile_image         TEXT,
		verified              BOOLEAN NOT NULL DEFAULT FALSE,
		birthday              TIMESTAMPTZ,
		followers             TEXT[] NOT NULL DEFAULT '{}',
		following             TEXT[] NOT NULL DEFAULT '{}',
		black_list            TEXT[] NOT NULL DEFAULT '{}',
		email_activation_key  TEXT NOT NULL DEFAULT '',
		forgot_password_token TEXT,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at            TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
	`CREATE INDEX IF NOT EXISTS users_followers_idx ON users USING GIN (followers)`,
	`CREATE INDEX IF NOT EXISTS users_following_idx ON users USING GIN (following)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		images     TEXT[] NOT NULL DEFAULT '{}',
		videos     TEXT[] NOT NULL DEFAULT '{}',
		likes      TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS posts_user_id_idx ON posts (user_id)`,
	`CREATE INDEX IF NOT EXISTS posts_likes_idx ON posts USING GIN (likes)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS storage_objects (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		kind             TEXT NOT NULL,
		location         TEXT NOT NULL UNIQUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at       TIMESTAMPTZ,
		delete_failed_at TIMESTAMPTZ
	)`,
}

// Migrate creates the tables the services expect.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
