package db

import (
	"context"

	"github.com/pkg/errors"
)

// schema is idempotent and ordered so foreign keys resolve.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id uuid PRIMARY KEY,
		username text UNIQUE,
		first_name text,
		last_name text,
		gender text NOT NULL DEFAULT 'unknown',
		email text UNIQUE,
		birthday date,
		hashed_password text NOT NULL,
		role text NOT NULL DEFAULT 'user'
	)`,
	`CREATE TABLE IF NOT EXISTS track (
		track_id uuid PRIMARY KEY,
		name text NOT NULL,
		distance numeric(10,2),
		active boolean NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS event (
		event_id uuid PRIMARY KEY,
		name text NOT NULL,
		starts_at timestamptz,
		ends_at timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS tracking (
		tracking_id uuid PRIMARY KEY,
		start_date_time timestamptz,
		time time,
		user_id uuid REFERENCES users(user_id) ON DELETE SET NULL,
		track_id uuid REFERENCES track(track_id) ON DELETE RESTRICT,
		event_id uuid REFERENCES event(event_id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tracking_start_date_time_idx ON tracking (start_date_time)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL,
		token text NOT NULL UNIQUE,
		expires_at timestamptz NOT NULL,
		revoked_at timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS benchmark_runs (
		run_id uuid PRIMARY KEY,
		state text NOT NULL,
		error text NOT NULL DEFAULT '',
		plan jsonb NOT NULL,
		summary jsonb NOT NULL,
		started_at timestamptz NOT NULL,
		finished_at timestamptz NOT NULL
	)`,
}

// EnsureSchema creates the tracking tables when they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
