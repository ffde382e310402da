package dataset

import (
	"context"

	"backend-trackbench/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

// clearOrder deletes children before parents.
var clearOrder = []string{"tracking", "event", "track", "users"}

var (
	userColumns     = []string{"user_id", "username", "first_name", "last_name", "gender", "email", "birthday", "hashed_password"}
	trackColumns    = []string{"track_id", "name", "distance", "active"}
	eventColumns    = []string{"event_id", "name", "starts_at", "ends_at"}
	trackingColumns = []string{"tracking_id", "start_date_time", "time", "user_id", "track_id", "event_id"}
)

// PostgresLoader bulk loads datasets with COPY.
type PostgresLoader struct {
	db db.CopyQuerier
}

func NewPostgresLoader(q db.CopyQuerier) *PostgresLoader {
	return &PostgresLoader{db: q}
}

func (l *PostgresLoader) Clear(ctx context.Context) error {
	for _, table := range clearOrder {
		if _, err := l.db.Exec(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}
	return nil
}

func (l *PostgresLoader) Load(ctx context.Context, d *Dataset) error {
	users := make([][]any, len(d.Users))
	for i, u := range d.Users {
		users[i] = []any{u.ID, u.Username, u.FirstName, u.LastName, u.Gender, u.Email, u.Birthday, u.HashedPassword}
	}
	tracks := make([][]any, len(d.Tracks))
	for i, t := range d.Tracks {
		tracks[i] = []any{t.ID, t.Name, t.Km, t.Active}
	}
	events := make([][]any, len(d.Events))
	for i, e := range d.Events {
		events[i] = []any{e.ID, e.Name, e.StartsAt, e.EndsAt}
	}
	trackings := make([][]any, len(d.Trackings))
	for i, t := range d.Trackings {
		lap := pgtype.Time{Microseconds: int64(t.Seconds) * 1_000_000, Valid: true}
		trackings[i] = []any{t.ID, t.StartDateTime, lap, t.UserID, t.TrackID, t.EventID}
	}

	for _, tbl := range []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{"users", userColumns, users},
		{"track", trackColumns, tracks},
		{"event", eventColumns, events},
		{"tracking", trackingColumns, trackings},
	} {
		if _, err := l.db.CopyFrom(ctx, pgx.Identifier{tbl.name}, tbl.columns, pgx.CopyFromRows(tbl.rows)); err != nil {
			return errors.Wrapf(err, "copy %s", tbl.name)
		}
	}
	return nil
}

// Reload clears the tables and loads d.
func (l *PostgresLoader) Reload(ctx context.Context, d *Dataset) error {
	if err := l.Clear(ctx); err != nil {
		return err
	}
	return l.Load(ctx, d)
}
