package tracking

import (
	"context"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type sqlAggregator struct {
	db        db.Querier
	tolerance time.Duration
}

func (a sqlAggregator) Aggregate(ctx context.Context, f aggregate.Filter, p aggregate.Params) (aggregate.Result, error) {
	if err := p.Validate(); err != nil {
		return aggregate.Result{}, err
	}

	switch p.Mode {
	case aggregate.ModeAll:
		sql, args := allQuery(f, p)
		recs, err := collect(ctx, a.db, sql, args, func(row pgx.Rows) (aggregate.AggregateRecord, error) {
			var r aggregate.AggregateRecord
			err := row.Scan(&r.Username, &r.KmTotal, &r.TimeTotal, &r.Rounds)
			return r, err
		})
		return aggregate.Result{Mode: p.Mode, Aggregates: recs}, err
	case aggregate.ModeBehind:
		sql, args := behindQuery(f, p, a.tolerance.Seconds())
		recs, err := collect(ctx, a.db, sql, args, func(row pgx.Rows) (aggregate.SessionRecord, error) {
			var r aggregate.SessionRecord
			err := row.Scan(&r.TrackingID, &r.StartDateTime, &r.Time, &r.Km, &r.EventName, &r.Username, &r.Rounds)
			return r, err
		})
		return aggregate.Result{Mode: p.Mode, Sessions: recs}, err
	case aggregate.ModeNone:
		sql, args := noneQuery(f, p)
		recs, err := collect(ctx, a.db, sql, args, func(row pgx.Rows) (aggregate.TrackingRecord, error) {
			var r aggregate.TrackingRecord
			var seconds float64
			err := row.Scan(&r.TrackingID, &r.StartDateTime, &seconds, &r.Km, &r.EventName, &r.Username)
			r.Time = seconds
			return r, err
		})
		return aggregate.Result{Mode: p.Mode, Tracking: recs}, err
	}
	return aggregate.Result{}, errors.Wrapf(aggregate.ErrUnknownMode, "%q", p.Mode)
}

func collect[T any](ctx context.Context, q db.Querier, sql string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query aggregate")
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan aggregate")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate aggregate")
	}
	return out, nil
}
