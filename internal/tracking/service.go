package tracking

import (
	"context"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/db"

	"github.com/pkg/errors"
)

type Service struct {
	db     db.Querier
	engine aggregate.Engine
}

func NewService(db db.Querier, engine aggregate.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// SQL returns the aggregator that lets Postgres group, sort and limit.
func (s *Service) SQL() aggregate.RowAggregator {
	return sqlAggregator{db: s.db, tolerance: s.engine.MergeTolerance()}
}

// Memory returns the aggregator that fetches raw rows and groups in process.
func (s *Service) Memory() aggregate.RowAggregator {
	return aggregate.InMemory{Source: s, Engine: s.engine}
}

// Variants names both relational aggregators for lookup by variant.
func (s *Service) Variants() Variants {
	return Variants{VariantSQL: s.SQL(), VariantMemory: s.Memory()}
}

// Rows fetches the filtered laps ordered by tracking id, without grouping.
func (s *Service) Rows(ctx context.Context, f aggregate.Filter) ([]aggregate.TrackingRecord, error) {
	sql, args := rawRowsQuery(f)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query tracking rows")
	}
	defer rows.Close()

	out := []aggregate.TrackingRecord{}
	for rows.Next() {
		var r aggregate.TrackingRecord
		if err := rows.Scan(&r.TrackingID, &r.StartDateTime, &r.Time, &r.Km, &r.EventName, &r.Username); err != nil {
			return nil, errors.Wrap(err, "scan tracking row")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate tracking rows")
}

// UpdateUsername sets the username of one user and reports how long the write took.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) (time.Duration, error) {
	start := time.Now()
	if _, err := s.db.Exec(ctx, `UPDATE users SET username=$2 WHERE user_id=$1`, userID, username); err != nil {
		return 0, errors.Wrap(err, "update username")
	}
	return time.Since(start), nil
}

// UpdateGender sets the gender of one user and reports how long the write took.
func (s *Service) UpdateGender(ctx context.Context, userID, gender string) (time.Duration, error) {
	start := time.Now()
	if _, err := s.db.Exec(ctx, `UPDATE users SET gender=$2 WHERE user_id=$1`, userID, gender); err != nil {
		return 0, errors.Wrap(err, "update gender")
	}
	return time.Since(start), nil
}
