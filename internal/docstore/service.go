// Package docstore serves tracking aggregations from the denormalized MongoDB
// collections, either as server-side pipelines or as raw finds grouped in
// process.
package docstore

import (
	"context"
	"time"

	"backend-trackbench/internal/aggregate"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service struct {
	db     *mongo.Database
	engine aggregate.Engine
}

func NewService(db *mongo.Database, engine aggregate.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// Pipeline returns the aggregator that lets MongoDB group, sort and limit.
func (s *Service) Pipeline() aggregate.RowAggregator {
	return pipelineAggregator{coll: s.db.Collection(TrackingCollection), tolerance: s.engine.MergeTolerance()}
}

// Memory returns the aggregator that finds raw documents and groups in process.
func (s *Service) Memory() aggregate.RowAggregator {
	return aggregate.InMemory{Source: s, Engine: s.engine}
}

func (s *Service) Variants() map[string]aggregate.RowAggregator {
	return map[string]aggregate.RowAggregator{VariantPipeline: s.Pipeline(), VariantMemory: s.Memory()}
}

// Rows finds the filtered laps ordered by tracking id. Time stays "HH:MM:SS".
func (s *Service) Rows(ctx context.Context, f aggregate.Filter) ([]aggregate.TrackingRecord, error) {
	cur, err := s.db.Collection(TrackingCollection).Find(ctx, match(f), rawFind())
	if err != nil {
		return nil, errors.Wrap(err, "find tracking documents")
	}
	var docs []Tracking
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode tracking documents")
	}

	out := make([]aggregate.TrackingRecord, len(docs))
	for i, d := range docs {
		out[i] = d.Record()
	}
	return out, nil
}

// UpdateUsername renames the user and every lap carrying the old name.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) (time.Duration, error) {
	return s.setUserField(ctx, userID, "username", username)
}

func (s *Service) UpdateGender(ctx context.Context, userID, gender string) (time.Duration, error) {
	return s.setUserField(ctx, userID, "gender", gender)
}

func (s *Service) setUserField(ctx context.Context, userID, field, value string) (time.Duration, error) {
	start := time.Now()
	set := bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}}
	if _, err := s.db.Collection(UsersCollection).UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, set); err != nil {
		return 0, errors.Wrapf(err, "update user %s", field)
	}
	if _, err := s.db.Collection(TrackingCollection).UpdateMany(ctx, bson.D{{Key: "user_id", Value: userID}}, set); err != nil {
		return 0, errors.Wrapf(err, "update tracking %s", field)
	}
	return time.Since(start), nil
}

type pipelineAggregator struct {
	coll      *mongo.Collection
	tolerance time.Duration
}

func (a pipelineAggregator) Aggregate(ctx context.Context, f aggregate.Filter, p aggregate.Params) (aggregate.Result, error) {
	if err := p.Validate(); err != nil {
		return aggregate.Result{}, err
	}

	switch p.Mode {
	case aggregate.ModeAll:
		recs := []aggregate.AggregateRecord{}
		err := a.run(ctx, allPipeline(f, p), &recs)
		return aggregate.Result{Mode: p.Mode, Aggregates: recs}, err
	case aggregate.ModeBehind:
		recs := []aggregate.SessionRecord{}
		err := a.run(ctx, behindPipeline(f, p, a.tolerance.Seconds()), &recs)
		return aggregate.Result{Mode: p.Mode, Sessions: recs}, err
	case aggregate.ModeNone:
		cur, err := a.coll.Find(ctx, match(f), noneFind(p))
		if err != nil {
			return aggregate.Result{}, errors.Wrap(err, "find tracking documents")
		}
		var docs []Tracking
		if err := cur.All(ctx, &docs); err != nil {
			return aggregate.Result{}, errors.Wrap(err, "decode tracking documents")
		}
		recs := make([]aggregate.TrackingRecord, len(docs))
		for i, d := range docs {
			recs[i] = d.Record()
			recs[i].Time = float64(d.TimeSeconds)
		}
		return aggregate.Result{Mode: p.Mode, Tracking: recs}, nil
	}
	return aggregate.Result{}, errors.Wrapf(aggregate.ErrUnknownMode, "%q", p.Mode)
}

func (a pipelineAggregator) run(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := a.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return errors.Wrap(err, "run aggregation")
	}
	return errors.Wrap(cur.All(ctx, out), "decode aggregation")
}
