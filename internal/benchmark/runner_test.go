package benchmark

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/config"
	"backend-trackbench/internal/dataset"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFake = errors.New("fake failure")

// store is a fake backend: it keeps the last loaded dataset and serves it as
// raw rows.
type store struct {
	mu      sync.Mutex
	d       *dataset.Dataset
	reloads int
	updates []string
}

func (s *store) Reload(_ context.Context, d *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d = d
	s.reloads++
	return nil
}

func (s *store) Rows(_ context.Context, f aggregate.Filter) ([]aggregate.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := map[string]dataset.User{}
	for _, u := range s.d.Users {
		users[u.ID.String()] = u
	}
	km := map[string]float64{}
	for _, t := range s.d.Tracks {
		km[t.ID.String()] = t.Km
	}
	from, to := f.Bounds()
	var out []aggregate.TrackingRecord
	for _, t := range s.d.Trackings {
		u := users[t.UserID.String()]
		if (f.Gender != "" && u.Gender != f.Gender) || t.StartDateTime.Before(from) || !t.StartDateTime.Before(to) {
			continue
		}
		out = append(out, aggregate.TrackingRecord{
			TrackingID:    t.ID.String(),
			StartDateTime: t.StartDateTime,
			Time:          t.Clock(),
			Km:            km[t.TrackID.String()],
			Username:      aggregate.Str(u.Username),
		})
	}
	return out, nil
}

func (s *store) UpdateUsername(_ context.Context, userID, _ string) (time.Duration, error) {
	s.updates = append(s.updates, "username:"+userID)
	return time.Millisecond, nil
}

func (s *store) UpdateGender(_ context.Context, userID, _ string) (time.Duration, error) {
	s.updates = append(s.updates, "gender:"+userID)
	return time.Millisecond, nil
}

func (s *store) backend(name string) Backend {
	mem := aggregate.InMemory{Source: s}
	return Backend{
		Name:     name,
		Loader:   s,
		Database: Variant{Name: "db", Backend: name, Aggregator: mem},
		Memory:   Variant{Name: "memory", Backend: name, Aggregator: mem},
		Updater:  s,
	}
}

type sink struct {
	mu      sync.Mutex
	reads   []ReadRecord
	updates []UpdateRecord
	err     error
}

func (s *sink) RecordRead(_ context.Context, r ReadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, r)
	return s.err
}

func (s *sink) RecordUpdate(_ context.Context, r UpdateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, r)
	return s.err
}

type fixed struct {
	res aggregate.Result
	err error
}

func (f fixed) Aggregate(context.Context, aggregate.Filter, aggregate.Params) (aggregate.Result, error) {
	return f.res, f.err
}

func totals(user string, km float64) aggregate.Result {
	return aggregate.Result{Mode: aggregate.ModeAll, Aggregates: []aggregate.AggregateRecord{
		{Username: aggregate.Str(user), KmTotal: km, TimeTotal: 900, Rounds: 1},
	}}
}

var allParams = aggregate.Params{Mode: aggregate.ModeAll, OrderBy: aggregate.OrderStart, Limit: 10}

func smallPlan() Plan {
	p := DefaultPlan()
	p.UserCounts = []int{4}
	p.TrackingCounts = []int{30}
	p.Tracks = 2
	p.Events = 1
	p.Combinations = []Combination{{aggregate.ModeAll, aggregate.OrderStart}, {aggregate.ModeBehind, aggregate.OrderBest}}
	p.Runs = 2
	p.UpdateRuns = 2
	p.Gender = ""
	p.Seed = 42
	return p
}

func TestMeasure(t *testing.T) {
	r := NewRunner(&sink{}, nil, nil)
	m, err := r.Measure(context.Background(), Variant{Name: "sql", Backend: BackendPostgres, Aggregator: fixed{res: totals("alice", 5)}}, aggregate.Filter{}, allParams)
	require.NoError(t, err)
	assert.Equal(t, "sql", m.Variant)
	assert.Equal(t, BackendPostgres, m.Backend)
	assert.Equal(t, 1, m.ResultCount)
	assert.GreaterOrEqual(t, m.Duration, 0.0)
	assert.Nil(t, m.Equal)

	_, err = r.Measure(context.Background(), Variant{Name: "sql", Backend: BackendPostgres, Aggregator: fixed{err: errFake}}, aggregate.Filter{}, allParams)
	assert.ErrorIs(t, err, errFake)
	assert.ErrorContains(t, err, "PostgreSQL sql")
}

func TestPairMarksEquality(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var logs bytes.Buffer
	r := NewRunner(&sink{}, metrics, log.NewLogfmtLogger(&logs))

	db := Variant{Name: "sql", Backend: BackendPostgres, Aggregator: fixed{res: totals("alice", 5)}}
	same := Variant{Name: "memory", Backend: BackendPostgres, Aggregator: fixed{res: totals("alice", 5.0000000001)}}
	a, b, err := r.Pair(context.Background(), db, same, aggregate.Filter{}, allParams)
	require.NoError(t, err)
	require.NotNil(t, a.Equal)
	assert.True(t, *a.Equal)
	assert.True(t, *b.Equal)
	assert.Empty(t, logs.String())

	other := Variant{Name: "memory", Backend: BackendPostgres, Aggregator: fixed{res: totals("bob", 5)}}
	a, b, err = r.Pair(context.Background(), db, other, aggregate.Filter{}, allParams)
	require.NoError(t, err)
	assert.False(t, *a.Equal)
	assert.False(t, *b.Equal)
	assert.Contains(t, logs.String(), "results differ")
	assert.Contains(t, logs.String(), "username")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mismatches.WithLabelValues(BackendPostgres)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.queryDuration))

	// one disagreeing pair counts once
	_, _, err = r.Pair(context.Background(), other, db, aggregate.Filter{}, allParams)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.mismatches.WithLabelValues(BackendPostgres)))
}

func TestPairPropagatesErrors(t *testing.T) {
	r := NewRunner(&sink{}, nil, nil)
	ok := Variant{Aggregator: fixed{res: totals("alice", 5)}}
	bad := Variant{Aggregator: fixed{err: errFake}}

	_, _, err := r.Pair(context.Background(), bad, ok, aggregate.Filter{}, allParams)
	assert.ErrorIs(t, err, errFake)
	_, _, err = r.Pair(context.Background(), ok, bad, aggregate.Filter{}, allParams)
	assert.ErrorIs(t, err, errFake)
}

func TestRunPlan(t *testing.T) {
	pg, mongo := &store{}, &store{}
	rec := &sink{}
	r := NewRunner(rec, NewMetrics(nil), nil)
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	ms, err := r.Run(context.Background(), smallPlan(), []Backend{pg.backend(BackendPostgres), mongo.backend(BackendMongo)})
	require.NoError(t, err)

	// 2 combinations x 2 runs x 2 backends x 2 variants
	assert.Len(t, ms, 16)
	assert.Len(t, rec.reads, 16)
	for _, m := range ms {
		require.NotNil(t, m.Equal)
		assert.True(t, *m.Equal, "%s %s %s", m.Backend, m.Variant, m.Mode)
	}
	assert.Equal(t, 4, pg.reloads)
	assert.Equal(t, 4, mongo.reloads)

	// 4 steps x 2 update runs x 2 backends x 2 kinds
	assert.Len(t, rec.updates, 32)
	first := rec.updates[0]
	assert.Equal(t, BackendPostgres, first.DBSystem)
	assert.Equal(t, UpdateUsername, first.Variant)
	assert.Equal(t, dataset.Sizes{Users: 4, Tracks: 2, Events: 1, Trackings: 30}, first.Sizes)
	assert.Equal(t, UpdateGender, rec.updates[1].Variant)
	assert.Equal(t, BackendMongo, rec.updates[2].DBSystem)
	assert.Equal(t, first.UserID, rec.updates[3].UserID)

	read := rec.reads[0]
	assert.Equal(t, now, read.Timestamp)
	assert.Equal(t, aggregate.ModeAll, read.GroupRounds)
	assert.Equal(t, 1, read.Run)
}

func TestRunIsReproducible(t *testing.T) {
	run := func() []Measurement {
		s := &store{}
		r := NewRunner(&sink{}, nil, nil)
		r.Now = func() time.Time { return time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC) }
		ms, err := r.Run(context.Background(), smallPlan(), []Backend{s.backend(BackendPostgres)})
		require.NoError(t, err)
		return ms
	}
	a, b := run(), run()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ResultCount, b[i].ResultCount)
	}
}

func TestRunStops(t *testing.T) {
	s := &store{}
	r := NewRunner(&sink{}, nil, nil)

	_, err := r.Run(context.Background(), Plan{}, []Backend{s.backend(BackendPostgres)})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ms, err := r.Run(ctx, smallPlan(), []Backend{s.backend(BackendPostgres)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ms)

	r = NewRunner(&sink{err: errFake}, nil, nil)
	_, err = r.Run(context.Background(), smallPlan(), []Backend{s.backend(BackendPostgres)})
	assert.ErrorIs(t, err, errFake)
}

func TestPlanValidate(t *testing.T) {
	assert.NoError(t, DefaultPlan().Validate())

	p := DefaultPlan()
	p.Runs = 0
	assert.Error(t, p.Validate())

	p = DefaultPlan()
	p.Limit = 0
	assert.ErrorIs(t, p.Validate(), aggregate.ErrInvalidLimit)

	p = DefaultPlan()
	p.Combinations = []Combination{{Mode: "weekly", OrderBy: aggregate.OrderStart}}
	assert.ErrorIs(t, p.Validate(), aggregate.ErrUnknownMode)

	p = DefaultPlan()
	p.End = p.Start.AddDate(0, 0, -1)
	assert.Error(t, p.Validate())

	assert.Len(t, Combos([]aggregate.Mode{aggregate.ModeAll, aggregate.ModeBehind}, []aggregate.OrderBy{aggregate.OrderStart, aggregate.OrderBest}), 4)
	assert.Equal(t, 3*3*4*100, DefaultPlan().steps())
}

func TestPlanFor(t *testing.T) {
	p, err := PlanFor(config.Bench{Runs: 5, Limit: 10, Gender: "female", Start: "2024-01-01", End: "2024-12-31"})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Runs)
	assert.Equal(t, 10, p.UpdateRuns)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), p.End)

	_, err = PlanFor(config.Bench{Start: "01/01/2024"})
	assert.Error(t, err)
	_, err = PlanFor(config.Bench{Start: "2025-01-01", End: "2024-01-01"})
	assert.Error(t, err)
}
