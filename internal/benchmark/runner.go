// Package benchmark times the database and in-memory aggregation paths of each
// backend on generated data, checks that they agree and records every step.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/compare"
	"backend-trackbench/internal/dataset"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// FloatFields are compared within tolerance when results are checked.
var FloatFields = []string{"km_total", "time_total", "time", "km"}

type Runner struct {
	Recorder  Recorder
	Metrics   *Metrics
	Logger    log.Logger
	Tolerance float64
	// Now stamps recorded rows and dates generated datasets.
	Now func() time.Time
}

func NewRunner(rec Recorder, metrics *Metrics, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{
		Recorder:  rec,
		Metrics:   metrics,
		Logger:    logger,
		Tolerance: compare.DefaultTolerance,
		Now:       time.Now,
	}
}

// Measure times one aggregation.
func (r *Runner) Measure(ctx context.Context, v Variant, f aggregate.Filter, p aggregate.Params) (Measurement, error) {
	start := time.Now()
	res, err := v.Aggregator.Aggregate(ctx, f, p)
	took := time.Since(start).Seconds()
	if err != nil {
		return Measurement{}, errors.Wrapf(err, "%s %s", v.Backend, v.Name)
	}
	return Measurement{
		Variant:     v.Name,
		Backend:     v.Backend,
		Mode:        p.Mode,
		OrderBy:     p.OrderBy,
		Duration:    took,
		ResultCount: res.Len(),
		Result:      res,
	}, nil
}

// Pair measures both variants of a backend one after the other and marks
// both with whether their results agree. A disagreement is logged, not
// returned.
func (r *Runner) Pair(ctx context.Context, db, memory Variant, f aggregate.Filter, p aggregate.Params) (Measurement, Measurement, error) {
	a, err := r.Measure(ctx, db, f, p)
	if err != nil {
		return Measurement{}, Measurement{}, err
	}
	b, err := r.Measure(ctx, memory, f, p)
	if err != nil {
		return Measurement{}, Measurement{}, err
	}

	equal, mismatch := compare.Results(a.Result, b.Result, FloatFields, r.Tolerance)
	if !equal {
		level.Warn(r.Logger).Log("msg", "results differ", "backend", db.Backend,
			"mode", p.Mode, "order_by", p.OrderBy, "diff", mismatch.String())
		r.Metrics.observeMismatch(db.Backend)
	}
	a.Equal, b.Equal = &equal, &equal
	r.Metrics.observeQuery(a)
	r.Metrics.observeQuery(b)
	return a, b, nil
}

// Run executes plan against every backend and returns all measurements.
// Datasets are drawn from plan.Seed, so equal plans load equal data.
func (r *Runner) Run(ctx context.Context, plan Plan, backends []Backend) ([]Measurement, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(plan.Seed))
	f := plan.filter()
	out := make([]Measurement, 0, plan.steps()*len(backends)*2)

	for _, users := range plan.UserCounts {
		for _, trackings := range plan.TrackingCounts {
			sizes := plan.sizes(users, trackings)
			for _, c := range plan.Combinations {
				p := aggregate.Params{Mode: c.Mode, OrderBy: c.OrderBy, Limit: plan.Limit}
				for run := 1; run <= plan.Runs; run++ {
					if err := ctx.Err(); err != nil {
						return out, err
					}
					level.Info(r.Logger).Log("msg", "benchmark step", "users", users, "trackings", trackings,
						"mode", c.Mode, "order_by", c.OrderBy, "run", run)

					d, err := dataset.Generate(rng, sizes, r.Now().UTC().Truncate(time.Millisecond))
					if err != nil {
						return out, err
					}
					for _, b := range backends {
						ms, err := r.step(ctx, b, d, f, p, run)
						if err != nil {
							return out, err
						}
						out = append(out, ms...)
					}
					if err := r.updates(ctx, rng, plan.UpdateRuns, backends, d); err != nil {
						return out, err
					}
				}
			}
		}
	}
	return out, nil
}

func (r *Runner) step(ctx context.Context, b Backend, d *dataset.Dataset, f aggregate.Filter, p aggregate.Params, run int) ([]Measurement, error) {
	if err := b.Loader.Reload(ctx, d); err != nil {
		return nil, errors.Wrapf(err, "reload %s", b.Name)
	}
	db, mem, err := r.Pair(ctx, b.Database, b.Memory, f, p)
	if err != nil {
		return nil, err
	}
	for _, m := range []Measurement{db, mem} {
		rec := ReadRecord{
			Timestamp:   r.Now(),
			DBSystem:    b.Name,
			Variant:     m.Variant,
			Sizes:       d.Sizes(),
			GroupRounds: p.Mode,
			OrderBy:     p.OrderBy,
			Run:         run,
			Duration:    m.Duration,
			ResultCount: m.ResultCount,
			Equal:       m.Equal,
		}
		if err := r.Recorder.RecordRead(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "record read")
		}
	}
	return []Measurement{db, mem}, nil
}

// updates renames and regenders one random user UpdateRuns times on every
// backend. The user and values are shared by all backends within a run.
func (r *Runner) updates(ctx context.Context, rng *rand.Rand, runs int, backends []Backend, d *dataset.Dataset) error {
	ids := d.UserIDs()
	if len(ids) == 0 || runs == 0 {
		return nil
	}
	userID := ids[rng.Intn(len(ids))].String()

	for run := 1; run <= runs; run++ {
		username := fmt.Sprintf("bench_user_%d_%d", run, rng.Intn(10000)+1)
		gender := dataset.Genders[rng.Intn(len(dataset.Genders))]
		for _, b := range backends {
			took, err := b.Updater.UpdateUsername(ctx, userID, username)
			if err != nil {
				return errors.Wrapf(err, "%s update username", b.Name)
			}
			if err := r.recordUpdate(ctx, b.Name, UpdateUsername, d, run, userID, took); err != nil {
				return err
			}
			took, err = b.Updater.UpdateGender(ctx, userID, gender)
			if err != nil {
				return errors.Wrapf(err, "%s update gender", b.Name)
			}
			if err := r.recordUpdate(ctx, b.Name, UpdateGender, d, run, userID, took); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) recordUpdate(ctx context.Context, backend, kind string, d *dataset.Dataset, run int, userID string, took time.Duration) error {
	r.Metrics.observeUpdate(backend, kind, took.Seconds())
	err := r.Recorder.RecordUpdate(ctx, UpdateRecord{
		Timestamp: r.Now(),
		DBSystem:  backend,
		Variant:   kind,
		Sizes:     d.Sizes(),
		UpdateRun: run,
		UserID:    userID,
		Duration:  took.Seconds(),
	})
	return errors.Wrap(err, "record update")
}
