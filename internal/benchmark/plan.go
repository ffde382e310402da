package benchmark

import (
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/config"
	"backend-trackbench/internal/dataset"

	"github.com/pkg/errors"
)

// Combination is one grouping mode with one order.
type Combination struct {
	Mode    aggregate.Mode    `json:"mode"`
	OrderBy aggregate.OrderBy `json:"order_by"`
}

// Plan describes a full benchmark: every user count is crossed with every
// tracking count, every combination is run Runs times on a fresh dataset.
type Plan struct {
	UserCounts     []int         `json:"user_counts"`
	TrackingCounts []int         `json:"tracking_counts"`
	Tracks         int           `json:"tracks"`
	Events         int           `json:"events"`
	Combinations   []Combination `json:"combinations"`
	Runs           int           `json:"runs"`
	UpdateRuns     int           `json:"update_runs"`
	Limit          int           `json:"limit"`
	Gender         string        `json:"gender"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	Seed           int64         `json:"seed"`
}

// DefaultCombinations leaves out behind, whose SQL walk is quadratic in the
// number of laps.
var DefaultCombinations = []Combination{
	{aggregate.ModeAll, aggregate.OrderStart},
	{aggregate.ModeNone, aggregate.OrderStart},
	{aggregate.ModeAll, aggregate.OrderBest},
	{aggregate.ModeNone, aggregate.OrderBest},
}

func DefaultPlan() Plan {
	return Plan{
		UserCounts:     []int{100, 500, 1000},
		TrackingCounts: []int{1000, 10000, 50000},
		Tracks:         10,
		Events:         3,
		Combinations:   DefaultCombinations,
		Runs:           100,
		UpdateRuns:     10,
		Limit:          100000,
		Gender:         "male",
		Start:          time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

const dateLayout = "2006-01-02"

// PlanFor returns the default plan with the configured overrides applied.
func PlanFor(b config.Bench) (Plan, error) {
	p := DefaultPlan()
	if b.Runs > 0 {
		p.Runs = b.Runs
	}
	if b.UpdateRuns > 0 {
		p.UpdateRuns = b.UpdateRuns
	}
	if b.Limit > 0 {
		p.Limit = b.Limit
	}
	if b.Gender != "" {
		p.Gender = b.Gender
	}
	var err error
	if b.Start != "" {
		if p.Start, err = time.Parse(dateLayout, b.Start); err != nil {
			return Plan{}, errors.Wrap(err, "bench start")
		}
	}
	if b.End != "" {
		if p.End, err = time.Parse(dateLayout, b.End); err != nil {
			return Plan{}, errors.Wrap(err, "bench end")
		}
	}
	return p, p.Validate()
}

// Combos crosses modes with orders.
func Combos(modes []aggregate.Mode, orders []aggregate.OrderBy) []Combination {
	out := make([]Combination, 0, len(modes)*len(orders))
	for _, m := range modes {
		for _, o := range orders {
			out = append(out, Combination{Mode: m, OrderBy: o})
		}
	}
	return out
}

func (p Plan) Validate() error {
	if len(p.UserCounts) == 0 || len(p.TrackingCounts) == 0 || len(p.Combinations) == 0 {
		return errors.New("plan needs user counts, tracking counts and combinations")
	}
	if p.Runs < 1 {
		return errors.Errorf("runs must be positive, got %d", p.Runs)
	}
	if p.UpdateRuns < 0 {
		return errors.Errorf("update runs must not be negative, got %d", p.UpdateRuns)
	}
	if p.End.Before(p.Start) {
		return errors.New("end before start")
	}
	for _, c := range p.Combinations {
		if err := (aggregate.Params{Mode: c.Mode, OrderBy: c.OrderBy, Limit: p.Limit}).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// clone copies the slices so decoding into the copy leaves p intact.
func (p Plan) clone() Plan {
	p.UserCounts = append([]int(nil), p.UserCounts...)
	p.TrackingCounts = append([]int(nil), p.TrackingCounts...)
	p.Combinations = append([]Combination(nil), p.Combinations...)
	return p
}

func (p Plan) filter() aggregate.Filter {
	return aggregate.Filter{Gender: p.Gender, StartPeriod: p.Start, EndPeriod: p.End}
}

// steps is the number of (sizes, combination, run) steps the plan executes.
func (p Plan) steps() int {
	return len(p.UserCounts) * len(p.TrackingCounts) * len(p.Combinations) * p.Runs
}

func (p Plan) sizes(users, trackings int) dataset.Sizes {
	return dataset.Sizes{Users: users, Tracks: p.Tracks, Events: p.Events, Trackings: trackings}
}
