package aggregate

import (
	"context"
	"math"
	"sort"
	"time"

	"backend-trackbench/internal/timeconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is how far the end of one lap may be from the start of
// the next for both to count as one session.
const DefaultTolerance = time.Second

// Engine groups rows in memory. The zero value uses DefaultTolerance.
type Engine struct {
	// Tolerance overrides DefaultTolerance when set. Zero only merges laps
	// that abut exactly.
	Tolerance *time.Duration
}

func NewEngine(tolerance time.Duration) Engine {
	return Engine{Tolerance: &tolerance}
}

// MergeTolerance is the tolerance actually applied by the engine.
func (e Engine) MergeTolerance() time.Duration {
	if e.Tolerance == nil {
		return DefaultTolerance
	}
	return max(*e.Tolerance, 0)
}

// Aggregate builds the view selected by p from rows. rows is not modified.
func (e Engine) Aggregate(rows []TrackingRecord, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	switch p.Mode {
	case ModeNone:
		recs, err := e.sorted(rows, p.OrderBy)
		if err != nil {
			return Result{}, err
		}
		return Result{Mode: ModeNone, Tracking: recs[:min(p.Limit, len(recs))]}, nil
	case ModeAll:
		recs, err := e.totals(rows)
		if err != nil {
			return Result{}, err
		}
		return Result{Mode: ModeAll, Aggregates: recs[:min(p.Limit, len(recs))]}, nil
	case ModeBehind:
		recs, err := e.sessions(rows, p.OrderBy)
		if err != nil {
			return Result{}, err
		}
		return Result{Mode: ModeBehind, Sessions: recs[:min(p.Limit, len(recs))]}, nil
	}
	return Result{}, errors.Wrapf(ErrUnknownMode, "%q", p.Mode)
}

func (e Engine) sorted(rows []TrackingRecord, order OrderBy) ([]TrackingRecord, error) {
	out := make([]TrackingRecord, len(rows))
	for i, r := range rows {
		secs, err := timeconv.Seconds(r.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "tracking %s", r.TrackingID)
		}
		out[i] = r
		out[i].Time = secs
	}

	if order == OrderBest {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Time.(float64) < out[j].Time.(float64)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartDateTime.After(out[j].StartDateTime)
		})
	}
	return out, nil
}

type userKey struct {
	null bool
	name string
}

func keyOf(username *string) userKey {
	if username == nil {
		return userKey{null: true}
	}
	return userKey{name: *username}
}

func (e Engine) totals(rows []TrackingRecord) ([]AggregateRecord, error) {
	// groups keeps first-seen order, index maps a user to its slot. km is
	// summed exactly so equal totals tie the way the databases see them.
	var (
		groups []AggregateRecord
		km     []decimal.Decimal
	)
	index := map[userKey]int{}

	for _, r := range rows {
		secs, err := timeconv.Seconds(r.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "tracking %s", r.TrackingID)
		}
		k := keyOf(r.Username)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, AggregateRecord{Username: r.Username})
			km = append(km, decimal.Zero)
		}
		km[i] = km[i].Add(decimal.NewFromFloat(r.Km))
		groups[i].TimeTotal += secs
		groups[i].Rounds++
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return km[order[i]].GreaterThan(km[order[j]])
	})

	out := make([]AggregateRecord, len(groups))
	for n, i := range order {
		out[n] = groups[i]
		out[n].KmTotal = km[i].InexactFloat64()
	}
	return out, nil
}

func (e Engine) sessions(rows []TrackingRecord, order OrderBy) ([]SessionRecord, error) {
	byUser := make([]TrackingRecord, len(rows))
	copy(byUser, rows)
	sort.SliceStable(byUser, func(i, j int) bool {
		if c := compareNames(byUser[i].Username, byUser[j].Username); c != 0 {
			return c < 0
		}
		return byUser[i].StartDateTime.Before(byUser[j].StartDateTime)
	})

	tol := e.MergeTolerance().Seconds()
	out := []SessionRecord{}
	var cur *SessionRecord
	for _, r := range byUser {
		secs, err := timeconv.Seconds(r.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "tracking %s", r.TrackingID)
		}
		if cur != nil && compareNames(cur.Username, r.Username) == 0 {
			// distance between where the session ends and where r starts
			gap := cur.StartDateTime.Sub(r.StartDateTime).Seconds() + cur.Time
			if math.Abs(gap) <= tol {
				cur.Time += secs
				cur.Rounds++
				continue
			}
		}
		if cur != nil {
			out = append(out, *cur)
		}
		cur = &SessionRecord{
			TrackingID:    r.TrackingID,
			StartDateTime: r.StartDateTime,
			Time:          secs,
			Km:            r.Km,
			EventName:     r.EventName,
			Username:      r.Username,
			Rounds:        1,
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}

	if order == OrderBest {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Rounds != out[j].Rounds {
				return out[i].Rounds > out[j].Rounds
			}
			return out[i].Time < out[j].Time
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartDateTime.After(out[j].StartDateTime)
		})
	}
	return out, nil
}

// InMemory is the application-side RowAggregator: it fetches raw rows and
// groups them with Engine.
type InMemory struct {
	Source RowSource
	Engine Engine
}

func (m InMemory) Aggregate(ctx context.Context, f Filter, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	rows, err := m.Source.Rows(ctx, f)
	if err != nil {
		return Result{}, err
	}
	return m.Engine.Aggregate(rows, p)
}
