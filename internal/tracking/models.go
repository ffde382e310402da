package tracking

import (
	"time"

	"backend-trackbench/internal/aggregate"

	"github.com/pkg/errors"
)

const (
	VariantSQL    = "sql"
	VariantMemory = "memory"
)

const dateLayout = "2006-01-02"

var ErrUnknownVariant = errors.New("unknown variant")

// Variants maps a variant name to the aggregator that serves it.
type Variants map[string]aggregate.RowAggregator

func (v Variants) Lookup(name string) (aggregate.RowAggregator, error) {
	if agg, ok := v[name]; ok {
		return agg, nil
	}
	return nil, errors.Wrapf(ErrUnknownVariant, "%q", name)
}

// Merge returns a copy of v extended by other.
func (v Variants) Merge(other Variants) Variants {
	out := make(Variants, len(v)+len(other))
	for k, agg := range v {
		out[k] = agg
	}
	for k, agg := range other {
		out[k] = agg
	}
	return out
}

// ResultsQuery is the query string of GET /tracking/results.
type ResultsQuery struct {
	Variant string `query:"variant"`
	Gender  string `query:"gender"`
	Start   string `query:"start"`
	End     string `query:"end"`
	Mode    string `query:"mode"`
	OrderBy string `query:"order_by"`
	Limit   int    `query:"limit"`
}

type ResultsResponse struct {
	Variant string             `json:"variant"`
	Mode    aggregate.Mode     `json:"mode"`
	Count   int                `json:"count"`
	Records []aggregate.Record `json:"records"`
}

type UsernameUpdate struct {
	Username string `json:"username"`
}

type GenderUpdate struct {
	Gender string `json:"gender"`
}

// Update reports how long a single write took.
type Update struct {
	UserID   string        `json:"user_id"`
	Duration time.Duration `json:"duration_ns"`
}

// Parse validates the query and turns it into engine inputs.
func (q ResultsQuery) Parse() (aggregate.Filter, aggregate.Params, error) {
	mode, err := aggregate.ParseMode(q.Mode)
	if err != nil {
		return aggregate.Filter{}, aggregate.Params{}, err
	}
	order, err := aggregate.ParseOrderBy(q.OrderBy)
	if err != nil {
		return aggregate.Filter{}, aggregate.Params{}, err
	}
	start, err := time.Parse(dateLayout, q.Start)
	if err != nil {
		return aggregate.Filter{}, aggregate.Params{}, errors.Wrap(err, "start")
	}
	end, err := time.Parse(dateLayout, q.End)
	if err != nil {
		return aggregate.Filter{}, aggregate.Params{}, errors.Wrap(err, "end")
	}
	p := aggregate.Params{Mode: mode, OrderBy: order, Limit: q.Limit}
	if err := p.Validate(); err != nil {
		return aggregate.Filter{}, aggregate.Params{}, err
	}
	return aggregate.Filter{Gender: q.Gender, StartPeriod: start, EndPeriod: end}, p, nil
}
