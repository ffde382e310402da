package benchmark

import (
	"sort"

	"backend-trackbench/internal/aggregate"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the measurements of one variant for one combination.
type Summary struct {
	Backend    string            `json:"backend"`
	Variant    string            `json:"variant"`
	Mode       aggregate.Mode    `json:"mode"`
	OrderBy    aggregate.OrderBy `json:"order_by"`
	Count      int               `json:"count"`
	Mean       float64           `json:"mean"`
	StdDev     float64           `json:"stddev"`
	Mismatches int               `json:"mismatches"`
}

type summaryKey struct {
	backend, variant string
	mode             aggregate.Mode
	order            aggregate.OrderBy
}

// Summarize groups ms by backend, variant, mode and order. StdDev is zero
// for groups of one.
func Summarize(ms []Measurement) []Summary {
	durations := map[summaryKey][]float64{}
	mismatches := map[summaryKey]int{}
	for _, m := range ms {
		k := summaryKey{m.Backend, m.Variant, m.Mode, m.OrderBy}
		durations[k] = append(durations[k], m.Duration)
		if m.Equal != nil && !*m.Equal {
			mismatches[k]++
		}
	}

	out := make([]Summary, 0, len(durations))
	for k, xs := range durations {
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 {
			std = 0
		}
		out = append(out, Summary{
			Backend: k.backend, Variant: k.variant, Mode: k.mode, OrderBy: k.order,
			Count: len(xs), Mean: mean, StdDev: std, Mismatches: mismatches[k],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Backend != b.Backend {
			return a.Backend < b.Backend
		}
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		if a.OrderBy != b.OrderBy {
			return a.OrderBy < b.OrderBy
		}
		return a.Variant < b.Variant
	})
	return out
}
