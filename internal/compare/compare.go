// Package compare decides whether two aggregation results, usually one from
// the database and one computed in memory, describe the same data.
package compare

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/timeconv"
)

const DefaultTolerance = 1e-6

var DefaultFloatFields = []string{"km_total", "time_total"}

// Missing stands in for a field one side of a Mismatch does not have.
const Missing = "<missing>"

// Mismatch describes the first difference found. Index is -1 when the
// results differ in length.
type Mismatch struct {
	Index int
	Field string
	Left  any
	Right any
}

func (m *Mismatch) String() string {
	if m == nil {
		return "equal"
	}
	if m.Index < 0 {
		return fmt.Sprintf("lengths differ: left=%v right=%v", m.Left, m.Right)
	}
	return fmt.Sprintf("index %d field %q: left=%v right=%v", m.Index, m.Field, m.Left, m.Right)
}

// Results compares two engine results record by record.
func Results(a, b aggregate.Result, floatFields []string, tol float64) (bool, *Mismatch) {
	return Equivalent(a.Records(), b.Records(), floatFields, tol)
}

// Equivalent reports whether a and b hold the same records in the same order.
// Fields named in floatFields are normalized to seconds and must differ by
// less than tol, every other field must match exactly. A field present on
// only one side is a mismatch.
func Equivalent(a, b []aggregate.Record, floatFields []string, tol float64) (bool, *Mismatch) {
	if len(a) != len(b) {
		return false, &Mismatch{Index: -1, Field: "len", Left: len(a), Right: len(b)}
	}

	floats := make(map[string]bool, len(floatFields))
	for _, f := range floatFields {
		floats[f] = true
	}

	for i := range a {
		left := a[i].Fields()
		right := make(map[string]any, len(left))
		for _, f := range b[i].Fields() {
			right[f.Name] = f.Value
		}

		seen := make(map[string]bool, len(left))
		for _, f := range left {
			seen[f.Name] = true
			other, ok := right[f.Name]
			if !ok {
				return false, &Mismatch{Index: i, Field: f.Name, Left: f.Value, Right: Missing}
			}
			same := sameValue(f.Value, other)
			if floats[f.Name] {
				same = almostEqual(f.Value, other, tol)
			}
			if !same {
				return false, &Mismatch{Index: i, Field: f.Name, Left: f.Value, Right: other}
			}
		}
		for _, f := range b[i].Fields() {
			if !seen[f.Name] {
				return false, &Mismatch{Index: i, Field: f.Name, Left: Missing, Right: f.Value}
			}
		}
	}
	return true, nil
}

func almostEqual(a, b any, tol float64) bool {
	x, errA := timeconv.Seconds(a)
	y, errB := timeconv.Seconds(b)
	if errA != nil || errB != nil {
		return false
	}
	return math.Abs(x-y) < tol
}

func sameValue(a, b any) bool {
	a, b = indirect(a), indirect(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
