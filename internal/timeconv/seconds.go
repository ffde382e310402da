// Package timeconv turns the different shapes a lap time arrives in
// (Postgres time, BSON string, plain seconds) into seconds.
package timeconv

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FormatError is returned for strings that are not "HH:MM:SS".
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("timeconv: %q is not HH:MM:SS: %s", e.Value, e.Reason)
}

const (
	secondsPerDay   = 86400
	secondsPerMonth = 30 * secondsPerDay
)

// Seconds normalizes v to seconds.
//
// Numbers are taken as seconds already, durations and intervals are measured,
// wall-clock values become seconds since midnight with the fraction dropped.
// Anything unrecognized, nil included, is 0. Only strings can fail.
func Seconds(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case time.Duration:
		return val.Seconds(), nil
	case time.Time:
		return float64(val.Hour()*3600 + val.Minute()*60 + val.Second()), nil
	case pgtype.Time:
		if !val.Valid {
			return 0, nil
		}
		return float64(val.Microseconds / int64(time.Second/time.Microsecond)), nil
	case pgtype.Interval:
		if !val.Valid {
			return 0, nil
		}
		return float64(val.Months)*secondsPerMonth +
			float64(val.Days)*secondsPerDay +
			float64(val.Microseconds)/float64(time.Second/time.Microsecond), nil
	case string:
		return parseClock(val)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, nil
		}
		return Seconds(rv.Elem().Interface())
	}
	return 0, nil
}

// MustSeconds is Seconds for values this program produced itself.
func MustSeconds(v any) float64 {
	s, err := Seconds(v)
	if err != nil {
		panic(err)
	}
	return s
}

func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &FormatError{Value: s, Reason: fmt.Sprintf("want 3 fields, got %d", len(parts))}
	}
	var total int
	for i, weight := range [3]int{3600, 60, 1} {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0, &FormatError{Value: s, Reason: err.Error()}
		}
		total += n * weight
	}
	return float64(total), nil
}

// Clock renders whole seconds as "HH:MM:SS".
func Clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
