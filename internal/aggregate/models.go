package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Mode string

const (
	ModeNone   Mode = "none"
	ModeAll    Mode = "all"
	ModeBehind Mode = "behind"
)

type OrderBy string

const (
	OrderStart OrderBy = "start"
	OrderBest  OrderBy = "best"
)

var (
	ErrUnknownMode  = errors.New("unknown group mode")
	ErrUnknownOrder = errors.New("unknown order")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// ParseMode accepts exactly "none", "all" or "behind".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNone, ModeAll, ModeBehind:
		return m, nil
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

func ParseOrderBy(s string) (OrderBy, error) {
	switch o := OrderBy(s); o {
	case OrderStart, OrderBest:
		return o, nil
	}
	return "", errors.Wrapf(ErrUnknownOrder, "%q", s)
}

// Params selects the result view. Limit applies after grouping and sorting.
type Params struct {
	Mode    Mode
	OrderBy OrderBy
	Limit   int
}

func (p Params) Validate() error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if _, err := ParseOrderBy(string(p.OrderBy)); err != nil {
		return err
	}
	if p.Limit < 1 {
		return errors.Wrapf(ErrInvalidLimit, "got %d", p.Limit)
	}
	return nil
}

// Filter restricts the rows a source hands to the engine. Periods are
// calendar dates and both ends are inclusive.
type Filter struct {
	Gender      string
	StartPeriod time.Time
	EndPeriod   time.Time
}

// Bounds returns the half-open UTC instant range [from, to) covering the
// filter's calendar dates.
func (f Filter) Bounds() (time.Time, time.Time) {
	from := time.Date(f.StartPeriod.Year(), f.StartPeriod.Month(), f.StartPeriod.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(f.EndPeriod.Year(), f.EndPeriod.Month(), f.EndPeriod.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return from, to
}

// Field is one named value of a record, in wire naming.
type Field struct {
	Name  string
	Value any
}

// Record is implemented by every row shape the engine emits.
type Record interface {
	Fields() []Field
}

// TrackingRecord is one timed lap. Time holds whatever the row source
// delivered until the engine normalizes it to seconds.
type TrackingRecord struct {
	TrackingID    string    `json:"tracking_id" bson:"tracking_id"`
	StartDateTime time.Time `json:"start_date_time" bson:"start_date_time"`
	Time          any       `json:"time" bson:"time"`
	Km            float64   `json:"km" bson:"km"`
	EventName     *string   `json:"event_name" bson:"event_name"`
	Username      *string   `json:"username" bson:"username"`
}

func (r TrackingRecord) Fields() []Field {
	return []Field{
		{"tracking_id", r.TrackingID},
		{"start_date_time", r.StartDateTime},
		{"time", r.Time},
		{"km", r.Km},
		{"event_name", deref(r.EventName)},
		{"username", deref(r.Username)},
	}
}

// AggregateRecord holds a user's lifetime totals.
type AggregateRecord struct {
	Username  *string `json:"username" bson:"_id"`
	KmTotal   float64 `json:"km_total" bson:"km_total"`
	TimeTotal float64 `json:"time_total" bson:"time_total"`
	Rounds    int64   `json:"rounds" bson:"rounds"`
}

func (r AggregateRecord) Fields() []Field {
	return []Field{
		{"username", deref(r.Username)},
		{"km_total", r.KmTotal},
		{"time_total", r.TimeTotal},
		{"rounds", r.Rounds},
	}
}

// SessionRecord is a run of back-to-back laps of one user. It carries the
// first lap's identity and the summed time of all merged laps.
type SessionRecord struct {
	TrackingID    string    `json:"tracking_id" bson:"tracking_id"`
	StartDateTime time.Time `json:"start_date_time" bson:"start_date_time"`
	Time          float64   `json:"time" bson:"time"`
	Km            float64   `json:"km" bson:"km"`
	EventName     *string   `json:"event_name" bson:"event_name"`
	Username      *string   `json:"username" bson:"username"`
	Rounds        int64     `json:"rounds" bson:"rounds"`
}

func (r SessionRecord) Fields() []Field {
	return []Field{
		{"tracking_id", r.TrackingID},
		{"start_date_time", r.StartDateTime},
		{"time", r.Time},
		{"km", r.Km},
		{"event_name", deref(r.EventName)},
		{"username", deref(r.Username)},
		{"rounds", r.Rounds},
	}
}

// Result is the engine output. Exactly one slice is used, chosen by Mode.
type Result struct {
	Mode       Mode
	Tracking   []TrackingRecord
	Aggregates []AggregateRecord
	Sessions   []SessionRecord
}

func (r Result) Len() int {
	switch r.Mode {
	case ModeAll:
		return len(r.Aggregates)
	case ModeBehind:
		return len(r.Sessions)
	}
	return len(r.Tracking)
}

func (r Result) Records() []Record {
	out := make([]Record, 0, r.Len())
	switch r.Mode {
	case ModeAll:
		for _, rec := range r.Aggregates {
			out = append(out, rec)
		}
	case ModeBehind:
		for _, rec := range r.Sessions {
			out = append(out, rec)
		}
	default:
		for _, rec := range r.Tracking {
			out = append(out, rec)
		}
	}
	return out
}

// RowAggregator answers a grouped query. Implementations differ in where
// the grouping happens but must return equivalent results.
type RowAggregator interface {
	Aggregate(ctx context.Context, f Filter, p Params) (Result, error)
}

// RowSource hands out the filtered, unaggregated rows.
type RowSource interface {
	Rows(ctx context.Context, f Filter) ([]TrackingRecord, error)
}

// Str returns a pointer to s, for the optional text columns.
func Str(s string) *string {
	return &s
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// compareNames orders nil before any name.
func compareNames(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(*a, *b)
}
