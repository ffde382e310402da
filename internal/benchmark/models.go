package benchmark

import (
	"context"
	"time"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/dataset"

	"github.com/pkg/errors"
)

const (
	BackendPostgres = "PostgreSQL"
	BackendMongo    = "MongoDB"

	UpdateUsername = "update_username"
	UpdateGender   = "update_gender"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Variant is one way of producing a result on one backend.
type Variant struct {
	Name       string
	Backend    string
	Aggregator aggregate.RowAggregator
}

// Loader replaces a backend's data with a dataset.
type Loader interface {
	Reload(ctx context.Context, d *dataset.Dataset) error
}

// Updater runs the single-user writes that are timed after every read step.
type Updater interface {
	UpdateUsername(ctx context.Context, userID, username string) (time.Duration, error)
	UpdateGender(ctx context.Context, userID, gender string) (time.Duration, error)
}

// Backend is everything the runner needs from one database. Database and
// Memory must read the same data so their results can be compared.
type Backend struct {
	Name     string
	Loader   Loader
	Database Variant
	Memory   Variant
	Updater  Updater
}

// Measurement is one timed aggregation. Equal is nil until the result has
// been compared with the other variant of the same backend.
type Measurement struct {
	Variant     string            `json:"variant"`
	Backend     string            `json:"backend"`
	Mode        aggregate.Mode    `json:"mode"`
	OrderBy     aggregate.OrderBy `json:"order_by"`
	Duration    float64           `json:"duration"`
	ResultCount int               `json:"result_count"`
	Equal       *bool             `json:"equal"`
	Result      aggregate.Result  `json:"-"`
}

// ReadRecord is one row of the read results file.
type ReadRecord struct {
	Timestamp   time.Time         `json:"timestamp"`
	DBSystem    string            `json:"db_system"`
	Variant     string            `json:"variant"`
	Sizes       dataset.Sizes     `json:"sizes"`
	GroupRounds aggregate.Mode    `json:"group_rounds"`
	OrderBy     aggregate.OrderBy `json:"order_by"`
	Run         int               `json:"run"`
	Duration    float64           `json:"duration"`
	ResultCount int               `json:"result_count"`
	Equal       *bool             `json:"equal"`
}

// UpdateRecord is one row of the update results file.
type UpdateRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	DBSystem  string        `json:"db_system"`
	Variant   string        `json:"variant"`
	Sizes     dataset.Sizes `json:"sizes"`
	UpdateRun int           `json:"update_run"`
	UserID    string        `json:"user_id"`
	Duration  float64       `json:"duration"`
}
