package storage

import (
	"context"
	"encoding/json"

	"backend-trackbench/internal/benchmark"
	"backend-trackbench/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("run not found")

// Service keeps finished benchmark runs in PostgreSQL. The table is left
// alone when a benchmark reloads the tracking data.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) SaveRun(ctx context.Context, r benchmark.RunRecord) error {
	plan, err := json.Marshal(r.Plan)
	if err != nil {
		return errors.Wrap(err, "encode plan")
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO benchmark_runs (run_id, state, error, plan, summary, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (run_id) DO NOTHING
	`, r.RunID, r.State, r.Error, plan, summary, r.StartedAt, r.FinishedAt)
	return errors.Wrapf(err, "save run %s", r.RunID)
}

const runColumns = `run_id, state, error, plan, summary, started_at, finished_at`

// ListRuns returns the latest runs first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]benchmark.RunRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM benchmark_runs ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []benchmark.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list runs")
}

func (s *Service) GetRun(ctx context.Context, runID string) (benchmark.RunRecord, error) {
	r, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM benchmark_runs WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return benchmark.RunRecord{}, errors.Wrapf(ErrNotFound, "%q", runID)
	}
	return r, err
}

func scanRun(row pgx.Row) (benchmark.RunRecord, error) {
	var (
		r             benchmark.RunRecord
		plan, summary []byte
	)
	if err := row.Scan(&r.RunID, &r.State, &r.Error, &plan, &summary, &r.StartedAt, &r.FinishedAt); err != nil {
		return benchmark.RunRecord{}, errors.Wrap(err, "scan run")
	}
	if err := json.Unmarshal(plan, &r.Plan); err != nil {
		return benchmark.RunRecord{}, errors.Wrap(err, "decode plan")
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return benchmark.RunRecord{}, errors.Wrap(err, "decode summary")
	}
	return r, nil
}
