package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-trackbench/internal/benchmark"

	"github.com/pashagolub/pgxmock/v3"
)

var (
	errSave = errors.New("save error")

	started  = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	finished = started.Add(90 * time.Second)

	runColumnNames = []string{"run_id", "state", "error", "plan", "summary", "started_at", "finished_at"}
)

func record() benchmark.RunRecord {
	plan := benchmark.DefaultPlan()
	plan.Seed = 42
	return benchmark.RunRecord{
		Status: benchmark.Status{
			RunID: "run-1",
			State: benchmark.StateDone,
			Summary: []benchmark.Summary{
				{Backend: benchmark.BackendPostgres, Variant: "sql", Mode: "all", OrderBy: "start", Count: 2, Mean: 0.5},
			},
		},
		Plan:       plan,
		StartedAt:  started,
		FinishedAt: finished,
	}
}

func runRows(ids ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows(runColumnNames)
	for _, id := range ids {
		rows.AddRow(id, "done", "", []byte(`{"runs": 3, "seed": 42}`),
			[]byte(`[{"backend":"PostgreSQL","variant":"sql","count":3}]`), started, finished)
	}
	return rows
}

func TestSaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO benchmark_runs`).
		WithArgs("run-1", "done", "", pgxmock.AnyArg(), pgxmock.AnyArg(), started, finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock)
	if err := svc.SaveRun(context.Background(), record()); err != nil {
		t.Fatalf("save run: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveRunError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO benchmark_runs`).
		WithArgs("run-1", "done", "", pgxmock.AnyArg(), pgxmock.AnyArg(), started, finished).
		WillReturnError(errSave)

	svc := NewService(mock)
	err = svc.SaveRun(context.Background(), record())
	if !errors.Is(err, errSave) {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT run_id, state.* FROM benchmark_runs ORDER BY finished_at DESC`).
		WithArgs(10).
		WillReturnRows(runRows("run-2", "run-1"))

	runs, err := NewService(mock).ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[1].Plan.Runs != 3 || runs[1].Plan.Seed != 42 {
		t.Fatalf("plan not decoded: %+v", runs[1].Plan)
	}
	if len(runs[1].Summary) != 1 || runs[1].Summary[0].Count != 3 {
		t.Fatalf("summary not decoded: %+v", runs[1].Summary)
	}
}

func TestListRunsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM benchmark_runs`).WithArgs(10).WillReturnError(errSave)

	if _, err := NewService(mock).ListRuns(context.Background(), 10); !errors.Is(err, errSave) {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestListRunsBadJSON(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM benchmark_runs`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow("run-1", "done", "", []byte(`{`), []byte(`[]`), started, finished))

	if _, err := NewService(mock).ListRuns(context.Background(), 10); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestGetRun(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM benchmark_runs WHERE run_id`).
		WithArgs("run-1").
		WillReturnRows(runRows("run-1"))
	mock.ExpectQuery(`FROM benchmark_runs WHERE run_id`).
		WithArgs("missing").
		WillReturnRows(runRows())

	svc := NewService(mock)
	run, err := svc.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !run.FinishedAt.Equal(finished) {
		t.Fatalf("unexpected finish: %v", run.FinishedAt)
	}

	if _, err := svc.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
