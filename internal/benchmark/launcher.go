package benchmark

import (
	"context"
	"sync"
	"time"

	"backend-trackbench/internal/stream"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	ErrBusy       = errors.New("a benchmark is already running")
	ErrUnknownRun = errors.New("unknown run")
)

const (
	StateRunning  = "running"
	StateDone     = "done"
	StateFailed   = "failed"
	StateCanceled = "canceled"
)

type Status struct {
	RunID   string    `json:"run_id"`
	State   string    `json:"state"`
	Error   string    `json:"error,omitempty"`
	Summary []Summary `json:"summary,omitempty"`
}

// RunRecord is a finished run as kept by an Archive.
type RunRecord struct {
	Status
	Plan       Plan      `json:"plan"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Archive keeps finished runs beyond the life of the process.
type Archive interface {
	SaveRun(ctx context.Context, r RunRecord) error
}

// Launcher runs plans in the background, one at a time. Runs stop when the
// context given to NewLauncher is cancelled.
type Launcher struct {
	ctx      context.Context
	backends []Backend
	hub      *stream.Hub
	redis    *redis.Client
	metrics  *Metrics
	logger   log.Logger
	archive  Archive

	mu      sync.Mutex
	running bool
	runs    map[string]*Status
	wg      sync.WaitGroup
}

func NewLauncher(ctx context.Context, backends []Backend, hub *stream.Hub, redisClient *redis.Client, metrics *Metrics, logger log.Logger) *Launcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Launcher{
		ctx:      ctx,
		backends: backends,
		hub:      hub,
		redis:    redisClient,
		metrics:  metrics,
		logger:   logger,
		runs:     map[string]*Status{},
	}
}

// WithArchive makes the launcher save every finished run to a.
func (l *Launcher) WithArchive(a Archive) *Launcher {
	l.archive = a
	return l
}

// Start validates plan and begins running it. The returned id names the run
// on the stream and in Status.
func (l *Launcher) Start(plan Plan) (string, error) {
	if err := plan.Validate(); err != nil {
		return "", err
	}
	if len(l.backends) == 0 {
		return "", errors.Wrap(ErrUnknownBackend, "no backends configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return "", ErrBusy
	}
	runID := uuid.NewString()
	l.running = true
	l.runs[runID] = &Status{RunID: runID, State: StateRunning}

	l.wg.Add(1)
	go l.run(runID, plan)
	return runID, nil
}

func (l *Launcher) run(runID string, plan Plan) {
	defer l.wg.Done()
	logger := log.With(l.logger, "run", runID)

	recorders := MultiRecorder{}
	if l.hub != nil {
		recorders = append(recorders, NewHubRecorder(l.hub, runID))
	}
	if l.redis != nil {
		if err := l.redis.Ping(l.ctx).Err(); err != nil {
			level.Warn(logger).Log("msg", "redis unavailable, results are not streamed", "err", err)
		} else {
			recorders = append(recorders, NewRedisRecorder(l.redis, runID))
		}
	}

	level.Info(logger).Log("msg", "benchmark started", "steps", plan.steps())
	started := time.Now().UTC()
	ms, err := NewRunner(recorders, l.metrics, logger).Run(l.ctx, plan, l.backends)

	status := Status{RunID: runID, State: StateDone, Summary: Summarize(ms)}
	switch {
	case errors.Is(err, context.Canceled):
		status.State = StateCanceled
	case err != nil:
		status.State, status.Error = StateFailed, err.Error()
		level.Error(logger).Log("msg", "benchmark failed", "err", err)
	default:
		level.Info(logger).Log("msg", "benchmark finished", "measurements", len(ms))
	}

	if l.archive != nil {
		// the run context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec := RunRecord{Status: status, Plan: plan, StartedAt: started, FinishedAt: time.Now().UTC()}
		if err := l.archive.SaveRun(ctx, rec); err != nil {
			level.Warn(logger).Log("msg", "archiving run failed", "err", err)
		}
		cancel()
	}

	l.mu.Lock()
	l.runs[runID] = &status
	l.running = false
	l.mu.Unlock()
}

func (l *Launcher) Status(runID string) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.runs[runID]
	if !ok {
		return Status{}, errors.Wrapf(ErrUnknownRun, "%q", runID)
	}
	return *s, nil
}

// Wait blocks until the current run, if any, has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
