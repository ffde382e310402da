package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"backend-trackbench/internal/stream"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Recorder persists benchmark rows as they are produced.
type Recorder interface {
	RecordRead(ctx context.Context, r ReadRecord) error
	RecordUpdate(ctx context.Context, r UpdateRecord) error
}

var (
	readHeader = []string{
		"timestamp", "db_system", "variant", "n_users", "n_tracks", "n_trackings", "n_events",
		"group_rounds", "order_by", "run", "duration", "result_count", "equal",
	}
	updateHeader = []string{
		"timestamp", "db_system", "variant", "n_users", "n_tracks", "n_trackings", "n_events",
		"update_run", "user_id", "duration",
	}
)

// CSVRecorder writes read and update rows to two CSV streams, flushing after
// every row so a crashed run keeps what it measured.
type CSVRecorder struct {
	mu      sync.Mutex
	read    *csv.Writer
	update  *csv.Writer
	closers []io.Closer
}

func NewCSVRecorder(read, update io.Writer) (*CSVRecorder, error) {
	r := &CSVRecorder{read: csv.NewWriter(read), update: csv.NewWriter(update)}
	if err := r.write(r.read, readHeader); err != nil {
		return nil, err
	}
	if err := r.write(r.update, updateHeader); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateCSVRecorder truncates or creates both files.
func CreateCSVRecorder(readPath, updatePath string) (*CSVRecorder, error) {
	rf, err := os.Create(readPath)
	if err != nil {
		return nil, errors.Wrap(err, "create read csv")
	}
	uf, err := os.Create(updatePath)
	if err != nil {
		rf.Close()
		return nil, errors.Wrap(err, "create update csv")
	}
	r, err := NewCSVRecorder(rf, uf)
	if err != nil {
		rf.Close()
		uf.Close()
		return nil, err
	}
	r.closers = []io.Closer{rf, uf}
	return r, nil
}

func (c *CSVRecorder) RecordRead(_ context.Context, r ReadRecord) error {
	equal := ""
	if r.Equal != nil {
		equal = strconv.FormatBool(*r.Equal)
	}
	return c.write(c.read, []string{
		r.Timestamp.Format(time.RFC3339Nano), r.DBSystem, r.Variant,
		strconv.Itoa(r.Sizes.Users), strconv.Itoa(r.Sizes.Tracks), strconv.Itoa(r.Sizes.Trackings), strconv.Itoa(r.Sizes.Events),
		string(r.GroupRounds), string(r.OrderBy), strconv.Itoa(r.Run),
		strconv.FormatFloat(r.Duration, 'f', -1, 64), strconv.Itoa(r.ResultCount), equal,
	})
}

func (c *CSVRecorder) RecordUpdate(_ context.Context, r UpdateRecord) error {
	return c.write(c.update, []string{
		r.Timestamp.Format(time.RFC3339Nano), r.DBSystem, r.Variant,
		strconv.Itoa(r.Sizes.Users), strconv.Itoa(r.Sizes.Tracks), strconv.Itoa(r.Sizes.Trackings), strconv.Itoa(r.Sizes.Events),
		strconv.Itoa(r.UpdateRun), r.UserID, strconv.FormatFloat(r.Duration, 'f', -1, 64),
	})
}

func (c *CSVRecorder) write(w *csv.Writer, row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := w.Write(row); err != nil {
		return errors.Wrap(err, "write csv row")
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

func (c *CSVRecorder) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

const (
	ReadStream   = "bench:results"
	UpdateStream = "bench:updates"
)

// RedisRecorder appends rows as JSON to two Redis streams.
type RedisRecorder struct {
	client *redis.Client
	runID  string
}

func NewRedisRecorder(client *redis.Client, runID string) *RedisRecorder {
	return &RedisRecorder{client: client, runID: runID}
}

func (r *RedisRecorder) RecordRead(ctx context.Context, rec ReadRecord) error {
	return r.add(ctx, ReadStream, rec)
}

func (r *RedisRecorder) RecordUpdate(ctx context.Context, rec UpdateRecord) error {
	return r.add(ctx, UpdateStream, rec)
}

func (r *RedisRecorder) add(ctx context.Context, stream string, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"run_id": r.runID, "record": payload},
	}).Err()
	return errors.Wrapf(err, "xadd %s", stream)
}

// HubRecorder pushes rows to the websocket clients following the run.
type HubRecorder struct {
	hub   *stream.Hub
	runID string
}

func NewHubRecorder(hub *stream.Hub, runID string) *HubRecorder {
	return &HubRecorder{hub: hub, runID: runID}
}

type hubMessage struct {
	Kind   string `json:"kind"`
	Record any    `json:"record"`
}

func (h *HubRecorder) RecordRead(_ context.Context, r ReadRecord) error {
	return h.send("read", r)
}

func (h *HubRecorder) RecordUpdate(_ context.Context, r UpdateRecord) error {
	return h.send("update", r)
}

func (h *HubRecorder) send(kind string, rec any) error {
	payload, err := json.Marshal(hubMessage{Kind: kind, Record: rec})
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	h.hub.Broadcast(h.runID, payload)
	return nil
}

// MultiRecorder hands every row to each recorder and returns the first error.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordRead(ctx context.Context, r ReadRecord) error {
	var first error
	for _, rec := range m {
		if err := rec.RecordRead(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiRecorder) RecordUpdate(ctx context.Context, r UpdateRecord) error {
	var first error
	for _, rec := range m {
		if err := rec.RecordUpdate(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
