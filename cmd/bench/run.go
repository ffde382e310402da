package main

import (
	"os"
	"os/signal"
	"syscall"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/benchmark"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full benchmark plan and write the CSV results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := planFromFlags(a, cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := a.connect(ctx, true)
			if err != nil {
				return err
			}
			defer st.close(cmd.Context())
			backends := st.backends(a.engine())
			if len(backends) == 0 {
				return errors.Wrap(benchmark.ErrUnknownBackend, "no backends selected")
			}

			csvRec, err := benchmark.CreateCSVRecorder(a.cfg.ReadCSV, a.cfg.UpdateCSV)
			if err != nil {
				return err
			}
			defer csvRec.Close()

			runID := uuid.NewString()
			recorders := benchmark.MultiRecorder{csvRec}
			if st.redis != nil {
				if err := st.redis.Ping(ctx).Err(); err != nil {
					level.Warn(a.logger).Log("msg", "redis unavailable, results go to CSV only", "err", err)
				} else {
					recorders = append(recorders, benchmark.NewRedisRecorder(st.redis, runID))
				}
			}

			level.Info(a.logger).Log("msg", "benchmark started", "run", runID, "seed", plan.Seed, "read_csv", a.cfg.ReadCSV, "update_csv", a.cfg.UpdateCSV)
			ms, err := benchmark.NewRunner(recorders, nil, a.logger).Run(ctx, plan, backends)
			printSummary(a.out, benchmark.Summarize(ms))
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntSlice("users", []int{100, 500, 1000}, "user counts to generate")
	flags.IntSlice("trackings", []int{1000, 10000, 50000}, "lap counts to generate")
	flags.Int("tracks", 10, "tracks per dataset")
	flags.Int("events", 3, "events per dataset")
	flags.StringSlice("modes", []string{string(aggregate.ModeAll), string(aggregate.ModeNone)}, "grouping modes (all, none, behind)")
	flags.StringSlice("orders", []string{string(aggregate.OrderStart), string(aggregate.OrderBest)}, "orders (start, best)")
	flags.Int64("seed", 0, "random seed, 0 picks one")
	flags.Int("runs", 0, "runs per combination")
	flags.Int("update-runs", 0, "update runs per dataset")
	flags.Int("limit", 0, "row limit per query")
	flags.String("gender", "", "gender filter")
	flags.String("start", "", "first day, YYYY-MM-DD")
	flags.String("end", "", "last day, YYYY-MM-DD")
	flags.String("read-csv", "", "CSV file for read results")
	flags.String("update-csv", "", "CSV file for update results")
	bindFlags(a.v, flags, map[string]string{
		"BENCH_RUNS":        "runs",
		"BENCH_UPDATE_RUNS": "update-runs",
		"BENCH_LIMIT":       "limit",
		"BENCH_GENDER":      "gender",
		"BENCH_START":       "start",
		"BENCH_END":         "end",
		"BENCH_CSV_READ":    "read-csv",
		"BENCH_CSV_UPDATE":  "update-csv",
	})
	return cmd
}

// planFromFlags starts from the configured plan and applies the size,
// combination and seed flags.
func planFromFlags(a *app, flags *pflag.FlagSet) (benchmark.Plan, error) {
	plan, err := benchmark.PlanFor(a.cfg.Bench)
	if err != nil {
		return benchmark.Plan{}, err
	}
	if plan.UserCounts, err = flags.GetIntSlice("users"); err != nil {
		return benchmark.Plan{}, err
	}
	if plan.TrackingCounts, err = flags.GetIntSlice("trackings"); err != nil {
		return benchmark.Plan{}, err
	}
	if plan.Tracks, err = flags.GetInt("tracks"); err != nil {
		return benchmark.Plan{}, err
	}
	if plan.Events, err = flags.GetInt("events"); err != nil {
		return benchmark.Plan{}, err
	}
	if plan.Seed, err = flags.GetInt64("seed"); err != nil {
		return benchmark.Plan{}, err
	}
	if plan.Seed == 0 {
		plan.Seed = int64(uuid.New().ID())
	}

	modeNames, _ := flags.GetStringSlice("modes")
	orderNames, _ := flags.GetStringSlice("orders")
	modes := make([]aggregate.Mode, 0, len(modeNames))
	for _, s := range modeNames {
		m, err := aggregate.ParseMode(s)
		if err != nil {
			return benchmark.Plan{}, err
		}
		modes = append(modes, m)
	}
	orders := make([]aggregate.OrderBy, 0, len(orderNames))
	for _, s := range orderNames {
		o, err := aggregate.ParseOrderBy(s)
		if err != nil {
			return benchmark.Plan{}, err
		}
		orders = append(orders, o)
	}
	plan.Combinations = benchmark.Combos(modes, orders)
	return plan, plan.Validate()
}
