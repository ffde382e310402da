package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/benchmark"
	"backend-trackbench/internal/config"
	"backend-trackbench/internal/db"
	"backend-trackbench/internal/logging"
	"backend-trackbench/internal/server"

	"github.com/go-kit/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	backendPostgres = "postgres"
	backendMongo    = "mongo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger log.Logger
	out    io.Writer

	backends []string

	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectMongo    func(config.Config) (*mongo.Database, error)
	connectRedis    func(config.Config) *redis.Client
}

func newApp() *app {
	return &app{
		v:               viper.New(),
		connectPostgres: db.ConnectPostgres,
		connectMongo:    db.ConnectMongo,
		connectRedis:    db.ConnectRedis,
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(newApp())
}

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "trackbench",
		Short: "Benchmark tracking aggregations on PostgreSQL and MongoDB",
		Long: `trackbench loads synthetic runners, tracks, events and laps into PostgreSQL
and MongoDB, then times every grouping mode both inside the database and in
memory and checks that the two agree.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = config.LoadFrom(a.v)
			a.logger = logging.New(cmd.ErrOrStderr(), a.cfg.LogLevel)
			a.out = cmd.OutOrStdout()
			for _, b := range a.backends {
				if b != backendPostgres && b != backendMongo {
					return errors.Errorf("unknown backend %q", b)
				}
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("postgres-url", "", "PostgreSQL connection string")
	flags.String("mongo-uri", "", "MongoDB connection string")
	flags.String("mongo-db", "", "MongoDB database name")
	flags.String("redis-addr", "", "Redis address for result streams, empty disables")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Duration("merge-tolerance", aggregate.DefaultTolerance, "gap that still joins two laps into one session")
	flags.StringSliceVar(&a.backends, "backends", []string{backendPostgres, backendMongo}, "backends to use")
	bindFlags(a.v, flags, map[string]string{
		"POSTGRES_URL":    "postgres-url",
		"MONGO_URI":       "mongo-uri",
		"MONGO_DB":        "mongo-db",
		"REDIS_ADDR":      "redis-addr",
		"LOG_LEVEL":       "log-level",
		"MERGE_TOLERANCE": "merge-tolerance",
	})

	root.AddCommand(newRunCmd(a), newSeedCmd(a), newQueryCmd(a))
	return root
}

// bindFlags binds config keys to flags. A flag only wins when it was set.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

func (a *app) engine() aggregate.Engine {
	return aggregate.NewEngine(a.cfg.MergeTolerance)
}

func (a *app) wants(backend string) bool {
	return slices.Contains(a.backends, backend)
}

// stores holds the connections a command opened.
type stores struct {
	pg    *pgxpool.Pool
	mongo *mongo.Database
	redis *redis.Client
}

// connect opens the selected backends. Redis is optional and only used
// when withRedis is set.
func (a *app) connect(ctx context.Context, withRedis bool) (stores, error) {
	var st stores
	if a.wants(backendPostgres) {
		pg, err := a.connectPostgres(a.cfg)
		if err != nil {
			return st, err
		}
		st.pg = pg
		if err := db.EnsureSchema(ctx, pg); err != nil {
			st.close(ctx)
			return stores{}, err
		}
	}
	if a.wants(backendMongo) {
		mdb, err := a.connectMongo(a.cfg)
		if err != nil {
			st.close(ctx)
			return stores{}, err
		}
		st.mongo = mdb
	}
	if withRedis {
		st.redis = a.connectRedis(a.cfg)
	}
	return st, nil
}

func (st stores) backends(engine aggregate.Engine) []benchmark.Backend {
	var pg db.CopyQuerier
	if st.pg != nil {
		pg = st.pg
	}
	return server.Backends(pg, st.mongo, engine)
}

func (st stores) close(ctx context.Context) {
	if st.pg != nil {
		st.pg.Close()
	}
	_ = db.DisconnectMongo(ctx, st.mongo)
	if st.redis != nil {
		_ = st.redis.Close()
	}
}
