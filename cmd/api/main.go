package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-trackbench/internal/config"
	"backend-trackbench/internal/db"
	"backend-trackbench/internal/logging"
	"backend-trackbench/internal/server"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

// Stores bundles the optional database handles. Any of them may be nil.
type Stores struct {
	Postgres *pgxpool.Pool
	Mongo    *mongo.Database
	Redis    *redis.Client
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectMongo    func(config.Config) (*mongo.Database, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Stores, log.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectMongo:    db.ConnectMongo,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	var stores Stores
	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		level.Warn(logger).Log("msg", "postgres connection failed", "err", err)
	} else {
		stores.Postgres = pg
	}

	mdb, err := deps.connectMongo(cfg)
	if err != nil {
		level.Warn(logger).Log("msg", "mongo connection failed", "err", err)
	} else {
		stores.Mongo = mdb
	}

	stores.Redis = deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, stores, logger, signals, nil); err != nil {
		level.Error(logger).Log("msg", "server exited with error", "err", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. Running
// benchmarks are cancelled before the stores are closed.
func Run(ctx context.Context, cfg config.Config, stores Stores, logger log.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if stores.Postgres != nil {
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := db.EnsureSchema(schemaCtx, stores.Postgres)
		cancel()
		if err != nil {
			level.Warn(logger).Log("msg", "schema setup failed", "err", err)
		}
	}

	runCtx, stopRuns := context.WithCancel(ctx)
	defer stopRuns()
	srv := server.NewServer(runCtx, cfg, stores.Postgres, stores.Mongo, stores.Redis, logger)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	level.Info(logger).Log("msg", "shutting down")

	stopRuns()
	srv.Launcher.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Stream.Close()
	if stores.Postgres != nil {
		stores.Postgres.Close()
	}
	if err := db.DisconnectMongo(shutdownCtx, stores.Mongo); err != nil {
		level.Warn(logger).Log("msg", "mongo disconnect failed", "err", err)
	}
	if stores.Redis != nil {
		_ = stores.Redis.Close()
	}
	return nil
}
