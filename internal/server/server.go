package server

import (
	"context"

	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/auth"
	"backend-trackbench/internal/benchmark"
	"backend-trackbench/internal/config"
	"backend-trackbench/internal/db"
	"backend-trackbench/internal/docstore"
	"backend-trackbench/internal/storage"
	"backend-trackbench/internal/stream"
	"backend-trackbench/internal/tracking"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	requestlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Mongo    *mongo.Database
	Redis    *redis.Client
	Stream   *stream.Hub
	Launcher *benchmark.Launcher
	Registry *prometheus.Registry
	Logger   log.Logger
}

// NewServer wires every route. Benchmark runs live as long as ctx.
// A nil pg or mongoDB leaves that backend out.
func NewServer(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, mongoDB *mongo.Database, redisClient *redis.Client, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	app := fiber.New()
	app.Use(recover.New())
	app.Use(requestlog.New())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pg,
		Mongo:    mongoDB,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient, log.With(logger, "component", "stream")),
		Registry: reg,
		Logger:   logger,
	}

	registerRoutes(ctx, s)
	return s
}

func registerRoutes(ctx context.Context, s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"postgres": s.DB != nil,
			"mongo":    s.Mongo != nil,
			"redis":    s.Redis != nil,
		})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	engine := aggregate.NewEngine(s.Cfg.MergeTolerance)

	var pg db.CopyQuerier
	if s.DB != nil {
		pg = s.DB
	}

	// without Postgres the relational variants are unknown and the routes
	// that write to it answer 503
	var trackingSvc *tracking.Service
	variants := tracking.Variants{}
	if pg != nil {
		trackingSvc = tracking.NewService(pg, engine)
		variants = trackingSvc.Variants()
	}
	if s.Mongo != nil {
		variants = variants.Merge(docstore.NewService(s.Mongo, engine).Variants())
	}

	defaults, err := benchmark.PlanFor(s.Cfg.Bench)
	if err != nil {
		level.Warn(s.Logger).Log("msg", "invalid bench defaults, using built-in plan", "err", err)
		defaults = benchmark.DefaultPlan()
	}
	s.Launcher = benchmark.NewLauncher(ctx, Backends(pg, s.Mongo, engine), s.Stream, s.Redis,
		benchmark.NewMetrics(s.Registry), log.With(s.Logger, "component", "benchmark"))

	if pg != nil {
		runs := storage.NewService(pg)
		s.Launcher.WithArchive(runs)
		auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, pg))
		storage.RegisterRoutes(s.App.Group("/storage"), runs, jwtMiddleware)
	} else {
		s.App.Group("/auth").Use(unavailable("postgres"))
		s.App.Group("/storage").Use(unavailable("postgres"))
	}
	tracking.RegisterRoutes(s.App.Group("/tracking"), trackingSvc, variants, jwtMiddleware)
	benchmark.RegisterRoutes(s.App.Group("/benchmarks"), s.Launcher, defaults, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func unavailable(store string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, store+" is not configured")
	}
}
