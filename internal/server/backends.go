package server

import (
	"backend-trackbench/internal/aggregate"
	"backend-trackbench/internal/benchmark"
	"backend-trackbench/internal/dataset"
	"backend-trackbench/internal/db"
	"backend-trackbench/internal/docstore"
	"backend-trackbench/internal/tracking"

	"go.mongodb.org/mongo-driver/mongo"
)

// Backends assembles the benchmark backends that are configured. Either
// argument may be nil.
func Backends(pg db.CopyQuerier, mongoDB *mongo.Database, engine aggregate.Engine) []benchmark.Backend {
	var out []benchmark.Backend
	if pg != nil {
		svc := tracking.NewService(pg, engine)
		out = append(out, benchmark.Backend{
			Name:     benchmark.BackendPostgres,
			Loader:   dataset.NewPostgresLoader(pg),
			Database: benchmark.Variant{Name: tracking.VariantSQL, Backend: benchmark.BackendPostgres, Aggregator: svc.SQL()},
			Memory:   benchmark.Variant{Name: tracking.VariantMemory, Backend: benchmark.BackendPostgres, Aggregator: svc.Memory()},
			Updater:  svc,
		})
	}
	if mongoDB != nil {
		svc := docstore.NewService(mongoDB, engine)
		out = append(out, benchmark.Backend{
			Name:     benchmark.BackendMongo,
			Loader:   dataset.NewMongoLoader(mongoDB),
			Database: benchmark.Variant{Name: docstore.VariantPipeline, Backend: benchmark.BackendMongo, Aggregator: svc.Pipeline()},
			Memory:   benchmark.Variant{Name: docstore.VariantMemory, Backend: benchmark.BackendMongo, Aggregator: svc.Memory()},
			Updater:  svc,
		})
	}
	return out
}
