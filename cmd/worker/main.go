package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"patentflow/internal/activities"
	"patentflow/internal/config"
	"patentflow/internal/logging"
	"patentflow/internal/storage"
	"patentflow/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.String("address", cfg.TemporalAddress), zap.Error(err))
	}
	defer c.Close()

	var db *storage.DB
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer db.Close()
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		// Stages are long model-bound calls; keep concurrent runs modest.
		MaxConcurrentActivityExecutionSize: 4,
	})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, db, logger))

	logger.Info("patentflow worker listening",
		zap.String("address", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("backend", cfg.Backend),
		zap.Bool("registry", db != nil),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
