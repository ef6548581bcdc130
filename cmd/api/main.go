package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"patentflow/internal/api"
	"patentflow/internal/config"
	"patentflow/internal/logging"
	"patentflow/internal/providers"
	"patentflow/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.String("address", cfg.TemporalAddress), zap.Error(err))
	}
	defer tc.Close()

	var runs api.RunRegistry
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer db.Close()
		runs = storage.NewRunRepo(db)
	}

	h := api.NewServer(cfg, tc, runs, providers.NewManager(cfg), logger)
	logger.Info("patentflow api listening", zap.String("addr", cfg.APIAddr), zap.String("backend", cfg.Backend), zap.Bool("registry", runs != nil))
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}
