// Package main runs the analysis worker: it consumes queued evidence jobs,
// performs the forensic analysis and persists verdicts and report documents.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/omni-inspector/photoproof/internal/config"
	"github.com/omni-inspector/photoproof/internal/database"
	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/repository"
	"github.com/omni-inspector/photoproof/internal/s3storage"
	"github.com/omni-inspector/photoproof/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := repository.NewEvidenceRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	analyzer, err := forensic.NewAnalyzer(cfg.ELAThreshold, cfg.MaxImagePixels)
	if err != nil {
		log.Fatalf("init analyzer: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.AnalysisPool,
	})
	processor := worker.NewProcessor(repo, store, analyzer)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
