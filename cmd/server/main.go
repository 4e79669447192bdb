// Package main runs the standalone server: a single process holding evidence
// on local disk with in-memory records, no Postgres, Redis or S3 required.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/omni-inspector/photoproof/internal/config"
	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/processing"
	"github.com/omni-inspector/photoproof/internal/server"
	"github.com/omni-inspector/photoproof/internal/signing"
	"github.com/omni-inspector/photoproof/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	analyzer, err := forensic.NewAnalyzer(cfg.ELAThreshold, cfg.MaxImagePixels)
	if err != nil {
		log.Fatalf("init analyzer: %v", err)
	}
	store := storage.NewMemoryStore()
	processor := processing.New(store, analyzer, cfg.AnalysisPool)
	signer := signing.NewSigner(cfg.SigningSecret)

	srv, err := server.New(cfg, store, processor, signer)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("photoproof standalone server listening on %s", cfg.Address)
	if err := srv.Serve(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
