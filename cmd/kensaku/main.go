// Package main is the kensaku server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/backend/flat"
	"github.com/hyperjump/kensaku/internal/backend/opensearch"
	"github.com/hyperjump/kensaku/internal/backend/qdrant"
	"github.com/hyperjump/kensaku/internal/chunker"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/generation"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/rag"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kensaku %s\n", version)
		return
	}

	// .env values feed the environment overrides in config.Load; a missing
	// .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store, err := newMetadataStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer store.Close()

	adapters, err := buildAdapters(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to configure backends", zap.Error(err))
	}

	ch, err := chunker.New(cfg.Chunking.MaxWords, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	embedder := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
		APIURL:     cfg.Embedding.APIURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout(),
	})
	defer embedder.Close()

	generator := generation.NewOllamaGenerator(generation.OllamaConfig{
		APIURL:  cfg.Generation.APIURL,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout(),
	})
	defer generator.Close()

	ingester := ingest.NewService(
		adapters, store, embedder, ch,
		ingest.NewJobRegistry(),
		cfg.Embedding.BatchSize,
		cfg.Chunking.SnippetLength,
		logger,
	)
	ragSvc := rag.NewService(adapters, embedder, generator, cfg.Embedding.BatchSize, logger)

	srv := server.NewServer(adapters, ragSvc, ingester, store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func newMetadataStore(cfg *config.Config, logger *zap.Logger) (metadata.Store, error) {
	switch cfg.Metadata.Driver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("Connecting to MongoDB", zap.String("uri", cfg.Metadata.MongoURI))
		return metadata.NewMongoStore(ctx, cfg.Metadata.MongoURI, cfg.Metadata.MongoDB)
	case "sqlite":
		logger.Info("Opening SQLite metadata store", zap.String("path", cfg.Metadata.SQLitePath))
		return metadata.NewSQLiteStore(cfg.Metadata.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown metadata driver: %s", cfg.Metadata.Driver)
	}
}

func buildAdapters(cfg *config.Config, store metadata.Store, logger *zap.Logger) (map[string]backend.Adapter, error) {
	adapters := make(map[string]backend.Adapter)
	if cfg.Backends.Flat.Enabled {
		a := flat.NewAdapter(store, cfg.Search.CandidateMultiplier, logger)
		adapters[a.Name()] = a
	}
	if cfg.Backends.Qdrant.Enabled {
		a := qdrant.NewAdapter(qdrant.Config{
			URL:     cfg.Backends.Qdrant.URL,
			APIKey:  cfg.Backends.Qdrant.APIKey,
			Timeout: cfg.Backends.Qdrant.Timeout(),
		}, store, logger)
		adapters[a.Name()] = a
	}
	if cfg.Backends.OpenSearch.Enabled {
		a, err := opensearch.NewAdapter(opensearch.Config{
			Addresses: cfg.Backends.OpenSearch.Addresses,
			Username:  cfg.Backends.OpenSearch.Username,
			Password:  cfg.Backends.OpenSearch.Password,
		}, store, logger)
		if err != nil {
			return nil, err
		}
		adapters[a.Name()] = a
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no backends enabled")
	}
	return adapters, nil
}
