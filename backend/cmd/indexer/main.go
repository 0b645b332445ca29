package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/memory"
	"finquery/backend/pkg/config"
	"finquery/backend/pkg/logger"
)

func main() {
	input := flag.String("input", "-", "snippets file: JSON lines or one snippet per line (- for stdin)")
	concurrency := flag.Int("concurrency", 4, "parallel embedding requests")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := run(ctx, cfg, *input, *concurrency, log)
	if err != nil {
		log.Fatal("Indexing failed", zap.Error(err))
	}
	log.Info("Indexing complete",
		zap.Int("indexed", n),
		zap.String("path", cfg.VectorIndexPath),
		zap.String("collection", cfg.VectorCollection),
	)
}

func run(ctx context.Context, cfg *config.Config, input string, concurrency int, log *zap.Logger) (int, error) {
	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return 0, fmt.Errorf("failed to open snippets file: %w", err)
		}
		defer f.Close()
		r = f
	}

	records, err := memory.ReadRecords(r)
	if err != nil {
		return 0, err
	}

	embedder := adapter.NewOpenAIEmbedder(
		cfg.EmbeddingBaseURL,
		cfg.APIKeyOrPlaceholder(cfg.EmbeddingAPIKey),
		cfg.EmbeddingModel,
		log,
	)
	ix, err := memory.NewIndexer(cfg.VectorIndexPath, cfg.VectorCollection, embedder, concurrency, log)
	if err != nil {
		return 0, err
	}
	return ix.Index(ctx, records)
}
