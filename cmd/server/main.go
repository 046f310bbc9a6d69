package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/rfpgest/internal/analysis"
	"github.com/dgallion1/rfpgest/internal/api"
	"github.com/dgallion1/rfpgest/internal/config"
	"github.com/dgallion1/rfpgest/internal/llm"
	"github.com/dgallion1/rfpgest/internal/pipeline"
	"github.com/dgallion1/rfpgest/internal/retrieval"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
	"github.com/dgallion1/rfpgest/internal/workflow"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// LLM client with cached embeddings.
	client := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.Model,
		EmbedModel:  cfg.EmbedModel,
		Temperature: float32(cfg.Temperature),
	})
	embedder := llm.NewCachingEmbedder(client, cfg.EmbedCacheSize, cfg.EmbedCacheTTL)

	// Vector index backend.
	var index vectorindex.Index
	switch cfg.VectorBackend {
	case "memory":
		index = vectorindex.NewMemoryIndex(cfg.ChromaCollection, embedder)
	default:
		index = vectorindex.NewChromaIndex(cfg.ChromaURL, cfg.ChromaCollection, embedder)
	}

	// Retrieval and analysis stack.
	var reranker retrieval.Reranker
	switch cfg.RerankStrategy {
	case "model":
		reranker = retrieval.NewModelReranker(client, cfg.RerankBatchSize, cfg.MaxRerankWorkers, log)
	default:
		reranker = retrieval.LexicalReranker{}
	}
	enricher := retrieval.NewEnricher(index, cfg.MaxContextChunks, log)
	pipe := retrieval.NewPipeline(index, reranker, enricher, cfg.TopK, cfg.SimilarityThreshold, log)
	analyzer := analysis.NewAnalyzer(client, cfg.MaxContextTokens, log)
	wf := workflow.New(pipe, analyzer, log)

	// Ingestion pipeline.
	orch := pipeline.NewOrchestrator(cfg, index, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, wf, index, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting requests before closing the job queue, so an
		// in-flight ingest cannot submit to a closed channel.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		if chroma, ok := index.(*vectorindex.ChromaIndex); ok {
			chroma.Close()
		}
	}()

	log.Info("starting rfpgest",
		"port", cfg.Port,
		"vector_backend", cfg.VectorBackend,
		"rerank_strategy", cfg.RerankStrategy,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
