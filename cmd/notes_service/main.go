package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papernotes/internal/config"
	"papernotes/internal/database/milvus"
	"papernotes/internal/embedding"
	"papernotes/internal/jobs"
	"papernotes/internal/layout"
	"papernotes/internal/llm"
	"papernotes/internal/notes_service/api"
	"papernotes/internal/notes_service/service"
	"papernotes/internal/rag/extractor"
	"papernotes/internal/rag/pipeline"
	"papernotes/internal/rag/splitters"
	"papernotes/internal/rag/storages/vectorstore"
	"papernotes/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("papernotes", "")
	appLogger.Info("Starting notes service...")

	ctx := context.Background()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Milvus)
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	defer milvusClient.Close()

	denseModel, err := embedding.NewDenseModel(cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		log.Fatalf("Failed to create embedding provider: %v", err)
	}
	embedder := embedding.NewHybridService(denseModel)

	dim, err := embedder.Dimension(ctx)
	if err != nil {
		log.Fatalf("Failed to probe embedding dimension: %v", err)
	}

	store, err := vectorstore.NewHybridStore(milvusClient, cfg.Milvus.Collection, cfg.Pipeline.RRFConstant)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	if err := store.EnsureCollection(ctx, dim); err != nil {
		log.Fatalf("Failed to prepare chunk collection: %v", err)
	}

	catalog, err := vectorstore.NewCatalogStore(milvusClient, cfg.Milvus.CatalogCollection, cfg.Pipeline.RRFConstant)
	if err != nil {
		log.Fatalf("Failed to create catalog store: %v", err)
	}
	if err := catalog.Load(ctx); err != nil {
		appLogger.WithField("error", err.Error()).Warn("paper catalog unavailable; only direct URLs will be accepted")
	}

	counter, err := splitters.NewTiktokenCounter()
	if err != nil {
		log.Fatalf("Failed to initialize tokenizer: %v", err)
	}

	llmClient := llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	parser := layout.NewServiceParser(cfg.Layout.BaseURL, cfg.Layout.APIKey, cfg.Layout.Timeout)

	indexing := pipeline.NewIndexingPipeline(
		extractor.New(parser),
		extractor.NewMatcher(),
		splitters.NewSegmentSplitter(cfg.Pipeline.TokenBudget, cfg.Pipeline.TokenOverlap, counter),
		splitters.NewSectionCapper(cfg.Pipeline.MaxPerSection, cfg.Pipeline.MaxTotalSegments),
		embedder,
		store,
		llmClient,
		cfg.Pipeline,
		cfg.LLM.ExtractModel,
	)
	retrieval := pipeline.NewRetrievalPipeline(embedder, store)
	notes := pipeline.NewNotesPipeline(retrieval, llmClient, cfg.Pipeline, cfg.LLM.ExtractModel, cfg.LLM.SynthesisModel)
	qa := pipeline.NewQAPipeline(retrieval, llmClient, cfg.Pipeline, cfg.LLM.SynthesisModel)

	svc := service.New(indexing, notes, qa, catalog, embedder, jobs.NewRegistry(), cfg.Pipeline)

	router := api.NewRouter(svc)
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		appLogger.WithField("address", cfg.Server.Address).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithField("error", err.Error()).Error("forced shutdown")
	}
	appLogger.Info("Server stopped")
}
