package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"mindlink/internal/config"
	"mindlink/internal/crystal"
	"mindlink/internal/http"
	"mindlink/internal/llm"
	"mindlink/internal/service"
	"mindlink/internal/storage"
	"mindlink/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	mindRepo := storage.NewMindRepo(db)
	feedRepo := storage.NewFeedRepo(db)
	crystalRepo := storage.NewCrystalRepo(db)
	chatRepo := storage.NewChatRepo(db)
	mindmapRepo := storage.NewMindmapRepo(db)
	outputRepo := storage.NewOutputRepo(db)

	ctx := context.Background()

	// Optional semantic near-duplicate index. Without it the reconciler
	// falls back to lexical duplicate detection.
	var dedup *crystal.DedupIndex
	if cfg.DedupEnabled() {
		vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

		// Validate embedding client vector size (fail-fast)
		embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
		testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
		if err != nil {
			log.Fatalf("Failed to validate embedding client: %v", err)
		}
		if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
			log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
		}
		slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

		dedup = crystal.NewDedupIndex(embedder, vectorStore, cfg.QdrantCollection, crystal.DefaultDedupThreshold)
	} else {
		slog.Info("Semantic dedup index disabled, using lexical duplicate detection only")
	}

	// Completion client (external service layer), behind a circuit breaker
	llmClient := llm.NewClient(cfg.AIHubURL, cfg.AIHubAPIKey, cfg.DefaultModel, cfg.LLMTimeout)
	completer := llm.NewBreaker(llmClient)

	engine := crystal.NewEngine(completer, dedup)

	deps := &http.Deps{
		DB:          db,
		Minds:       service.NewMindService(mindRepo, crystalRepo, dedup),
		Feeds:       service.NewFeedService(mindRepo, feedRepo, crystalRepo, engine),
		Narratives:  service.NewNarrativeService(mindRepo, feedRepo, crystalRepo, completer),
		Expressions: service.NewExpressionService(mindRepo, feedRepo, crystalRepo, outputRepo, completer),
		Mindmaps:    service.NewMindmapService(mindRepo, feedRepo, crystalRepo, mindmapRepo, completer),
		Chats:       service.NewChatService(mindRepo, feedRepo, crystalRepo, chatRepo, completer),
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("Completion configuration", "base_url", cfg.AIHubURL, "model", cfg.DefaultModel)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
