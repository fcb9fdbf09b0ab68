package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/api/handlers"
	"github.com/s3ai/backend/internal/cache"
	cacheredis "github.com/s3ai/backend/internal/cache/redis"
	cachesqlite "github.com/s3ai/backend/internal/cache/sqlite"
	"github.com/s3ai/backend/internal/fallback"
	"github.com/s3ai/backend/internal/ingestion"
	"github.com/s3ai/backend/internal/llm"
	"github.com/s3ai/backend/internal/metadata"
	"github.com/s3ai/backend/internal/metrics"
	"github.com/s3ai/backend/internal/middleware/ratelimit"
	"github.com/s3ai/backend/internal/middleware/security"
	"github.com/s3ai/backend/internal/middleware/validation"
	"github.com/s3ai/backend/internal/pipeline"
	storagesqlite "github.com/s3ai/backend/internal/storage/sqlite"
	"github.com/s3ai/backend/internal/vector"
	"github.com/s3ai/backend/internal/vector/milvus"
	"github.com/s3ai/backend/pkg/config"
	appLogger "github.com/s3ai/backend/pkg/logger"
)

// searcherAdapter bridges the vector package to the pipeline's chunk type.
type searcherAdapter struct {
	s *vector.Searcher
}

func (a searcherAdapter) Search(ctx context.Context, query string) ([]pipeline.ScoredChunk, error) {
	chunks, err := a.s.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = pipeline.ScoredChunk{Text: c.Text, Source: c.Source, Score: c.Score}
	}
	return out, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting S3 AI Assistant API server")

	metrics.Init()

	db, err := storagesqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var answerCache cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		answerCache, err = cacheredis.NewStore(
			cfg.Cache.Redis.Host,
			cfg.Cache.Redis.Port,
			cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB,
			cfg.Cache.TTL(),
		)
	default:
		answerCache, err = cachesqlite.NewStore(cfg.Cache.Path, cfg.Cache.TTL())
	}
	if err != nil {
		appLogger.Fatal("Failed to create answer cache", zap.Error(err))
	}
	defer answerCache.Close()

	// A missing metadata artifact degrades the quick tier, nothing else.
	index := metadata.NewIndex(0)
	if err := index.Build(cfg.Metadata.Path); err != nil {
		appLogger.Warn("Metadata index unavailable, quick tier disabled until rebuild",
			zap.String("path", cfg.Metadata.Path),
			zap.Error(err),
		)
	} else {
		metrics.MetadataRecords.Set(float64(index.Len()))
	}

	scanner := fallback.NewScanner(fallback.Options{
		MaxFileSize:  cfg.Docs.MaxFileSize,
		MaxTotalSize: cfg.Docs.MaxTotalSize,
	})
	if err := scanner.Load(cfg.Docs.Path); err != nil {
		appLogger.Warn("Failed to load fallback corpus", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	vectorDB, err := milvus.NewClient(cfg.Vector.Endpoint, cfg.Vector.CollectionName, cfg.Vector.VectorDim)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer vectorDB.Close()

	if err := vectorDB.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	searcher := vector.NewSearcher(llmClient, vectorDB, cfg.Vector.TopK, float32(cfg.Vector.MinScore))

	resolver := pipeline.NewResolver(
		answerCache,
		index,
		searcherAdapter{s: searcher},
		llmClient,
		scanner,
		db,
		pipeline.Options{
			MaxQueryLength:  cfg.Pipeline.MaxQueryLength,
			SearchTimeout:   time.Duration(cfg.Pipeline.SearchTimeoutSec) * time.Second,
			GenerateTimeout: time.Duration(cfg.Pipeline.GenerateTimeoutSec) * time.Second,
		},
	)

	processor := ingestion.NewProcessor(db, vectorDB, llmClient, scanner, cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxQuestionLength: cfg.Pipeline.MaxQueryLength,
		MaxDocumentSize:   cfg.Server.BodyLimit,
		Logger:            appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(resolver, db)
	documentHandler := handlers.NewDocumentHandler(processor, db)
	adminHandler := handlers.NewAdminHandler(answerCache, index, cfg.Metadata.Path)
	wsHandler := handlers.NewWebSocketHandler(resolver)

	api := app.Group("/api/v1")

	api.Post("/ask", queryHandler.HandleAsk)
	api.Get("/history", queryHandler.GetHistory)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)

	admin := api.Group("/admin")
	admin.Get("/cache/stats", adminHandler.CacheStats)
	admin.Post("/cache/clear", adminHandler.ClearCache)
	admin.Post("/cache/clear-expired", adminHandler.ClearExpired)
	admin.Post("/index/rebuild", adminHandler.RebuildIndex)

	app.Get("/metrics", metrics.MetricsHandler())

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":           "ready",
			"metadata_records": index.Len(),
			"fallback_docs":    scanner.Len(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
