package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/internal/telemetry"
	"docqa-platform/middleware"
	"docqa-platform/routes"
	"docqa-platform/services"
	"docqa-platform/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg, "docqa-platform")
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis backs rate limiting; the asynq client reuses the same instance.
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	addr, password, db := config.AsynqRedisOpt(cfg)
	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: addr, Password: password, DB: db})
	defer queueClient.Close()

	// AI provider clients
	ctx := context.Background()
	embedder, err := ai.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	generator, err := ai.NewGenerationClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize generation client:", err)
	}
	defer generator.Close()

	// Storage and services
	st := store.NewMongo(mongoClient, cfg)

	fileStorage, err := services.NewFileStorage(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to prepare file storage:", err)
	}

	retriever := services.NewRetriever(st, st, embedder, cfg)
	answerer := services.NewAnswerer(retriever, generator, st, cfg)
	quizService := services.NewQuizService(st, st, generator, cfg)
	historyService := services.NewHistoryService(st)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg))
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	// Multipart encoding adds overhead on top of the file itself.
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1<<20))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "mongo": err.Error()})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Setup routes
	routes.SetupDocumentRoutes(router, cfg, st, st, st, fileStorage, queueClient)
	routes.SetupAskRoutes(router, cfg, answerer, metrics)
	routes.SetupQuizRoutes(router, quizService)
	routes.SetupHistoryRoutes(router, historyService)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
