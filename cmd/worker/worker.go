package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/internal/queue"
	"docqa-platform/internal/store"
	"docqa-platform/internal/telemetry"
	"docqa-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg, "docqa-worker")
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

	// AI provider client: the worker only embeds, generation stays on the API.
	ctx := context.Background()
	embedder, err := ai.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	st := store.NewMongo(mongoClient, cfg)
	ingestService := services.NewIngestService(st, st, embedder, cfg)
	backfillService := services.NewBackfillService(st, st, embedder, cfg)

	// Redis options for Asynq
	addr, password, db := config.AsynqRedisOpt(cfg)
	redisOpt := asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}

	// Periodic backfill sweep catches chunks whose embedding calls failed
	// during ingestion.
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	scheduler := queue.NewScheduler(queueClient)
	if err := scheduler.ScheduleBackfill(cfg.BackfillInterval); err != nil {
		log.Fatal("Failed to schedule backfill sweep:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(ingestService, backfillService, metrics)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessDocument, processor.HandleProcessDocument)
	mux.HandleFunc(queue.TaskReingestDocument, processor.HandleReingestDocument)
	mux.HandleFunc(queue.TaskBackfillEmbeddings, processor.HandleBackfillEmbeddings)

	logger.Info("starting worker",
		"concurrency", cfg.WorkerConcurrency,
		"backfill_interval", cfg.BackfillInterval.String(),
		"redis", redisOpt.Addr)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
