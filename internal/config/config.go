package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigins []string

	// Upload handling
	MaxFileSize    int64
	AllowedTypes   []string
	FileStorageDir string

	// Gemini API
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	GenerationModels      []string // ordered fallback chain, first is preferred
	GeminiRPM             int

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// Embeddings
	VectorDimensions int
	EmbedBatchSize   int
	EmbedBatchDelay  time.Duration

	// Retrieval defaults, passed explicitly at every call boundary
	DefaultTopK          int
	DefaultMinSimilarity float64
	KeywordFallbackScore float64
	CitationSnippetLen   int

	// Per-stage deadline budgets
	EmbedStageTimeout time.Duration
	SearchTimeout     time.Duration
	GenerateTimeout   time.Duration

	// MongoDB Atlas Vector Search (client-side cosine when disabled)
	VectorSearchEnabled bool
	VectorIndexName     string

	// Redis / queue
	RedisURL          string
	RedisPassword     string
	RedisDB           int
	WorkerConcurrency int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Embedding backfill sweeper
	BackfillInterval  time.Duration
	BackfillBatchSize int

	// Quiz generation
	QuizContextChunks int
	QuizMaxQuestions  int

	// Telemetry
	OTelEnabled  bool
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/docqa"),
		DBName:      getEnv("DB_NAME", "docqa"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 10485760), // 10MB
		AllowedTypes:   strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/html,text/plain"), ","),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./data/uploads"),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GEMINI_EMBEDDINGS_MODEL", "text-embedding-004"),
		GenerationModels:      strings.Split(getEnv("GEMINI_MODELS", "gemini-2.0-flash,gemini-2.0-flash-lite,gemini-1.5-flash"), ","),
		GeminiRPM:             getEnvInt("GEMINI_RPM", 60),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		VectorDimensions: getEnvInt("VECTOR_DIMENSIONS", 768),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 10),
		EmbedBatchDelay:  time.Duration(getEnvInt("EMBED_BATCH_DELAY_MS", 500)) * time.Millisecond,

		DefaultTopK:          getEnvInt("DEFAULT_TOP_K", 5),
		DefaultMinSimilarity: getEnvFloat64("DEFAULT_MIN_SIMILARITY", 0.3),
		KeywordFallbackScore: getEnvFloat64("KEYWORD_FALLBACK_SCORE", 0.5),
		CitationSnippetLen:   getEnvInt("CITATION_SNIPPET_LEN", 200),

		EmbedStageTimeout: time.Duration(getEnvInt("EMBED_STAGE_TIMEOUT_S", 60)) * time.Second,
		SearchTimeout:     time.Duration(getEnvInt("SEARCH_TIMEOUT_S", 10)) * time.Second,
		GenerateTimeout:   time.Duration(getEnvInt("GENERATE_TIMEOUT_S", 30)) * time.Second,

		VectorSearchEnabled: getEnvBool("VECTOR_SEARCH_ENABLED", false),
		VectorIndexName:     getEnv("VECTOR_INDEX_NAME", "chunk_vector_index"),

		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		BackfillInterval:  time.Duration(getEnvInt("BACKFILL_INTERVAL_MIN", 5)) * time.Minute,
		BackfillBatchSize: getEnvInt("BACKFILL_BATCH_SIZE", 50),

		QuizContextChunks: getEnvInt("QUIZ_CONTEXT_CHUNKS", 12),
		QuizMaxQuestions:  getEnvInt("QUIZ_MAX_QUESTIONS", 10),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	for i, m := range cfg.GenerationModels {
		cfg.GenerationModels[i] = strings.TrimSpace(m)
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if len(cfg.GenerationModels) == 0 || cfg.GenerationModels[0] == "" {
		return nil, fmt.Errorf("GEMINI_MODELS must name at least one model")
	}
	if cfg.EmbedBatchSize < 1 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
