package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	EmbedModel    string
	Temperature   float64

	// Vector store
	VectorBackend    string
	ChromaURL        string
	ChromaCollection string

	// Retrieval
	TopK                int
	SimilarityThreshold float64
	RerankStrategy      string
	RerankBatchSize     int
	MaxRerankWorkers    int
	MaxContextChunks    int
	MaxContextTokens    int

	// Chunking defaults
	DefaultChunkSize    int
	DefaultChunkOverlap int
	MinSectionChars     int

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentIndex int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Embedding cache
	EmbedCacheSize int
	EmbedCacheTTL  time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("RFPGEST_API_KEY"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:         envOr("OPENAI_MODEL", "gpt-4o"),
		EmbedModel:    envOr("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		Temperature:   envFloat("OPENAI_TEMPERATURE", 0.1),

		VectorBackend:    envOr("VECTOR_BACKEND", "chroma"),
		ChromaURL:        envOr("CHROMA_URL", "http://localhost:8000"),
		ChromaCollection: envOr("CHROMA_COLLECTION", "rfp_documents"),

		TopK:                envInt("TOP_K", 10),
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.3),
		RerankStrategy:      envOr("RERANK_STRATEGY", "lexical"),
		RerankBatchSize:     envInt("RERANK_BATCH_SIZE", 5),
		MaxRerankWorkers:    envInt("MAX_RERANK_WORKERS", 3),
		MaxContextChunks:    envInt("MAX_CONTEXT_CHUNKS", 3),
		MaxContextTokens:    envInt("MAX_CONTEXT_TOKENS", 6000),

		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 1000),
		DefaultChunkOverlap: envInt("DEFAULT_CHUNK_OVERLAP", 200),
		MinSectionChars:     envInt("MIN_SECTION_CHARS", 50),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentIndex: envInt("MAX_CONCURRENT_INDEX", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		EmbedCacheSize: envInt("EMBED_CACHE_SIZE", 512),
		EmbedCacheTTL:  envDuration("EMBED_CACHE_TTL", 10*time.Minute),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.RerankBatchSize <= 0 {
		cfg.RerankBatchSize = 5
	}
	if cfg.MaxRerankWorkers <= 0 {
		cfg.MaxRerankWorkers = 3
	}
	if cfg.MaxContextChunks <= 0 {
		cfg.MaxContextChunks = 3
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 6000
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 1000
	}
	if cfg.DefaultChunkOverlap <= 0 {
		cfg.DefaultChunkOverlap = 200
	}
	if cfg.MinSectionChars <= 0 {
		cfg.MinSectionChars = 50
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentIndex <= 0 {
		cfg.MaxConcurrentIndex = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.EmbedCacheSize <= 0 {
		cfg.EmbedCacheSize = 512
	}
	if cfg.EmbedCacheTTL <= 0 {
		cfg.EmbedCacheTTL = 10 * time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("RFPGEST_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch c.VectorBackend {
	case "chroma", "memory":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND: %s", c.VectorBackend)
	}
	switch c.RerankStrategy {
	case "lexical", "model":
	default:
		return fmt.Errorf("unknown RERANK_STRATEGY: %s", c.RerankStrategy)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
