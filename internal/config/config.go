// ABOUTME: Centralized configuration for the jarvis memory and scheduling subsystem
// ABOUTME: Loads from environment variables (and an optional .env file) with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	StoreQdrant  = "qdrant"
	StoreChromem = "chromem"
	StoreSQLite  = "sqlite"

	EmbeddingOpenAI = "openai"
	EmbeddingHash   = "hash"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the memory system
type Config struct {
	LogMode string

	// Vector store settings
	VectorStore        string
	QdrantURL          string
	QdrantAPIKey       string
	QdrantTimeout      time.Duration
	QdrantWaitAttempts int
	ChromemPath        string
	ChromemCompress    bool
	SQLitePath         string
	CollectionPrefix   string
	VectorDimension    int

	// Embedding settings
	EmbeddingBackend      string
	EmbeddingBaseURL      string
	EmbeddingModel        string
	EmbeddingAPIKey       string
	EmbeddingWorkers      int
	EmbeddingCacheEntries int

	// LLM settings
	LLMProvider   string
	LLMBaseURL    string
	LLMModel      string
	LLMAPIKey     string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	LLMRetryDelay time.Duration

	// Memory settings
	InsightEveryNTurns    int
	InsightMinConfidence  float64
	InsightDuplicateScore float64
	ExtractionTimeout     time.Duration

	// Scheduler settings
	Timezone      string
	BriefingQuery string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogMode:               getEnv("LOG_MODE", "development"),
		VectorStore:           getEnv("VECTOR_STORE", StoreQdrant),
		QdrantURL:             getEnv("QDRANT_URL", "http://qdrant:6333"),
		QdrantAPIKey:          os.Getenv("QDRANT_API_KEY"),
		QdrantTimeout:         getEnvDuration("QDRANT_TIMEOUT", 10*time.Second),
		QdrantWaitAttempts:    getEnvInt("QDRANT_WAIT_ATTEMPTS", 5),
		ChromemPath:           getEnvAllowEmpty("CHROMEM_PATH", defaultChromemPath()),
		ChromemCompress:       getEnvBool("CHROMEM_COMPRESS", false),
		SQLitePath:            getEnvAllowEmpty("SQLITE_PATH", defaultSQLitePath()),
		CollectionPrefix:      os.Getenv("COLLECTION_PREFIX"),
		VectorDimension:       getEnvInt("VECTOR_DIMENSION", 1024),
		EmbeddingBackend:      getEnv("EMBEDDING_BACKEND", EmbeddingOpenAI),
		EmbeddingBaseURL:      getEnv("EMBEDDING_BASE_URL", "http://embeddings:8080/v1"),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "BAAI/bge-m3"),
		EmbeddingAPIKey:       os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingWorkers:      getEnvInt("EMBEDDING_WORKERS", 2),
		EmbeddingCacheEntries: getEnvInt("EMBEDDING_CACHE_ENTRIES", 4096),
		LLMProvider:           getEnv("LLM_PROVIDER", ProviderOpenAI),
		LLMBaseURL:            getEnv("VLLM_BASE_URL", "http://vllm:8000/v1"),
		LLMModel:              getEnv("VLLM_MODEL", "Qwen/Qwen3-32B-FP8"),
		LLMAPIKey:             os.Getenv("LLM_API_KEY"),
		LLMTimeout:            getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxRetries:         getEnvInt("LLM_MAX_RETRIES", 0),
		LLMRetryDelay:         getEnvDuration("LLM_RETRY_DELAY", 2*time.Second),
		InsightEveryNTurns:    getEnvInt("INSIGHT_EVERY_N_TURNS", 3),
		InsightMinConfidence:  getEnvFloat("INSIGHT_MIN_CONFIDENCE", 0.3),
		InsightDuplicateScore: getEnvFloat("INSIGHT_DUPLICATE_SCORE", 0.85),
		ExtractionTimeout:     getEnvDuration("EXTRACTION_TIMEOUT", 2*time.Minute),
		Timezone:              getEnv("SCHEDULER_TIMEZONE", "Asia/Seoul"),
		BriefingQuery:         getEnv("BRIEFING_QUERY", "today's schedule, unread mail, and open tasks"),
	}
	if cfg.LLMProvider == ProviderAnthropic {
		if cfg.LLMAPIKey == "" {
			cfg.LLMAPIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		cfg.LLMBaseURL = os.Getenv("ANTHROPIC_BASE_URL")
		cfg.LLMModel = getEnv("ANTHROPIC_MODEL", "claude-haiku-4-5")
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.VectorStore {
	case StoreQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required when VECTOR_STORE=%s", StoreQdrant)
		}
	case StoreChromem, StoreSQLite:
	default:
		return fmt.Errorf("VECTOR_STORE must be %q, %q, or %q, got %q", StoreQdrant, StoreChromem, StoreSQLite, c.VectorStore)
	}
	switch c.EmbeddingBackend {
	case EmbeddingOpenAI, EmbeddingHash:
	default:
		return fmt.Errorf("EMBEDDING_BACKEND must be %q or %q, got %q", EmbeddingOpenAI, EmbeddingHash, c.EmbeddingBackend)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.LLMProvider)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.EmbeddingWorkers < 1 {
		return fmt.Errorf("EMBEDDING_WORKERS must be at least 1, got %d", c.EmbeddingWorkers)
	}
	if c.EmbeddingCacheEntries < 0 {
		return fmt.Errorf("EMBEDDING_CACHE_ENTRIES must not be negative, got %d", c.EmbeddingCacheEntries)
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		return fmt.Errorf("LLM_MAX_RETRIES must be 0-10, got %d", c.LLMMaxRetries)
	}
	if c.InsightEveryNTurns < 1 {
		return fmt.Errorf("INSIGHT_EVERY_N_TURNS must be at least 1, got %d", c.InsightEveryNTurns)
	}
	if c.InsightMinConfidence < 0 || c.InsightMinConfidence > 1 {
		return fmt.Errorf("INSIGHT_MIN_CONFIDENCE must be 0-1, got %f", c.InsightMinConfidence)
	}
	if c.InsightDuplicateScore < 0 || c.InsightDuplicateScore > 1 {
		return fmt.Errorf("INSIGHT_DUPLICATE_SCORE must be 0-1, got %f", c.InsightDuplicateScore)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the scheduler timezone. "Asia/Seoul" falls back to a
// fixed UTC+9 zone when no tz database is available.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Timezone == "Asia/Seoul" || c.Timezone == "KST" {
		return time.FixedZone("KST", 9*60*60), nil
	}
	return nil, fmt.Errorf("SCHEDULER_TIMEZONE %q: %w", c.Timezone, err)
}

func defaultChromemPath() string {
	return filepath.Join(xdg.DataHome, "jarvis", "vectors")
}

func defaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, "jarvis", "memory.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvAllowEmpty lets an explicitly empty variable override the default.
func getEnvAllowEmpty(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
