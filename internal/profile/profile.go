package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration shared by the worker and search commands.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory, used for the sqlite database file
	Data string
	// Driver is the database driver (sqlite, postgres or mongo)
	Driver string
	// DSN points to where snapnote stores notes
	DSN string
	// MongoDatabase is the database name used by the mongo driver
	MongoDatabase string

	// Vision inference
	AIVisionProvider   string // SNAPNOTE_AI_VISION_PROVIDER (default: anthropic)
	AIVisionModel      string // SNAPNOTE_AI_VISION_MODEL (default: claude-sonnet-4-20250514)
	AIVisionMaxTokens  int    // SNAPNOTE_AI_VISION_MAX_TOKENS (default: 4096)
	AIAnthropicAPIKey  string // SNAPNOTE_AI_ANTHROPIC_API_KEY (fallback: ANTHROPIC_API_KEY)
	AIAnthropicBaseURL string // SNAPNOTE_AI_ANTHROPIC_BASE_URL (default: https://api.anthropic.com)
	AIOpenAIAPIKey     string // SNAPNOTE_AI_OPENAI_API_KEY (fallback: OPENAI_API_KEY)
	AIOpenAIBaseURL    string // SNAPNOTE_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIVisionRPS        float64

	// Embedding
	AIEmbeddingAPIKey      string // SNAPNOTE_AI_EMBEDDING_API_KEY (fallback: OpenAI key)
	AIEmbeddingBaseURL     string // SNAPNOTE_AI_EMBEDDING_BASE_URL (fallback: OpenAI base URL)
	AIEmbeddingModel       string // SNAPNOTE_AI_EMBEDDING_MODEL (default: Xenova/bge-large-en-v1.5)
	AIEmbeddingDimensions  int    // SNAPNOTE_AI_EMBEDDING_DIMENSIONS (default: 1024)
	AIEmbeddingConcurrency int    // SNAPNOTE_AI_EMBEDDING_CONCURRENCY (default: 4)

	// Blob store
	S3Region       string // SNAPNOTE_S3_REGION (fallback: AWS_REGION)
	S3Endpoint     string // SNAPNOTE_S3_ENDPOINT, custom endpoint such as MinIO
	MaxObjectBytes int64  // SNAPNOTE_MAX_OBJECT_BYTES (default: 20 MiB)

	// Query embedding cache
	CacheRedisAddr     string // SNAPNOTE_CACHE_REDIS_ADDR, enables the L2 cache when set
	CacheRedisPassword string // SNAPNOTE_CACHE_REDIS_PASSWORD

	// Worker
	WorkerConcurrency int           // SNAPNOTE_WORKER_CONCURRENCY (default: 4)
	WorkerRunTimeout  time.Duration // SNAPNOTE_WORKER_RUN_TIMEOUT (default: 5m)
	SweepInterval     time.Duration // SNAPNOTE_SWEEP_INTERVAL (default: 2m)
	SweepGracePeriod  time.Duration // SNAPNOTE_SWEEP_GRACE (default: 10m)
	SweepMaxAttempts  int           // SNAPNOTE_SWEEP_MAX_ATTEMPTS (default: 5)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Supports SNAPNOTE_* keys with fallbacks to the conventional provider variables.
// Mode, Data, Driver and DSN already set (e.g. from flags) are kept.
func (p *Profile) FromEnv() {
	getEnvWithFallback := func(key, fallbackKey string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return os.Getenv(fallbackKey)
	}

	getIntEnv := func(key string, defaultValue int) int {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				return n
			}
			slog.Warn("ignoring invalid integer environment value", "key", key, "value", val)
		}
		return defaultValue
	}

	getDurationEnv := func(key string, defaultValue time.Duration) time.Duration {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				return d
			}
			slog.Warn("ignoring invalid duration environment value", "key", key, "value", val)
		}
		return defaultValue
	}

	p.Mode = defaultString(p.Mode, getEnvOrDefault("SNAPNOTE_MODE", "dev"))
	p.Data = defaultString(p.Data, os.Getenv("SNAPNOTE_DATA"))
	p.Driver = defaultString(p.Driver, getEnvOrDefault("SNAPNOTE_DRIVER", "sqlite"))
	p.DSN = defaultString(p.DSN, os.Getenv("SNAPNOTE_DSN"))
	p.MongoDatabase = getEnvOrDefault("SNAPNOTE_MONGO_DATABASE", "snapnote")

	p.AIVisionProvider = getEnvOrDefault("SNAPNOTE_AI_VISION_PROVIDER", "anthropic")
	p.AIVisionModel = getEnvOrDefault("SNAPNOTE_AI_VISION_MODEL", "claude-sonnet-4-20250514")
	p.AIVisionMaxTokens = getIntEnv("SNAPNOTE_AI_VISION_MAX_TOKENS", 4096)
	p.AIAnthropicAPIKey = getEnvWithFallback("SNAPNOTE_AI_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	p.AIAnthropicBaseURL = getEnvOrDefault("SNAPNOTE_AI_ANTHROPIC_BASE_URL", "https://api.anthropic.com")
	p.AIOpenAIAPIKey = getEnvWithFallback("SNAPNOTE_AI_OPENAI_API_KEY", "OPENAI_API_KEY")
	p.AIOpenAIBaseURL = getEnvOrDefault("SNAPNOTE_AI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	if rps, err := strconv.ParseFloat(os.Getenv("SNAPNOTE_AI_VISION_RPS"), 64); err == nil {
		p.AIVisionRPS = rps
	}

	p.AIEmbeddingAPIKey = getEnvOrDefault("SNAPNOTE_AI_EMBEDDING_API_KEY", p.AIOpenAIAPIKey)
	p.AIEmbeddingBaseURL = getEnvOrDefault("SNAPNOTE_AI_EMBEDDING_BASE_URL", p.AIOpenAIBaseURL)
	p.AIEmbeddingModel = getEnvOrDefault("SNAPNOTE_AI_EMBEDDING_MODEL", "Xenova/bge-large-en-v1.5")
	p.AIEmbeddingDimensions = getIntEnv("SNAPNOTE_AI_EMBEDDING_DIMENSIONS", 1024)
	p.AIEmbeddingConcurrency = getIntEnv("SNAPNOTE_AI_EMBEDDING_CONCURRENCY", 4)

	p.S3Region = getEnvWithFallback("SNAPNOTE_S3_REGION", "AWS_REGION")
	p.S3Endpoint = os.Getenv("SNAPNOTE_S3_ENDPOINT")
	p.MaxObjectBytes = int64(getIntEnv("SNAPNOTE_MAX_OBJECT_BYTES", 20<<20))

	p.CacheRedisAddr = os.Getenv("SNAPNOTE_CACHE_REDIS_ADDR")
	p.CacheRedisPassword = os.Getenv("SNAPNOTE_CACHE_REDIS_PASSWORD")

	p.WorkerConcurrency = getIntEnv("SNAPNOTE_WORKER_CONCURRENCY", 4)
	p.WorkerRunTimeout = getDurationEnv("SNAPNOTE_WORKER_RUN_TIMEOUT", 5*time.Minute)
	p.SweepInterval = getDurationEnv("SNAPNOTE_SWEEP_INTERVAL", 2*time.Minute)
	p.SweepGracePeriod = getDurationEnv("SNAPNOTE_SWEEP_GRACE", 10*time.Minute)
	p.SweepMaxAttempts = getIntEnv("SNAPNOTE_SWEEP_MAX_ATTEMPTS", 5)
}

func defaultString(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "sqlite":
		if p.DSN != "" {
			break
		}
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("snapnote_%s.db", p.Mode))
	case "postgres", "mongo":
		if p.DSN == "" {
			return errors.Errorf("dsn is required for driver %s", p.Driver)
		}
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.AIEmbeddingDimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if p.WorkerConcurrency <= 0 {
		p.WorkerConcurrency = 1
	}
	return nil
}
