package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	LLM        LLMConfig
	Browser    BrowserConfig
	Submission SubmissionConfig
	Sweep      SweepConfig
	Redis      RedisConfig
	Catalog    CatalogConfig
	Evidence   EvidenceConfig
	Queue      QueueConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LLMConfig holds the field analyzer model configuration
type LLMConfig struct {
	Model            string
	APIKey           string
	BaseURL          string
	Temperature      float32
	MaxTokens        int
	Timeout          time.Duration
	HTMLExcerptChars int
	StructuredOutput bool
}

// BrowserConfig holds headless browser configuration
type BrowserConfig struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Install        bool
}

// SubmissionConfig holds the pacing and policy knobs for directory attempts
type SubmissionConfig struct {
	NavigationTimeout       time.Duration
	RenderSettleDelay       time.Duration
	FieldWaitTimeout        time.Duration
	SubmitPause             time.Duration
	SubmitNavigationTimeout time.Duration
	SubmitSettleDelay       time.Duration
	InterSubmissionDelay    time.Duration
	AmbiguousAsReview       bool
	MaxTransientRetries     int
	RetryBackoff            time.Duration
	AttemptTimeout          time.Duration
}

// SweepConfig holds the recovery sweep schedule
type SweepConfig struct {
	Schedule string
	OnStart  bool
	LockTTL  time.Duration // renewed while a sweep runs
}

// RedisConfig is optional; an empty URL disables events and the sweep lock
type RedisConfig struct {
	URL string
}

// CatalogConfig points at an optional YAML directory catalog
type CatalogConfig struct {
	Path  string
	Watch bool
}

// EvidenceConfig holds where screenshots are written; empty disables evidence
type EvidenceConfig struct {
	Dir string
}

// QueueConfig sizes the background job queue
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			Model:            getEnv("OPENAI_MODEL", "gpt-4o"),
			APIKey:           getEnv("OPENAI_API_KEY", ""),
			BaseURL:          getEnv("OPENAI_BASE_URL", ""),
			Temperature:      getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			MaxTokens:        getEnvAsInt("OPENAI_MAX_TOKENS", 1000),
			Timeout:          getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			HTMLExcerptChars: getEnvAsInt("LLM_HTML_EXCERPT_CHARS", 5000),
			StructuredOutput: getEnvAsBool("LLM_STRUCTURED_OUTPUT", true),
		},
		Browser: BrowserConfig{
			Headless:       getEnvAsBool("BROWSER_HEADLESS", true),
			UserAgent:      getEnv("BROWSER_USER_AGENT", DefaultUserAgent),
			ViewportWidth:  getEnvAsInt("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getEnvAsInt("BROWSER_VIEWPORT_HEIGHT", 1080),
			Install:        getEnvAsBool("BROWSER_INSTALL", false),
		},
		Submission: SubmissionConfig{
			NavigationTimeout:       getEnvAsDuration("NAVIGATION_TIMEOUT", 30*time.Second),
			RenderSettleDelay:       getEnvAsDuration("RENDER_SETTLE_DELAY", 3*time.Second),
			FieldWaitTimeout:        getEnvAsDuration("FIELD_WAIT_TIMEOUT", 5*time.Second),
			SubmitPause:             getEnvAsDuration("SUBMIT_PAUSE", 2*time.Second),
			SubmitNavigationTimeout: getEnvAsDuration("SUBMIT_NAVIGATION_TIMEOUT", 10*time.Second),
			SubmitSettleDelay:       getEnvAsDuration("SUBMIT_SETTLE_DELAY", 3*time.Second),
			InterSubmissionDelay:    getEnvAsDuration("INTER_SUBMISSION_DELAY", 2*time.Second),
			AmbiguousAsReview:       getEnvAsBool("AMBIGUOUS_AS_REVIEW", false),
			MaxTransientRetries:     getEnvAsInt("MAX_TRANSIENT_RETRIES", 0),
			RetryBackoff:            getEnvAsDuration("RETRY_BACKOFF", 5*time.Second),
			AttemptTimeout:          getEnvAsDuration("ATTEMPT_TIMEOUT", 3*time.Minute),
		},
		Sweep: SweepConfig{
			Schedule: getEnv("SWEEP_SCHEDULE", "*/5 * * * *"),
			OnStart:  getEnvAsBool("SWEEP_ON_START", true),
			LockTTL:  getEnvAsDuration("SWEEP_LOCK_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Catalog: CatalogConfig{
			Path:  getEnv("CATALOG_PATH", ""),
			Watch: getEnvAsBool("CATALOG_WATCH", true),
		},
		Evidence: EvidenceConfig{
			Dir: getEnv("EVIDENCE_DIR", "./tmp/evidence"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 1),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 12*time.Hour),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings the daemon cannot run without
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Sweep.Schedule == "" {
		return NewAppError("CONFIG_ERROR", "SWEEP_SCHEDULE is required", ErrInvalidInput)
	}
	if c.Submission.MaxTransientRetries < 0 {
		return NewAppError("CONFIG_ERROR", "MAX_TRANSIENT_RETRIES must be >= 0", ErrInvalidInput)
	}
	if c.Queue.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be >= 1", ErrInvalidInput)
	}
	return nil
}
