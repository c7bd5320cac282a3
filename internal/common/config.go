package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	AICore   AICoreConfig
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Feedback FeedbackConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Inbox    InboxConfig
	Sweep    SweepConfig
	Log      LogConfig
}

// AICoreConfig holds the auth and inference endpoints of the model service
type AICoreConfig struct {
	AuthURL       string
	ClientID      string
	ClientSecret  string
	DeploymentURL string
	ResourceGroup string
	Timeout       time.Duration
	MaxTokens     int
	CacheTokens   bool
	// MinConfidence flags extractions with any confidence below it for review.
	MinConfidence float64
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // sqlite | postgres
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
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// StorageConfig selects where uploaded document bytes live
type StorageConfig struct {
	Backend        string // fs | minio | s3
	Dir            string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // optional, for S3-compatible services
	S3AccessKey    string
	S3SecretKey    string
}

// FeedbackConfig configures the optional similarity index over feedback
type FeedbackConfig struct {
	QdrantHost      string
	QdrantPort      int
	QdrantAPIKey    string
	QdrantUseTLS    bool
	Collection      string
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
	EmbeddingDims   int
}

// Enabled reports whether a similarity backend is configured.
func (f FeedbackConfig) Enabled() bool {
	return f.QdrantHost != ""
}

// RedisConfig is shared by the token cache and the asynq queue
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig configures background processing
type QueueConfig struct {
	Backend        string // memory | asynq
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// InboxConfig configures the watched drop directory
type InboxConfig struct {
	Dir      string
	Debounce time.Duration
}

// SweepConfig configures recovery of documents stuck in PROCESSING
type SweepConfig struct {
	Interval   time.Duration
	StuckAfter time.Duration
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string
	Format string // text | json
	File   string
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// LoadConfig loads configuration from an optional .env file and the environment.
func LoadConfig() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		AICore: AICoreConfig{
			AuthURL:       getEnv("AI_CORE_AUTH_URL", ""),
			ClientID:      getEnv("AI_CORE_CLIENT_ID", ""),
			ClientSecret:  os.Getenv("AI_CORE_CLIENT_SECRET"),
			DeploymentURL: getEnv("AI_CORE_DEPLOYMENT_URL", ""),
			ResourceGroup: getEnv("AI_CORE_RESOURCE_GROUP", "default"),
			Timeout:       getEnvAsDuration("AI_CORE_TIMEOUT", 120*time.Second),
			MaxTokens:     getEnvAsInt("AI_CORE_MAX_TOKENS", 4000),
			CacheTokens:   getEnvAsBool("AI_CORE_CACHE_TOKENS", true),
			MinConfidence: getEnvAsFloat("REVIEW_MIN_CONFIDENCE", 0.60),
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:document-extractor.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":4004"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", constants.MaxUploadBytes)),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "fs"),
			Dir:            getEnv("UPLOAD_DIR", "./uploads"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET_NAME", "documents"),
			MinioRegion:    getEnv("MINIO_REGION", ""),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			S3Bucket:       getEnv("S3_BUCKET_NAME", ""),
			S3Region:       getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:     getEnv("S3_ENDPOINT", ""),
			S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		},
		Feedback: FeedbackConfig{
			QdrantHost:      getEnv("QDRANT_HOST", ""),
			QdrantPort:      getEnvAsInt("QDRANT_PORT", 6334),
			QdrantAPIKey:    os.Getenv("QDRANT_API_KEY"),
			QdrantUseTLS:    getEnvAsBool("QDRANT_USE_TLS", false),
			Collection:      getEnv("FEEDBACK_COLLECTION", "extraction_feedback"),
			EmbeddingURL:    getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			EmbeddingAPIKey: os.Getenv("EMBEDDING_API_KEY"),
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDims:   getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Backend:        getEnv("QUEUE_BACKEND", "memory"),
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 5*time.Minute),
		},
		Inbox: InboxConfig{
			Dir:      getEnv("INBOX_DIR", ""),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
		Sweep: SweepConfig{
			Interval:   getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			StuckAfter: getEnvAsDuration("SWEEP_STUCK_AFTER", 15*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate checks the settings every process needs. The client secret is
// not checked here: a missing secret surfaces as an AUTH_ERROR per run.
func (c *Config) Validate() error {
	if c.AICore.AuthURL == "" {
		return NewAppError(CodeConfig, "AI_CORE_AUTH_URL is required", ErrInvalidInput)
	}
	if c.AICore.DeploymentURL == "" {
		return NewAppError(CodeConfig, "AI_CORE_DEPLOYMENT_URL is required", ErrInvalidInput)
	}
	if c.AICore.MinConfidence < 0 || c.AICore.MinConfidence > 1 {
		return NewAppError(CodeConfig, "REVIEW_MIN_CONFIDENCE must be between 0 and 1", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "fs":
		if c.Storage.Dir == "" {
			return NewAppError(CodeConfig, "UPLOAD_DIR is required", ErrInvalidInput)
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			return NewAppError(CodeConfig, "MINIO_ENDPOINT is required for the minio backend", ErrInvalidInput)
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return NewAppError(CodeConfig, "S3_BUCKET_NAME is required for the s3 backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "STORAGE_BACKEND must be fs, minio or s3", ErrInvalidInput)
	}
	switch c.Queue.Backend {
	case "memory":
	case "asynq":
		if c.Redis.Addr == "" {
			return NewAppError(CodeConfig, "REDIS_ADDR is required for the asynq queue", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "QUEUE_BACKEND must be memory or asynq", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
