package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DatabaseURL         string
	StoreBackend        string // "postgres" or "memory"
	JWTSecret           string
	WebhookVerifyToken  string
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string
	PlatformAPIBaseURL  string
	PlatformAPIToken    string

	IngestWorkers   int
	IngestQueueSize int
	CacheTTL        time.Duration
	RetentionDays   int
	ResolveRetry    time.Duration

	SchedulerTick    time.Duration
	SchedulerMaxConc int
	TaskTimeout      time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		StoreBackend:        getEnv("STORE_BACKEND", "postgres"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		WebhookVerifyToken:  getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		PlatformAPIBaseURL:  getEnv("PLATFORM_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		PlatformAPIToken:    getEnv("PLATFORM_API_TOKEN", ""),
		IngestWorkers:       getEnvInt("INGEST_WORKERS", 4),
		IngestQueueSize:     getEnvInt("INGEST_QUEUE_SIZE", 1000),
		CacheTTL:            getEnvDuration("CACHE_TTL", 30*time.Second),
		RetentionDays:       getEnvInt("EVENT_RETENTION_DAYS", 90),
		ResolveRetry:        getEnvDuration("RESOLVE_RETRY_INTERVAL", 1*time.Minute),
		SchedulerTick:       getEnvDuration("SCHEDULER_TICK", 30*time.Second),
		SchedulerMaxConc:    getEnvInt("SCHEDULER_MAX_CONCURRENT", 8),
		TaskTimeout:         getEnvDuration("TASK_TIMEOUT", 45*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
