package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the report worker.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIFallback    string
	OpenAITemperature float64
	OpenAITimeoutMS   int
	OpenAIMaxRetries  int
	OpenAIMaxTokens   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	ProcessorBatchSize       int
	ProcessorSweepIntervalMS int

	ReportCacheTTLSeconds int
	ReportCacheMaxEntries int

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4-turbo"),
		OpenAIFallback:    getEnv("OPENAI_MODEL_FALLBACK", ""),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAITimeoutMS:   getEnvInt("OPENAI_TIMEOUT_MS", 60000),
		OpenAIMaxRetries:  getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 2000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "report_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "report_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "report_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		ProcessorBatchSize:       getEnvInt("PROCESSOR_BATCH_SIZE", 5),
		ProcessorSweepIntervalMS: getEnvInt("PROCESSOR_SWEEP_INTERVAL_MS", 15000),

		ReportCacheTTLSeconds: getEnvInt("REPORT_CACHE_TTL_SECONDS", 900),
		ReportCacheMaxEntries: getEnvInt("REPORT_CACHE_MAX_ENTRIES", 500),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
