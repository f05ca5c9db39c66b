// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	AppName    string
	Port       int
	LogLevel   string
	PrettyLogs bool

	HTTPWriteTimeout      time.Duration
	HTTPReadTimeout       time.Duration
	HTTPIdleTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	MaxHeaderBytes        int
	AllowOrigins          []string
	AllowMethods          []string

	// Redis (duplicate store)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka event publishing
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaOutputTopic  string
	KafkaBatchSize    int
	KafkaBatchTimeout time.Duration
	KafkaRequiredAcks int
	KafkaCompression  string

	// Kafka record ingestion
	KafkaConsumerEnabled bool
	KafkaInputTopic      string
	KafkaConsumerGroup   string

	// Detection and merging
	MergeBackupTTL   time.Duration
	BatchSize        int
	MaxConcurrency   int
	AutoMergeEnabled bool
	MetricsInterval  time.Duration
	TracingEnabled   bool
	TracingService   string
}

// Load reads configuration from the environment. A .env file is applied first
// when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:    getEnv("APP_NAME", "dedupe-api"),
		Port:       getEnvInt("PORT", 3004),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		PrettyLogs: getEnvBool("PRETTY_LOGS", false),

		HTTPWriteTimeout:      getEnvDuration("HTTP_SERVER_WRITE_TIMEOUT", 10*time.Second),
		HTTPReadTimeout:       getEnvDuration("HTTP_SERVER_READ_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:       getEnvDuration("HTTP_SERVER_IDLE_TIMEOUT", 10*time.Second),
		HTTPReadHeaderTimeout: getEnvDuration("HTTP_SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:        getEnvInt("HTTP_SERVER_MAX_HEADER_BYTES", 64000),
		AllowOrigins:          getEnvSlice("HTTP_SERVER_ALLOW_ORIGINS", []string{"*"}),
		AllowMethods:          getEnvSlice("HTTP_SERVER_ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE"}),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaEnabled:      getEnvBool("KAFKA_ENABLED", false),
		KafkaBrokers:      getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaOutputTopic:  getEnv("KAFKA_OUTPUT_TOPIC", "duplicate-events"),
		KafkaBatchSize:    getEnvInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout: getEnvDuration("KAFKA_BATCH_TIMEOUT", 100*time.Millisecond),
		KafkaRequiredAcks: getEnvInt("KAFKA_REQUIRED_ACKS", 1),
		KafkaCompression:  getEnv("KAFKA_COMPRESSION", "snappy"),

		KafkaConsumerEnabled: getEnvBool("KAFKA_CONSUMER_ENABLED", false),
		KafkaInputTopic:      getEnv("KAFKA_INPUT_TOPIC", "crm-records"),
		KafkaConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "dedupe-consumer"),

		MergeBackupTTL:   getEnvDuration("MERGE_BACKUP_TTL", 720*time.Hour),
		BatchSize:        getEnvInt("BATCH_SIZE", 100),
		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 5),
		AutoMergeEnabled: getEnvBool("AUTO_MERGE_ENABLED", true),
		MetricsInterval:  getEnvDuration("METRICS_INTERVAL", time.Minute),
		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		TracingService:   getEnv("TRACING_SERVICE_NAME", "dedupe-api"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := cast.ToIntE(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := cast.ToBoolE(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
