package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Operator console (metrics + reports)
	OperatorPort string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Real-time channel
	ReconnectRetries int
	ReconnectDelay   time.Duration

	// Accreditation station timers
	SuccessResetDelay time.Duration
	ResultResetDelay  time.Duration

	// Import configuration
	ImportProgressTTL time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:         getEnv("PORT", "8090"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		OperatorPort: getEnv("OPERATOR_PORT", "9090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Real-time channel
		ReconnectRetries: getEnvAsInt("RECONNECT_RETRIES", 10),
		ReconnectDelay:   getEnvAsDuration("RECONNECT_DELAY", "3s"),

		// Station timers
		SuccessResetDelay: getEnvAsDuration("SUCCESS_RESET_DELAY", "2s"),
		ResultResetDelay:  getEnvAsDuration("RESULT_RESET_DELAY", "3s"),

		// Import
		ImportProgressTTL: getEnvAsDuration("IMPORT_PROGRESS_TTL", "1h"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
