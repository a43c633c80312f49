// Package config handles configuration for the CTG screening services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all configuration for the screening server and worker.
type Config struct {
	// Server configuration
	Host  string
	Port  string
	Debug bool

	// Public base URL, used for report links
	BaseURL string

	// Prediction service
	PredictionAPIURL      string
	PredictTimeout        time.Duration
	PredictConnectTimeout time.Duration

	// Circuit breaker configuration
	CBFailureThreshold int
	CBRecoveryTimeout  time.Duration
	CBSuccessThreshold int

	// Impact chart
	ImpactLimit int

	// Form lifecycle
	FormIdleTimeout time.Duration
	SweepInterval   time.Duration

	// Session store
	SessionBackend string
	SessionTTL     time.Duration

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Analysis history (PostgreSQL)
	HistoryEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresMaxConns int

	// History worker
	WorkerBatchSize     int
	WorkerFlushInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server configuration
		Host:  getEnv("HOST", "0.0.0.0"),
		Port:  getEnv("PORT", "8080"),
		Debug: getEnvBool("DEBUG", false),

		BaseURL: strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		// Prediction service
		PredictionAPIURL:      strings.TrimSuffix(getEnv("PREDICTION_API_URL", "http://localhost:5000"), "/"),
		PredictTimeout:        getEnvDuration("PREDICT_TIMEOUT_SECONDS", 10*time.Second),
		PredictConnectTimeout: getEnvDuration("PREDICT_CONNECT_TIMEOUT", 2*time.Second),

		// Circuit breaker configuration
		CBFailureThreshold: getEnvInt("CB_FAILURE_THRESHOLD", 5),
		CBRecoveryTimeout:  getEnvDuration("CB_RECOVERY_TIMEOUT", 30*time.Second),
		CBSuccessThreshold: getEnvInt("CB_SUCCESS_THRESHOLD", 1),

		ImpactLimit: getEnvInt("IMPACT_LIMIT", 10),

		FormIdleTimeout: getEnvDuration("FORM_IDLE_TIMEOUT", 30*time.Minute),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),

		// Session store
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
		SessionTTL:     getEnvDuration("SESSION_TTL", 12*time.Hour),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Analysis history
		HistoryEnabled:   getEnvBool("HISTORY_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "ctg"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresMaxConns: getEnvInt("POSTGRES_MAX_CONNECTIONS", 10),

		WorkerBatchSize:     getEnvInt("WORKER_BATCH_SIZE", 100),
		WorkerFlushInterval: getEnvDuration("WORKER_FLUSH_INTERVAL", 5*time.Second),
	}
}

// ModelConfig holds configuration for the mock prediction model.
type ModelConfig struct {
	Host string
	Port int

	InferenceDelayEnabled bool
	InferenceDelayMinMs   int
	InferenceDelayMaxMs   int
}

// LoadModel loads the mock model configuration from environment variables.
func LoadModel() *ModelConfig {
	return &ModelConfig{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 5000),

		InferenceDelayEnabled: getEnvBool("INFERENCE_DELAY_ENABLED", false),
		InferenceDelayMinMs:   getEnvInt("INFERENCE_DELAY_MIN_MS", 10),
		InferenceDelayMaxMs:   getEnvInt("INFERENCE_DELAY_MAX_MS", 30),
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// UseRedis reports whether a Redis connection is needed.
func (c *Config) UseRedis() bool {
	return c.SessionBackend == SessionBackendRedis || c.HistoryEnabled
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword +
		"@" + c.PostgresHost + ":" + c.PostgresPort +
		"/" + c.PostgresDB + "?sslmode=disable"
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable.
// Accepts Go duration strings ("1m30s") or seconds as float ("2.5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(floatVal * float64(time.Second))
	}
	return defaultValue
}
