package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PREDICTION_API_URL", "")
	t.Setenv("SESSION_BACKEND", "")
	t.Setenv("HISTORY_ENABLED", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:5000", cfg.PredictionAPIURL)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, 10, cfg.ImpactLimit)
	assert.Equal(t, 10*time.Second, cfg.PredictTimeout)
	assert.Equal(t, 30*time.Minute, cfg.FormIdleTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.False(t, cfg.UseRedis())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PREDICTION_API_URL", "http://model:9000/")
	t.Setenv("PREDICT_TIMEOUT_SECONDS", "2.5")
	t.Setenv("CB_RECOVERY_TIMEOUT", "1m")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("PORT", "9090")
	t.Setenv("FORM_IDLE_TIMEOUT", "5m")

	cfg := Load()

	assert.Equal(t, "http://model:9000", cfg.PredictionAPIURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.PredictTimeout)
	assert.Equal(t, time.Minute, cfg.CBRecoveryTimeout)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.FormIdleTimeout)
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("IMPACT_LIMIT", "ten")
	assert.Equal(t, 10, Load().ImpactLimit)
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresDB:       "ctg",
	}
	assert.Equal(t, "postgres://u:p@db:5432/ctg?sslmode=disable", cfg.DatabaseURL())
}
