package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "GRPC_PORT", "METRICS_PORT", "PERSISTENCE_BACKEND", "SHEET_URL",
		"GATEWAY_TIMEOUT", "REDIS_ADDR", "API_KEY", "ANALYSIS_LANGUAGE", "SEED_COUNT",
		"MAX_SESSIONS", "SESSION_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadFromEnv()
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, BackendSheet, cfg.PersistenceBackend)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 24*time.Hour, cfg.AnalysisCacheTTL)
	assert.Equal(t, language.SimplifiedChinese, cfg.AnalysisLanguage)
	assert.Equal(t, 860, cfg.SeedCount)
	assert.Equal(t, uint64(42), cfg.SeedRandom)
	assert.Equal(t, 10000, cfg.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.True(t, cfg.DemoMode())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("GRPC_REFLECTION_ENABLED", "true")
	t.Setenv("PERSISTENCE_BACKEND", "sqlite")
	t.Setenv("GATEWAY_TIMEOUT", "2s")
	t.Setenv("ANALYSIS_LANGUAGE", "en-GB")
	t.Setenv("ANALYSIS_RATE_LIMIT", "0.5")
	t.Setenv("METRICS_PORT", "0")
	t.Setenv("SESSION_TTL", "5m")

	cfg := LoadFromEnv()
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.True(t, cfg.GRPCReflectionEnabled)
	assert.Equal(t, 2*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, language.BritishEnglish, cfg.AnalysisLanguage)
	assert.Equal(t, 0.5, cfg.AnalysisRateLimit)
	assert.Equal(t, 0, cfg.MetricsPort)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.DemoMode())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GRPC_PORT", "abc")
	t.Setenv("GATEWAY_TIMEOUT", "-1s")
	t.Setenv("ANALYSIS_LANGUAGE", "???")

	cfg := LoadFromEnv()
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, language.SimplifiedChinese, cfg.AnalysisLanguage)
}

func TestValidate(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.PersistenceBackend = "mongo"
	cfg.GRPCPort = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERSISTENCE_BACKEND")
	assert.Contains(t, err.Error(), "GRPC_PORT")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{AppEnv: "production"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
