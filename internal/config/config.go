package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	BackendSheet  = "sheet"
	BackendSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	GRPCPort              int
	GRPCReflectionEnabled bool
	MetricsPort           int

	PersistenceBackend string
	SheetURL           string
	GatewayTimeout     time.Duration
	DBPath             string
	DBDriver           string

	RedisAddr        string
	AnalysisCacheTTL time.Duration

	AnalysisProvider  string
	AnalysisModel     string
	APIKey            string
	AnalysisLanguage  language.Tag
	AnalysisTimeout   time.Duration
	AnalysisRateLimit float64
	AnalysisRateBurst int

	SeedFile   string
	SeedCount  int
	SeedRandom uint64

	MaxSessions int
	SessionTTL  time.Duration
}

// LoadFromEnv loads configuration from environment variables. Unparseable
// values fall back to their defaults.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		GRPCPort:              getInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getBool("GRPC_REFLECTION_ENABLED", false),
		MetricsPort:           getInt("METRICS_PORT", 9090),

		PersistenceBackend: getEnv("PERSISTENCE_BACKEND", BackendSheet),
		SheetURL:           os.Getenv("SHEET_URL"),
		GatewayTimeout:     getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		DBPath:             getEnv("DB_PATH", "./data/submissions.db"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite3"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AnalysisCacheTTL: getDuration("ANALYSIS_CACHE_TTL", 24*time.Hour),

		AnalysisProvider:  getEnv("ANALYSIS_PROVIDER", "google"),
		AnalysisModel:     os.Getenv("ANALYSIS_MODEL"),
		APIKey:            os.Getenv("API_KEY"),
		AnalysisLanguage:  getLanguage("ANALYSIS_LANGUAGE", language.SimplifiedChinese),
		AnalysisTimeout:   getDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		AnalysisRateLimit: getFloat("ANALYSIS_RATE_LIMIT", 2),
		AnalysisRateBurst: getInt("ANALYSIS_RATE_BURST", 4),

		SeedFile:   os.Getenv("SEED_FILE"),
		SeedCount:  getInt("SEED_COUNT", 860),
		SeedRandom: uint64(getInt("SEED_RANDOM", 42)),

		MaxSessions: getInt("MAX_SESSIONS", 10000),
		SessionTTL:  getDuration("SESSION_TTL", 30*time.Minute),
	}
}

// Validate rejects combinations the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("GRPC_PORT %d out of range", c.GRPCPort))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("METRICS_PORT %d out of range", c.MetricsPort))
	}
	switch c.PersistenceBackend {
	case BackendSheet, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown PERSISTENCE_BACKEND %q", c.PersistenceBackend))
	}
	if c.SeedCount < 0 {
		errs = append(errs, fmt.Errorf("SEED_COUNT %d is negative", c.SeedCount))
	}
	if c.AnalysisRateLimit <= 0 || c.AnalysisRateBurst < 1 {
		errs = append(errs, errors.New("ANALYSIS_RATE_LIMIT and ANALYSIS_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// DemoMode reports whether submissions go nowhere: the sheet backend with no URL.
func (c *Config) DemoMode() bool {
	return c.PersistenceBackend == BackendSheet && c.SheetURL == ""
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getLanguage(key string, fallback language.Tag) language.Tag {
	v, err := language.Parse(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
