package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for journeyd.
type Config struct {
	// Server
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Store
	Store          string // "redis" | "local"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisOpTimeout time.Duration
	Namespace      string

	// Documents
	Codec          string // "json" | "msgpack" | "cbor"
	MaxDecodeBytes int

	// CAS retry
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Bootstrap
	SeedFile string

	// Observability
	Logger           string // "zap" | "logrus" | "slog"
	LogLevel         string
	MetricsNamespace string
	HookLogSample    uint64
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 15)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 15)) * time.Second,

		Store:          strings.ToLower(getEnv("STORE", "redis")),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisOpTimeout: time.Duration(getEnvAsInt("REDIS_OP_TIMEOUT_MS", 2000)) * time.Millisecond,
		Namespace:      getEnv("KEY_NAMESPACE", "journey"),

		Codec:          strings.ToLower(getEnv("CODEC", "json")),
		MaxDecodeBytes: getEnvAsInt("MAX_DECODE_BYTES", 1<<20),

		MaxAttempts: getEnvAsInt("CAS_MAX_ATTEMPTS", 50),
		BaseBackoff: time.Duration(getEnvAsInt("CAS_BASE_BACKOFF_MS", 1)) * time.Millisecond,
		MaxBackoff:  time.Duration(getEnvAsInt("CAS_MAX_BACKOFF_MS", 25)) * time.Millisecond,

		SeedFile: getEnv("SEED_FILE", "data/journeys.json"),

		Logger:           strings.ToLower(getEnv("LOGGER", "zap")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "journeycas"),
		HookLogSample:    uint64(getEnvAsInt("HOOK_LOG_SAMPLE", 10)),
	}
	return cfg, cfg.Validate()
}

// Validate rejects values journeyd cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case "redis", "local":
	default:
		return fmt.Errorf("config: STORE %q: want redis or local", c.Store)
	}
	switch c.Codec {
	case "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("config: CODEC %q: want json, msgpack or cbor", c.Codec)
	}
	switch c.Logger {
	case "zap", "logrus", "slog":
	default:
		return fmt.Errorf("config: LOGGER %q: want zap, logrus or slog", c.Logger)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: CAS_MAX_ATTEMPTS must be >= 1, got %d", c.MaxAttempts)
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("config: CAS backoff must not be negative")
	}
	if c.MaxDecodeBytes < 0 {
		return fmt.Errorf("config: MAX_DECODE_BYTES must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
