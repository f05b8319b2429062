package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendHTTP   = "http"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPPort           string        `yaml:"http_port"`
	GatewayURL         string        `yaml:"gateway_url"`
	CatalogBackend     string        `yaml:"catalog_backend"`
	SQLitePath         string        `yaml:"sqlite_path"`
	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	RedisDB            int           `yaml:"redis_db"`
	KafkaBrokers       []string      `yaml:"kafka_brokers"`
	KafkaTopic         string        `yaml:"kafka_topic"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	GatewayTimeout     time.Duration `yaml:"gateway_timeout"`
	DeductionTimeout   time.Duration `yaml:"deduction_timeout"`
	DeductionWorkers   int           `yaml:"deduction_concurrency"`
	PublishTimeout     time.Duration `yaml:"publish_timeout"`
	CartTTL            time.Duration `yaml:"cart_ttl"`
	IdempotencyTTL     time.Duration `yaml:"idempotency_ttl"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	LogLevel           string        `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		HTTPPort:           "8080",
		CatalogBackend:     BackendHTTP,
		SQLitePath:         "storefront.db",
		KafkaTopic:         "storefront.events",
		RequestTimeout:     30 * time.Second,
		GatewayTimeout:     10 * time.Second,
		DeductionTimeout:   5 * time.Second,
		DeductionWorkers:   4,
		PublishTimeout:     2 * time.Second,
		CartTTL:            24 * time.Hour,
		IdempotencyTTL:     24 * time.Hour,
		ShutdownTimeout:    10 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and
// environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfig)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %v: %w", cleanPath, err, ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.GatewayURL = strings.TrimRight(getEnv("GATEWAY_URL", c.GatewayURL), "/")
	c.CatalogBackend = strings.ToLower(getEnv("CATALOG_BACKEND", c.CatalogBackend))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.DeductionWorkers, err = getEnvInt("DEDUCTION_CONCURRENCY", c.DeductionWorkers); err != nil {
		return err
	}
	maxFailures, err := getEnvInt("BREAKER_MAX_FAILURES", int(c.BreakerMaxFailures))
	if err != nil {
		return err
	}
	if maxFailures < 0 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must not be negative: %w", ErrInvalidConfig)
	}
	c.BreakerMaxFailures = uint32(maxFailures)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"GATEWAY_TIMEOUT", &c.GatewayTimeout},
		{"DEDUCTION_TIMEOUT", &c.DeductionTimeout},
		{"PUBLISH_TIMEOUT", &c.PublishTimeout},
		{"CART_TTL", &c.CartTTL},
		{"IDEMPOTENCY_TTL", &c.IdempotencyTTL},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"BREAKER_OPEN_TIMEOUT", &c.BreakerOpenTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.CatalogBackend {
	case BackendHTTP:
		if c.GatewayURL == "" {
			return fmt.Errorf("GATEWAY_URL is required for the %s backend: %w", BackendHTTP, ErrInvalidConfig)
		}
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s backend: %w", BackendSQLite, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown catalog backend %q: %w", c.CatalogBackend, ErrInvalidConfig)
	}

	positive := map[string]time.Duration{
		"REQUEST_TIMEOUT":      c.RequestTimeout,
		"GATEWAY_TIMEOUT":      c.GatewayTimeout,
		"DEDUCTION_TIMEOUT":    c.DeductionTimeout,
		"PUBLISH_TIMEOUT":      c.PublishTimeout,
		"SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
		"BREAKER_OPEN_TIMEOUT": c.BreakerOpenTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %w", key, ErrInvalidConfig)
		}
	}
	if c.DeductionWorkers < 1 {
		return fmt.Errorf("DEDUCTION_CONCURRENCY must be at least 1: %w", ErrInvalidConfig)
	}
	if c.CartTTL < 0 || c.IdempotencyTTL < 0 {
		return fmt.Errorf("TTLs must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", key, err, ErrInvalidConfig)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", key, err, ErrInvalidConfig)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
