package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Analysis AnalysisConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the price cache configuration. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds Kafka configuration. An empty broker list disables the worker.
type KafkaConfig struct {
	Brokers      []string
	RequestTopic string
	ResultTopic  string
	PriceTopic   string
	GroupID      string
}

// AnalysisConfig holds factor analysis tuning
type AnalysisConfig struct {
	BenchmarkCode       string
	DefaultLookbackDays int
	MinDataPoints       int
	TopMatches          int
	FetchConcurrency    int
	FetchRatePerSecond  float64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables, after loading a .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second, &errs),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "factoranalysis"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0, &errs),
			TTL:      getEnvDuration("REDIS_PRICE_TTL", 6*time.Hour, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvList("KAFKA_BROKERS"),
			RequestTopic: getEnv("KAFKA_REQUEST_TOPIC", "factor-analysis-requests"),
			ResultTopic:  getEnv("KAFKA_RESULT_TOPIC", "factor-analysis-results"),
			PriceTopic:   getEnv("KAFKA_PRICE_TOPIC", "price-bars"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "factor-analysis-service"),
		},
		Analysis: AnalysisConfig{
			BenchmarkCode:       getEnv("ANALYSIS_BENCHMARK_CODE", "0000"),
			DefaultLookbackDays: getEnvInt("ANALYSIS_LOOKBACK_DAYS", 252, &errs),
			MinDataPoints:       getEnvInt("ANALYSIS_MIN_DATA_POINTS", 20, &errs),
			TopMatches:          getEnvInt("ANALYSIS_TOP_MATCHES", 3, &errs),
			FetchConcurrency:    getEnvInt("ANALYSIS_FETCH_CONCURRENCY", 8, &errs),
			FetchRatePerSecond:  getEnvFloat("ANALYSIS_FETCH_RATE", 0, &errs),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	a := c.Analysis
	var errs []error
	if a.BenchmarkCode == "" {
		errs = append(errs, errors.New("ANALYSIS_BENCHMARK_CODE must not be empty"))
	}
	if a.MinDataPoints < 2 {
		errs = append(errs, fmt.Errorf("ANALYSIS_MIN_DATA_POINTS must be at least 2, got %d", a.MinDataPoints))
	}
	if a.TopMatches < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_TOP_MATCHES must be at least 1, got %d", a.TopMatches))
	}
	if a.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_FETCH_CONCURRENCY must be at least 1, got %d", a.FetchConcurrency))
	}
	if a.FetchRatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("ANALYSIS_FETCH_RATE must not be negative, got %g", a.FetchRatePerSecond))
	}
	if a.DefaultLookbackDays <= a.MinDataPoints {
		errs = append(errs, fmt.Errorf("ANALYSIS_LOOKBACK_DAYS (%d) must exceed ANALYSIS_MIN_DATA_POINTS (%d)",
			a.DefaultLookbackDays, a.MinDataPoints))
	}
	return errors.Join(errs...)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
