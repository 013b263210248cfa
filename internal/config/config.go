package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// IngestionConfig holds bulk ingestion tuning knobs
type IngestionConfig struct {
	BatchSize    int
	MinChunkSize int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxWorkers   int
	RegionPause  time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Ignore a missing .env; explicit environment always wins over file values.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         envIntOrDefault("SERVER_PORT", 8080),
			ReadTimeout:  envDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  envDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            envOrDefault("POSTGRES_HOST", "localhost"),
			Port:            envIntOrDefault("POSTGRES_PORT", 5432),
			User:            envOrDefault("POSTGRES_USER", "postgres"),
			Password:        envOrDefault("POSTGRES_PASSWORD", "postgres"),
			Database:        envOrDefault("POSTGRES_DB", "weather_db"),
			SSLMode:         envOrDefault("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    envIntOrDefault("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOrDefault("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOrDefault("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDurationOrDefault("POSTGRES_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Ingestion: IngestionConfig{
			BatchSize:    envIntOrDefault("INGEST_BATCH_SIZE", 5000),
			MinChunkSize: envIntOrDefault("INGEST_MIN_CHUNK_SIZE", 100),
			MaxRetries:   envIntOrDefault("INGEST_MAX_RETRIES", 3),
			RetryBackoff: envDurationOrDefault("INGEST_RETRY_BACKOFF", 2*time.Second),
			MaxWorkers:   envIntOrDefault("INGEST_MAX_WORKERS", 10),
			RegionPause:  envDurationOrDefault("AGGREGATE_REGION_PAUSE", 200*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.Database.Database == "" {
		return errors.New("POSTGRES_DB is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("invalid INGEST_BATCH_SIZE: %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.MinChunkSize <= 0 || c.Ingestion.MinChunkSize > c.Ingestion.BatchSize {
		return fmt.Errorf("invalid INGEST_MIN_CHUNK_SIZE: %d", c.Ingestion.MinChunkSize)
	}
	if c.Ingestion.MaxWorkers <= 0 {
		return fmt.Errorf("invalid INGEST_MAX_WORKERS: %d", c.Ingestion.MaxWorkers)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
