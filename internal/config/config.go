package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

const (
	DriverMemory       = "memory"
	DriverPostgres     = "postgres"
	DriverSQLite       = "sqlite"
	DriverGormPostgres = "gorm-postgres"
)

// Config holds all application configuration
type Config struct {
	Env      string
	HTTPAddr string
	Store    StoreConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Otel     OtelConfig
}

// StoreConfig selects and addresses the membership store
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// KafkaConfig holds the domain event publisher settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// HTTPConfig holds limits for the mutating routes
type HTTPConfig struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
}

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRatio float64
}

// Load reads an optional .env file and then the process environment.
func Load(log *logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug("No .env file loaded", "error", err)
	}

	cfg := &Config{
		Env:      GetEnv("APP_ENV", "development", log),
		HTTPAddr: GetEnv("HTTP_ADDR", ":8080", log),
		Store: StoreConfig{
			Driver:      GetEnv("STORE_DRIVER", DriverSQLite, log),
			DatabaseURL: GetEnv("DATABASE_URL", "", log),
			SQLitePath:  GetEnv("SQLITE_PATH", "clubledger.db", log),
		},
		Kafka: KafkaConfig{
			Brokers: GetEnvAsList("KAFKA_BROKERS", nil, log),
			Topic:   GetEnv("KAFKA_TOPIC", "membership_events", log),
		},
		HTTP: HTTPConfig{
			RateLimitPerSecond: GetEnvAsFloat("RATE_LIMIT_PER_SECOND", 20, log),
			RateLimitBurst:     GetEnvAsInt("RATE_LIMIT_BURST", 40, log),
		},
		Otel: OtelConfig{
			Enabled:     GetEnvAsBool("OTEL_ENABLED", false, log),
			ServiceName: GetEnv("OTEL_SERVICE_NAME", "clubledger", log),
			Endpoint:    GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			SampleRatio: GetEnvAsFloat("OTEL_SAMPLER_RATIO", 1, log),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres, DriverGormPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("STORE_DRIVER=%s requires DATABASE_URL", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverSQLite && c.Store.SQLitePath == "" {
		return errors.New("STORE_DRIVER=sqlite requires SQLITE_PATH")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC must be set when KAFKA_BROKERS is")
	}
	if c.HTTP.RateLimitPerSecond <= 0 || c.HTTP.RateLimitBurst <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}
