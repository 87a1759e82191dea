package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverSQLite)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "membership_events", cfg.Kafka.Topic)
	assert.False(t, cfg.Otel.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverPostgres)
	t.Setenv("DATABASE_URL", "postgres://club@localhost/club?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("OTEL_ENABLED", "yes")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.HTTP.RateLimitBurst)
	assert.True(t, cfg.Otel.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store: StoreConfig{Driver: DriverMemory},
			Kafka: KafkaConfig{Topic: "t"},
			HTTP:  HTTPConfig{RateLimitPerSecond: 1, RateLimitBurst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "memory", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.Store.Driver = DriverPostgres }, wantErr: true},
		{name: "gorm postgres with url", mutate: func(c *Config) {
			c.Store.Driver = DriverGormPostgres
			c.Store.DatabaseURL = "postgres://x"
		}},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Driver = DriverSQLite }, wantErr: true},
		{name: "brokers without topic", mutate: func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}, wantErr: true},
		{name: "zero burst", mutate: func(c *Config) { c.HTTP.RateLimitBurst = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
