package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Settlement.CacheTTL)
	assert.Equal(t, FailOpen, cfg.Settlement.FailurePolicy)
	assert.True(t, decimal.RequireFromString("0.08").Equal(cfg.Settlement.DefaultEstimatedTaxRate))
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pricing_config:invalidate", cfg.Redis.Channel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CONFIG_CACHE_TTL", "30s")
	t.Setenv("CONFIG_FAILURE_POLICY", "FAIL_CLOSED")
	t.Setenv("DEFAULT_ESTIMATED_TAX_RATE", "0.0625")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ENABLE_CONFIG_EVENTS", "true")

	cfg := Load()

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Settlement.CacheTTL)
	assert.Equal(t, FailClosed, cfg.Settlement.FailurePolicy)
	assert.True(t, decimal.RequireFromString("0.0625").Equal(cfg.Settlement.DefaultEstimatedTaxRate))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Features.EnableConfigEvents)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("CONFIG_CACHE_TTL", "soon")
	t.Setenv("DEFAULT_ESTIMATED_TAX_RATE", "eight percent")

	cfg := Load()

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Settlement.CacheTTL)
	assert.True(t, decimal.RequireFromString("0.08").Equal(cfg.Settlement.DefaultEstimatedTaxRate))
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.ConnectionString())
}
