package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// FailurePolicy decides what a calculation does when pricing configuration
// cannot be loaded.
type FailurePolicy string

const (
	// FailOpen degrades to zero tax and zero fees.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed surfaces the failure to the caller.
	FailClosed FailurePolicy = "fail_closed"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	PaymentService ServiceConfig
	Settlement     SettlementConfig
	CircuitBreaker CircuitBreakerConfig
	Features       FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

type KafkaConfig struct {
	Brokers          []string
	SettlementsTopic string
	ConfigTopic      string
	// ConsumerGroup prefixes the per-instance group used for config events.
	ConsumerGroup    string
}

type ServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SettlementConfig struct {
	CacheTTL                time.Duration
	QueryTimeout            time.Duration
	FailurePolicy           FailurePolicy
	DefaultEstimatedTaxRate decimal.Decimal
	Currency                string
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type FeatureFlags struct {
	EnableSettlementEvents bool
	EnableCacheBroadcast   bool
	EnableConfigEvents     bool
}

// Load reads configuration from the environment, after applying a local .env
// file if one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8086),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_marketplace"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnvString("REDIS_INVALIDATION_CHANNEL", "pricing_config:invalidate"),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			SettlementsTopic: getEnvString("KAFKA_SETTLEMENTS_TOPIC", "settlements"),
			ConfigTopic:      getEnvString("KAFKA_PRICING_CONFIG_TOPIC", "pricing-config"),
			ConsumerGroup:    getEnvString("KAFKA_CONSUMER_GROUP", "settlement-service"),
		},
		PaymentService: ServiceConfig{
			BaseURL: getEnvString("PAYMENT_SERVICE_URL", "http://localhost:8083"),
			APIKey:  getEnvString("PAYMENT_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("PAYMENT_SERVICE_TIMEOUT", 30)) * time.Second,
		},
		Settlement: SettlementConfig{
			CacheTTL:                getEnvDuration("CONFIG_CACHE_TTL", 5*time.Minute),
			QueryTimeout:            getEnvDuration("CONFIG_QUERY_TIMEOUT", 3*time.Second),
			FailurePolicy:           parseFailurePolicy(getEnvString("CONFIG_FAILURE_POLICY", string(FailOpen))),
			DefaultEstimatedTaxRate: getEnvDecimal("DEFAULT_ESTIMATED_TAX_RATE", decimal.RequireFromString("0.08")),
			Currency:                getEnvString("SETTLEMENT_CURRENCY", "USD"),
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      uint32(getEnvInt("CB_MAX_REQUESTS", 1)),
			Interval:         getEnvDuration("CB_INTERVAL", time.Minute),
			Timeout:          getEnvDuration("CB_TIMEOUT", 30*time.Second),
			FailureThreshold: uint32(getEnvInt("CB_FAILURE_THRESHOLD", 5)),
		},
		Features: FeatureFlags{
			EnableSettlementEvents: getEnvBool("ENABLE_SETTLEMENT_EVENTS", true),
			EnableCacheBroadcast:   getEnvBool("ENABLE_CACHE_BROADCAST", true),
			EnableConfigEvents:     getEnvBool("ENABLE_CONFIG_EVENTS", false),
		},
	}
}

func parseFailurePolicy(value string) FailurePolicy {
	if FailurePolicy(strings.ToLower(value)) == FailClosed {
		return FailClosed
	}
	return FailOpen
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
