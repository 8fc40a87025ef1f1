package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.crudcast.dev/internal/common/secrets"
)

// Config holds all configuration for crudcast
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig

	// Store selects the storage backend and its connections
	Store StoreConfig

	// Redis configuration for the read-through model cache
	Redis RedisConfig

	// Changefeed configuration (NATS or SQS)
	Changefeed ChangefeedConfig

	// Authentication configuration
	Auth AuthConfig

	// Resilience configuration for model decorators
	Resilience ResilienceConfig

	// Secrets provider configuration, nil when only env vars apply
	Secrets *secrets.Config

	// Data directory for embedded services
	DataDir string

	// Development mode
	DevMode bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port           int
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
}

// StoreConfig holds storage backend configuration
type StoreConfig struct {
	// Type is "mongo" or "mysql"
	Type string

	MongoDB MongoDBConfig
	MySQL   MySQLConfig
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI          string
	Database     string
	Transactions bool
}

// MySQLConfig holds MySQL connection configuration
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ChangefeedConfig holds changefeed configuration
type ChangefeedConfig struct {
	// Type is "", "embedded", "nats", or "sqs"
	Type string

	NATS NATSConfig
	SQS  SQSConfig
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL        string
	StreamName string
	DataDir    string
}

// SQSConfig holds AWS SQS configuration
type SQSConfig struct {
	QueueURL       string
	Region         string
	CustomEndpoint string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled     bool
	Issuer      string
	Secret      string
	TokenExpiry time.Duration
	BcryptCost  int
}

// ResilienceConfig holds circuit breaker configuration for model decorators
type ResilienceConfig struct {
	BreakerEnabled     bool
	BreakerMinRequests uint32
	BreakerRatio       float64
	BreakerTimeout     time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           getEnvInt("HTTP_PORT", 8080),
			CORSOrigins:    getEnvSlice("CORS_ORIGINS", []string{"http://localhost:4200"}),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 0),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 0),
		},

		Store: StoreConfig{
			Type: getEnv("STORE_TYPE", "mongo"),
			MongoDB: MongoDBConfig{
				URI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
				Database:     getEnv("MONGODB_DATABASE", "crudcast"),
				Transactions: getEnvBool("MONGODB_TRANSACTIONS", false),
			},
			MySQL: MySQLConfig{
				DSN:          getEnv("MYSQL_DSN", ""),
				MaxOpenConns: getEnvInt("MYSQL_MAX_OPEN_CONNS", 25),
				MaxIdleConns: getEnvInt("MYSQL_MAX_IDLE_CONNS", 5),
			},
		},

		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
		},

		Changefeed: ChangefeedConfig{
			Type: getEnv("CHANGEFEED_TYPE", ""),
			NATS: NATSConfig{
				URL:        getEnv("NATS_URL", "nats://localhost:4222"),
				StreamName: getEnv("NATS_STREAM", "CHANGES"),
				DataDir:    getEnv("NATS_DATA_DIR", "./data/nats"),
			},
			SQS: SQSConfig{
				QueueURL:       getEnv("SQS_QUEUE_URL", ""),
				Region:         getEnv("AWS_REGION", "us-east-1"),
				CustomEndpoint: getEnv("SQS_CUSTOM_ENDPOINT", ""),
			},
		},

		Auth: AuthConfig{
			Enabled:     getEnvBool("AUTH_ENABLED", true),
			Issuer:      getEnv("JWT_ISSUER", "crudcast"),
			Secret:      getEnv("JWT_SECRET", ""),
			TokenExpiry: getEnvDuration("JWT_TOKEN_EXPIRY", 8*time.Hour),
			BcryptCost:  getEnvInt("BCRYPT_COST", 10),
		},

		Resilience: ResilienceConfig{
			BreakerEnabled:     getEnvBool("BREAKER_ENABLED", false),
			BreakerMinRequests: uint32(getEnvInt("BREAKER_MIN_REQUESTS", 10)),
			BreakerRatio:       getEnvFloat("BREAKER_RATIO", 0.6),
			BreakerTimeout:     getEnvDuration("BREAKER_TIMEOUT", 15*time.Second),
		},

		DataDir: getEnv("DATA_DIR", "./data"),
		DevMode: getEnvBool("CRUDCAST_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
