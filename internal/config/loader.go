package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"go.crudcast.dev/internal/common/secrets"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	HTTP       TOMLHTTPConfig       `toml:"http"`
	Store      TOMLStoreConfig      `toml:"store"`
	Redis      TOMLRedisConfig      `toml:"redis"`
	Changefeed TOMLChangefeedConfig `toml:"changefeed"`
	Auth       TOMLAuthConfig       `toml:"auth"`
	Resilience TOMLResilienceConfig `toml:"resilience"`
	Secrets    TOMLSecretsConfig    `toml:"secrets"`
	DataDir    string               `toml:"data_dir"`
	DevMode    bool                 `toml:"dev_mode"`
}

// TOMLHTTPConfig represents HTTP configuration in TOML
type TOMLHTTPConfig struct {
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitRPS   int      `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// TOMLStoreConfig represents storage backend configuration in TOML
type TOMLStoreConfig struct {
	Type    string            `toml:"type"`
	MongoDB TOMLMongoDBConfig `toml:"mongodb"`
	MySQL   TOMLMySQLConfig   `toml:"mysql"`
}

// TOMLMongoDBConfig represents MongoDB configuration in TOML
type TOMLMongoDBConfig struct {
	URI          string `toml:"uri"`
	Database     string `toml:"database"`
	Transactions bool   `toml:"transactions"`
}

// TOMLMySQLConfig represents MySQL configuration in TOML
type TOMLMySQLConfig struct {
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// TOMLRedisConfig represents Redis cache configuration in TOML
type TOMLRedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`
}

// TOMLChangefeedConfig represents changefeed configuration in TOML
type TOMLChangefeedConfig struct {
	Type string         `toml:"type"`
	NATS TOMLNATSConfig `toml:"nats"`
	SQS  TOMLSQSConfig  `toml:"sqs"`
}

// TOMLNATSConfig represents NATS configuration in TOML
type TOMLNATSConfig struct {
	URL        string `toml:"url"`
	StreamName string `toml:"stream_name"`
	DataDir    string `toml:"data_dir"`
}

// TOMLSQSConfig represents SQS configuration in TOML
type TOMLSQSConfig struct {
	QueueURL       string `toml:"queue_url"`
	Region         string `toml:"region"`
	CustomEndpoint string `toml:"custom_endpoint"`
}

// TOMLAuthConfig represents auth configuration in TOML
type TOMLAuthConfig struct {
	Enabled     bool   `toml:"enabled"`
	Issuer      string `toml:"issuer"`
	Secret      string `toml:"secret"`
	TokenExpiry string `toml:"token_expiry"`
	BcryptCost  int    `toml:"bcrypt_cost"`
}

// TOMLResilienceConfig represents circuit breaker configuration in TOML
type TOMLResilienceConfig struct {
	BreakerEnabled     bool    `toml:"breaker_enabled"`
	BreakerMinRequests uint32  `toml:"breaker_min_requests"`
	BreakerRatio       float64 `toml:"breaker_ratio"`
	BreakerTimeout     string  `toml:"breaker_timeout"`
}

// TOMLSecretsConfig represents secrets provider configuration in TOML
type TOMLSecretsConfig struct {
	Provider      string `toml:"provider"`
	EncryptionKey string `toml:"encryption_key"`
	DataDir       string `toml:"data_dir"`

	// AWS
	AWSRegion   string `toml:"aws_region"`
	AWSPrefix   string `toml:"aws_prefix"`
	AWSEndpoint string `toml:"aws_endpoint"`

	// Vault
	VaultAddr      string `toml:"vault_addr"`
	VaultPath      string `toml:"vault_path"`
	VaultNamespace string `toml:"vault_namespace"`

	// GCP
	GCPProject string `toml:"gcp_project"`
	GCPPrefix  string `toml:"gcp_prefix"`
}

// ConfigPaths lists the paths to search for config files
var ConfigPaths = []string{
	"config.toml",
	"application.toml",
	"crudcast.toml",
	"./config/config.toml",
	"./config/application.toml",
	"/etc/crudcast/config.toml",
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	var tomlCfg TOMLConfig

	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return tomlConfigToConfig(&tomlCfg)
}

// LoadWithFile loads configuration from file first, then overrides with env vars
func LoadWithFile() (*Config, error) {
	// Start with defaults from environment
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	// Check for explicit config file path
	configPath := os.Getenv("CRUDCAST_CONFIG")
	if configPath == "" {
		// Search for config file in standard locations
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	// If no config file found, just use env vars
	if configPath == "" {
		return cfg, nil
	}

	// Load from file
	fileCfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Merge: file config as base, env vars override
	return mergeConfigs(fileCfg, cfg), nil
}

// tomlConfigToConfig converts TOML config to the internal Config struct
func tomlConfigToConfig(tc *TOMLConfig) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           tc.HTTP.Port,
			CORSOrigins:    tc.HTTP.CORSOrigins,
			RateLimitRPS:   tc.HTTP.RateLimitRPS,
			RateLimitBurst: tc.HTTP.RateLimitBurst,
		},
		Store: StoreConfig{
			Type: tc.Store.Type,
			MongoDB: MongoDBConfig{
				URI:          tc.Store.MongoDB.URI,
				Database:     tc.Store.MongoDB.Database,
				Transactions: tc.Store.MongoDB.Transactions,
			},
			MySQL: MySQLConfig{
				DSN:          tc.Store.MySQL.DSN,
				MaxOpenConns: tc.Store.MySQL.MaxOpenConns,
				MaxIdleConns: tc.Store.MySQL.MaxIdleConns,
			},
		},
		Redis: RedisConfig{
			Enabled:  tc.Redis.Enabled,
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
		},
		Changefeed: ChangefeedConfig{
			Type: tc.Changefeed.Type,
			NATS: NATSConfig{
				URL:        tc.Changefeed.NATS.URL,
				StreamName: tc.Changefeed.NATS.StreamName,
				DataDir:    tc.Changefeed.NATS.DataDir,
			},
			SQS: SQSConfig{
				QueueURL:       tc.Changefeed.SQS.QueueURL,
				Region:         tc.Changefeed.SQS.Region,
				CustomEndpoint: tc.Changefeed.SQS.CustomEndpoint,
			},
		},
		Auth: AuthConfig{
			Enabled:    tc.Auth.Enabled,
			Issuer:     tc.Auth.Issuer,
			Secret:     tc.Auth.Secret,
			BcryptCost: tc.Auth.BcryptCost,
		},
		Resilience: ResilienceConfig{
			BreakerEnabled:     tc.Resilience.BreakerEnabled,
			BreakerMinRequests: tc.Resilience.BreakerMinRequests,
			BreakerRatio:       tc.Resilience.BreakerRatio,
		},
		DataDir: tc.DataDir,
		DevMode: tc.DevMode,
	}

	if tc.Secrets.Provider != "" {
		cfg.Secrets = &secrets.Config{
			Provider:       secrets.ProviderType(tc.Secrets.Provider),
			EncryptionKey:  tc.Secrets.EncryptionKey,
			DataDir:        tc.Secrets.DataDir,
			AWSRegion:      tc.Secrets.AWSRegion,
			AWSPrefix:      tc.Secrets.AWSPrefix,
			AWSEndpoint:    tc.Secrets.AWSEndpoint,
			VaultAddr:      tc.Secrets.VaultAddr,
			VaultPath:      tc.Secrets.VaultPath,
			VaultNamespace: tc.Secrets.VaultNamespace,
			GCPProject:     tc.Secrets.GCPProject,
			GCPPrefix:      tc.Secrets.GCPPrefix,
		}
	}

	// Parse durations
	if tc.Redis.TTL != "" {
		if d, err := time.ParseDuration(tc.Redis.TTL); err == nil {
			cfg.Redis.TTL = d
		}
	}
	if tc.Auth.TokenExpiry != "" {
		if d, err := time.ParseDuration(tc.Auth.TokenExpiry); err == nil {
			cfg.Auth.TokenExpiry = d
		}
	}
	if tc.Resilience.BreakerTimeout != "" {
		if d, err := time.ParseDuration(tc.Resilience.BreakerTimeout); err == nil {
			cfg.Resilience.BreakerTimeout = d
		}
	}

	return cfg, nil
}

// mergeConfigs merges two configs, with override taking precedence for non-default values
func mergeConfigs(base, override *Config) *Config {
	result := *base

	// HTTP
	if override.HTTP.Port != 0 && override.HTTP.Port != 8080 {
		result.HTTP.Port = override.HTTP.Port
	}
	if len(override.HTTP.CORSOrigins) > 0 {
		result.HTTP.CORSOrigins = override.HTTP.CORSOrigins
	}
	if override.HTTP.RateLimitRPS != 0 {
		result.HTTP.RateLimitRPS = override.HTTP.RateLimitRPS
		result.HTTP.RateLimitBurst = override.HTTP.RateLimitBurst
	}

	// Store
	if override.Store.Type != "" && override.Store.Type != "mongo" {
		result.Store.Type = override.Store.Type
	}
	if override.Store.MongoDB.URI != "" && override.Store.MongoDB.URI != "mongodb://localhost:27017" {
		result.Store.MongoDB.URI = override.Store.MongoDB.URI
	}
	if override.Store.MongoDB.Database != "" && override.Store.MongoDB.Database != "crudcast" {
		result.Store.MongoDB.Database = override.Store.MongoDB.Database
	}
	if override.Store.MySQL.DSN != "" {
		result.Store.MySQL.DSN = override.Store.MySQL.DSN
	}

	// Redis
	if override.Redis.Enabled {
		result.Redis.Enabled = true
	}
	if override.Redis.Addr != "" && override.Redis.Addr != "localhost:6379" {
		result.Redis.Addr = override.Redis.Addr
	}
	if override.Redis.Password != "" {
		result.Redis.Password = override.Redis.Password
	}

	// Changefeed
	if override.Changefeed.Type != "" {
		result.Changefeed.Type = override.Changefeed.Type
	}
	if override.Changefeed.NATS.URL != "" {
		result.Changefeed.NATS.URL = override.Changefeed.NATS.URL
	}
	if override.Changefeed.SQS.QueueURL != "" {
		result.Changefeed.SQS.QueueURL = override.Changefeed.SQS.QueueURL
	}
	if override.Changefeed.SQS.Region != "" {
		result.Changefeed.SQS.Region = override.Changefeed.SQS.Region
	}

	// Auth
	if override.Auth.Issuer != "" && override.Auth.Issuer != "crudcast" {
		result.Auth.Issuer = override.Auth.Issuer
	}
	if override.Auth.Secret != "" {
		result.Auth.Secret = override.Auth.Secret
	}

	// Secrets
	if override.Secrets != nil {
		result.Secrets = override.Secrets
	}

	// General
	if override.DataDir != "" && override.DataDir != "./data" {
		result.DataDir = override.DataDir
	}
	if override.DevMode {
		result.DevMode = true
	}

	return &result
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := `# crudcast configuration
# Environment variables override these settings

data_dir = "./data"
dev_mode = false

[http]
port = 8080
cors_origins = ["http://localhost:4200"]
rate_limit_rps = 0
rate_limit_burst = 0

[store]
type = "mongo"  # mongo or mysql

[store.mongodb]
uri = "mongodb://localhost:27017"
database = "crudcast"
transactions = false

[store.mysql]
dsn = ""
max_open_conns = 25
max_idle_conns = 5

[redis]
enabled = false
addr = "localhost:6379"
password = ""
db = 0
ttl = "5m"

[changefeed]
type = ""  # "", embedded, nats, or sqs

[changefeed.nats]
url = "nats://localhost:4222"
stream_name = "CHANGES"
data_dir = "./data/nats"

[changefeed.sqs]
queue_url = ""
region = "us-east-1"
custom_endpoint = ""

[auth]
enabled = true
issuer = "crudcast"
secret = ""
token_expiry = "8h"
bcrypt_cost = 10

[resilience]
breaker_enabled = false
breaker_min_requests = 10
breaker_ratio = 0.6
breaker_timeout = "15s"

[secrets]
provider = "env"  # env, encrypted, aws-sm, vault, gcp-sm

# Encrypted provider
encryption_key = ""
data_dir = "./data/secrets"

# AWS Secrets Manager
aws_region = ""
aws_prefix = "/crudcast/"
aws_endpoint = ""

# HashiCorp Vault
vault_addr = ""
vault_path = "secret/data/crudcast"
vault_namespace = ""

# GCP Secret Manager
gcp_project = ""
gcp_prefix = "crudcast-"
`

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
