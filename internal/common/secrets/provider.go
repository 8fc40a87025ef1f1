// Package secrets provides secret management with multiple backend providers.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrProviderError  = errors.New("provider error")
)

// Provider defines the interface for secret storage backends
type Provider interface {
	// Get retrieves a secret by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a secret (if supported by the provider)
	Set(ctx context.Context, key, value string) error

	// Delete removes a secret (if supported by the provider)
	Delete(ctx context.Context, key string) error

	// Name returns the provider name for logging
	Name() string
}

// ProviderType represents the type of secret provider
type ProviderType string

const (
	ProviderTypeEncrypted ProviderType = "encrypted"
	ProviderTypeAWSSM     ProviderType = "aws-sm"
	ProviderTypeVault     ProviderType = "vault"
	ProviderTypeGCPSM     ProviderType = "gcp-sm"
	ProviderTypeEnv       ProviderType = "env" // Simple environment variable provider
)

// Config holds configuration for the secrets provider
type Config struct {
	// Provider type
	Provider ProviderType `json:"provider" toml:"provider"`

	// Encrypted provider settings
	EncryptionKey string `json:"encryptionKey" toml:"encryption_key"`
	DataDir       string `json:"dataDir" toml:"data_dir"`

	// AWS Secrets Manager settings
	AWSRegion    string `json:"awsRegion" toml:"aws_region"`
	AWSPrefix    string `json:"awsPrefix" toml:"aws_prefix"`
	AWSEndpoint  string `json:"awsEndpoint" toml:"aws_endpoint"` // For LocalStack
	AWSAccessKey string `json:"awsAccessKey" toml:"aws_access_key"`
	AWSSecretKey string `json:"awsSecretKey" toml:"aws_secret_key"`

	// HashiCorp Vault settings
	VaultAddr      string `json:"vaultAddr" toml:"vault_addr"`
	VaultToken     string `json:"vaultToken" toml:"vault_token"`
	VaultPath      string `json:"vaultPath" toml:"vault_path"`
	VaultNamespace string `json:"vaultNamespace" toml:"vault_namespace"`

	// GCP Secret Manager settings
	GCPProject string `json:"gcpProject" toml:"gcp_project"`
	GCPPrefix  string `json:"gcpPrefix" toml:"gcp_prefix"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderTypeEnv,
		DataDir:   "./data/secrets",
		AWSPrefix: "/crudcast/",
		VaultPath: "secret/data/crudcast",
		GCPPrefix: "crudcast-",
	}
}

// envOr returns the first non-empty value among the named environment
// variables, or fallback when none is set.
func envOr(fallback string, names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return fallback
}

// LoadConfigFromEnv loads configuration from environment variables. The
// CRUDCAST_SECRETS_* variables win over the conventional AWS/Vault/GCP ones.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if p := os.Getenv("CRUDCAST_SECRETS_PROVIDER"); p != "" {
		cfg.Provider = ProviderType(strings.ToLower(p))
	}

	cfg.EncryptionKey = envOr(cfg.EncryptionKey, "CRUDCAST_SECRETS_ENCRYPTION_KEY")
	cfg.DataDir = envOr(cfg.DataDir, "CRUDCAST_SECRETS_DATA_DIR")

	cfg.AWSRegion = envOr(cfg.AWSRegion, "CRUDCAST_SECRETS_AWS_REGION", "AWS_REGION")
	cfg.AWSPrefix = envOr(cfg.AWSPrefix, "CRUDCAST_SECRETS_AWS_PREFIX")
	cfg.AWSEndpoint = envOr(cfg.AWSEndpoint, "CRUDCAST_SECRETS_AWS_ENDPOINT")

	cfg.VaultAddr = envOr(cfg.VaultAddr, "CRUDCAST_SECRETS_VAULT_ADDR", "VAULT_ADDR")
	cfg.VaultToken = envOr(cfg.VaultToken, "CRUDCAST_SECRETS_VAULT_TOKEN", "VAULT_TOKEN")
	cfg.VaultPath = envOr(cfg.VaultPath, "CRUDCAST_SECRETS_VAULT_PATH")
	cfg.VaultNamespace = envOr(cfg.VaultNamespace, "CRUDCAST_SECRETS_VAULT_NAMESPACE")

	cfg.GCPProject = envOr(cfg.GCPProject, "CRUDCAST_SECRETS_GCP_PROJECT", "GOOGLE_CLOUD_PROJECT")
	cfg.GCPPrefix = envOr(cfg.GCPPrefix, "CRUDCAST_SECRETS_GCP_PREFIX")

	return cfg
}

// NewProvider creates a new secret provider based on configuration
func NewProvider(cfg *Config) (Provider, error) {
	if cfg == nil {
		cfg = LoadConfigFromEnv()
	}

	switch cfg.Provider {
	case ProviderTypeEncrypted:
		return NewEncryptedProvider(cfg.EncryptionKey, cfg.DataDir)
	case ProviderTypeAWSSM:
		return NewAWSSecretsManagerProvider(cfg)
	case ProviderTypeVault:
		return NewVaultProvider(cfg)
	case ProviderTypeGCPSM:
		return NewGCPSecretManagerProvider(cfg)
	case ProviderTypeEnv:
		return NewEnvProvider("CRUDCAST_SECRET_"), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// EnvProvider reads secrets from environment variables. It is read only and
// serves as the zero-setup default for local development.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get retrieves a secret from environment variables. Keys are upper-cased
// and dashes become underscores, so "jwt-secret" reads CRUDCAST_SECRET_JWT_SECRET.
func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Set is not supported for environment provider
func (p *EnvProvider) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("environment provider does not support Set")
}

// Delete is not supported for environment provider
func (p *EnvProvider) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("environment provider does not support Delete")
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}
