package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"resumeguard/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault (KVv2 paths)
type VaultSecrets struct {
	APIKeys      string `mapstructure:"apiKeys"`      // key "keys", comma separated
	TLSCerts     string `mapstructure:"tlsCerts"`     // keys "cert", "key", "ca" with PEM content
	StuffedTerms string `mapstructure:"stuffedTerms"` // key "terms", comma separated, appended to the watchlist
}

// SecretReader is the subset of the Vault client the loaders need
type SecretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a Vault client, or returns nil when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiConfig := api.DefaultConfig()
	if config.Address != "" {
		apiConfig.Address = config.Address
	}

	client, err := api.NewClient(apiConfig)
	if err != nil {
		logger.LogError(err, "Failed to create Vault client")
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		logger.LogError(err, "Vault token is required when Vault is enabled")
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", apiConfig.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	logger.Info("Successfully connected to Vault",
		"address", apiConfig.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, config: config, logger: logger}, nil
}

func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token
	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	vc.logger.Debug("Reading secret from Vault", "path", path)

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	return parseKVv2Secret(secret, path)
}

func parseKVv2Secret(secret *api.Secret, path string) (*VaultSecret, error) {
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}

	var version int64
	switch v := metadata["version"].(type) {
	case int64:
		version = v
	case float64:
		version = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		version = parsed
	default:
		return nil, fmt.Errorf("unexpected type for version at %s: %T", path, v)
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// StringValue returns data[key] as a string.
func (s *VaultSecret) StringValue(key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret", key)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string", key)
	}
	return str, nil
}

// StringSliceValue returns a comma separated data[key] as a slice.
func (s *VaultSecret) StringSliceValue(key string) ([]string, error) {
	value, err := s.StringValue(key)
	if err != nil {
		return nil, err
	}
	return splitAndTrim(value), nil
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return applySecrets(client, config, logger)
}

// applySecrets copies each configured secret into config
func applySecrets(reader SecretReader, config *Config, logger *errors.Logger) error {
	paths := config.Vault.Secrets

	if paths.APIKeys != "" {
		secret, err := reader.GetSecretV2(paths.APIKeys)
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		keys, err := secret.StringSliceValue("keys")
		if err != nil {
			return fmt.Errorf("invalid API keys secret at %s: %w", paths.APIKeys, err)
		}
		if len(keys) > 0 {
			config.Server.APIKeys = keys
			logger.Info("API keys loaded from Vault", "count", len(keys))
		} else {
			logger.Warn("No API keys found in Vault", "path", paths.APIKeys)
		}
	}

	if paths.TLSCerts != "" {
		secret, err := reader.GetSecretV2(paths.TLSCerts)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates from vault: %w", err)
		}
		loaded := 0
		for key, target := range map[string]*string{
			"cert": &config.Server.TLS.CertContent,
			"key":  &config.Server.TLS.KeyContent,
			"ca":   &config.Server.TLS.CAContent,
		} {
			if content, err := secret.StringValue(key); err == nil && content != "" {
				*target = content
				loaded++
			}
		}
		// Vault content wins over files
		if config.Server.TLS.CertContent != "" {
			config.Server.TLS.CertFile = ""
		}
		if config.Server.TLS.KeyContent != "" {
			config.Server.TLS.KeyFile = ""
		}
		if config.Server.TLS.CAContent != "" {
			config.Server.TLS.CAFile = ""
		}
		logger.Info("TLS certificates loaded from Vault", "certificates_loaded", loaded)
	}

	if paths.StuffedTerms != "" {
		secret, err := reader.GetSecretV2(paths.StuffedTerms)
		if err != nil {
			return fmt.Errorf("failed to load watchlist terms from vault: %w", err)
		}
		terms, err := secret.StringSliceValue("terms")
		if err != nil {
			return fmt.Errorf("invalid watchlist secret at %s: %w", paths.StuffedTerms, err)
		}
		added := 0
		for _, term := range terms {
			if !slices.Contains(config.Detection.StuffedTerms, term) {
				config.Detection.StuffedTerms = append(config.Detection.StuffedTerms, term)
				added++
			}
		}
		logger.Info("Watchlist terms loaded from Vault", "added", added)
	}

	return nil
}
