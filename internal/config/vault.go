package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"interviewroom/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// PollInterval is how often rotated TLS material is looked for, 0 disables polling
	PollInterval time.Duration `mapstructure:"pollInterval"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault
type VaultSecrets struct {
	ServiceKey string `mapstructure:"serviceKey"` // KVv2 path holding "api_key"
	TLSCerts   string `mapstructure:"tlsCerts"`   // KVv2 path holding "cert", "key", "ca"
}

// secretReader is the part of the Vault API client used to read secrets
type secretReader interface {
	Read(path string) (*api.Secret, error)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	logical secretReader
	config  VaultConfig
	logger  *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	logger.Debug("Initializing Vault client",
		"address", config.Address,
		"namespace", config.Namespace,
		"token_file", config.TokenFile,
		"has_token", config.Token != "")

	client, err := createVaultAPIClient(config, logger)
	if err != nil {
		return nil, err
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if err := testVaultConnection(client, config.Address, logger); err != nil {
		return nil, err
	}

	return &VaultClient{
		logical: client.Logical(),
		config:  config,
		logger:  logger,
	}, nil
}

// createVaultAPIClient creates and configures the Vault API client
func createVaultAPIClient(config VaultConfig, logger *errors.Logger) (*api.Client, error) {
	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		logger.LogError(err, "Failed to create Vault client")
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return client, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", config.TokenFile)
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			logger.LogError(err, "Failed to read Vault token file", "file", config.TokenFile)
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}

	return token, nil
}

// testVaultConnection tests the connection to Vault
func testVaultConnection(client *api.Client, address string, logger *errors.Logger) error {
	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", address)
		return fmt.Errorf("failed to connect to vault: %w", err)
	}

	logger.Info("Connected to Vault",
		"address", address,
		"version", health.Version,
		"sealed", health.Sealed)

	return nil
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

	secret, err := vc.logical.Read(path)
	if err != nil {
		vc.logger.LogError(err, "Failed to read secret from Vault", "path", path)
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	version, err := extractSecretVersion(secret, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{
		Data:    data,
		Version: version,
	}, nil
}

// extractSecretVersion extracts and parses the version from a KVv2 secret
func extractSecretVersion(secret *api.Secret, path string) (int64, error) {
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}

	versionRaw, ok := metadata["version"]
	if !ok {
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}

	return parseVersionValue(versionRaw, path)
}

// parseVersionValue parses version value from the types Vault's JSON decoding yields
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}

	vc.logger.Debug("String secret retrieved from Vault",
		"path", path,
		"key", key,
		"masked_value", maskSecret(strValue))

	return strValue, nil
}

func maskSecret(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	if value != "" {
		return "****"
	}
	return ""
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	logger.Info("Loading secrets from Vault",
		"service_key_path", config.Vault.Secrets.ServiceKey,
		"tls_certs_path", config.Vault.Secrets.TLSCerts)

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	return applySecrets(client, config, logger)
}

// applySecrets loads every configured secret through client
func applySecrets(client *VaultClient, config *Config, logger *errors.Logger) error {
	if err := loadServiceKeyFromVault(client, config, logger); err != nil {
		return err
	}
	if err := loadTLSCertsFromVault(client, config, logger); err != nil {
		return err
	}
	// Vault material may switch TLS on, re-run the checks
	if err := config.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration from vault is invalid: %w", err)
	}
	return nil
}

// loadServiceKeyFromVault loads the Interview Service API key from Vault
func loadServiceKeyFromVault(client *VaultClient, config *Config, logger *errors.Logger) error {
	path := config.Vault.Secrets.ServiceKey
	if path == "" {
		return nil
	}

	key, err := client.GetStringSecret(path, "api_key")
	if err != nil {
		logger.LogError(err, "Failed to load service API key from Vault", "path", path)
		return fmt.Errorf("failed to load service API key from vault: %w", err)
	}

	if key == "" {
		logger.Warn("Empty service API key found in Vault", "path", path)
		return nil
	}

	config.Service.APIKey = key
	logger.Info("Service API key loaded from Vault")
	return nil
}

// loadTLSCertsFromVault loads client TLS material from Vault
func loadTLSCertsFromVault(client *VaultClient, config *Config, logger *errors.Logger) error {
	path := config.Vault.Secrets.TLSCerts
	if path == "" {
		return nil
	}

	tlsData, err := client.GetSecretV2(path)
	if err != nil {
		logger.LogError(err, "Failed to load TLS certificates from Vault", "path", path)
		return fmt.Errorf("failed to load TLS certificates from vault: %w", err)
	}

	tls := &config.Service.TLS
	loaded := 0
	loaded += loadSingleCertificate(tlsData, "cert", &tls.CertContent, &tls.CertFile)
	loaded += loadSingleCertificate(tlsData, "key", &tls.KeyContent, &tls.KeyFile)
	loaded += loadSingleCertificate(tlsData, "ca", &tls.CAContent, &tls.CAFile)

	// A client certificate from Vault means mutual TLS, a bare CA means custom roots
	if tls.Mode == "disabled" {
		switch {
		case tls.CertContent != "" && tls.KeyContent != "":
			tls.Mode = "mutual"
		case tls.CAContent != "":
			tls.Mode = "custom"
		}
	}

	logger.Info("TLS material loaded from Vault", "certificates_loaded", loaded, "tls_mode", tls.Mode)
	return nil
}

// loadSingleCertificate copies one PEM field from Vault data. Content from Vault
// replaces any configured file for the same slot.
func loadSingleCertificate(tlsData *VaultSecret, key string, content, file *string) int {
	value, ok := tlsData.Data[key].(string)
	if !ok || value == "" {
		return 0
	}
	*content = value
	*file = ""
	return 1
}
