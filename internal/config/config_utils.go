package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyServiceAPIKeyFallback()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyServiceAPIKeyFallback reads the API key from INTERVIEWROOM_API_KEY when the
// canonical variable is not set
func (c *Config) applyServiceAPIKeyFallback() {
	if c.Service.APIKey == "" {
		c.Service.APIKey = strings.TrimSpace(os.Getenv(EnvPrefix + "_API_KEY"))
	}
}

// applyTLSDefaults applies default TLS configuration values
func (c *Config) applyTLSDefaults() {
	if c.Service.TLS.Mode == "" {
		c.Service.TLS.Mode = "disabled"
	}
	if c.Service.TLS.MinVersion == "" && c.Service.TLS.Mode != "disabled" {
		c.Service.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
	if c.App.LogLevel == "debug" && c.Observability.Enabled && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		EnvPrefix + "_SERVICE_BASEURL",
		EnvPrefix + "_SERVICE_APIKEY",
		EnvPrefix + "_API_KEY",
		EnvPrefix + "_SESSION_TARGETQUESTIONS",
		EnvPrefix + "_MEDIA_DEVICE",
		EnvPrefix + "_SPEECH_ENGINE",
		EnvPrefix + "_APP_LOGLEVEL",
		EnvPrefix + "_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Service URL: %s", c.Service.BaseURL)
	if c.Service.APIKey != "" {
		log.Println("[CONFIG] Service API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Service API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Target Questions: %d", c.Session.TargetQuestions)
	log.Printf("[CONFIG] Media Device: %s", c.Media.Device)
	log.Printf("[CONFIG] Speech Engine: %s", c.Speech.Engine)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] TLS Mode: %s", c.Service.TLS.Mode)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}
